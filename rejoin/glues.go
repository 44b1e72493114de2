package rejoin

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/rejoin-sim/entity"
	"github.com/tsinghua-fib-lab/rejoin-sim/entity/aircraft"
	"github.com/tsinghua-fib-lab/rejoin-sim/entity/platform"
	"github.com/tsinghua-fib-lab/rejoin-sim/utils/config"
	"github.com/tsinghua-fib-lab/rejoin-sim/utils/geometry"
	"gonum.org/v1/gonum/floats"
)

// 相对量观测的量程（归一化前，ft与ft/s）
const (
	maxRelativeDistance = 100000.0
	maxRelativeSpeed    = 2 * aircraft.MaxSpeed
)

func box(name string, low, high float64, dim int, unit string) entity.BoxProp {
	return entity.BoxProp{
		Name:        name,
		Low:         lo.Times(dim, func(int) float64 { return low }),
		High:        lo.Times(dim, func(int) float64 { return high }),
		Unit:        lo.Times(dim, func(int) string { return unit }),
		Description: name,
	}
}

// toBodyFrame 世界系矢量转到仅含航向旋转的机体系
func toBodyFrame(p entity.IPlatform, v r3.Vector) r3.Vector {
	return geometry.InverseRotate(geometry.HeadingFrame(p.Heading()), v)
}

type relativeParams struct {
	Target        string  `yaml:"target"`
	Normalization float64 `yaml:"normalization"`
}

func decodeRelative(params map[string]interface{}, b *buildContext) (relativeParams, error) {
	p := relativeParams{Target: RejoinTarget, Normalization: 1}
	if err := config.DecodeParams(params, &p); err != nil {
		return p, err
	}
	if p.Normalization <= 0 {
		return p, errors.New("normalization must be positive")
	}
	if p.Target != RejoinTarget {
		if _, ok := b.rc.Platform(p.Target); !ok {
			return p, fmt.Errorf("unknown target platform %q", p.Target)
		}
	}
	return p, nil
}

// relativePositionGlue 目标相对位置
// 功能：目标（平台或集结区域中心）相对自身的位置，转到航向机体系后除以normalization
type relativePositionGlue struct {
	base
	relativeParams
}

func newRelativePositionGlue(name string, params map[string]interface{}, b *buildContext) (Glue, error) {
	p, err := decodeRelative(params, b)
	if err != nil {
		return nil, err
	}
	return &relativePositionGlue{base{name}, p}, nil
}

func (g *relativePositionGlue) Space() entity.BoxProp {
	m := maxRelativeDistance / g.Normalization
	return box(g.name, -m, m, 3, "ft")
}

func (g *relativePositionGlue) Observe(v *View, _ map[string][]float64) ([]float64, error) {
	pos, _, err := v.Target(g.Target)
	if err != nil {
		return nil, err
	}
	rel := toBodyFrame(v.Platform, pos.Sub(v.Platform.Position()))
	return geometry.ToSlice(rel.Mul(1 / g.Normalization)), nil
}

// relativeVelocityGlue 目标相对速度
// 功能：目标速度减自身速度，转到航向机体系后除以normalization；集结区域中心的速度取长机速度
type relativeVelocityGlue struct {
	base
	relativeParams
}

func newRelativeVelocityGlue(name string, params map[string]interface{}, b *buildContext) (Glue, error) {
	p, err := decodeRelative(params, b)
	if err != nil {
		return nil, err
	}
	return &relativeVelocityGlue{base{name}, p}, nil
}

func (g *relativeVelocityGlue) Space() entity.BoxProp {
	m := maxRelativeSpeed / g.Normalization
	return box(g.name, -m, m, 3, "ft/s")
}

func (g *relativeVelocityGlue) Observe(v *View, _ map[string][]float64) ([]float64, error) {
	_, vel, err := v.Target(g.Target)
	if err != nil {
		return nil, err
	}
	rel := toBodyFrame(v.Platform, vel.Sub(v.Platform.Velocity()))
	return geometry.ToSlice(rel.Mul(1 / g.Normalization)), nil
}

// ownSpeedGlue 自身速度大小
type ownSpeedGlue struct {
	base `yaml:"-"`

	Normalization float64 `yaml:"normalization"`
}

func newOwnSpeedGlue(name string, params map[string]interface{}, b *buildContext) (Glue, error) {
	g := &ownSpeedGlue{base: base{name}, Normalization: 1}
	if err := config.DecodeParams(params, g); err != nil {
		return nil, err
	}
	if g.Normalization <= 0 {
		return nil, errors.New("normalization must be positive")
	}
	return g, nil
}

func (g *ownSpeedGlue) Space() entity.BoxProp {
	return box(g.name, aircraft.MinSpeed/g.Normalization, aircraft.MaxSpeed/g.Normalization, 1, "ft/s")
}

func (g *ownSpeedGlue) Observe(v *View, _ map[string][]float64) ([]float64, error) {
	return []float64{v.Platform.Speed() / g.Normalization}, nil
}

// ownAttitudeGlue 自身姿态（不含航向）
// 功能：[sin(gamma), cos(gamma), sin(roll), cos(roll)]
type ownAttitudeGlue struct {
	base
}

func newOwnAttitudeGlue(name string, params map[string]interface{}, b *buildContext) (Glue, error) {
	if len(params) > 0 {
		return nil, fmt.Errorf("unexpected params %v", lo.Keys(params))
	}
	return &ownAttitudeGlue{base{name}}, nil
}

func (g *ownAttitudeGlue) Space() entity.BoxProp {
	return box(g.name, -1, 1, 4, "None")
}

func (g *ownAttitudeGlue) Observe(v *View, _ map[string][]float64) ([]float64, error) {
	a := v.Platform.Aircraft()
	return []float64{math.Sin(a.Gamma()), math.Cos(a.Gamma()), math.Sin(a.Roll()), math.Cos(a.Roll())}, nil
}

// sensorGlue 直接读取平台传感器
type sensorGlue struct {
	base `yaml:"-"`

	Sensor        string  `yaml:"sensor"`
	Normalization float64 `yaml:"normalization"`

	prop entity.BoxProp
}

func newSensorGlue(name string, params map[string]interface{}, b *buildContext) (Glue, error) {
	g := &sensorGlue{base: base{name}, Normalization: 1}
	if err := config.DecodeParams(params, g); err != nil {
		return nil, err
	}
	if g.Normalization <= 0 {
		return nil, errors.New("normalization must be positive")
	}
	prop, ok := platform.SensorProp(g.Sensor)
	if !ok {
		return nil, fmt.Errorf("unknown sensor %q", g.Sensor)
	}
	g.prop = prop
	g.prop.Name = name
	g.prop.Low = lo.Map(prop.Low, func(x float64, _ int) float64 { return x / g.Normalization })
	g.prop.High = lo.Map(prop.High, func(x float64, _ int) float64 { return x / g.Normalization })
	return g, nil
}

func (g *sensorGlue) Space() entity.BoxProp {
	return g.prop
}

func (g *sensorGlue) Observe(v *View, _ map[string][]float64) ([]float64, error) {
	s, err := v.Platform.Sensor(g.Sensor)
	if err != nil {
		return nil, err
	}
	m := s.Measurement()
	floats.Scale(1/g.Normalization, m)
	return m, nil
}

// dependency 依赖的观测函数须在配置中先于本观测声明
func dependency(b *buildContext, name string) (Glue, error) {
	g, ok := b.glues[name]
	if !ok {
		return nil, fmt.Errorf("glue %q must be declared before it is referenced", name)
	}
	return g, nil
}

// magnitudeGlue 另一观测的模长
type magnitudeGlue struct {
	base `yaml:"-"`

	Glue string `yaml:"glue"`

	bound float64
}

func newMagnitudeGlue(name string, params map[string]interface{}, b *buildContext) (Glue, error) {
	g := &magnitudeGlue{base: base{name}}
	if err := config.DecodeParams(params, g); err != nil {
		return nil, err
	}
	dep, err := dependency(b, g.Glue)
	if err != nil {
		return nil, err
	}
	space := dep.Space()
	g.bound = math.Max(floats.Norm(space.Low, 2), floats.Norm(space.High, 2))
	return g, nil
}

func (g *magnitudeGlue) Space() entity.BoxProp {
	return box(g.name, 0, g.bound, 1, "None")
}

func (g *magnitudeGlue) Observe(_ *View, prior map[string][]float64) ([]float64, error) {
	x, ok := prior[g.Glue]
	if !ok {
		return nil, fmt.Errorf("glue %s: missing input %s", g.name, g.Glue)
	}
	return []float64{floats.Norm(x, 2)}, nil
}

// dotProductGlue 两个观测的点积
// 功能：normalize时先除以两者模长（模长为0时结果为0），结果限制在[-1, 1]
type dotProductGlue struct {
	base `yaml:"-"`

	Glues     []string `yaml:"glues"`
	Normalize bool     `yaml:"normalize"`

	bound float64
}

func newDotProductGlue(name string, params map[string]interface{}, b *buildContext) (Glue, error) {
	g := &dotProductGlue{base: base{name}}
	if err := config.DecodeParams(params, g); err != nil {
		return nil, err
	}
	if len(g.Glues) != 2 {
		return nil, fmt.Errorf("dot_product needs exactly 2 glues, got %d", len(g.Glues))
	}
	bounds := make([]float64, 2)
	dim := -1
	for i, name := range g.Glues {
		dep, err := dependency(b, name)
		if err != nil {
			return nil, err
		}
		space := dep.Space()
		if dim >= 0 && space.Dim() != dim {
			return nil, fmt.Errorf("dot_product inputs have different sizes %d and %d", dim, space.Dim())
		}
		dim = space.Dim()
		bounds[i] = math.Max(floats.Norm(space.Low, 2), floats.Norm(space.High, 2))
	}
	g.bound = bounds[0] * bounds[1]
	if g.Normalize {
		g.bound = 1
	}
	return g, nil
}

func (g *dotProductGlue) Space() entity.BoxProp {
	return box(g.name, -g.bound, g.bound, 1, "None")
}

func (g *dotProductGlue) Observe(_ *View, prior map[string][]float64) ([]float64, error) {
	a, ok1 := prior[g.Glues[0]]
	b, ok2 := prior[g.Glues[1]]
	if !ok1 || !ok2 {
		return nil, fmt.Errorf("glue %s: missing inputs %v", g.name, g.Glues)
	}
	dot := floats.Dot(a, b)
	if g.Normalize {
		na, nb := floats.Norm(a, 2), floats.Norm(b, 2)
		if na == 0 || nb == 0 {
			return []float64{0}, nil
		}
		dot = geometry.Clip(dot/(na*nb), -1, 1)
	}
	return []float64{dot}, nil
}
