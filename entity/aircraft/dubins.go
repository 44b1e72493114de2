package aircraft

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"github.com/tsinghua-fib-lab/rejoin-sim/entity"
	"github.com/tsinghua-fib-lab/rejoin-sim/utils/config"
	"github.com/tsinghua-fib-lab/rejoin-sim/utils/geometry"
	"gonum.org/v1/gonum/num/quat"
)

const (
	Gravity = 32.17 // 重力加速度（ft/s^2）

	MinSpeed = 200.0 // 最小速度（ft/s）
	MaxSpeed = 400.0 // 最大速度（ft/s）

	MaxGamma = math.Pi / 9 // 最大航迹倾角
	MaxRoll  = math.Pi / 3 // 最大滚转角

	MaxHeadingRate  = 10 * math.Pi / 180 // 2D最大航向角速度
	MaxGammaRate    = 10 * math.Pi / 180 // 3D最大航迹倾角速度
	MaxRollRate     = 5 * math.Pi / 180  // 3D最大滚转角速度
	MaxAcceleration = 96.5               // 最大切向加速度（ft/s^2）
)

var (
	_ entity.IAircraft = (*Dubins2D)(nil)
	_ entity.IAircraft = (*Dubins3D)(nil)
)

// InitialState 飞机初始状态
type InitialState struct {
	Position []float64 // 位置，3D必须为3维，2D可为2或3维（z被忽略）
	Heading  float64
	Gamma    float64
	Roll     float64
	V        float64 // 为0时取MinSpeed
}

// New 按模型类型创建飞机
func New(kind, name string, init InitialState, opts Options) (a entity.IAircraft, err error) {
	switch kind {
	case config.SimulatorDubins2D:
		a, err = NewDubins2D(name, init, opts)
	case config.SimulatorDubins3D, "":
		a, err = NewDubins3D(name, init, opts)
	default:
		return nil, fmt.Errorf("unknown aircraft type %q", kind)
	}
	if err != nil {
		return nil, err
	}
	log.Debugf("%s %s created with state %v", kind, name, a.State())
	return a, nil
}

func speedOrDefault(v float64) float64 {
	if v == 0 {
		return MinSpeed
	}
	return v
}

// Dubins2D 平面Dubins飞机
// 状态：[x, y, heading, v]
// 控制：[heading_rate, acceleration]
type Dubins2D struct {
	odeEntity
}

// NewDubins2D 创建平面Dubins飞机
func NewDubins2D(name string, init InitialState, opts Options) (*Dubins2D, error) {
	if l := len(init.Position); l != 2 && l != 3 {
		return nil, fmt.Errorf("aircraft %s: position must have 2 or 3 elements, got %d", name, l)
	}
	inf := math.Inf(1)
	a := &Dubins2D{odeEntity{
		name:           name,
		stateNames:     []string{"x", "y", "heading", "v"},
		stateMin:       []float64{-inf, -inf, -inf, MinSpeed},
		stateMax:       []float64{inf, inf, inf, MaxSpeed},
		angleWrap:      []float64{noWrap, noWrap, 0, noWrap},
		controlNames:   []string{"heading_rate", "acceleration"},
		controlDefault: []float64{0, 0},
		controlMin:     []float64{-MaxHeadingRate, -MaxAcceleration},
		controlMax:     []float64{MaxHeadingRate, MaxAcceleration},
		opts:           opts,
	}}
	a.computeStateDot = dubins2DStateDot
	state := []float64{init.Position[0], init.Position[1], init.Heading, speedOrDefault(init.V)}
	if err := a.init(state); err != nil {
		return nil, err
	}
	return a, nil
}

func dubins2DStateDot(x, u []float64) []float64 {
	psi, v := x[2], x[3]
	return []float64{
		v * math.Cos(psi),
		v * math.Sin(psi),
		u[0],
		u[1],
	}
}

func (a *Dubins2D) Position() r3.Vector {
	return r3.Vector{X: a.state[0], Y: a.state[1]}
}

func (a *Dubins2D) Velocity() r3.Vector {
	return r3.Vector{X: a.stateDot[0], Y: a.stateDot[1]}
}

func (a *Dubins2D) Acceleration() r3.Vector {
	return unitOrZero(a.Velocity()).Mul(a.stateDot[3])
}

func (a *Dubins2D) Orientation() quat.Number {
	return geometry.EulerZYX(a.state[2], 0, 0)
}

func (a *Dubins2D) Heading() float64 { return a.state[2] }
func (a *Dubins2D) Gamma() float64   { return 0 }
func (a *Dubins2D) Roll() float64    { return 0 }
func (a *Dubins2D) V() float64       { return a.state[3] }

// Dubins3D 三维Dubins飞机
// 状态：[x, y, z, heading, gamma, roll, v]
// 控制：[gamma_rate, roll_rate, acceleration]
// 说明：z轴向下为正（NED），因此爬升（gamma>0）时z减小
type Dubins3D struct {
	odeEntity
}

// NewDubins3D 创建三维Dubins飞机
func NewDubins3D(name string, init InitialState, opts Options) (*Dubins3D, error) {
	if l := len(init.Position); l != 3 {
		return nil, fmt.Errorf("aircraft %s: position must have 3 elements, got %d", name, l)
	}
	inf := math.Inf(1)
	a := &Dubins3D{odeEntity{
		name:           name,
		stateNames:     []string{"x", "y", "z", "heading", "gamma", "roll", "v"},
		stateMin:       []float64{-inf, -inf, -inf, -inf, -MaxGamma, -MaxRoll, MinSpeed},
		stateMax:       []float64{inf, inf, inf, inf, MaxGamma, MaxRoll, MaxSpeed},
		angleWrap:      []float64{noWrap, noWrap, noWrap, 0, 0, 0, noWrap},
		controlNames:   []string{"gamma_rate", "roll_rate", "acceleration"},
		controlDefault: []float64{0, 0, 0},
		controlMin:     []float64{-MaxGammaRate, -MaxRollRate, -MaxAcceleration},
		controlMax:     []float64{MaxGammaRate, MaxRollRate, MaxAcceleration},
		opts:           opts,
	}}
	a.computeStateDot = dubins3DStateDot
	state := []float64{
		init.Position[0], init.Position[1], init.Position[2],
		init.Heading, init.Gamma, init.Roll, speedOrDefault(init.V),
	}
	if err := a.init(state); err != nil {
		return nil, err
	}
	return a, nil
}

func dubins3DStateDot(x, u []float64) []float64 {
	psi, gamma, roll, v := x[3], x[4], x[5], x[6]
	return []float64{
		v * math.Cos(psi) * math.Cos(gamma),
		v * math.Sin(psi) * math.Cos(gamma),
		-v * math.Sin(gamma),
		Gravity / v * math.Tan(roll),
		u[0],
		u[1],
		u[2],
	}
}

func (a *Dubins3D) Position() r3.Vector {
	return r3.Vector{X: a.state[0], Y: a.state[1], Z: a.state[2]}
}

func (a *Dubins3D) Velocity() r3.Vector {
	return r3.Vector{X: a.stateDot[0], Y: a.stateDot[1], Z: a.stateDot[2]}
}

func (a *Dubins3D) Acceleration() r3.Vector {
	return unitOrZero(a.Velocity()).Mul(a.stateDot[6])
}

func (a *Dubins3D) Orientation() quat.Number {
	return geometry.EulerZYX(a.state[3], a.state[4], a.state[5])
}

func (a *Dubins3D) Heading() float64 { return a.state[3] }
func (a *Dubins3D) Gamma() float64   { return a.state[4] }
func (a *Dubins3D) Roll() float64    { return a.state[5] }
func (a *Dubins3D) V() float64       { return a.state[6] }

func unitOrZero(v r3.Vector) r3.Vector {
	if v.Norm() == 0 {
		return r3.Vector{}
	}
	return v.Normalize()
}
