package aircraft

import (
	"fmt"
	"math"
	"slices"

	"github.com/tsinghua-fib-lab/rejoin-sim/utils/config"
	"github.com/tsinghua-fib-lab/rejoin-sim/utils/geometry"
)

// noWrap 不进行角度归一化的状态维
var noWrap = math.NaN()

// Options 积分配置
type Options struct {
	Integration string // rk4 或 euler
	Substeps    int    // 每次Step内的积分次数
}

// DefaultOptions 默认积分配置
func DefaultOptions() Options {
	return Options{Integration: config.IntegrationRK4, Substeps: 10}
}

// odeEntity 由常微分方程描述的仿真实体
// 功能：保存状态向量及其上下界、角度归一化中心、控制量上下界，并按固定步长积分
// 说明：具体模型只需给出状态导数函数，其余（控制限幅、状态限幅、导数限幅、角度归一化）在此统一处理
type odeEntity struct {
	name string

	state      []float64 // 状态向量
	stateDot   []float64 // 最近一次Step结束时的状态导数
	stateNames []string
	stateMin   []float64
	stateMax   []float64
	angleWrap  []float64 // 角度归一化中心，NaN表示该维不是角度

	controlNames   []string
	controlIndex   map[string]int
	controlDefault []float64
	controlMin     []float64
	controlMax     []float64
	lastControl    []float64 // 最近一次实际施加（限幅后）的控制量

	opts Options

	computeStateDot func(state, control []float64) []float64
}

func (e *odeEntity) init(state []float64) error {
	if e.opts.Integration == "" {
		e.opts.Integration = config.IntegrationRK4
	}
	if e.opts.Integration != config.IntegrationRK4 && e.opts.Integration != config.IntegrationEuler {
		return fmt.Errorf("aircraft %s: unknown integration method %q", e.name, e.opts.Integration)
	}
	if e.opts.Substeps <= 0 {
		e.opts.Substeps = 1
	}
	e.controlIndex = make(map[string]int, len(e.controlNames))
	for i, n := range e.controlNames {
		e.controlIndex[n] = i
	}
	e.state = state
	e.normalize(e.state)
	e.lastControl = slices.Clone(e.controlDefault)
	e.stateDot = e.limitedStateDot(e.state, e.lastControl)
	return nil
}

// Name 名称
func (e *odeEntity) Name() string {
	return e.name
}

// State 状态向量（拷贝）
func (e *odeEntity) State() []float64 {
	return slices.Clone(e.state)
}

// StateNames 状态向量各维名称
func (e *odeEntity) StateNames() []string {
	return slices.Clone(e.stateNames)
}

// ControlNames 控制量各维名称
func (e *odeEntity) ControlNames() []string {
	return slices.Clone(e.controlNames)
}

// ControlDefault 默认控制量
func (e *odeEntity) ControlDefault() []float64 {
	return slices.Clone(e.controlDefault)
}

// ControlBounds 控制量上下界
func (e *odeEntity) ControlBounds() (low, high []float64) {
	return slices.Clone(e.controlMin), slices.Clone(e.controlMax)
}

// LastControl 最近一次实际施加的控制量
func (e *odeEntity) LastControl() []float64 {
	return slices.Clone(e.lastControl)
}

// StepNamed 按名称->值的控制量推进dt秒
// 功能：缺失的控制项取默认值，未知的控制项返回错误
func (e *odeEntity) StepNamed(dt float64, control map[string]float64) error {
	u := slices.Clone(e.controlDefault)
	for k, v := range control {
		i, ok := e.controlIndex[k]
		if !ok {
			return fmt.Errorf("aircraft %s: unknown control %q, expect one of %v", e.name, k, e.controlNames)
		}
		u[i] = v
	}
	return e.Step(dt, u)
}

// Step 按控制向量推进dt秒
// 功能：对控制量限幅后积分状态方程
// 参数：dt-时间（秒），control-控制向量，长度须与控制维度一致
// 算法说明：
// 1. 控制量限幅到[controlMin, controlMax]
// 2. 将dt等分为Substeps段，每段用RK4或欧拉法积分
// 3. 每段积分后对状态限幅并做角度归一化
// 4. 记录积分结束时的状态导数（用于加速度输出）
// 说明：状态导数经过限幅处理，已经处于边界的状态不会继续越界
func (e *odeEntity) Step(dt float64, control []float64) error {
	if len(control) != len(e.controlDefault) {
		return fmt.Errorf("aircraft %s: control has %d elements, want %d", e.name, len(control), len(e.controlDefault))
	}
	if dt < 0 {
		return fmt.Errorf("aircraft %s: negative step size %v", e.name, dt)
	}
	u := geometry.ClipVec(control, e.controlMin, e.controlMax)
	f := func(x []float64) []float64 { return e.limitedStateDot(x, u) }

	h := dt / float64(e.opts.Substeps)
	x := slices.Clone(e.state)
	for range e.opts.Substeps {
		switch e.opts.Integration {
		case config.IntegrationEuler:
			x = eulerStep(f, x, h)
		default:
			x = rk4Step(f, x, h)
		}
		e.normalize(x)
	}
	for i, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("aircraft %s: state %s diverged to %v", e.name, e.stateNames[i], v)
		}
	}
	e.state = x
	e.lastControl = u
	e.stateDot = f(x)
	return nil
}

// limitedStateDot 带边界处理的状态导数
// 说明：处于上界且导数为正、或处于下界且导数为负的维度导数置零
func (e *odeEntity) limitedStateDot(x, u []float64) []float64 {
	dot := e.computeStateDot(x, u)
	for i := range dot {
		if (x[i] >= e.stateMax[i] && dot[i] > 0) || (x[i] <= e.stateMin[i] && dot[i] < 0) {
			dot[i] = 0
		}
	}
	return dot
}

// normalize 状态限幅与角度归一化（原地修改）
func (e *odeEntity) normalize(x []float64) {
	for i := range x {
		x[i] = geometry.Clip(x[i], e.stateMin[i], e.stateMax[i])
		if !math.IsNaN(e.angleWrap[i]) {
			x[i] = geometry.WrapAngle(x[i], e.angleWrap[i])
		}
	}
}

// eulerStep 显式欧拉积分一步
func eulerStep(f func([]float64) []float64, x []float64, h float64) []float64 {
	k := f(x)
	out := make([]float64, len(x))
	for i := range x {
		out[i] = x[i] + h*k[i]
	}
	return out
}

// rk4Step 经典四阶龙格-库塔积分一步
func rk4Step(f func([]float64) []float64, x []float64, h float64) []float64 {
	n := len(x)
	tmp := make([]float64, n)
	axpy := func(k []float64, a float64) []float64 {
		for i := range x {
			tmp[i] = x[i] + a*k[i]
		}
		return tmp
	}
	k1 := f(x)
	k2 := f(axpy(k1, h/2))
	k3 := f(axpy(k2, h/2))
	k4 := f(axpy(k3, h))
	out := make([]float64, n)
	for i := range x {
		out[i] = x[i] + h/6*(k1[i]+2*k2[i]+2*k3[i]+k4[i])
	}
	return out
}
