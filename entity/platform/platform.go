package platform

import (
	"fmt"
	"slices"
	"sync"

	"github.com/golang/geo/r3"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/rejoin-sim/entity"
	"gonum.org/v1/gonum/num/quat"
)

// Platform 仿真平台
// 功能：包装一架飞机，提供传感器、控制器，并记录仿真时间与最近施加的控制量
// 说明：控制器写入pending，Prepare阶段锁存为applied，Update阶段以applied推进飞机
type Platform struct {
	name     string
	aircraft entity.IAircraft

	mtx          sync.Mutex
	fixedControl []float64 // 无人控制时的控制量（为空使用飞机默认控制）
	pending      []float64 // 待施加的控制量
	applied      []float64 // 当前步施加的控制量

	simTime  float64
	operable bool

	sensors     []entity.ISensor
	controllers []entity.IController
}

func newPlatform(name string, a entity.IAircraft, fixed []float64) (*Platform, error) {
	if len(fixed) > 0 && len(fixed) != len(a.ControlDefault()) {
		return nil, fmt.Errorf("platform %s: control has %d values, want %d (%v)", name, len(fixed), len(a.ControlDefault()), a.ControlNames())
	}
	p := &Platform{
		name:         name,
		aircraft:     a,
		fixedControl: fixed,
		operable:     true,
	}
	p.pending = defaultControl(a, fixed)
	p.applied = defaultControl(a, fixed)
	p.sensors = newSensors(p)
	p.controllers = []entity.IController{newController(p)}
	return p, nil
}

func (p *Platform) Name() string {
	return p.name
}

func (p *Platform) Aircraft() entity.IAircraft {
	return p.aircraft
}

func (p *Platform) Position() r3.Vector {
	return p.aircraft.Position()
}

func (p *Platform) Velocity() r3.Vector {
	return p.aircraft.Velocity()
}

func (p *Platform) Orientation() quat.Number {
	return p.aircraft.Orientation()
}

func (p *Platform) Heading() float64 {
	return p.aircraft.Heading()
}

func (p *Platform) Speed() float64 {
	return p.aircraft.V()
}

func (p *Platform) SimTime() float64 {
	return p.simTime
}

func (p *Platform) AppliedAction() []float64 {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return slices.Clone(p.applied)
}

func (p *Platform) Operable() bool {
	return p.operable
}

func (p *Platform) Sensors() []entity.ISensor {
	return p.sensors
}

func (p *Platform) Controllers() []entity.IController {
	return p.controllers
}

func (p *Platform) Sensor(name string) (entity.ISensor, error) {
	if s, ok := lo.Find(p.sensors, func(s entity.ISensor) bool { return s.Name() == name }); ok {
		return s, nil
	}
	return nil, fmt.Errorf("platform %s has no sensor %s", p.name, name)
}

func (p *Platform) Controller(name string) (entity.IController, error) {
	if c, ok := lo.Find(p.controllers, func(c entity.IController) bool { return c.Name() == name }); ok {
		return c, nil
	}
	return nil, fmt.Errorf("platform %s has no controller %s", p.name, name)
}

// prepare 锁存待施加的控制量，并将待施加量恢复为默认值
func (p *Platform) prepare() {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	p.applied = p.pending
	p.pending = defaultControl(p.aircraft, p.fixedControl)
}

// update 以锁存的控制量推进dt秒
// 说明：积分发散时平台标记为不可操作，此后不再推进
func (p *Platform) update(dt float64) {
	if !p.operable {
		return
	}
	if err := p.aircraft.Step(dt, p.applied); err != nil {
		log.Errorf("platform %s step failed: %v", p.name, err)
		p.operable = false
		return
	}
	p.simTime += dt
}
