package rejoin

import (
	"errors"
	"fmt"

	"github.com/tsinghua-fib-lab/rejoin-sim/utils/config"
)

// timeoutDone 超时终止
// 功能：平台仿真时间达到max_sim_time时以LOSE结束
type timeoutDone struct {
	base `yaml:"-"`

	MaxSimTime float64 `yaml:"max_sim_time"`
}

func newTimeoutDone(name string, params map[string]interface{}, b *buildContext) (DoneFunc, error) {
	d := &timeoutDone{base: base{name}}
	if err := config.DecodeParams(params, d); err != nil {
		return nil, err
	}
	if d.MaxSimTime <= 0 {
		return nil, errors.New("max_sim_time must be positive")
	}
	return d, nil
}

func (d *timeoutDone) Reset(*View) {}

func (d *timeoutDone) Check(v *View) (bool, DoneStatus) {
	if v.SimTime >= d.MaxSimTime {
		return true, StatusLose
	}
	return false, ""
}

// maxDistanceDone 距离过远终止
// 功能：与参考平台（默认为长机）的距离超过max_distance时以LOSE结束
type maxDistanceDone struct {
	base `yaml:"-"`

	Reference   string  `yaml:"reference"`
	MaxDistance float64 `yaml:"max_distance"`
}

func newMaxDistanceDone(name string, params map[string]interface{}, b *buildContext) (DoneFunc, error) {
	d := &maxDistanceDone{base: base{name}, Reference: b.agent.Rejoin.Lead}
	if err := config.DecodeParams(params, d); err != nil {
		return nil, err
	}
	if d.MaxDistance <= 0 {
		return nil, errors.New("max_distance must be positive")
	}
	if _, ok := b.rc.Platform(d.Reference); !ok {
		return nil, fmt.Errorf("unknown reference platform %q", d.Reference)
	}
	return d, nil
}

func (d *maxDistanceDone) Reset(*View) {}

func (d *maxDistanceDone) Check(v *View) (bool, DoneStatus) {
	ref := v.Platforms.Get(d.Reference)
	if v.Platform.Position().Sub(ref.Position()).Norm() > d.MaxDistance {
		return true, StatusLose
	}
	return false, ""
}

// crashDone 碰撞终止
// 功能：与任一其他平台的距离小于safety_margin时以LOSE结束
type crashDone struct {
	base `yaml:"-"`

	SafetyMargin float64 `yaml:"safety_margin"`
}

func newCrashDone(name string, params map[string]interface{}, b *buildContext) (DoneFunc, error) {
	d := &crashDone{base: base{name}}
	if err := config.DecodeParams(params, d); err != nil {
		return nil, err
	}
	if d.SafetyMargin <= 0 {
		return nil, errors.New("safety_margin must be positive")
	}
	return d, nil
}

func (d *crashDone) Reset(*View) {}

func (d *crashDone) Check(v *View) (bool, DoneStatus) {
	own := v.Platform.Position()
	for _, name := range v.Platforms.Names() {
		if name == v.Platform.Name() {
			continue
		}
		if own.Sub(v.Platforms.Get(name).Position()).Norm() < d.SafetyMargin {
			log.Debugf("%s crashed into %s at t=%.1f", v.Agent.Name(), name, v.SimTime)
			return true, StatusLose
		}
	}
	return false, ""
}

// rejoinSuccessDone 集结成功终止
// 功能：连续处于集结区域的时间达到success_time时以WIN结束，离开区域时计时清零
type rejoinSuccessDone struct {
	base `yaml:"-"`

	SuccessTime float64 `yaml:"success_time"`

	inRegionTime float64
}

func newRejoinSuccessDone(name string, params map[string]interface{}, b *buildContext) (DoneFunc, error) {
	d := &rejoinSuccessDone{base: base{name}}
	if err := config.DecodeParams(params, d); err != nil {
		return nil, err
	}
	if d.SuccessTime < 0 {
		return nil, errors.New("success_time must not be negative")
	}
	return d, nil
}

func (d *rejoinSuccessDone) Reset(*View) {
	d.inRegionTime = 0
}

func (d *rejoinSuccessDone) Check(v *View) (bool, DoneStatus) {
	if !v.InRejoin {
		d.inRegionTime = 0
		return false, ""
	}
	d.inRegionTime += v.DT
	if d.inRegionTime >= d.SuccessTime {
		return true, StatusWin
	}
	return false, ""
}

// allRejoinedDone 全部集结成功
// 功能：每个智能体都有WIN记录时结束episode
type allRejoinedDone struct {
	base `yaml:"-"`
}

func newAllRejoinedDone(name string, params map[string]interface{}, b *buildContext) (SharedDoneFunc, error) {
	d := &allRejoinedDone{base: base{name}}
	if err := config.DecodeParams(params, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *allRejoinedDone) Check(agents []string, episode EpisodeState) bool {
	for _, a := range agents {
		if !episode.Has(a, StatusWin) {
			return false
		}
	}
	return len(agents) > 0
}

// anyCrashDone 任一智能体碰撞
// 功能：任一智能体的指定终止函数（默认crash）记为LOSE时结束episode
type anyCrashDone struct {
	base `yaml:"-"`

	Done string `yaml:"done"`
}

func newAnyCrashDone(name string, params map[string]interface{}, b *buildContext) (SharedDoneFunc, error) {
	d := &anyCrashDone{base: base{name}, Done: "crash"}
	if err := config.DecodeParams(params, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *anyCrashDone) Check(agents []string, episode EpisodeState) bool {
	for _, a := range agents {
		if episode[a][d.Done] == StatusLose {
			return true
		}
	}
	return false
}
