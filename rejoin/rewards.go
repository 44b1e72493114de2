package rejoin

import (
	"errors"
	"math"

	"github.com/tsinghua-fib-lab/rejoin-sim/utils/config"
)

// rejoinReward 处于集结区域的奖励
// 功能：每步处于区域内获得scale*dt；开启refund时，在成功之前离开区域将扣回此前累计的区域内奖励
type rejoinReward struct {
	base `yaml:"-"`

	Scale  float64 `yaml:"scale"`
	Refund bool    `yaml:"refund"`

	accumulated float64
}

func newRejoinReward(name string, params map[string]interface{}, b *buildContext) (RewardFunc, error) {
	r := &rejoinReward{base: base{name}, Scale: 1}
	if err := config.DecodeParams(params, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *rejoinReward) Reset(*View) {
	r.accumulated = 0
}

func (r *rejoinReward) Reward(v *View) float64 {
	if v.InRejoin {
		reward := r.Scale * v.DT
		r.accumulated += reward
		return reward
	}
	if r.Refund && r.accumulated != 0 && !v.Episode.Has(v.Agent.Name(), StatusWin) {
		refund := -r.accumulated
		r.accumulated = 0
		return refund
	}
	r.accumulated = 0
	return 0
}

// rejoinFirstTimeReward 首次进入集结区域的一次性奖励
type rejoinFirstTimeReward struct {
	base `yaml:"-"`

	Scale float64 `yaml:"scale"`

	rewarded bool
}

func newRejoinFirstTimeReward(name string, params map[string]interface{}, b *buildContext) (RewardFunc, error) {
	r := &rejoinFirstTimeReward{base: base{name}, Scale: 1}
	if err := config.DecodeParams(params, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *rejoinFirstTimeReward) Reset(*View) {
	r.rewarded = false
}

func (r *rejoinFirstTimeReward) Reward(v *View) float64 {
	if v.InRejoin && !r.rewarded {
		r.rewarded = true
		return r.Scale
	}
	return 0
}

// rejoinDistanceChangeReward 接近集结区域中心的奖励
// 功能：scale*(上一步距离-当前距离)，远离时为负
type rejoinDistanceChangeReward struct {
	base `yaml:"-"`

	Scale float64 `yaml:"scale"`

	prev float64
}

func newRejoinDistanceChangeReward(name string, params map[string]interface{}, b *buildContext) (RewardFunc, error) {
	r := &rejoinDistanceChangeReward{base: base{name}, Scale: 1}
	if err := config.DecodeParams(params, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *rejoinDistanceChangeReward) Reset(v *View) {
	r.prev = v.RejoinDistance
}

func (r *rejoinDistanceChangeReward) Reward(v *View) float64 {
	reward := r.Scale * (r.prev - v.RejoinDistance)
	r.prev = v.RejoinDistance
	return reward
}

// successReward 成功奖励
// 功能：本步产生WIN记录时获得scale；开启timeout_bonus时额外获得scale*(1-用时/max_time)
type successReward struct {
	base `yaml:"-"`

	Scale        float64 `yaml:"scale"`
	TimeoutBonus bool    `yaml:"timeout_bonus"`
	MaxTime      float64 `yaml:"max_time"` // 为0时取一个episode的总时长
}

func newSuccessReward(name string, params map[string]interface{}, b *buildContext) (RewardFunc, error) {
	step := b.rc.C.Step
	r := &successReward{base: base{name}, Scale: 1, MaxTime: float64(step.Total) * step.Interval}
	if err := config.DecodeParams(params, r); err != nil {
		return nil, err
	}
	if r.TimeoutBonus && r.MaxTime <= 0 {
		return nil, errors.New("max_time must be positive when timeout_bonus is set")
	}
	return r, nil
}

func (r *successReward) Reset(*View) {}

func (r *successReward) Reward(v *View) float64 {
	won := false
	for _, st := range v.Status {
		won = won || st == StatusWin
	}
	if !won {
		return 0
	}
	reward := r.Scale
	if r.TimeoutBonus {
		reward += r.Scale * math.Max(0, 1-v.SimTime/r.MaxTime)
	}
	return reward
}

// failureReward 失败惩罚
// 功能：本步每条LOSE记录给予一次惩罚，dones中可按终止函数名单独指定惩罚值
type failureReward struct {
	base `yaml:"-"`

	Scale float64            `yaml:"scale"`
	Dones map[string]float64 `yaml:"dones"`
}

func newFailureReward(name string, params map[string]interface{}, b *buildContext) (RewardFunc, error) {
	r := &failureReward{base: base{name}, Scale: -1}
	if err := config.DecodeParams(params, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *failureReward) Reset(*View) {}

func (r *failureReward) Reward(v *View) float64 {
	reward := 0.0
	for done, st := range v.Status {
		if st != StatusLose {
			continue
		}
		if s, ok := r.Dones[done]; ok {
			reward += s
		} else {
			reward += r.Scale
		}
	}
	return reward
}

// controlPenaltyReward 控制量惩罚
// 功能：-scale*sum(|u_i|/|u_max_i|)
type controlPenaltyReward struct {
	base `yaml:"-"`

	Scale float64 `yaml:"scale"`
}

func newControlPenaltyReward(name string, params map[string]interface{}, b *buildContext) (RewardFunc, error) {
	r := &controlPenaltyReward{base: base{name}, Scale: 0.01}
	if err := config.DecodeParams(params, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *controlPenaltyReward) Reset(*View) {}

func (r *controlPenaltyReward) Reward(v *View) float64 {
	_, high := v.Platform.Aircraft().ControlBounds()
	penalty := 0.0
	for i, u := range v.Action {
		if i < len(high) && high[i] != 0 {
			penalty += math.Abs(u) / math.Abs(high[i])
		}
	}
	return -r.Scale * penalty
}
