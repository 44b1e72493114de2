package rejoin

import (
	"github.com/golang/geo/r3"
	"github.com/tsinghua-fib-lab/rejoin-sim/entity"
)

// View 单个智能体在当前步的只读视图
// 功能：终止函数、奖励函数、观测函数的统一输入
type View struct {
	Agent     *Agent
	Platform  entity.IPlatform
	Lead      entity.IPlatform
	Platforms entity.IPlatformManager

	SimTime float64 // 平台仿真时间（秒）
	DT      float64 // 本步时长（秒），Reset时为0

	RejoinCenter   r3.Vector
	RejoinDistance float64
	InRejoin       bool

	Action  []float64             // 本步实际施加的控制量
	Status  map[string]DoneStatus // 本步产生的终止记录
	Episode EpisodeState
}

// Target 按名称获取目标的位置与速度
// 说明：RejoinTarget表示集结区域中心，其速度取长机速度
func (v *View) Target(name string) (pos, vel r3.Vector, err error) {
	if name == RejoinTarget {
		return v.RejoinCenter, v.Lead.Velocity(), nil
	}
	p, err := v.Platforms.GetOrError(name)
	if err != nil {
		return r3.Vector{}, r3.Vector{}, err
	}
	return p.Position(), p.Velocity(), nil
}
