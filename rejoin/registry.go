package rejoin

import (
	"fmt"
	"slices"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/rejoin-sim/entity"
	"github.com/tsinghua-fib-lab/rejoin-sim/utils/config"
)

// DoneFunc 单智能体终止函数
type DoneFunc interface {
	Name() string
	Reset(v *View)
	// Check 返回是否终止及终止状态码
	Check(v *View) (bool, DoneStatus)
}

// RewardFunc 单智能体奖励函数
type RewardFunc interface {
	Name() string
	Reset(v *View)
	Reward(v *View) float64
}

// Glue 观测函数
type Glue interface {
	Name() string
	Space() entity.BoxProp
	// Observe 计算观测，prior为本步已计算的其他观测（按名称）
	Observe(v *View, prior map[string][]float64) ([]float64, error)
}

// SharedDoneFunc 多智能体共享终止函数
// 说明：返回true时episode结束，尚未结束的智能体记为DRAW
type SharedDoneFunc interface {
	Name() string
	Check(agents []string, episode EpisodeState) bool
}

// buildContext 插件构造时可用的信息
type buildContext struct {
	rc    *config.RuntimeConfig
	agent config.Agent
	glues map[string]Glue // 已构造的观测函数
}

type (
	doneFactory       = func(name string, params map[string]interface{}, b *buildContext) (DoneFunc, error)
	rewardFactory     = func(name string, params map[string]interface{}, b *buildContext) (RewardFunc, error)
	glueFactory       = func(name string, params map[string]interface{}, b *buildContext) (Glue, error)
	sharedDoneFactory = func(name string, params map[string]interface{}, b *buildContext) (SharedDoneFunc, error)
)

var (
	doneFactories = map[string]doneFactory{
		"timeout":        newTimeoutDone,
		"max_distance":   newMaxDistanceDone,
		"crash":          newCrashDone,
		"rejoin_success": newRejoinSuccessDone,
	}
	rewardFactories = map[string]rewardFactory{
		"rejoin":                 newRejoinReward,
		"rejoin_first_time":      newRejoinFirstTimeReward,
		"rejoin_distance_change": newRejoinDistanceChangeReward,
		"success":                newSuccessReward,
		"failure":                newFailureReward,
		"control_penalty":        newControlPenaltyReward,
	}
	glueFactories = map[string]glueFactory{
		"relative_position": newRelativePositionGlue,
		"relative_velocity": newRelativeVelocityGlue,
		"own_speed":         newOwnSpeedGlue,
		"own_attitude":      newOwnAttitudeGlue,
		"sensor":            newSensorGlue,
		"magnitude":         newMagnitudeGlue,
		"dot_product":       newDotProductGlue,
	}
	sharedDoneFactories = map[string]sharedDoneFactory{
		"all_rejoined": newAllRejoinedDone,
		"any_crash":    newAnyCrashDone,
	}
)

// PluginTypes 各类插件已注册的类型名
func PluginTypes() map[string][]string {
	return map[string][]string{
		"dones":        sortedKeys(doneFactories),
		"rewards":      sortedKeys(rewardFactories),
		"glues":        sortedKeys(glueFactories),
		"shared_dones": sortedKeys(sharedDoneFactories),
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := lo.Keys(m)
	slices.Sort(keys)
	return keys
}

// build 按配置构造一组插件
// 功能：检查类型已注册、实例名唯一，并调用对应工厂
func build[T any](
	kind string,
	plugins []config.Plugin,
	factories map[string]func(string, map[string]interface{}, *buildContext) (T, error),
	b *buildContext,
	onBuilt func(string, T),
) ([]T, error) {
	res := make([]T, 0, len(plugins))
	seen := make(map[string]bool, len(plugins))
	for _, p := range plugins {
		f, ok := factories[p.Type]
		if !ok {
			return nil, fmt.Errorf("agent %s: unknown %s type %q, registered: %v", b.agent.Name, kind, p.Type, sortedKeys(factories))
		}
		name := p.ID()
		if seen[name] {
			return nil, fmt.Errorf("agent %s: duplicate %s name %q", b.agent.Name, kind, name)
		}
		seen[name] = true
		t, err := f(name, p.Params, b)
		if err != nil {
			return nil, fmt.Errorf("agent %s: %s %s: %w", b.agent.Name, kind, name, err)
		}
		if onBuilt != nil {
			onBuilt(name, t)
		}
		res = append(res, t)
	}
	return res, nil
}

func buildDones(plugins []config.Plugin, b *buildContext) ([]DoneFunc, error) {
	return build("done", plugins, doneFactories, b, nil)
}

func buildRewards(plugins []config.Plugin, b *buildContext) ([]RewardFunc, error) {
	return build("reward", plugins, rewardFactories, b, nil)
}

func buildGlues(plugins []config.Plugin, b *buildContext) ([]Glue, error) {
	b.glues = make(map[string]Glue, len(plugins))
	return build("glue", plugins, glueFactories, b, func(name string, g Glue) { b.glues[name] = g })
}

func buildSharedDones(plugins []config.Plugin, b *buildContext) ([]SharedDoneFunc, error) {
	return build("shared done", plugins, sharedDoneFactories, b, nil)
}

// base 插件公共部分
type base struct {
	name string
}

func (b base) Name() string {
	return b.name
}
