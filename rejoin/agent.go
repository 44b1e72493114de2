package rejoin

import (
	"fmt"
	"slices"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/rejoin-sim/entity"
	"github.com/tsinghua-fib-lab/rejoin-sim/entity/platform"
	"github.com/tsinghua-fib-lab/rejoin-sim/utils/config"
	"github.com/tsinghua-fib-lab/rejoin-sim/utils/geometry"
)

// Agent 学习智能体
// 功能：绑定一个平台及其控制器，持有观测、奖励、终止函数
type Agent struct {
	cfg config.Agent

	glues   []Glue
	rewards []RewardFunc
	dones   []DoneFunc

	controlProp entity.BoxProp // 控制器取值空间（未归一化）

	// 以下为episode内状态，Reset时重建
	platform   entity.IPlatform
	lead       entity.IPlatform
	controller entity.IController
	done       bool
	ret        float64
}

func newAgent(rc *config.RuntimeConfig, cfg config.Agent) (*Agent, error) {
	b := &buildContext{rc: rc, agent: cfg}
	glues, err := buildGlues(cfg.Glues, b)
	if err != nil {
		return nil, err
	}
	rewards, err := buildRewards(cfg.Rewards, b)
	if err != nil {
		return nil, err
	}
	dones, err := buildDones(cfg.Dones, b)
	if err != nil {
		return nil, err
	}
	prop, err := platform.ControlPropOf(rc.All.Simulator.Type)
	if err != nil {
		return nil, err
	}
	return &Agent{
		cfg:         cfg,
		glues:       glues,
		rewards:     rewards,
		dones:       dones,
		controlProp: prop,
	}, nil
}

func (a *Agent) Name() string {
	return a.cfg.Name
}

// Policy 使用的策略名
func (a *Agent) Policy() string {
	return a.cfg.Policy
}

func (a *Agent) PlatformName() string {
	return a.cfg.Platform
}

// Done 本episode内是否已结束
func (a *Agent) Done() bool {
	return a.done
}

// Return 本episode内累计奖励
func (a *Agent) Return() float64 {
	return a.ret
}

// ObservationSpace 各观测函数的取值空间（按配置顺序）
func (a *Agent) ObservationSpace() []entity.BoxProp {
	return lo.Map(a.glues, func(g Glue, _ int) entity.BoxProp { return g.Space() })
}

// ObservationDim 拼接后的观测维度
func (a *Agent) ObservationDim() int {
	return lo.SumBy(a.glues, func(g Glue) int { return g.Space().Dim() })
}

// ActionSpace 动作空间
// 说明：normalize_actions时为[-1, 1]，否则为控制器取值空间
func (a *Agent) ActionSpace() entity.BoxProp {
	if !a.cfg.NormalizeActions {
		return a.controlProp
	}
	dim := a.controlProp.Dim()
	return entity.BoxProp{
		Name:        a.controlProp.Name,
		Low:         lo.Times(dim, func(int) float64 { return -1 }),
		High:        lo.Times(dim, func(int) float64 { return 1 }),
		Unit:        lo.Times(dim, func(int) string { return "None" }),
		Description: a.controlProp.Description + " (normalized)",
	}
}

// scaleAction 动作转换为控制量
// 算法说明：归一化动作先限制到[-1, 1]，再线性映射到[low, high]
func (a *Agent) scaleAction(action []float64) ([]float64, error) {
	if len(action) != a.controlProp.Dim() {
		return nil, fmt.Errorf("agent %s: action has %d values, want %d", a.cfg.Name, len(action), a.controlProp.Dim())
	}
	if !a.cfg.NormalizeActions {
		return slices.Clone(action), nil
	}
	low, high := a.controlProp.Low, a.controlProp.High
	res := make([]float64, len(action))
	for i, x := range action {
		x = geometry.Clip(x, -1, 1)
		res[i] = low[i] + (x+1)/2*(high[i]-low[i])
	}
	return res, nil
}

// bind 绑定本episode的平台与控制器
func (a *Agent) bind(platforms entity.IPlatformManager) error {
	p, err := platforms.GetOrError(a.cfg.Platform)
	if err != nil {
		return err
	}
	lead, err := platforms.GetOrError(a.cfg.Rejoin.Lead)
	if err != nil {
		return err
	}
	c, err := p.Controller(a.controlProp.Name)
	if err != nil {
		return err
	}
	a.platform, a.lead, a.controller = p, lead, c
	a.done = false
	a.ret = 0
	return nil
}

// observe 依次计算全部观测并拼接
func (a *Agent) observe(v *View) ([]float64, error) {
	prior := make(map[string][]float64, len(a.glues))
	obs := make([]float64, 0, a.ObservationDim())
	for _, g := range a.glues {
		x, err := g.Observe(v, prior)
		if err != nil {
			return nil, fmt.Errorf("agent %s: glue %s: %w", a.cfg.Name, g.Name(), err)
		}
		prior[g.Name()] = x
		obs = append(obs, x...)
	}
	return obs, nil
}
