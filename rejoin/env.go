package rejoin

import (
	"errors"
	"fmt"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/rejoin-sim/entity"
	"github.com/tsinghua-fib-lab/rejoin-sim/task"
	"github.com/tsinghua-fib-lab/rejoin-sim/utils/config"
	"go.uber.org/multierr"
)

var (
	ErrNotReset     = errors.New("environment has not been reset")
	ErrEpisodeEnded = errors.New("episode has ended, call Reset")
)

// AgentInfo 单个智能体的附加信息
type AgentInfo struct {
	Status         map[string]DoneStatus `json:"status"`          // 本步产生的终止记录
	Rewards        map[string]float64    `json:"rewards"`         // 各奖励函数的取值
	InRejoin       bool                  `json:"in_rejoin"`       // 是否处于集结区域
	RejoinDistance float64               `json:"rejoin_distance"` // 到集结区域中心的距离
}

// StepResult 一步的返回
// 说明：只包含本步开始时尚未结束的智能体；Dones额外包含AllAgents键
type StepResult struct {
	Observations map[string][]float64
	Rewards      map[string]float64
	Dones        map[string]bool
	Infos        map[string]AgentInfo
}

// EpisodeSummary episode统计
type EpisodeSummary struct {
	Seed     uint64                `json:"seed"`
	Steps    int32                 `json:"steps"`
	SimTime  float64               `json:"sim_time"`
	Returns  map[string]float64    `json:"returns"`
	Outcomes map[string]DoneStatus `json:"outcomes"`
	Statuses EpisodeState          `json:"statuses"`
	Success  bool                  `json:"success"` // 全部智能体WIN
}

// Env 多智能体编队集结环境
// 功能：在一个仿真任务上下文上组织智能体的动作、观测、奖励与终止
// 说明：非并发安全，并发使用需由调用方串行化
type Env struct {
	rc  *config.RuntimeConfig
	ctx *task.Context

	agents []*Agent
	byName map[string]*Agent
	shared []SharedDoneFunc

	seed    uint64
	episode EpisodeState
	started bool
	allDone bool
}

// NewEnv 创建环境
// 功能：按配置构造全部智能体的观测、奖励、终止函数与共享终止函数
// 返回：任一插件配置错误时返回全部错误的合并
func NewEnv(rc *config.RuntimeConfig) (*Env, error) {
	e := &Env{
		rc:     rc,
		ctx:    task.NewContext(rc),
		byName: make(map[string]*Agent),
	}
	var errs error
	for _, cfg := range rc.All.Agents {
		a, err := newAgent(rc, cfg)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		e.agents = append(e.agents, a)
		e.byName[a.Name()] = a
	}
	shared, err := buildSharedDones(rc.All.SharedDones, &buildContext{rc: rc, agent: config.Agent{Name: AllAgents}})
	errs = multierr.Append(errs, err)
	if errs != nil {
		return nil, errs
	}
	e.shared = shared
	return e, nil
}

// Context 仿真任务上下文
func (e *Env) Context() *task.Context {
	return e.ctx
}

// Agents 按配置顺序返回全部智能体名
func (e *Env) Agents() []string {
	return lo.Map(e.agents, func(a *Agent, _ int) string { return a.Name() })
}

// Agent 按名称获取智能体
func (e *Env) Agent(name string) (*Agent, error) {
	if a, ok := e.byName[name]; ok {
		return a, nil
	}
	return nil, fmt.Errorf("no agent %s", name)
}

// ObservationSpace 智能体的观测空间
func (e *Env) ObservationSpace(name string) ([]entity.BoxProp, error) {
	a, err := e.Agent(name)
	if err != nil {
		return nil, err
	}
	return a.ObservationSpace(), nil
}

// ActionSpace 智能体的动作空间
func (e *Env) ActionSpace(name string) (entity.BoxProp, error) {
	a, err := e.Agent(name)
	if err != nil {
		return entity.BoxProp{}, err
	}
	return a.ActionSpace(), nil
}

// Done 当前episode是否已结束
func (e *Env) Done() bool {
	return e.allDone
}

// Reset 开始新的episode
// 功能：重置仿真上下文，绑定智能体平台，重置全部奖励与终止函数
// 参数：seed-随机种子，决定平台初始状态
// 返回：全部智能体的初始观测
func (e *Env) Reset(seed uint64) (map[string][]float64, error) {
	if err := e.ctx.Reset(seed); err != nil {
		return nil, err
	}
	e.seed = seed
	e.episode = make(EpisodeState)
	e.allDone = false
	obs := make(map[string][]float64, len(e.agents))
	for _, a := range e.agents {
		if err := a.bind(e.ctx.PlatformManager()); err != nil {
			return nil, err
		}
		v := e.view(a, 0)
		for _, d := range a.dones {
			d.Reset(v)
		}
		for _, r := range a.rewards {
			r.Reset(v)
		}
		o, err := a.observe(v)
		if err != nil {
			return nil, err
		}
		obs[a.Name()] = o
	}
	e.started = true
	return obs, nil
}

// Step 推进一个环境步
// 功能：施加动作、推进仿真并计算终止、奖励与观测
// 参数：actions-智能体名 -> 动作，已结束智能体的动作被忽略，缺失的动作使用默认控制
// 算法说明：
// 1. 校验并施加动作（归一化动作先缩放到控制量范围）
// 2. 推进仿真上下文一步
// 3. 对本步开始时未结束的智能体逐个检查终止函数，记录状态码
// 4. 检查共享终止函数，触发时其余未结束智能体记为DRAW
// 5. 到达时钟结束步时其余未结束智能体以horizon记为DRAW
// 6. 计算奖励（可见本步全部终止记录）与观测
func (e *Env) Step(actions map[string][]float64) (*StepResult, error) {
	if !e.started {
		return nil, ErrNotReset
	}
	if e.allDone {
		return nil, ErrEpisodeEnded
	}
	for name := range actions {
		if _, ok := e.byName[name]; !ok {
			return nil, fmt.Errorf("action for unknown agent %s", name)
		}
	}
	active := lo.Filter(e.agents, func(a *Agent, _ int) bool { return !a.done })
	// 全部动作通过校验后才写入控制器，出错时不留下部分写入的控制量
	controls := make(map[*Agent][]float64, len(actions))
	for _, a := range active {
		act, ok := actions[a.Name()]
		if !ok {
			continue
		}
		u, err := a.scaleAction(act)
		if err != nil {
			return nil, err
		}
		controls[a] = u
	}
	for a, u := range controls {
		if err := a.controller.ApplyControl(u); err != nil {
			return nil, err
		}
	}

	e.ctx.Step()

	dt := e.ctx.Clock().DT
	views := make(map[string]*View, len(active))
	for _, a := range active {
		v := e.view(a, dt)
		views[a.Name()] = v
		for _, d := range a.dones {
			if done, st := d.Check(v); done {
				v.Status[d.Name()] = st
				e.episode.set(a.Name(), d.Name(), st)
				a.done = true
			}
		}
	}
	names := e.Agents()
	for _, s := range e.shared {
		if s.Check(names, e.episode) {
			log.Debugf("shared done %s triggered at t=%.1f", s.Name(), e.ctx.Clock().T)
			e.finishRemaining(s.Name(), views)
		}
	}
	if e.ctx.Done() {
		e.finishRemaining(HorizonDone, views)
	}
	e.allDone = lo.EveryBy(e.agents, func(a *Agent) bool { return a.done })

	res := &StepResult{
		Observations: make(map[string][]float64, len(active)),
		Rewards:      make(map[string]float64, len(active)),
		Dones:        make(map[string]bool, len(active)+1),
		Infos:        make(map[string]AgentInfo, len(active)),
	}
	for _, a := range active {
		v := views[a.Name()]
		breakdown := make(map[string]float64, len(a.rewards))
		total := 0.0
		for _, r := range a.rewards {
			x := r.Reward(v)
			breakdown[r.Name()] = x
			total += x
		}
		a.ret += total
		o, err := a.observe(v)
		if err != nil {
			return nil, err
		}
		res.Observations[a.Name()] = o
		res.Rewards[a.Name()] = total
		res.Dones[a.Name()] = a.done
		res.Infos[a.Name()] = AgentInfo{
			Status:         v.Status,
			Rewards:        breakdown,
			InRejoin:       v.InRejoin,
			RejoinDistance: v.RejoinDistance,
		}
	}
	res.Dones[AllAgents] = e.allDone
	if e.allDone {
		log.Debugf("episode (seed %d) ended at t=%.1f: %v", e.seed, e.ctx.Clock().T, e.Summary().Outcomes)
	}
	return res, nil
}

// finishRemaining 将尚未结束的智能体以DRAW结束
func (e *Env) finishRemaining(doneName string, views map[string]*View) {
	for _, a := range e.agents {
		if a.done {
			continue
		}
		a.done = true
		e.episode.set(a.Name(), doneName, StatusDraw)
		if v, ok := views[a.Name()]; ok {
			v.Status[doneName] = StatusDraw
		}
	}
}

// view 构造智能体当前步的视图
func (e *Env) view(a *Agent, dt float64) *View {
	inside, dist := InRejoin(a.platform, a.lead, a.cfg.Rejoin.Radius, a.cfg.Rejoin.Offset)
	return &View{
		Agent:          a,
		Platform:       a.platform,
		Lead:           a.lead,
		Platforms:      e.ctx.PlatformManager(),
		SimTime:        a.platform.SimTime(),
		DT:             dt,
		RejoinCenter:   RegionCenter(a.lead, a.cfg.Rejoin.Offset),
		RejoinDistance: dist,
		InRejoin:       inside,
		Action:         a.platform.AppliedAction(),
		Status:         make(map[string]DoneStatus),
		Episode:        e.episode,
	}
}

// Summary 当前episode的统计
func (e *Env) Summary() EpisodeSummary {
	s := EpisodeSummary{
		Seed:     e.seed,
		Steps:    e.ctx.Clock().InternalStep - e.ctx.Clock().START_STEP,
		SimTime:  e.ctx.Clock().Elapsed(),
		Returns:  make(map[string]float64, len(e.agents)),
		Outcomes: make(map[string]DoneStatus, len(e.agents)),
		Statuses: e.episode,
		Success:  len(e.agents) > 0,
	}
	for _, a := range e.agents {
		s.Returns[a.Name()] = a.Return()
		s.Outcomes[a.Name()] = e.episode.Outcome(a.Name())
		s.Success = s.Success && s.Outcomes[a.Name()] == StatusWin
	}
	return s
}
