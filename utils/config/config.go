package config

import (
	"fmt"
	"os"

	"github.com/samber/lo"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v2"
)

const (
	SimulatorDubins2D = "dubins2d"
	SimulatorDubins3D = "dubins3d"

	IntegrationRK4   = "rk4"
	IntegrationEuler = "euler"

	AlgorithmCEM = "cem"
)

// RuntimeConfig 运行时配置
// 功能：存储补全默认值并通过校验的配置，以及按名称索引的平台/智能体
type RuntimeConfig struct {
	All Config  // 全部配置
	C   Control // 全局控制配置

	platforms map[string]Platform
	agents    map[string]Agent
}

// Parse 解析YAML配置
// 功能：严格解析配置文件内容，未知字段视为错误
func Parse(data []byte) (Config, error) {
	var c Config
	if err := yaml.UnmarshalStrict(data, &c); err != nil {
		return c, fmt.Errorf("config parse err: %w", err)
	}
	return c, nil
}

// LoadFile 读取并解析YAML配置文件
func LoadFile(path string) (Config, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config file load err: %w", err)
	}
	return Parse(file)
}

// NewRuntimeConfig 根据配置初始化运行时配置
// 功能：补全默认值、校验配置一致性并建立名称索引
// 参数：config-原始配置对象
// 返回：运行时配置指针，校验失败时返回全部错误的合并
// 算法说明：
// 1. 补全默认值：仿真器类型、积分方式、步长、步数、训练参数
// 2. 校验：平台/智能体名称唯一，引用的平台存在，偏移维度不超过3
func NewRuntimeConfig(config Config) (*RuntimeConfig, error) {
	applyDefaults(&config)
	rc := &RuntimeConfig{
		All: config,
		C:   config.Control,
		platforms: lo.SliceToMap(config.Platforms, func(p Platform) (string, Platform) {
			return p.Name, p
		}),
		agents: lo.SliceToMap(config.Agents, func(a Agent) (string, Agent) {
			return a.Name, a
		}),
	}
	if err := rc.validate(); err != nil {
		return nil, err
	}
	return rc, nil
}

func applyDefaults(c *Config) {
	if c.Simulator.Type == "" {
		c.Simulator.Type = SimulatorDubins3D
	}
	if c.Simulator.Integration == "" {
		c.Simulator.Integration = IntegrationRK4
	}
	if c.Simulator.Substeps <= 0 {
		c.Simulator.Substeps = 10
	}
	if c.Control.Step.Interval <= 0 {
		c.Control.Step.Interval = 1
	}
	if c.Control.Step.Total <= 0 {
		c.Control.Step.Total = 1000
	}
	for i := range c.Agents {
		if c.Agents[i].Policy == "" {
			c.Agents[i].Policy = c.Agents[i].Name
		}
	}
	t := &c.Trainer
	if t.Algorithm == "" {
		t.Algorithm = AlgorithmCEM
	}
	if t.Iterations <= 0 {
		t.Iterations = 100
	}
	if t.Population <= 0 {
		t.Population = 32
	}
	if t.EliteFrac <= 0 || t.EliteFrac > 1 {
		t.EliteFrac = 0.2
	}
	if t.EpisodesPerCandidate <= 0 {
		t.EpisodesPerCandidate = 1
	}
	if t.Workers <= 0 {
		t.Workers = 4
	}
	if t.InitStd <= 0 {
		t.InitStd = 0.5
	}
	if t.MinStd <= 0 {
		t.MinStd = 0.01
	}
	if t.Smoothing < 0 || t.Smoothing >= 1 {
		t.Smoothing = 0
	}
	if t.CheckpointEvery <= 0 {
		t.CheckpointEvery = 10
	}
	if c.Output.CheckpointDir == "" {
		c.Output.CheckpointDir = "checkpoints/"
	}
	if c.Output.DB == "" {
		c.Output.DB = "rejoin"
	}
	if c.Experiment.Name == "" {
		c.Experiment.Name = "rejoin"
	}
}

func (rc *RuntimeConfig) validate() (err error) {
	c := rc.All
	if c.Simulator.Type != SimulatorDubins2D && c.Simulator.Type != SimulatorDubins3D {
		err = multierr.Append(err, fmt.Errorf("unknown simulator type %q", c.Simulator.Type))
	}
	if c.Simulator.Integration != IntegrationRK4 && c.Simulator.Integration != IntegrationEuler {
		err = multierr.Append(err, fmt.Errorf("unknown integration method %q", c.Simulator.Integration))
	}
	if c.Trainer.Algorithm != AlgorithmCEM {
		err = multierr.Append(err, fmt.Errorf("unknown trainer algorithm %q", c.Trainer.Algorithm))
	}
	if len(c.Agents) == 0 {
		err = multierr.Append(err, fmt.Errorf("no agents configured"))
	}
	if len(rc.platforms) != len(c.Platforms) {
		err = multierr.Append(err, fmt.Errorf("platform names must be unique"))
	}
	if len(rc.agents) != len(c.Agents) {
		err = multierr.Append(err, fmt.Errorf("agent names must be unique"))
	}
	for _, p := range c.Platforms {
		if p.Name == "" {
			err = multierr.Append(err, fmt.Errorf("platform without name"))
		}
		if len(p.Init.Position) > 3 {
			err = multierr.Append(err, fmt.Errorf("platform %s: position has %d elements, want at most 3", p.Name, len(p.Init.Position)))
		}
		if ref := p.Init.Reference; ref != "" {
			if _, ok := rc.platforms[ref]; !ok {
				err = multierr.Append(err, fmt.Errorf("platform %s: unknown reference platform %s", p.Name, ref))
			}
			if ref == p.Name {
				err = multierr.Append(err, fmt.Errorf("platform %s: references itself", p.Name))
			}
		}
	}
	usedPlatforms := make(map[string]string)
	for _, a := range c.Agents {
		if _, ok := rc.platforms[a.Platform]; !ok {
			err = multierr.Append(err, fmt.Errorf("agent %s: unknown platform %s", a.Name, a.Platform))
		}
		if other, ok := usedPlatforms[a.Platform]; ok {
			err = multierr.Append(err, fmt.Errorf("agent %s: platform %s already controlled by %s", a.Name, a.Platform, other))
		}
		usedPlatforms[a.Platform] = a.Name
		if _, ok := rc.platforms[a.Rejoin.Lead]; !ok {
			err = multierr.Append(err, fmt.Errorf("agent %s: unknown rejoin lead %s", a.Name, a.Rejoin.Lead))
		}
		if len(a.Rejoin.Offset) > 3 {
			err = multierr.Append(err, fmt.Errorf("agent %s: rejoin offset has %d elements, want at most 3", a.Name, len(a.Rejoin.Offset)))
		}
		if a.Rejoin.Radius <= 0 {
			err = multierr.Append(err, fmt.Errorf("agent %s: rejoin radius must be positive", a.Name))
		}
		if len(a.Glues) == 0 {
			err = multierr.Append(err, fmt.Errorf("agent %s: no glues configured", a.Name))
		}
	}
	return
}

// Platform 按名称获取平台配置
func (rc *RuntimeConfig) Platform(name string) (Platform, bool) {
	p, ok := rc.platforms[name]
	return p, ok
}

// Agent 按名称获取智能体配置
func (rc *RuntimeConfig) Agent(name string) (Agent, bool) {
	a, ok := rc.agents[name]
	return a, ok
}

// AgentNames 按配置顺序返回全部智能体名
func (rc *RuntimeConfig) AgentNames() []string {
	return lo.Map(rc.All.Agents, func(a Agent, _ int) string { return a.Name })
}

// Policies 策略名 -> 使用该策略的智能体名（按配置顺序）
func (rc *RuntimeConfig) Policies() map[string][]string {
	res := make(map[string][]string)
	for _, a := range rc.All.Agents {
		res[a.Policy] = append(res[a.Policy], a.Name)
	}
	return res
}
