package platform

import (
	"fmt"

	"git.fiblab.net/general/common/v2/parallel"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/rejoin-sim/entity"
	"github.com/tsinghua-fib-lab/rejoin-sim/entity/aircraft"
	"github.com/tsinghua-fib-lab/rejoin-sim/utils/config"
)

var _ entity.IPlatformManager = (*PlatformManager)(nil)

// PlatformManager 平台管理器
type PlatformManager struct {
	ctx entity.ITaskContext

	data      map[string]*Platform
	platforms []*Platform // 按配置顺序
}

// NewManager 创建平台管理器实例
// 参数：ctx-任务上下文，提供仿真器配置与随机数引擎
func NewManager(ctx entity.ITaskContext) *PlatformManager {
	return &PlatformManager{
		ctx:  ctx,
		data: make(map[string]*Platform),
	}
}

// Init （重新）创建全部平台
// 功能：按参考关系依次采样初始状态并创建飞机，每个episode开始时调用
// 参数：pbs-平台配置列表
// 返回：配置不合法（循环参考、位置维度错误、控制量维度错误等）时返回错误，此时原有平台保持不变
func (m *PlatformManager) Init(pbs []config.Platform) error {
	ordered, err := placementOrder(pbs)
	if err != nil {
		return err
	}
	sim := m.ctx.RuntimeConfig().All.Simulator
	opts := aircraft.Options{Integration: sim.Integration, Substeps: sim.Substeps}
	rng := m.ctx.Generator()

	data := make(map[string]*Platform, len(pbs))
	for _, pb := range ordered {
		s, err := initialState(pb, rng, data)
		if err != nil {
			return err
		}
		a, err := aircraft.New(sim.Type, pb.Name, s, opts)
		if err != nil {
			return fmt.Errorf("platform %s: %w", pb.Name, err)
		}
		p, err := newPlatform(pb.Name, a, pb.Control)
		if err != nil {
			return err
		}
		data[pb.Name] = p
		log.Debugf("platform %s initialized at %v heading %.3f speed %.1f", pb.Name, p.Position(), p.Heading(), p.Speed())
	}
	m.data = data
	m.platforms = lo.Map(pbs, func(pb config.Platform, _ int) *Platform { return data[pb.Name] })
	return nil
}

// Get 根据名称获取平台，不存在则panic
func (m *PlatformManager) Get(name string) entity.IPlatform {
	if p, ok := m.data[name]; !ok {
		log.Panicf("no platform %s", name)
		return nil
	} else {
		return p
	}
}

// GetOrError 根据名称获取平台，不存在则返回错误
func (m *PlatformManager) GetOrError(name string) (entity.IPlatform, error) {
	if p, ok := m.data[name]; !ok {
		return nil, fmt.Errorf("no platform %s", name)
	} else {
		return p, nil
	}
}

// Names 按配置顺序返回全部平台名
func (m *PlatformManager) Names() []string {
	return lo.Map(m.platforms, func(p *Platform, _ int) string { return p.name })
}

// Prepare 准备阶段，锁存所有平台的待施加控制量
func (m *PlatformManager) Prepare() {
	parallel.GoFor(m.platforms, func(p *Platform) { p.prepare() })
}

// Update 更新阶段，并行推进所有平台
func (m *PlatformManager) Update(dt float64) {
	parallel.GoFor(m.platforms, func(p *Platform) { p.update(dt) })
}
