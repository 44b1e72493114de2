package task

import (
	"github.com/tsinghua-fib-lab/rejoin-sim/clock"
	"github.com/tsinghua-fib-lab/rejoin-sim/entity"
	"github.com/tsinghua-fib-lab/rejoin-sim/entity/platform"
	"github.com/tsinghua-fib-lab/rejoin-sim/utils/config"
	"github.com/tsinghua-fib-lab/rejoin-sim/utils/randengine"
)

var _ entity.ITaskContext = (*Context)(nil)

// Context 仿真任务上下文
// 功能：包含一个仿真环境实例的全部状态，每个并行的episode各持有一个
// 说明：管理时钟、运行时配置、平台管理器与随机数引擎
type Context struct {
	// 时钟
	clock *clock.Clock
	// 运行时配置
	runtimeConfig *config.RuntimeConfig
	// 平台管理器
	platformManager *platform.PlatformManager
	// 随机数引擎，Reset时按种子重建
	generator *randengine.Engine
}

// NewContext 创建新的仿真任务上下文
// 功能：创建时钟与平台管理器，平台在Reset时才创建
// 参数：rc-运行时配置（只读，可在多个Context间共享）
func NewContext(rc *config.RuntimeConfig) *Context {
	ctx := &Context{
		runtimeConfig: rc,
		generator:     randengine.New(rc.All.Experiment.Seed),
	}
	ctx.clock = clock.New(rc.C.Step)
	ctx.platformManager = platform.NewManager(ctx)
	return ctx
}

func (ctx *Context) Clock() *clock.Clock {
	return ctx.clock
}

func (ctx *Context) PlatformManager() entity.IPlatformManager {
	return ctx.platformManager
}

func (ctx *Context) RuntimeConfig() *config.RuntimeConfig {
	return ctx.runtimeConfig
}

func (ctx *Context) Generator() *randengine.Engine {
	return ctx.generator
}

// Reset 开始新的episode
// 功能：以给定种子重建随机数引擎，时钟回到起始步，按初始化配置重新采样并创建全部平台
// 参数：seed-随机种子
// 返回：平台创建失败时返回错误
func (ctx *Context) Reset(seed uint64) error {
	ctx.generator = randengine.New(seed)
	ctx.clock.Init()
	if err := ctx.platformManager.Init(ctx.runtimeConfig.All.Platforms); err != nil {
		return err
	}
	log.Debugf("reset with seed %d: %v", seed, ctx.platformManager.Names())
	return nil
}

// Step 推进一个环境步
// 功能：依次执行准备阶段与更新阶段
func (ctx *Context) Step() {
	ctx.prepare()
	ctx.update()
}

// Done 是否到达时钟结束步
func (ctx *Context) Done() bool {
	return ctx.clock.Done()
}
