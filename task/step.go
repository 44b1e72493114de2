package task

import (
	"flag"
)

var (
	heartBeatInterval = flag.Int("log.heartbeat_interval", 100, "心跳日志间隔步数")
)

// prepare 准备阶段，每步执行一次
// 功能：在每个仿真步骤开始时进行准备工作
// 算法说明：
// 1. 更新时钟：增加内部步数并计算当前时间
// 2. 心跳日志：定期输出当前步与仿真时间
// 3. 锁存各平台的待施加控制量
func (ctx *Context) prepare() {
	ctx.clock.Advance()

	if *heartBeatInterval > 0 && ctx.clock.InternalStep%int32(*heartBeatInterval) == 0 {
		hour, minute, second := ctx.clock.GetHourMinuteSecond()
		log.Debugf(
			"STEP: %d(%d:%d:%.2f)",
			ctx.clock.InternalStep,
			hour, minute, second,
		)
	}

	ctx.platformManager.Prepare()
}

// update 更新阶段，每步执行一次
// 功能：以锁存的控制量并行推进全部平台DT秒
func (ctx *Context) update() {
	ctx.platformManager.Update(ctx.clock.DT)
}
