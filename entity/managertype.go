package entity

import "github.com/tsinghua-fib-lab/rejoin-sim/utils/config"

// Manager依赖倒置

// entity/platform/manager.go的依赖倒置
type IPlatformManager interface {
	Init(pbs []config.Platform) error // 按配置（重新）创建全部平台

	// 输入平台名，查找平台，如果不存在则panic
	Get(name string) IPlatform
	// 输入平台名，查找平台，如果不存在则返回error
	GetOrError(name string) (IPlatform, error)
	// 按配置顺序返回全部平台名
	Names() []string

	Prepare()          // 准备阶段：锁存待施加的控制量
	Update(dt float64) // 更新阶段：推进全部平台的动力学
}
