// 随机数引擎，包装了golang.org/x/exp/rand，提供了初始条件采样与训练噪声所需的随机数生成方法
package randengine

import (
	"flag"

	"golang.org/x/exp/rand"
)

var (
	seedOffset = flag.Uint64("rand.seed_offset", 0, "seed offset") // 种子偏移量，用于调整随机数生成
)

// Engine 随机数引擎
// 功能：提供均匀分布、正态分布等随机数生成功能
// 说明：基于golang.org/x/exp/rand库，只能在单个goroutine中使用
type Engine struct {
	*rand.Rand // 底层随机数生成器
}

// New 创建随机数引擎
// 功能：初始化一个新的随机数引擎实例
// 参数：seed-随机数种子
// 返回：随机数引擎指针
// 说明：种子偏移量允许在不修改配置的情况下调整随机数序列
func New(seed uint64) *Engine {
	return &Engine{Rand: rand.New(rand.NewSource(seed + *seedOffset))}
}

// Uniform 在[low, high)内均匀采样
// 说明：low == high时直接返回low，用于固定值的初始条件
func (e *Engine) Uniform(low, high float64) float64 {
	if low == high {
		return low
	}
	return low + (high-low)*e.Float64()
}
