package entity

import (
	"github.com/tsinghua-fib-lab/rejoin-sim/clock"
	"github.com/tsinghua-fib-lab/rejoin-sim/utils/config"
	"github.com/tsinghua-fib-lab/rejoin-sim/utils/randengine"
)

type ITaskContext interface {
	Clock() *clock.Clock
	PlatformManager() IPlatformManager
	RuntimeConfig() *config.RuntimeConfig
	Generator() *randengine.Engine
}
