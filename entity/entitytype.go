package entity

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// BoxProp 连续取值空间的描述
// 功能：描述传感器输出或控制输入的各维上下界、单位与含义
type BoxProp struct {
	Name        string    `json:"name"`
	Low         []float64 `json:"low"`
	High        []float64 `json:"high"`
	Unit        []string  `json:"unit"`
	Description string    `json:"description"`
}

// Dim 维度
func (p BoxProp) Dim() int {
	return len(p.Low)
}

// entity/aircraft的依赖倒置
type IAircraft interface {
	Name() string // 名称

	Position() r3.Vector       // 位置（ft）
	Velocity() r3.Vector       // 速度矢量（ft/s）
	Acceleration() r3.Vector   // 沿速度方向的加速度矢量
	Orientation() quat.Number  // 机体姿态（ZYX欧拉角）
	Heading() float64          // 航向角
	Gamma() float64            // 航迹倾角
	Roll() float64             // 滚转角
	V() float64                // 速度大小
	State() []float64          // 状态向量（拷贝）
	StateNames() []string      // 状态向量各维名称
	ControlNames() []string    // 控制量各维名称
	ControlDefault() []float64 // 默认控制量
	ControlBounds() (low, high []float64)

	// 按控制向量推进dt秒
	Step(dt float64, control []float64) error
	// 按名称->值的控制量推进dt秒，缺失项取默认值
	StepNamed(dt float64, control map[string]float64) error
}

// entity/platform的传感器依赖倒置
type ISensor interface {
	Name() string
	Property() BoxProp
	Measurement() []float64
}

// entity/platform的控制器依赖倒置
type IController interface {
	Name() string
	Property() BoxProp
	ApplyControl(control []float64) error // 写入待施加的控制量
	AppliedControl() []float64            // 最近一次实际施加的控制量
}

// entity/platform/platform.go的依赖倒置
type IPlatform interface {
	Name() string
	Aircraft() IAircraft

	Position() r3.Vector
	Velocity() r3.Vector
	Orientation() quat.Number
	Heading() float64
	Speed() float64

	SimTime() float64
	AppliedAction() []float64 // 最近一次实际施加的控制量
	Operable() bool

	Sensors() []ISensor
	Controllers() []IController
	Sensor(name string) (ISensor, error)
	Controller(name string) (IController, error)
}
