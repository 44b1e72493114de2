package config

// ControlStep 指定模拟器模拟时间范围和间隔的配置项
// 功能：定义仿真时间控制参数
// 说明：Total即单个episode的最大步数（horizon），Interval为每个环境步的仿真时长（秒）
type ControlStep struct {
	Start    int32   `yaml:"start"`    // 开始步数
	Total    int32   `yaml:"total"`    // 总步数
	Interval float64 `yaml:"interval"` // 每步的时间间隔
}

// Control 模拟器控制配置
// 功能：定义仿真系统的核心控制参数
type Control struct {
	Step ControlStep `yaml:"step"`
}

// Experiment 实验基本信息
type Experiment struct {
	Name string `yaml:"name"`           // 实验名，作为输出表名/集合名前缀
	Seed uint64 `yaml:"seed,omitempty"` // 随机种子
}

// Simulator 动力学后端配置
// 功能：选择Dubins 2D/3D模型以及积分方式
type Simulator struct {
	Type        string `yaml:"type"`                  // dubins2d 或 dubins3d
	Integration string `yaml:"integration,omitempty"` // rk4（默认）或 euler
	Substeps    int    `yaml:"substeps,omitempty"`    // 每个环境步内部积分次数
}

// PlatformInit 平台初始状态
// 功能：定义飞机的初始位置、姿态与速度，所有量均可以是固定值或[low, high]采样区间
// 说明：
// 1. Reference为空时，Position/Heading为世界系绝对量
// 2. Reference非空时，平台相对参考平台放置：距离Radius、相对参考航向的方位Bearing、
// 高度差Altitude（沿z轴），Heading视为相对参考航向的偏差
type PlatformInit struct {
	Position  []Range `yaml:"position,omitempty"`  // 绝对位置 [x, y, z]
	Reference string  `yaml:"reference,omitempty"` // 参考平台名
	Radius    Range   `yaml:"radius,omitempty"`    // 相对距离
	Bearing   Range   `yaml:"bearing,omitempty"`   // 相对方位（弧度）
	Altitude  Range   `yaml:"altitude,omitempty"`  // z方向偏移
	Heading   Range   `yaml:"heading,omitempty"`   // 航向（弧度）
	Gamma     Range   `yaml:"gamma,omitempty"`     // 航迹倾角（弧度）
	Roll      Range   `yaml:"roll,omitempty"`      // 滚转角（弧度）
	V         Range   `yaml:"v,omitempty"`         // 速度（ft/s）
}

// Platform 仿真平台（飞机）配置
type Platform struct {
	Name    string       `yaml:"name"`
	Init    PlatformInit `yaml:"init"`
	Control []float64    `yaml:"control,omitempty"` // 非智能体平台每步施加的固定控制量
}

// Plugin 奖励/终止/观测函数配置
// 功能：以类型名从注册表中选取实现，Params按实现的参数结构严格解析
type Plugin struct {
	Name   string                 `yaml:"name,omitempty"` // 实例名，为空时使用Type
	Type   string                 `yaml:"type"`
	Params map[string]interface{} `yaml:"params,omitempty"`
}

// ID 实例名
func (p Plugin) ID() string {
	if p.Name != "" {
		return p.Name
	}
	return p.Type
}

// RejoinRegion 编队集结区域
// 功能：以长机为参考、在长机机体系下偏移Offset、半径为Radius的球形区域
type RejoinRegion struct {
	Lead   string    `yaml:"lead"`
	Radius float64   `yaml:"radius"`
	Offset []float64 `yaml:"offset"`
}

// Agent 智能体配置
type Agent struct {
	Name             string       `yaml:"name"`
	Platform         string       `yaml:"platform"`
	Policy           string       `yaml:"policy,omitempty"`            // 策略名，为空时与Name相同
	NormalizeActions bool         `yaml:"normalize_actions,omitempty"` // 动作取值[-1, 1]并缩放到控制量范围
	Rejoin           RejoinRegion `yaml:"rejoin"`
	Glues            []Plugin     `yaml:"glues"`
	Rewards          []Plugin     `yaml:"rewards"`
	Dones            []Plugin     `yaml:"dones"`
}

// Trainer 训练器配置（交叉熵方法）
type Trainer struct {
	Algorithm            string  `yaml:"algorithm,omitempty"`
	Iterations           int     `yaml:"iterations"`
	Population           int     `yaml:"population"`
	EliteFrac            float64 `yaml:"elite_frac"`
	EpisodesPerCandidate int     `yaml:"episodes_per_candidate"`
	Workers              int     `yaml:"workers,omitempty"`
	InitStd              float64 `yaml:"init_std"`
	MinStd               float64 `yaml:"min_std"`
	Smoothing            float64 `yaml:"smoothing"`
	CheckpointEvery      int     `yaml:"checkpoint_every,omitempty"`
	TargetSuccessRate    float64 `yaml:"target_success_rate,omitempty"`
}

// Output 输出配置
type Output struct {
	URI           string `yaml:"uri,omitempty"`            // mongodb://... 或 sqlite://path，为空不输出
	DB            string `yaml:"db,omitempty"`             // MongoDB数据库名
	CheckpointDir string `yaml:"checkpoint_dir,omitempty"` // 检查点目录
}

// Config YAML配置文件的根结构
// 功能：定义一次训练实验的全部配置
type Config struct {
	Experiment  Experiment `yaml:"experiment"`
	Control     Control    `yaml:"control"`
	Simulator   Simulator  `yaml:"simulator"`
	Platforms   []Platform `yaml:"platforms"`
	Agents      []Agent    `yaml:"agents"`
	SharedDones []Plugin   `yaml:"shared_dones,omitempty"`
	Trainer     Trainer    `yaml:"trainer"`
	Output      Output     `yaml:"output,omitempty"`
}
