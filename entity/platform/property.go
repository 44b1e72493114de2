package platform

import (
	"math"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/rejoin-sim/entity"
	"github.com/tsinghua-fib-lab/rejoin-sim/entity/aircraft"
)

// 传感器量程（ft）
const (
	maxPositionMagnitude = 1640420.0 // 500km
	maxVelocityMagnitude = 2000.0
)

func repeat[T any](v T, n int) []T {
	return lo.Times(n, func(int) T { return v })
}

func PositionProp() entity.BoxProp {
	return entity.BoxProp{
		Name:        "position",
		Low:         repeat(-maxPositionMagnitude, 3),
		High:        repeat(maxPositionMagnitude, 3),
		Unit:        repeat("ft", 3),
		Description: "Position Sensor Properties",
	}
}

func VelocityProp() entity.BoxProp {
	return entity.BoxProp{
		Name:        "velocity",
		Low:         repeat(-maxVelocityMagnitude, 3),
		High:        repeat(maxVelocityMagnitude, 3),
		Unit:        repeat("ft/s", 3),
		Description: "Velocity Sensor Properties",
	}
}

func HeadingProp() entity.BoxProp {
	return entity.BoxProp{
		Name:        "heading",
		Low:         []float64{-math.Pi},
		High:        []float64{math.Pi},
		Unit:        []string{"rad"},
		Description: "Heading Sensor Properties",
	}
}

func FlightPathProp() entity.BoxProp {
	return entity.BoxProp{
		Name:        "flight_path",
		Low:         []float64{-aircraft.MaxGamma},
		High:        []float64{aircraft.MaxGamma},
		Unit:        []string{"rad"},
		Description: "Flight Path Sensor Properties",
	}
}

func RollProp() entity.BoxProp {
	return entity.BoxProp{
		Name:        "roll",
		Low:         []float64{-aircraft.MaxRoll},
		High:        []float64{aircraft.MaxRoll},
		Unit:        []string{"rad"},
		Description: "Roll Sensor Properties",
	}
}

func SpeedProp() entity.BoxProp {
	return entity.BoxProp{
		Name:        "speed",
		Low:         []float64{aircraft.MinSpeed},
		High:        []float64{aircraft.MaxSpeed},
		Unit:        []string{"ft/s"},
		Description: "Speed Sensor Properties",
	}
}

// QuaternionProp 四元数传感器，顺序[w, x, y, z]
func QuaternionProp() entity.BoxProp {
	return entity.BoxProp{
		Name:        "quaternion",
		Low:         repeat(-1.0, 4),
		High:        repeat(1.0, 4),
		Unit:        repeat("None", 4),
		Description: "Quaternion Sensor Properties",
	}
}

func YawRateProp() entity.BoxProp {
	return entity.BoxProp{
		Name:        "yaw_rate",
		Low:         []float64{-aircraft.MaxHeadingRate},
		High:        []float64{aircraft.MaxHeadingRate},
		Unit:        []string{"rad/s"},
		Description: "Direct Yaw Rate Control",
	}
}

func PitchRateProp() entity.BoxProp {
	return entity.BoxProp{
		Name:        "pitch_rate",
		Low:         []float64{-aircraft.MaxGammaRate},
		High:        []float64{aircraft.MaxGammaRate},
		Unit:        []string{"rad/s"},
		Description: "Direct Pitch Rate Control",
	}
}

func RollRateProp() entity.BoxProp {
	return entity.BoxProp{
		Name:        "roll_rate",
		Low:         []float64{-aircraft.MaxRollRate},
		High:        []float64{aircraft.MaxRollRate},
		Unit:        []string{"rad/s"},
		Description: "Direct Roll Rate Control",
	}
}

func AccelerationProp() entity.BoxProp {
	return entity.BoxProp{
		Name:        "acceleration",
		Low:         []float64{-aircraft.MaxAcceleration},
		High:        []float64{aircraft.MaxAcceleration},
		Unit:        []string{"ft/s^2"},
		Description: "Direct Acceleration Control",
	}
}

// 飞机控制量名 -> 单轴控制取值空间
var axisProps = map[string]func() entity.BoxProp{
	"heading_rate": YawRateProp,
	"gamma_rate":   PitchRateProp,
	"roll_rate":    RollRateProp,
	"acceleration": AccelerationProp,
}

// ControlProp 组合控制器的取值空间
// 功能：按飞机的控制量顺序拼接单轴控制取值空间，3D为pitch_roll_acceleration，2D为yaw_acceleration
// 说明：未登记的控制量直接使用飞机的上下界
func ControlProp(a entity.IAircraft) entity.BoxProp {
	low, high := a.ControlBounds()
	names := a.ControlNames()
	prop := entity.BoxProp{
		Name:        "pitch_roll_acceleration",
		Low:         make([]float64, 0, len(names)),
		High:        make([]float64, 0, len(names)),
		Unit:        make([]string, 0, len(names)),
		Description: "Direct Pitch Rate, Roll Rate and Acceleration Control",
	}
	if len(names) == 2 {
		prop.Name = "yaw_acceleration"
		prop.Description = "Direct Yaw Rate and Acceleration Control"
	}
	for i, n := range names {
		axis := entity.BoxProp{Low: low[i : i+1], High: high[i : i+1], Unit: []string{"None"}}
		if f, ok := axisProps[n]; ok {
			axis = f()
		}
		prop.Low = append(prop.Low, axis.Low...)
		prop.High = append(prop.High, axis.High...)
		prop.Unit = append(prop.Unit, axis.Unit...)
	}
	return prop
}

// ControlPropOf 指定模型类型的组合控制器取值空间
func ControlPropOf(kind string) (entity.BoxProp, error) {
	a, err := aircraft.New(kind, "probe", aircraft.InitialState{Position: []float64{0, 0, 0}}, aircraft.DefaultOptions())
	if err != nil {
		return entity.BoxProp{}, err
	}
	return ControlProp(a), nil
}
