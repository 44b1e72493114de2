package platform

import (
	"github.com/tsinghua-fib-lab/rejoin-sim/entity"
	"github.com/tsinghua-fib-lab/rejoin-sim/utils/geometry"
)

// sensor 平台传感器
// 功能：读取平台当前状态中的某一量，按BoxProp描述其取值空间
type sensor struct {
	prop    entity.BoxProp
	measure func(a entity.IAircraft) []float64
}

func (s *sensor) Name() string {
	return s.prop.Name
}

func (s *sensor) Property() entity.BoxProp {
	return s.prop
}

// sensorOf 绑定到具体平台的传感器
type sensorOf struct {
	*sensor
	p *Platform
}

func (s sensorOf) Measurement() []float64 {
	return s.measure(s.p.aircraft)
}

var sensorTemplates = []*sensor{
	{PositionProp(), func(a entity.IAircraft) []float64 { return geometry.ToSlice(a.Position()) }},
	{VelocityProp(), func(a entity.IAircraft) []float64 { return geometry.ToSlice(a.Velocity()) }},
	{HeadingProp(), func(a entity.IAircraft) []float64 { return []float64{a.Heading()} }},
	{FlightPathProp(), func(a entity.IAircraft) []float64 { return []float64{a.Gamma()} }},
	{RollProp(), func(a entity.IAircraft) []float64 { return []float64{a.Roll()} }},
	{SpeedProp(), func(a entity.IAircraft) []float64 { return []float64{a.V()} }},
	{QuaternionProp(), func(a entity.IAircraft) []float64 { return geometry.QuatToSlice(a.Orientation()) }},
}

func newSensors(p *Platform) []entity.ISensor {
	res := make([]entity.ISensor, len(sensorTemplates))
	for i, s := range sensorTemplates {
		res[i] = sensorOf{sensor: s, p: p}
	}
	return res
}

// SensorProp 按传感器名获取取值空间
func SensorProp(name string) (entity.BoxProp, bool) {
	for _, s := range sensorTemplates {
		if s.prop.Name == name {
			return s.prop, true
		}
	}
	return entity.BoxProp{}, false
}
