package config

import (
	"fmt"

	"gopkg.in/yaml.v2"
)

// Range 固定值或[Low, High]区间
// 功能：YAML中可写作标量`5`或二元列表`[1, 10]`
type Range struct {
	Low  float64
	High float64
}

// Fixed 固定值区间
func Fixed(v float64) Range {
	return Range{Low: v, High: v}
}

// UnmarshalYAML 实现yaml.Unmarshaler
func (r *Range) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var scalar float64
	if err := unmarshal(&scalar); err == nil {
		*r = Fixed(scalar)
		return nil
	}
	var pair []float64
	if err := unmarshal(&pair); err != nil {
		return fmt.Errorf("range must be a number or [low, high]: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("range must have exactly 2 elements, got %d", len(pair))
	}
	if pair[0] > pair[1] {
		return fmt.Errorf("range low %v is greater than high %v", pair[0], pair[1])
	}
	*r = Range{Low: pair[0], High: pair[1]}
	return nil
}

// MarshalYAML 实现yaml.Marshaler
func (r Range) MarshalYAML() (interface{}, error) {
	if r.Low == r.High {
		return r.Low, nil
	}
	return []float64{r.Low, r.High}, nil
}

// IsFixed 是否为固定值
func (r Range) IsFixed() bool {
	return r.Low == r.High
}

// DecodeParams 将插件的自由参数严格解析为具体参数结构
// 功能：先把参数重新编码为YAML，再用UnmarshalStrict解析，未知字段视为错误
// 参数：params-配置中的参数表，out-目标结构体指针（调用前可预先填好默认值）
func DecodeParams(params map[string]interface{}, out interface{}) error {
	if len(params) == 0 {
		return nil
	}
	b, err := yaml.Marshal(params)
	if err != nil {
		return fmt.Errorf("encode params: %w", err)
	}
	if err := yaml.UnmarshalStrict(b, out); err != nil {
		return fmt.Errorf("decode params: %w", err)
	}
	return nil
}
