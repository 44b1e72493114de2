package envserver

import (
	"fmt"
	"math"
	"strconv"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/rejoin-sim/entity"
	"github.com/tsinghua-fib-lab/rejoin-sim/rejoin"
	"google.golang.org/protobuf/types/known/structpb"
)

// structpb只接受interface{}切片与map
func floatsValue(xs []float64) []interface{} {
	return lo.Map(xs, func(x float64, _ int) interface{} { return x })
}

func stringsValue(xs []string) []interface{} {
	return lo.Map(xs, func(x string, _ int) interface{} { return x })
}

func boxValue(p entity.BoxProp) map[string]interface{} {
	return map[string]interface{}{
		"name":        p.Name,
		"low":         floatsValue(p.Low),
		"high":        floatsValue(p.High),
		"unit":        stringsValue(p.Unit),
		"description": p.Description,
	}
}

func observationsValue(obs map[string][]float64) map[string]interface{} {
	return lo.MapValues(obs, func(o []float64, _ string) interface{} { return floatsValue(o) })
}

func infoValue(info rejoin.AgentInfo) map[string]interface{} {
	return map[string]interface{}{
		"status": lo.MapValues(info.Status, func(s rejoin.DoneStatus, _ string) interface{} {
			return string(s)
		}),
		"rewards":         lo.MapValues(info.Rewards, func(r float64, _ string) interface{} { return r }),
		"in_rejoin":       info.InRejoin,
		"rejoin_distance": info.RejoinDistance,
	}
}

func stepValue(res *rejoin.StepResult) map[string]interface{} {
	return map[string]interface{}{
		"observations": observationsValue(res.Observations),
		"rewards":      lo.MapValues(res.Rewards, func(r float64, _ string) interface{} { return r }),
		"dones":        lo.MapValues(res.Dones, func(d bool, _ string) interface{} { return d }),
		"infos":        lo.MapValues(res.Infos, func(i rejoin.AgentInfo, _ string) interface{} { return infoValue(i) }),
	}
}

// parseActions 解析 {"actions": {agent: [float...]}}
func parseActions(msg *structpb.Struct) (map[string][]float64, error) {
	v, ok := msg.GetFields()["actions"]
	if !ok {
		return map[string][]float64{}, nil
	}
	s := v.GetStructValue()
	if s == nil {
		return nil, fmt.Errorf("actions must be an object")
	}
	actions := make(map[string][]float64, len(s.GetFields()))
	for name, a := range s.GetFields() {
		list := a.GetListValue()
		if list == nil {
			return nil, fmt.Errorf("action of %s must be a list of numbers", name)
		}
		act := make([]float64, len(list.GetValues()))
		for i, x := range list.GetValues() {
			n, ok := x.GetKind().(*structpb.Value_NumberValue)
			if !ok {
				return nil, fmt.Errorf("action of %s: element %d is not a number", name, i)
			}
			act[i] = n.NumberValue
		}
		actions[name] = act
	}
	return actions, nil
}

// 超过2^53的整数无法用JSON数字精确表示
const maxExactSeed = 1 << 53

// parseSeed 解析可选的 {"seed": number | "decimal string"}
func parseSeed(msg *structpb.Struct) (uint64, bool, error) {
	v, ok := msg.GetFields()["seed"]
	if !ok {
		return 0, false, nil
	}
	switch k := v.GetKind().(type) {
	case *structpb.Value_NumberValue:
		n := k.NumberValue
		if n < 0 || n > maxExactSeed || n != math.Trunc(n) {
			return 0, false, fmt.Errorf("numeric seed must be an integer in [0, 2^53], pass larger seeds as strings")
		}
		return uint64(n), true, nil
	case *structpb.Value_StringValue:
		seed, err := strconv.ParseUint(k.StringValue, 10, 64)
		if err != nil {
			return 0, false, fmt.Errorf("invalid seed %q: %w", k.StringValue, err)
		}
		return seed, true, nil
	}
	return 0, false, fmt.Errorf("seed must be an integer or a decimal string")
}
