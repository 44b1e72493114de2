package platform

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/rejoin-sim/entity/aircraft"
	"github.com/tsinghua-fib-lab/rejoin-sim/utils/config"
	"github.com/tsinghua-fib-lab/rejoin-sim/utils/randengine"
)

// sample 在区间内均匀采样，固定值直接返回
func sample(rng *randengine.Engine, r config.Range) float64 {
	return rng.Uniform(r.Low, r.High)
}

// placementOrder 按参考关系排序平台配置
// 功能：保证参考平台先于依赖它的平台初始化，同层保持配置顺序
// 返回：排序后的配置，存在循环参考时返回错误
func placementOrder(pbs []config.Platform) ([]config.Platform, error) {
	placed := make(map[string]bool, len(pbs))
	res := make([]config.Platform, 0, len(pbs))
	for len(res) < len(pbs) {
		progress := false
		for _, pb := range pbs {
			if placed[pb.Name] {
				continue
			}
			if ref := pb.Init.Reference; ref == "" || placed[ref] {
				res = append(res, pb)
				placed[pb.Name] = true
				progress = true
			}
		}
		if !progress {
			rest := lo.FilterMap(pbs, func(pb config.Platform, _ int) (string, bool) {
				return pb.Name, !placed[pb.Name]
			})
			return nil, fmt.Errorf("cyclic or unknown platform references among %v", rest)
		}
	}
	return res, nil
}

// initialState 采样平台初始状态
// 参数：pb-平台配置，rng-随机数引擎，placed-已初始化的平台
// 算法说明：
// 1. 无参考平台：位置各分量、航向独立采样
// 2. 有参考平台：在参考平台航向基础上旋转Bearing得到方位，水平距离Radius，
// z方向偏移Altitude；航向为参考航向加Heading偏差
// 3. 航迹倾角、滚转角、速度独立采样（速度为0时由飞机取最小速度）
func initialState(pb config.Platform, rng *randengine.Engine, placed map[string]*Platform) (aircraft.InitialState, error) {
	init := pb.Init
	var s aircraft.InitialState
	if init.Reference == "" {
		pos := lo.Map(init.Position, func(r config.Range, _ int) float64 { return sample(rng, r) })
		for len(pos) < 3 {
			pos = append(pos, 0)
		}
		s.Position = pos
		s.Heading = sample(rng, init.Heading)
	} else {
		ref, ok := placed[init.Reference]
		if !ok {
			return s, fmt.Errorf("platform %s: reference %s not initialized", pb.Name, init.Reference)
		}
		radius := sample(rng, init.Radius)
		bearing := ref.Heading() + sample(rng, init.Bearing)
		altitude := sample(rng, init.Altitude)
		pos := ref.Position().Add(r3.Vector{
			X: radius * math.Cos(bearing),
			Y: radius * math.Sin(bearing),
			Z: altitude,
		})
		s.Position = []float64{pos.X, pos.Y, pos.Z}
		s.Heading = ref.Heading() + sample(rng, init.Heading)
	}
	s.Gamma = sample(rng, init.Gamma)
	s.Roll = sample(rng, init.Roll)
	s.V = sample(rng, init.V)
	return s, nil
}
