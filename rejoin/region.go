package rejoin

import (
	"github.com/golang/geo/r3"
	"github.com/tsinghua-fib-lab/rejoin-sim/entity"
	"github.com/tsinghua-fib-lab/rejoin-sim/utils/geometry"
)

// RegionCenter 集结区域中心
// 功能：将长机机体系下的偏移（不足3维补0）旋转到世界系后加上长机位置
func RegionCenter(lead entity.IPlatform, offset []float64) r3.Vector {
	return lead.Position().Add(geometry.Rotate(lead.Orientation(), geometry.FromSlice(offset)))
}

// InRejoin 僚机是否处于集结区域
// 返回：inside-距离不大于半径，distance-僚机到区域中心的距离
func InRejoin(wingman, lead entity.IPlatform, radius float64, offset []float64) (inside bool, distance float64) {
	distance = wingman.Position().Sub(RegionCenter(lead, offset)).Norm()
	return distance <= radius, distance
}
