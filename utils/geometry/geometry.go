// 几何工具，提供角度归一化、ZYX欧拉角姿态以及坐标系旋转等常用计算
package geometry

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/num/quat"
)

// WrapAngle 角度归一化
// 功能：将角度折算到以center为中心、宽度为2π的区间[center-π, center+π)内
// 参数：a-待归一化角度（弧度），center-区间中心
// 返回：归一化后的角度
func WrapAngle(a, center float64) float64 {
	d := math.Mod(a-center+math.Pi, 2*math.Pi)
	if d < 0 {
		d += 2 * math.Pi
	}
	return d - math.Pi + center
}

// EulerZYX 由内旋Z-Y-X欧拉角构造姿态四元数
// 功能：依次绕Z轴（偏航）、新Y轴（俯仰）、新X轴（滚转）旋转得到的姿态
// 参数：yaw-偏航角，pitch-俯仰角，roll-滚转角（弧度）
// 返回：单位四元数
func EulerZYX(yaw, pitch, roll float64) quat.Number {
	qz := quat.Number{Real: math.Cos(yaw / 2), Kmag: math.Sin(yaw / 2)}
	qy := quat.Number{Real: math.Cos(pitch / 2), Jmag: math.Sin(pitch / 2)}
	qx := quat.Number{Real: math.Cos(roll / 2), Imag: math.Sin(roll / 2)}
	return quat.Mul(quat.Mul(qz, qy), qx)
}

// Rotate 用四元数旋转向量（机体系 -> 世界系）
func Rotate(q quat.Number, v r3.Vector) r3.Vector {
	p := quat.Mul(quat.Mul(q, quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}), quat.Conj(q))
	return r3.Vector{X: p.Imag, Y: p.Jmag, Z: p.Kmag}
}

// InverseRotate 用四元数的共轭旋转向量（世界系 -> 机体系）
func InverseRotate(q quat.Number, v r3.Vector) r3.Vector {
	return Rotate(quat.Conj(q), v)
}

// HeadingFrame 仅包含偏航的机体坐标系
func HeadingFrame(heading float64) quat.Number {
	return EulerZYX(heading, 0, 0)
}

// ToSlice 将向量转换为[]float64
func ToSlice(v r3.Vector) []float64 {
	return []float64{v.X, v.Y, v.Z}
}

// FromSlice 将长度不超过3的切片补零后转换为向量
func FromSlice(s []float64) r3.Vector {
	var full [3]float64
	copy(full[:], s)
	return r3.Vector{X: full[0], Y: full[1], Z: full[2]}
}

// QuatToSlice 按[w, x, y, z]顺序输出四元数
func QuatToSlice(q quat.Number) []float64 {
	return []float64{q.Real, q.Imag, q.Jmag, q.Kmag}
}

// Clip 将x限制在[low, high]区间内
func Clip(x, low, high float64) float64 {
	return lo.Clamp(x, low, high)
}

// ClipVec 逐元素限制，low与high长度须与v一致
func ClipVec(v, low, high []float64) []float64 {
	out := make([]float64, len(v))
	for i := range v {
		out[i] = lo.Clamp(v[i], low[i], high[i])
	}
	return out
}
