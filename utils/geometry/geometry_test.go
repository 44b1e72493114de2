package geometry_test

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/tsinghua-fib-lab/rejoin-sim/utils/geometry"
)

const eps = 1e-9

func TestWrapAngle(t *testing.T) {
	cases := []struct {
		in, center, want float64
	}{
		{0, 0, 0},
		{math.Pi / 2, 0, math.Pi / 2},
		{3 * math.Pi / 2, 0, -math.Pi / 2},
		{-3 * math.Pi / 2, 0, math.Pi / 2},
		{math.Pi, 0, -math.Pi},
		{0.1, math.Pi, 0.1},
		{-0.1, math.Pi, 2*math.Pi - 0.1},
	}
	for _, c := range cases {
		assert.InDelta(t, c.want, geometry.WrapAngle(c.in, c.center), eps, "wrap(%v, %v)", c.in, c.center)
	}
}

func TestRotateYaw(t *testing.T) {
	q := geometry.EulerZYX(math.Pi/2, 0, 0)
	v := geometry.Rotate(q, r3.Vector{X: 1})
	assert.InDelta(t, 0, v.X, eps)
	assert.InDelta(t, 1, v.Y, eps)
	assert.InDelta(t, 0, v.Z, eps)

	back := geometry.InverseRotate(q, v)
	assert.InDelta(t, 1, back.X, eps)
	assert.InDelta(t, 0, back.Y, eps)
}

func TestRotatePitchMatchesVelocity(t *testing.T) {
	// 正俯仰角使机头指向-z（与Dubins速度方向一致）
	gamma := 0.2
	q := geometry.EulerZYX(0, gamma, 0)
	v := geometry.Rotate(q, r3.Vector{X: 1})
	assert.InDelta(t, math.Cos(gamma), v.X, eps)
	assert.InDelta(t, 0, v.Y, eps)
	assert.InDelta(t, -math.Sin(gamma), v.Z, eps)
}

func TestRotateRollKeepsForwardAxis(t *testing.T) {
	q := geometry.EulerZYX(0.3, 0, 0.7)
	v := geometry.Rotate(q, r3.Vector{X: 2})
	assert.InDelta(t, 2*math.Cos(0.3), v.X, eps)
	assert.InDelta(t, 2*math.Sin(0.3), v.Y, eps)
	assert.InDelta(t, 0, v.Z, eps)
	assert.InDelta(t, 2, v.Norm(), eps)
}

func TestSlices(t *testing.T) {
	assert.Equal(t, r3.Vector{X: 1, Y: 2}, geometry.FromSlice([]float64{1, 2}))
	assert.Equal(t, []float64{1, 2, 3}, geometry.ToSlice(r3.Vector{X: 1, Y: 2, Z: 3}))
	assert.Equal(t, []float64{-1, 0.5, 2}, geometry.ClipVec([]float64{-5, 0.5, 9}, []float64{-1, -1, -2}, []float64{1, 1, 2}))
}
