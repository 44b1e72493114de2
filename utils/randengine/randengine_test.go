package randengine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tsinghua-fib-lab/rejoin-sim/utils/randengine"
)

func TestUniformBounds(t *testing.T) {
	e := randengine.New(1)
	for range 1000 {
		v := e.Uniform(-2, 3)
		assert.GreaterOrEqual(t, v, -2.0)
		assert.Less(t, v, 3.0)
	}
	assert.Equal(t, 7.0, e.Uniform(7, 7))
}

func TestSameSeedSameSequence(t *testing.T) {
	a, b := randengine.New(42), randengine.New(42)
	for range 10 {
		assert.Equal(t, a.Float64(), b.Float64())
	}
}

func TestDifferentSeedsDiffer(t *testing.T) {
	a, b := randengine.New(7), randengine.New(8)
	assert.NotEqual(t, a.Uint64(), b.Uint64())
}
