package container

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTopK(t *testing.T) {
	top := NewTopK[string](3)
	assert.True(t, top.Push("a", 1))
	assert.True(t, top.Push("b", 5))
	assert.True(t, top.Push("c", 3))
	assert.False(t, top.Push("d", 0))
	assert.True(t, top.Push("e", 4))

	values, scores := top.Drain()
	assert.Equal(t, []string{"b", "e", "c"}, values)
	assert.Equal(t, []float64{5, 4, 3}, scores)
	assert.Equal(t, 0, top.Len())
}

func TestTopKTiesKeepEarlier(t *testing.T) {
	top := NewTopK[int](1)
	top.Push(1, 2)
	assert.False(t, top.Push(2, 2))
	values, _ := top.Drain()
	assert.Equal(t, []int{1}, values)

	top = NewTopK[int](0)
	top.Push(7, -1)
	assert.Equal(t, 1, top.Len())
}
