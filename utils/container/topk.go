package container

import "container/heap"

// entry 堆中的一个元素
type entry[T any] struct {
	value T
	score float64
}

// minHeap 按score从小到大的最小堆，实现heap.Interface
type minHeap[T any] []entry[T]

func (h minHeap[T]) Len() int           { return len(h) }
func (h minHeap[T]) Less(i, j int) bool { return h[i].score < h[j].score }
func (h minHeap[T]) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *minHeap[T]) Push(x any) {
	*h = append(*h, x.(entry[T]))
}

func (h *minHeap[T]) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// TopK 保留score最大的K个元素
// 功能：用大小为K的最小堆维护当前最优的K个元素，堆顶为其中最差者
// 说明：score相同时先加入者优先保留
type TopK[T any] struct {
	k int
	h minHeap[T]
}

// NewTopK 创建容量为k的TopK，k<=0时视为1
func NewTopK[T any](k int) *TopK[T] {
	k = max(k, 1)
	return &TopK[T]{k: k, h: make(minHeap[T], 0, k+1)}
}

// Len 当前元素数
func (t *TopK[T]) Len() int {
	return len(t.h)
}

// Push 加入元素
// 返回：元素是否被保留
func (t *TopK[T]) Push(value T, score float64) bool {
	if len(t.h) < t.k {
		heap.Push(&t.h, entry[T]{value, score})
		return true
	}
	if score <= t.h[0].score {
		return false
	}
	t.h[0] = entry[T]{value, score}
	heap.Fix(&t.h, 0)
	return true
}

// Drain 按score从大到小取出全部元素并清空
func (t *TopK[T]) Drain() (values []T, scores []float64) {
	n := len(t.h)
	values = make([]T, n)
	scores = make([]float64, n)
	for i := n - 1; i >= 0; i-- {
		e := heap.Pop(&t.h).(entry[T])
		values[i], scores[i] = e.value, e.score
	}
	return values, scores
}
