// Package merger selects the best n items from a scored result list with a
// bounded heap.
package merger

import "container/heap"

// Top returns the n best items in order, best first. better(a, b) must be a
// strict total order; callers break score ties on position so the output is
// identical to a stable sort followed by truncation. n <= 0 returns nil.
func Top[T any](items []T, n int, better func(a, b T) bool) []T {
	if n <= 0 {
		return nil
	}
	h := &boundedHeap[T]{better: better}
	heap.Init(h)
	for _, item := range items {
		heap.Push(h, item)
		if h.Len() > n {
			heap.Pop(h)
		}
	}
	result := make([]T, h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(h).(T)
	}
	return result
}

// boundedHeap is a min-heap on quality: the worst item sits at the root so
// it is the one evicted once the heap grows past n.
type boundedHeap[T any] struct {
	items  []T
	better func(a, b T) bool
}

func (h boundedHeap[T]) Len() int { return len(h.items) }

func (h boundedHeap[T]) Less(i, j int) bool { return h.better(h.items[j], h.items[i]) }

func (h boundedHeap[T]) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *boundedHeap[T]) Push(x any) {
	h.items = append(h.items, x.(T))
}

func (h *boundedHeap[T]) Pop() any {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]
	return item
}
