package common

import "container/heap"

// indexHeap is a min-heap of item indices, used to pick the earliest ready item.
type indexHeap []int

func (h indexHeap) Len() int           { return len(h) }
func (h indexHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h indexHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *indexHeap) Push(x any)        { *h = append(*h, x.(int)) }
func (h *indexHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// StableTopoSort orders the items 0..n-1 so that every item comes after the items it depends on.
// When several items are ready at once the lowest index goes first, so the result only depends
// on the index order and the dependency relation.
// Items left on a cycle are appended in index order and ok is false.
//
// Parameters:
//   - n: number of items
//   - deps: returns the indices item i depends on; out-of-range indices are ignored
//
// Returns:
//   - []int: the ordered item indices, always of length n
//   - bool: false if a cycle prevented a full ordering
func StableTopoSort(n int, deps func(i int) []int) ([]int, bool) {
	indegree := make([]int, n)
	dependents := make([][]int, n)
	for i := 0; i < n; i++ {
		for _, d := range deps(i) {
			if d < 0 || d >= n || d == i {
				continue
			}
			indegree[i]++
			dependents[d] = append(dependents[d], i)
		}
	}

	ready := &indexHeap{}
	for i := 0; i < n; i++ {
		if indegree[i] == 0 {
			*ready = append(*ready, i)
		}
	}
	heap.Init(ready)

	order := make([]int, 0, n)
	placed := make([]bool, n)
	for ready.Len() > 0 {
		i := heap.Pop(ready).(int)
		order = append(order, i)
		placed[i] = true
		for _, dep := range dependents[i] {
			indegree[dep]--
			if indegree[dep] == 0 {
				heap.Push(ready, dep)
			}
		}
	}

	if len(order) == n {
		return order, true
	}
	for i := 0; i < n; i++ {
		if !placed[i] {
			order = append(order, i)
		}
	}
	return order, false
}
