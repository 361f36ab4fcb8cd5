// Package cache keeps sorted insertion and removal moves for a solution and
// refreshes them route by route as the solution is edited.
//
// Both caches order moves ascending by delta cost, breaking ties by node
// location, so a rebuild and a sequence of route invalidations over the
// same solution produce identical lists. Neither cache mutates the solution
// and neither is safe for concurrent use.
package cache

import (
	"cmp"
	"container/heap"

	"lnskit/internal/model"
)

func compareInsertion(a, b model.InsertionMove) int {
	if c := cmp.Compare(a.DeltaCost, b.DeltaCost); c != 0 {
		return c
	}
	if c := a.AfterNode.Compare(b.AfterNode); c != 0 {
		return c
	}
	return cmp.Compare(a.VertexID, b.VertexID)
}

func compareRemoval(a, b model.RemovalMove) int {
	if c := cmp.Compare(a.DeltaCost, b.DeltaCost); c != 0 {
		return c
	}
	return a.NodeLocation.Compare(b.NodeLocation)
}

// cursor walks one sorted per-vertex list during a k-way merge.
type cursor struct {
	moves []model.InsertionMove
	next  int
}

type mergeHeap []*cursor

func (h mergeHeap) Len() int { return len(h) }
func (h mergeHeap) Less(i, j int) bool {
	return compareInsertion(h[i].moves[h[i].next], h[j].moves[h[j].next]) < 0
}
func (h mergeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *mergeHeap) Push(x any)   { *h = append(*h, x.(*cursor)) }
func (h *mergeHeap) Pop() any {
	old := *h
	c := old[len(old)-1]
	*h = old[:len(old)-1]
	return c
}

// mergeSorted lazily yields the union of sorted lists in global order.
func mergeSorted(lists [][]model.InsertionMove, yield func(model.InsertionMove) bool) {
	h := make(mergeHeap, 0, len(lists))
	for _, l := range lists {
		if len(l) > 0 {
			h = append(h, &cursor{moves: l})
		}
	}
	heap.Init(&h)
	for h.Len() > 0 {
		top := h[0]
		if !yield(top.moves[top.next]) {
			return
		}
		top.next++
		if top.next == len(top.moves) {
			heap.Pop(&h)
		} else {
			heap.Fix(&h, 0)
		}
	}
}
