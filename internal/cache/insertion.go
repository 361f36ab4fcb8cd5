package cache

import (
	"errors"
	"fmt"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"

	"lnskit/internal/model"
	"lnskit/internal/selector"
)

// ErrUnknownVertex is returned when asked to track a vertex the instance does not have.
var ErrUnknownVertex = errors.New("cache: unknown vertex")

// InsertionCache holds, for every tracked vertex, all positions it could be
// inserted at, sorted by the resulting change in route cost.
type InsertionCache struct {
	eval    model.Evaluation
	moves   [][]model.InsertionMove // indexed by vertex id
	tracked *roaring.Bitmap
}

func NewInsertionCache(inst model.Instance) *InsertionCache {
	return &InsertionCache{
		moves:   make([][]model.InsertionMove, inst.NumberOfVertices()),
		tracked: roaring.New(),
	}
}

// Rebuild discards all state and evaluates every insertion slot of sol for
// each of vertices, which become the tracked set.
func (c *InsertionCache) Rebuild(eval model.Evaluation, sol model.Solution, vertices []model.VertexID) error {
	c.Clear()
	for _, v := range vertices {
		if !c.inRange(v) {
			return fmt.Errorf("%w: %d", ErrUnknownVertex, v)
		}
	}
	c.eval = eval
	slots := 0
	for i := 0; i < sol.Len(); i++ {
		slots += sol.RouteAt(i).Len() - 1
	}
	for _, v := range vertices {
		if !c.tracked.CheckedAdd(uint32(v)) {
			continue
		}
		moves := make([]model.InsertionMove, 0, slots)
		for i := 0; i < sol.Len(); i++ {
			moves = c.appendRouteMoves(moves, sol.RouteAt(i), i, v)
		}
		slices.SortFunc(moves, compareInsertion)
		c.moves[v] = moves
	}
	return nil
}

// InvalidateRoute recomputes the moves into route, which now sits at index
// in the solution, for every tracked vertex. It must follow every
// structural edit of that route.
func (c *InsertionCache) InvalidateRoute(route model.Route, index int) {
	it := c.tracked.Iterator()
	for it.HasNext() {
		v := model.VertexID(it.Next())
		moves := slices.DeleteFunc(c.moves[v], func(m model.InsertionMove) bool {
			return m.AfterNode.Route == index
		})
		moves = c.appendRouteMoves(moves, route, index, v)
		slices.SortFunc(moves, compareInsertion)
		c.moves[v] = moves
	}
}

// StopTracking forgets v, typically right after it has been inserted.
func (c *InsertionCache) StopTracking(v model.VertexID) {
	if !c.inRange(v) {
		return
	}
	c.tracked.Remove(uint32(v))
	c.moves[v] = nil
}

func (c *InsertionCache) TracksVertex(v model.VertexID) bool {
	return c.inRange(v) && c.tracked.Contains(uint32(v))
}

// TrackedVertices lists the tracked vertices in ascending id order.
func (c *InsertionCache) TrackedVertices() []model.VertexID {
	out := make([]model.VertexID, 0, c.tracked.GetCardinality())
	c.tracked.Iterate(func(x uint32) bool {
		out = append(out, model.VertexID(x))
		return true
	})
	return out
}

// BestInsertionsForVertex returns the moves of v, best first. The list is a
// view that stays valid until the next call that mutates the cache. An
// untracked vertex has no moves.
func (c *InsertionCache) BestInsertionsForVertex(v model.VertexID) selector.List[model.InsertionMove] {
	if !c.TracksVertex(v) {
		return nil
	}
	return c.moves[v]
}

// MovesInOrder streams the moves of all tracked vertices merged into one
// ascending order. The cache must not be mutated while the stream is consumed.
func (c *InsertionCache) MovesInOrder() selector.Stream[model.InsertionMove] {
	return func(yield func(model.InsertionMove) bool) {
		lists := make([][]model.InsertionMove, 0, c.tracked.GetCardinality())
		c.tracked.Iterate(func(x uint32) bool {
			lists = append(lists, c.moves[x])
			return true
		})
		mergeSorted(lists, yield)
	}
}

// Clear resets the cache to its freshly constructed state.
func (c *InsertionCache) Clear() {
	c.tracked.Clear()
	clear(c.moves)
	c.eval = nil
}

func (c *InsertionCache) inRange(v model.VertexID) bool {
	return v >= 0 && int(v) < len(c.moves)
}

// appendRouteMoves appends one move per slot of route: after the start
// depot, after every visit, but never after the end depot.
func (c *InsertionCache) appendRouteMoves(dst []model.InsertionMove, route model.Route, index int, v model.VertexID) []model.InsertionMove {
	base := route.Cost()
	for pos := 0; pos < route.Len()-1; pos++ {
		dst = append(dst, model.InsertionMove{
			VertexID:  v,
			AfterNode: model.NodeLocation{Route: index, Position: pos},
			DeltaCost: c.eval.EvaluateInsertion(route, pos, v) - base,
		})
	}
	return dst
}
