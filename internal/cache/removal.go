package cache

import (
	"slices"

	"lnskit/internal/model"
	"lnskit/internal/selector"
)

// RemovalCache holds one globally sorted list with the removal move of
// every non-depot node in a solution. The most beneficial removal, the one
// with the most negative delta, comes first.
type RemovalCache struct {
	eval  model.Evaluation
	moves []model.RemovalMove
}

func NewRemovalCache() *RemovalCache { return &RemovalCache{} }

// Rebuild discards all state and evaluates every interior node of sol.
func (c *RemovalCache) Rebuild(eval model.Evaluation, sol model.Solution) {
	c.Clear()
	c.eval = eval
	for i := 0; i < sol.Len(); i++ {
		c.moves = c.appendRouteMoves(c.moves, sol.RouteAt(i), i)
	}
	slices.SortFunc(c.moves, compareRemoval)
}

// InvalidateRoute replaces the moves of the route at index with moves
// evaluated on its current contents.
func (c *RemovalCache) InvalidateRoute(route model.Route, index int) {
	if c.eval == nil {
		return
	}
	c.moves = slices.DeleteFunc(c.moves, func(m model.RemovalMove) bool {
		return m.NodeLocation.Route == index
	})
	c.moves = c.appendRouteMoves(c.moves, route, index)
	slices.SortFunc(c.moves, compareRemoval)
}

// MovesInOrder is a view of the sorted moves, valid until the cache is mutated.
func (c *RemovalCache) MovesInOrder() selector.List[model.RemovalMove] { return c.moves }

func (c *RemovalCache) Len() int { return len(c.moves) }

func (c *RemovalCache) Clear() {
	c.moves = c.moves[:0]
	c.eval = nil
}

// appendRouteMoves evaluates removing each interior node as a splice of its
// two neighbours. Both terms of the delta are kept explicit.
func (c *RemovalCache) appendRouteMoves(dst []model.RemovalMove, route model.Route, index int) []model.RemovalMove {
	base := route.Cost()
	for pos := 1; pos <= route.Len()-2; pos++ {
		dst = append(dst, model.RemovalMove{
			VertexID:     route.VertexAt(pos),
			NodeLocation: model.NodeLocation{Route: index, Position: pos},
			DeltaCost:    c.eval.EvaluateSplice(route, pos-1, pos+1) - base,
		})
	}
	return dst
}
