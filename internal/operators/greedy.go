package operators

import (
	"fmt"

	"lnskit/internal/cache"
	"lnskit/internal/model"
	"lnskit/internal/selector"
)

// WorstRemoval repeatedly removes the node picked from the sorted removal
// moves. With selector.First it always takes the most beneficial removal.
type WorstRemoval struct {
	cache *cache.RemovalCache
	moves selector.Selector[model.RemovalMove]
}

func NewWorstRemoval(moves selector.Selector[model.RemovalMove]) *WorstRemoval {
	return &WorstRemoval{cache: cache.NewRemovalCache(), moves: moves}
}

func (o *WorstRemoval) Name() string { return "WorstRemoval" }

func (o *WorstRemoval) CanApplyTo(sol model.Solution) bool { return sol.Len() > 0 }

func (o *WorstRemoval) Apply(eval model.Evaluation, sol model.Solution, count int) ([]model.VertexID, error) {
	o.cache.Rebuild(eval, sol)
	defer o.cache.Clear()
	var removed []model.VertexID
	for len(removed) < count && o.cache.Len() > 0 {
		move, err := o.moves.Select(o.cache.MovesInOrder())
		if err != nil {
			return removed, fmt.Errorf("worst removal: %w", err)
		}
		if err := sol.RemoveVertex(move.NodeLocation); err != nil {
			return removed, err
		}
		route := move.NodeLocation.Route
		o.cache.InvalidateRoute(sol.RouteAt(route), route)
		removed = append(removed, move.VertexID)
	}
	return removed, nil
}

// BestInsertion inserts vertices one at a time, in the order given, at the
// position picked from that vertex's sorted insertion moves. Stations are
// optional visits and are not reinserted.
type BestInsertion struct {
	inst  model.Instance
	cache *cache.InsertionCache
	moves selector.Selector[model.InsertionMove]
}

func NewBestInsertion(inst model.Instance, moves selector.Selector[model.InsertionMove]) *BestInsertion {
	return &BestInsertion{inst: inst, cache: cache.NewInsertionCache(inst), moves: moves}
}

func (o *BestInsertion) Name() string { return "BestInsertion" }

func (o *BestInsertion) CanApplyTo(sol model.Solution) bool { return sol.Len() > 0 }

func (o *BestInsertion) Apply(eval model.Evaluation, sol model.Solution, vertices []model.VertexID) error {
	if sol.Len() == 0 {
		return ErrNoRoutes
	}
	pending := make([]model.VertexID, 0, len(vertices))
	for _, v := range vertices {
		if v < 0 || int(v) >= o.inst.NumberOfVertices() {
			return fmt.Errorf("%w: %d", cache.ErrUnknownVertex, v)
		}
		if !o.inst.Vertex(v).IsStation() {
			pending = append(pending, v)
		}
	}
	if err := o.cache.Rebuild(eval, sol, pending); err != nil {
		return err
	}
	defer o.cache.Clear()
	for _, v := range pending {
		if !o.cache.TracksVertex(v) {
			continue
		}
		move, err := o.moves.Select(o.cache.BestInsertionsForVertex(v))
		if err != nil {
			return fmt.Errorf("best insertion of %d: %w", v, err)
		}
		o.cache.StopTracking(v)
		if err := sol.InsertVertexAfter(move.AfterNode, v); err != nil {
			return err
		}
		route := move.AfterNode.Route
		o.cache.InvalidateRoute(sol.RouteAt(route), route)
	}
	return nil
}

// GlobalBestInsertion inserts the pending vertices in the order their moves
// come out of the merged cache: with selector.First the cheapest placement
// of any pending vertex is committed first.
type GlobalBestInsertion struct {
	inst  model.Instance
	cache *cache.InsertionCache
	moves selector.Selector[model.InsertionMove]
}

func NewGlobalBestInsertion(inst model.Instance, moves selector.Selector[model.InsertionMove]) *GlobalBestInsertion {
	return &GlobalBestInsertion{inst: inst, cache: cache.NewInsertionCache(inst), moves: moves}
}

func (o *GlobalBestInsertion) Name() string { return "GlobalBestInsertion" }

func (o *GlobalBestInsertion) CanApplyTo(sol model.Solution) bool { return sol.Len() > 0 }

func (o *GlobalBestInsertion) Apply(eval model.Evaluation, sol model.Solution, vertices []model.VertexID) error {
	if sol.Len() == 0 {
		return ErrNoRoutes
	}
	pending := make([]model.VertexID, 0, len(vertices))
	for _, v := range vertices {
		if v < 0 || int(v) >= o.inst.NumberOfVertices() {
			return fmt.Errorf("%w: %d", cache.ErrUnknownVertex, v)
		}
		if !o.inst.Vertex(v).IsStation() {
			pending = append(pending, v)
		}
	}
	if err := o.cache.Rebuild(eval, sol, pending); err != nil {
		return err
	}
	defer o.cache.Clear()
	for len(o.cache.TrackedVertices()) > 0 {
		move, err := o.moves.Select(o.cache.MovesInOrder())
		if err != nil {
			return fmt.Errorf("global best insertion: %w", err)
		}
		o.cache.StopTracking(move.VertexID)
		if err := sol.InsertVertexAfter(move.AfterNode, move.VertexID); err != nil {
			return err
		}
		route := move.AfterNode.Route
		o.cache.InvalidateRoute(sol.RouteAt(route), route)
	}
	return nil
}
