package operators

import "lnskit/internal/model"

// RandomRemoval removes a uniform sample of non-depot nodes.
type RandomRemoval struct {
	rng Rand
}

func NewRandomRemoval(rng Rand) *RandomRemoval { return &RandomRemoval{rng: rng} }

func (o *RandomRemoval) Name() string { return "RandomRemoval" }

func (o *RandomRemoval) CanApplyTo(sol model.Solution) bool { return sol.Len() > 0 }

func (o *RandomRemoval) Apply(_ model.Evaluation, sol model.Solution, count int) ([]model.VertexID, error) {
	if count <= 0 {
		return nil, nil
	}
	return removeBatch(sol, samplePositions(o.rng, sol.NonDepotNodes(), count))
}

// samplePositions draws min(k, len(locs)) locations without replacement
// (reservoir sampling).
func samplePositions(rng Rand, locs []model.NodeLocation, k int) []model.NodeLocation {
	sample := make([]model.NodeLocation, 0, min(k, len(locs)))
	for i, loc := range locs {
		if i < k {
			sample = append(sample, loc)
			continue
		}
		if j := rng.IntN(i + 1); j < k {
			sample[j] = loc
		}
	}
	return sample
}

// RandomInsertion inserts every vertex after a uniformly drawn node. Any
// node but a route's end depot can precede the new visit.
type RandomInsertion struct {
	rng Rand
}

func NewRandomInsertion(rng Rand) *RandomInsertion { return &RandomInsertion{rng: rng} }

func (o *RandomInsertion) Name() string { return "RandomInsertion" }

func (o *RandomInsertion) CanApplyTo(sol model.Solution) bool { return sol.Len() > 0 }

func (o *RandomInsertion) Apply(_ model.Evaluation, sol model.Solution, vertices []model.VertexID) error {
	if sol.Len() == 0 {
		return ErrNoRoutes
	}
	for _, v := range vertices {
		slots := 0
		for i := 0; i < sol.Len(); i++ {
			slots += sol.RouteAt(i).Len() - 1
		}
		pick := o.rng.IntN(slots)
		at := model.NodeLocation{}
		for i := 0; i < sol.Len(); i++ {
			n := sol.RouteAt(i).Len() - 1
			if pick < n {
				at = model.NodeLocation{Route: i, Position: pick}
				break
			}
			pick -= n
		}
		if err := sol.InsertVertexAfter(at, v); err != nil {
			return err
		}
	}
	return nil
}

// RouteRemoval empties the solution one uniformly drawn route at a time
// until at least count vertices are removed. Whole routes are dropped, so
// the result may exceed count.
type RouteRemoval struct {
	rng Rand
}

func NewRouteRemoval(rng Rand) *RouteRemoval { return &RouteRemoval{rng: rng} }

func (o *RouteRemoval) Name() string { return "RouteRemoval" }

func (o *RouteRemoval) CanApplyTo(sol model.Solution) bool { return sol.Len() > 0 }

func (o *RouteRemoval) Apply(_ model.Evaluation, sol model.Solution, count int) ([]model.VertexID, error) {
	var removed []model.VertexID
	for sol.Len() > 0 && len(removed) < count {
		idx := o.rng.IntN(sol.Len())
		r := sol.RouteAt(idx)
		for pos := 1; pos < r.Len()-1; pos++ {
			removed = append(removed, r.VertexAt(pos))
		}
		if err := sol.RemoveRoute(idx); err != nil {
			return removed, err
		}
	}
	return removed, nil
}
