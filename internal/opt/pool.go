package opt

import (
	"fmt"
	"math/rand/v2"
	"slices"

	"lnskit/internal/model"
	"lnskit/internal/operators"
	"lnskit/internal/selector"
	"lnskit/internal/vrp"
)

type weighted[T operators.Operator] struct {
	key    string
	op     T
	weight float64
}

// pool holds the operators of one search. Operators own their caches, so
// every concurrent search builds its own pool.
type pool struct {
	destroy []weighted[operators.DestroyOperator]
	repair  []weighted[operators.RepairOperator]
}

func buildPool(inst *vrp.Instance, eval *vrp.Evaluation, p Params, rng *rand.Rand) (*pool, error) {
	distance := func(a, b model.Vertex) float64 { return eval.Distance(a.ID, b.ID) }
	blinkInsert, err := selector.Blink[model.InsertionMove](p.BlinkProbability, rng)
	if err != nil {
		return nil, err
	}
	blinkRemove, err := selector.Blink[model.RemovalMove](p.BlinkProbability, rng)
	if err != nil {
		return nil, err
	}
	blinkRelated, err := selector.Blink[operators.RelatedVertexRemovalMove](p.BlinkProbability, rng)
	if err != nil {
		return nil, err
	}

	pl := &pool{}
	for _, key := range sortedKeys(p.DestroyWeights) {
		w := p.DestroyWeights[key]
		if w <= 0 {
			continue
		}
		var op operators.DestroyOperator
		switch key {
		case DestroyRandom:
			op = operators.NewRandomRemoval(rng)
		case DestroyWorst:
			op = operators.NewWorstRemoval(blinkRemove)
		case DestroyRelated:
			matrix := operators.BuildRelatednessMatrix(inst, func(i, j model.VertexID) float64 {
				return 1 / (1 + eval.Distance(i, j))
			})
			op, err = operators.NewRelatedRemoval(matrix, blinkRelated,
				selector.Random[operators.RelatedVertexRemovalMove](rng), selector.Random[model.NodeLocation](rng), p.ClusterSize)
		case DestroyCluster:
			var members *operators.DistanceBasedClusterMemberSelector
			members, err = operators.NewDistanceBasedClusterMemberSelector(inst.Customers(), distance, p.MinRadiusFactor, p.MaxRadiusFactor, rng)
			if err == nil {
				op = operators.NewClusterRemoval(customerSeeds(inst, rng), members)
			}
		case DestroyStationVicinity:
			if len(inst.Stations()) == 0 {
				continue
			}
			op, err = operators.NewStationVicinityRemoval(inst, distance, p.MinRadiusFactor, p.MaxRadiusFactor, rng)
		case DestroyRoute:
			op = operators.NewRouteRemoval(rng)
		default:
			return nil, fmt.Errorf("%w: unknown destroy operator %q", ErrInvalidParams, key)
		}
		if err != nil {
			return nil, fmt.Errorf("destroy operator %s: %w", key, err)
		}
		pl.destroy = append(pl.destroy, weighted[operators.DestroyOperator]{key: key, op: op, weight: w})
	}

	for _, key := range sortedKeys(p.RepairWeights) {
		w := p.RepairWeights[key]
		if w <= 0 {
			continue
		}
		var op operators.RepairOperator
		switch key {
		case RepairBest:
			op = operators.NewBestInsertion(inst, selector.First[model.InsertionMove]())
		case RepairBlink:
			op = operators.NewBestInsertion(inst, blinkInsert)
		case RepairGlobal:
			op = operators.NewGlobalBestInsertion(inst, selector.First[model.InsertionMove]())
		case RepairRandom:
			op = operators.NewRandomInsertion(rng)
		default:
			return nil, fmt.Errorf("%w: unknown repair operator %q", ErrInvalidParams, key)
		}
		pl.repair = append(pl.repair, weighted[operators.RepairOperator]{key: key, op: op, weight: w})
	}
	if len(pl.destroy) == 0 || len(pl.repair) == 0 {
		return nil, fmt.Errorf("%w: need at least one destroy and one repair operator", ErrInvalidParams)
	}
	return pl, nil
}

// customerSeeds seeds clusters at a uniformly drawn customer visit that
// has not been selected yet.
func customerSeeds(inst *vrp.Instance, rng *rand.Rand) operators.SeedSelector {
	return operators.SeedSelectorFunc(func(_ model.Evaluation, sol model.Solution, removed []model.NodeLocation) (model.NodeLocation, bool) {
		var candidates []model.NodeLocation
		for _, loc := range sol.NonDepotNodes() {
			if inst.Vertex(model.VertexAtLocation(sol, loc)).IsCustomer() && !slices.Contains(removed, loc) {
				candidates = append(candidates, loc)
			}
		}
		if len(candidates) == 0 {
			return model.NodeLocation{}, false
		}
		return candidates[rng.IntN(len(candidates))], true
	})
}

// pick draws an index by roulette over the weights of the entries
// accepted by ok. It returns -1 when no entry is eligible.
func pick[T operators.Operator](entries []weighted[T], ok func(T) bool, rng operators.Rand) int {
	weights := make([]float64, len(entries))
	sum := 0.0
	for i, e := range entries {
		if ok(e.op) {
			weights[i] = e.weight
			sum += e.weight
		}
	}
	if sum <= 0 {
		return -1
	}
	r := rng.Float64() * sum
	acc := 0.0
	last := -1
	for i, w := range weights {
		if w == 0 {
			continue
		}
		acc += w
		last = i
		if r <= acc {
			return i
		}
	}
	return last
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
