package operators

import (
	"cmp"
	"fmt"
	"slices"

	"gonum.org/v1/gonum/mat"

	"lnskit/internal/model"
	"lnskit/internal/selector"
)

// RelatedVertexRemovalMove is a removal candidate annotated with its
// relatedness to the current seed.
type RelatedVertexRemovalMove struct {
	VertexID    model.VertexID
	Relatedness float64
	Location    model.NodeLocation
}

// RelatedMoveKey identifies the physical slot a move names. The same vertex
// may occupy several slots.
type RelatedMoveKey struct {
	VertexID model.VertexID
	Route    int
	Position int
}

func (m RelatedVertexRemovalMove) Key() RelatedMoveKey {
	return RelatedMoveKey{VertexID: m.VertexID, Route: m.Location.Route, Position: m.Location.Position}
}

// BuildRelatednessMatrix evaluates relatedness for every ordered pair of
// distinct vertices. The diagonal stays zero.
func BuildRelatednessMatrix(inst model.Instance, relatedness func(i, j model.VertexID) float64) *mat.Dense {
	n := inst.NumberOfVertices()
	if n == 0 {
		return &mat.Dense{}
	}
	m := mat.NewDense(n, n, nil)
	for i := range n {
		for j := range n {
			if i != j {
				m.Set(i, j, relatedness(model.VertexID(i), model.VertexID(j)))
			}
		}
	}
	return m
}

// RelatedRemoval removes a seed and then, cluster by cluster, the vertices
// most related to seeds drawn from what has been removed so far.
type RelatedRemoval struct {
	matrix      mat.Matrix
	moves       selector.Selector[RelatedVertexRemovalMove]
	seeds       selector.Selector[RelatedVertexRemovalMove]
	initialSeed selector.Selector[model.NodeLocation]
	clusterSize int
}

// NewRelatedRemoval wires the selectors: initialSeed picks the first
// location from all non-depot nodes, seeds picks a seed among the removed
// moves, and moves picks from candidates sorted by decreasing relatedness.
func NewRelatedRemoval(matrix mat.Matrix, moves, seeds selector.Selector[RelatedVertexRemovalMove],
	initialSeed selector.Selector[model.NodeLocation], clusterSize int) (*RelatedRemoval, error) {
	if clusterSize < 1 {
		return nil, fmt.Errorf("%w: cluster size must be positive, got %d", ErrInvalidParameter, clusterSize)
	}
	return &RelatedRemoval{
		matrix:      matrix,
		moves:       moves,
		seeds:       seeds,
		initialSeed: initialSeed,
		clusterSize: clusterSize,
	}, nil
}

func (o *RelatedRemoval) Name() string { return "RelatedRemoval" }

func (o *RelatedRemoval) CanApplyTo(sol model.Solution) bool { return sol.Len() > 0 }

func (o *RelatedRemoval) Apply(_ model.Evaluation, sol model.Solution, count int) ([]model.VertexID, error) {
	if count <= 0 {
		return nil, nil
	}
	locs := sol.NonDepotNodes()
	if len(locs) == 0 {
		return nil, nil
	}
	nodes := make([]RelatedVertexRemovalMove, len(locs))
	for i, loc := range locs {
		nodes[i] = RelatedVertexRemovalMove{VertexID: model.VertexAtLocation(sol, loc), Location: loc}
	}

	first, err := o.initialSeed.Select(selector.List[model.NodeLocation](locs))
	if err != nil {
		return nil, fmt.Errorf("related removal: initial seed: %w", err)
	}
	removed := []RelatedVertexRemovalMove{{VertexID: model.VertexAtLocation(sol, first), Relatedness: 1, Location: first}}
	taken := map[RelatedMoveKey]struct{}{removed[0].Key(): {}}

	for len(removed) < count {
		k := min(count-len(removed), o.clusterSize)
		seed, err := o.seeds.Select(selector.List[RelatedVertexRemovalMove](removed))
		if err != nil {
			return nil, fmt.Errorf("related removal: seed: %w", err)
		}
		candidates := o.candidates(seed.VertexID, nodes, taken)
		if len(candidates) == 0 {
			break
		}
		for ; k > 0 && len(candidates) > 0; k-- {
			pick, err := o.moves.Select(selector.List[RelatedVertexRemovalMove](candidates))
			if err != nil {
				return nil, fmt.Errorf("related removal: member: %w", err)
			}
			idx := slices.IndexFunc(candidates, func(c RelatedVertexRemovalMove) bool { return c.Key() == pick.Key() })
			if idx < 0 {
				return nil, fmt.Errorf("related removal: selector returned unknown candidate %v", pick.Location)
			}
			candidates = slices.Delete(candidates, idx, idx+1)
			removed = append(removed, pick)
			taken[pick.Key()] = struct{}{}
		}
	}

	at := make([]model.NodeLocation, len(removed))
	ids := make([]model.VertexID, len(removed))
	for i, m := range removed {
		at[i] = m.Location
		ids[i] = m.VertexID
	}
	if err := sol.RemoveVertices(at); err != nil {
		return nil, err
	}
	return ids, nil
}

// candidates lists the nodes not yet taken, most related to seed first.
func (o *RelatedRemoval) candidates(seed model.VertexID, nodes []RelatedVertexRemovalMove, taken map[RelatedMoveKey]struct{}) []RelatedVertexRemovalMove {
	out := make([]RelatedVertexRemovalMove, 0, len(nodes))
	for _, n := range nodes {
		if _, ok := taken[n.Key()]; ok {
			continue
		}
		n.Relatedness = o.matrix.At(int(seed), int(n.VertexID))
		out = append(out, n)
	}
	slices.SortStableFunc(out, func(a, b RelatedVertexRemovalMove) int {
		return cmp.Compare(b.Relatedness, a.Relatedness)
	})
	return out
}
