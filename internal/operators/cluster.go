package operators

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"

	"lnskit/internal/model"
)

// SeedSelector picks the next seed location not in removed. The boolean is
// false once no eligible seed is left; that ends the batch without error.
type SeedSelector interface {
	SelectSeed(eval model.Evaluation, sol model.Solution, removed []model.NodeLocation) (model.NodeLocation, bool)
}

// ClusterMemberSelector returns the neighbourhood of seed. The seed itself
// is only removed if it is returned as a member.
type ClusterMemberSelector interface {
	SelectMembers(eval model.Evaluation, sol model.Solution, seed model.NodeLocation) []model.NodeLocation
}

type SeedSelectorFunc func(eval model.Evaluation, sol model.Solution, removed []model.NodeLocation) (model.NodeLocation, bool)

func (f SeedSelectorFunc) SelectSeed(eval model.Evaluation, sol model.Solution, removed []model.NodeLocation) (model.NodeLocation, bool) {
	return f(eval, sol, removed)
}

type ClusterMemberSelectorFunc func(eval model.Evaluation, sol model.Solution, seed model.NodeLocation) []model.NodeLocation

func (f ClusterMemberSelectorFunc) SelectMembers(eval model.Evaluation, sol model.Solution, seed model.NodeLocation) []model.NodeLocation {
	return f(eval, sol, seed)
}

// ClusterRemoval alternates seed selection and cluster expansion until
// enough locations are collected, then removes them in one batch.
type ClusterRemoval struct {
	seeds   SeedSelector
	members ClusterMemberSelector
}

func NewClusterRemoval(seeds SeedSelector, members ClusterMemberSelector) *ClusterRemoval {
	return &ClusterRemoval{seeds: seeds, members: members}
}

func (o *ClusterRemoval) Name() string { return "ClusterRemoval" }

func (o *ClusterRemoval) CanApplyTo(sol model.Solution) bool { return sol.Len() > 0 }

// Apply collects locations rather than vertex ids, since a vertex such as
// a station may be visited more than once. The batch ends early once as
// many consecutive seeds as the solution has nodes added no new location.
func (o *ClusterRemoval) Apply(eval model.Evaluation, sol model.Solution, count int) ([]model.VertexID, error) {
	var removed []model.NodeLocation
	selected := make(map[model.NodeLocation]struct{})
	patience := max(len(sol.NonDepotNodes()), 1)
	stale := 0
	for sol.Len() > 0 && len(removed) < count {
		seed, ok := o.seeds.SelectSeed(eval, sol, removed)
		if !ok {
			break
		}
		added := 0
		for _, loc := range o.members.SelectMembers(eval, sol, seed) {
			if _, dup := selected[loc]; dup {
				continue
			}
			selected[loc] = struct{}{}
			removed = append(removed, loc)
			added++
			if len(removed) == count {
				break
			}
		}
		if added > 0 {
			stale = 0
			continue
		}
		stale++
		if stale >= patience {
			break
		}
	}
	return removeBatch(sol, removed)
}

// DistanceBasedClusterMemberSelector clusters the vertices closer to the
// seed than a radius drawn between minFactor and maxFactor times the
// largest pairwise distance.
type DistanceBasedClusterMemberSelector struct {
	neighbours  [][]model.VertexID // per vertex id, nearest first
	distances   [][]float64        // parallel to neighbours, ascending
	maxDistance float64
	minFactor   float64
	maxFactor   float64
	rng         Rand
}

// NewDistanceBasedClusterMemberSelector precomputes, for every vertex, all
// of vertices sorted by distance. rng may be nil when both factors are equal;
// with differing factors a nil rng is rejected rather than falling back to
// the maximum distance as radius.
func NewDistanceBasedClusterMemberSelector(vertices []model.Vertex, distance func(a, b model.Vertex) float64,
	minFactor, maxFactor float64, rng Rand) (*DistanceBasedClusterMemberSelector, error) {
	if minFactor < 0 || maxFactor < minFactor {
		return nil, fmt.Errorf("%w: radius factors must satisfy 0 <= min <= max, got [%v, %v]", ErrInvalidParameter, minFactor, maxFactor)
	}
	if rng == nil && minFactor != maxFactor {
		return nil, fmt.Errorf("%w: a random radius needs a random source", ErrInvalidParameter)
	}
	s := &DistanceBasedClusterMemberSelector{minFactor: minFactor, maxFactor: maxFactor, rng: rng}
	size := 0
	for _, v := range vertices {
		size = max(size, int(v.ID)+1)
	}
	s.neighbours = make([][]model.VertexID, size)
	s.distances = make([][]float64, size)
	for _, a := range vertices {
		dists := make([]float64, len(vertices))
		for j, b := range vertices {
			dists[j] = distance(a, b)
		}
		if len(dists) > 0 {
			s.maxDistance = max(s.maxDistance, floats.Max(dists))
		}
		order := make([]int, len(dists))
		floats.Argsort(dists, order)
		ids := make([]model.VertexID, len(order))
		for k, j := range order {
			ids[k] = vertices[j].ID
		}
		s.neighbours[a.ID] = ids
		s.distances[a.ID] = dists
	}
	return s, nil
}

func (s *DistanceBasedClusterMemberSelector) radius() float64 {
	if s.minFactor == s.maxFactor {
		return s.minFactor * s.maxDistance
	}
	return (s.minFactor + s.rng.Float64()*(s.maxFactor-s.minFactor)) * s.maxDistance
}

// Members lists the vertices strictly within r of v, nearest first.
func (s *DistanceBasedClusterMemberSelector) Members(v model.VertexID, r float64) []model.VertexID {
	if v < 0 || int(v) >= len(s.neighbours) {
		return nil
	}
	cut := sort.SearchFloat64s(s.distances[v], r)
	return s.neighbours[v][:cut]
}

// SelectMembers returns every location of every vertex within a freshly
// drawn radius of the seed's vertex.
func (s *DistanceBasedClusterMemberSelector) SelectMembers(_ model.Evaluation, sol model.Solution, seed model.NodeLocation) []model.NodeLocation {
	var locs []model.NodeLocation
	for _, v := range s.Members(model.VertexAtLocation(sol, seed), s.radius()) {
		locs = append(locs, sol.Find(v)...)
	}
	return locs
}

// StationSeedSelector seeds at a uniformly drawn visit to a station.
type StationSeedSelector struct {
	stations []model.VertexID
	rng      Rand
}

func NewStationSeedSelector(stations []model.VertexID, rng Rand) *StationSeedSelector {
	return &StationSeedSelector{stations: stations, rng: rng}
}

func (s *StationSeedSelector) SelectSeed(_ model.Evaluation, sol model.Solution, removed []model.NodeLocation) (model.NodeLocation, bool) {
	skip := make(map[model.NodeLocation]struct{}, len(removed))
	for _, loc := range removed {
		skip[loc] = struct{}{}
	}
	var candidates []model.NodeLocation
	for _, st := range s.stations {
		for _, loc := range sol.Find(st) {
			if _, ok := skip[loc]; !ok {
				candidates = append(candidates, loc)
			}
		}
	}
	if len(candidates) == 0 {
		return model.NodeLocation{}, false
	}
	return candidates[s.rng.IntN(len(candidates))], true
}

// StationVicinityRemoval removes stations together with the stations and
// customers around them.
type StationVicinityRemoval struct {
	inst    model.Instance
	cluster *ClusterRemoval
}

func NewStationVicinityRemoval(inst model.Instance, distance func(a, b model.Vertex) float64,
	minFactor, maxFactor float64, rng Rand) (*StationVicinityRemoval, error) {
	if rng == nil {
		return nil, fmt.Errorf("%w: station seeding needs a random source", ErrInvalidParameter)
	}
	var stations []model.VertexID
	var candidates []model.Vertex
	for id := range inst.NumberOfVertices() {
		v := inst.Vertex(model.VertexID(id))
		switch {
		case v.IsStation():
			stations = append(stations, v.ID)
			candidates = append(candidates, v)
		case v.IsCustomer():
			candidates = append(candidates, v)
		}
	}
	members, err := NewDistanceBasedClusterMemberSelector(candidates, distance, minFactor, maxFactor, rng)
	if err != nil {
		return nil, err
	}
	cluster := NewClusterRemoval(NewStationSeedSelector(stations, rng), members)
	return &StationVicinityRemoval{inst: inst, cluster: cluster}, nil
}

func (o *StationVicinityRemoval) Name() string { return "StationVicinityRemoval" }

// CanApplyTo reports whether any station is visited.
func (o *StationVicinityRemoval) CanApplyTo(sol model.Solution) bool {
	for _, loc := range sol.NonDepotNodes() {
		if o.inst.Vertex(model.VertexAtLocation(sol, loc)).IsStation() {
			return true
		}
	}
	return false
}

func (o *StationVicinityRemoval) Apply(eval model.Evaluation, sol model.Solution, count int) ([]model.VertexID, error) {
	return o.cluster.Apply(eval, sol, count)
}
