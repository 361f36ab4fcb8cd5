package vrp

import (
	"fmt"
	"slices"

	"lnskit/internal/model"
)

// Solution is an indexed set of routes sharing one evaluation.
type Solution struct {
	eval   *Evaluation
	routes []*Route
}

// NewSolution builds one route per entry of visits. Empty entries become
// empty (depot-depot) routes.
func NewSolution(eval *Evaluation, visits [][]model.VertexID) (*Solution, error) {
	n := model.VertexID(eval.inst.NumberOfVertices())
	s := &Solution{eval: eval}
	for _, vs := range visits {
		for _, v := range vs {
			if v < 0 || v >= n {
				return nil, fmt.Errorf("%w: %d", ErrUnknownVertex, v)
			}
		}
		s.routes = append(s.routes, eval.NewRoute(vs))
	}
	return s, nil
}

func (s *Solution) Len() int { return len(s.routes) }

// RouteAt implements model.Solution.
func (s *Solution) RouteAt(index int) model.Route { return s.routes[index] }

func (s *Solution) Route(index int) *Route { return s.routes[index] }

func (s *Solution) Routes() []*Route { return s.routes }

func (s *Solution) Evaluation() *Evaluation { return s.eval }

// Cost is the sum of route costs.
func (s *Solution) Cost() float64 {
	var c float64
	for _, r := range s.routes {
		c += r.cost
	}
	return c
}

// Visits returns the non-depot part of every route.
func (s *Solution) Visits() [][]model.VertexID {
	out := make([][]model.VertexID, len(s.routes))
	for i, r := range s.routes {
		out[i] = r.Visits()
	}
	return out
}

// Find returns every location holding v, in route-then-position order.
func (s *Solution) Find(v model.VertexID) []model.NodeLocation {
	var locs []model.NodeLocation
	for ri, r := range s.routes {
		for pos := 1; pos < len(r.vertices)-1; pos++ {
			if r.vertices[pos] == v {
				locs = append(locs, model.NodeLocation{Route: ri, Position: pos})
			}
		}
	}
	return locs
}

// NonDepotNodes lists every interior location, in route-then-position order.
func (s *Solution) NonDepotNodes() []model.NodeLocation {
	var locs []model.NodeLocation
	for ri, r := range s.routes {
		for pos := 1; pos < len(r.vertices)-1; pos++ {
			locs = append(locs, model.NodeLocation{Route: ri, Position: pos})
		}
	}
	return locs
}

// InsertVertexAfter places v right after the node at after. The end depot
// has no successor, so it is not a valid predecessor.
func (s *Solution) InsertVertexAfter(after model.NodeLocation, v model.VertexID) error {
	if v < 0 || int(v) >= s.eval.inst.NumberOfVertices() {
		return fmt.Errorf("%w: %d", ErrUnknownVertex, v)
	}
	if after.Route < 0 || after.Route >= len(s.routes) {
		return fmt.Errorf("%w: insert after %v", ErrInvalidLocation, after)
	}
	r := s.routes[after.Route]
	if after.Position < 0 || after.Position >= len(r.vertices)-1 {
		return fmt.Errorf("%w: insert after %v", ErrInvalidLocation, after)
	}
	r.insertAfter(after.Position, v)
	return nil
}

func (s *Solution) RemoveVertex(at model.NodeLocation) error {
	return s.RemoveVertices([]model.NodeLocation{at})
}

// RemoveVertices removes a batch of interior nodes. Locations refer to the
// solution before any of them is removed.
func (s *Solution) RemoveVertices(at []model.NodeLocation) error {
	byRoute := make(map[int][]int)
	seen := make(map[model.NodeLocation]struct{}, len(at))
	for _, loc := range at {
		if err := s.checkInterior(loc); err != nil {
			return err
		}
		if _, dup := seen[loc]; dup {
			return fmt.Errorf("%w: %v", ErrDuplicateLocation, loc)
		}
		seen[loc] = struct{}{}
		byRoute[loc.Route] = append(byRoute[loc.Route], loc.Position)
	}
	for ri, positions := range byRoute {
		slices.Sort(positions)
		slices.Reverse(positions)
		s.routes[ri].removePositions(positions)
	}
	return nil
}

// RemoveRoute drops a whole route; later routes shift down by one index.
func (s *Solution) RemoveRoute(index int) error {
	if index < 0 || index >= len(s.routes) {
		return fmt.Errorf("%w: route %d", ErrInvalidLocation, index)
	}
	s.routes = slices.Delete(s.routes, index, index+1)
	return nil
}

// AddRoute appends an empty route and returns its index.
func (s *Solution) AddRoute() int {
	s.routes = append(s.routes, s.eval.NewRoute(nil))
	return len(s.routes) - 1
}

// SetRouteVisits replaces the interior of route index.
func (s *Solution) SetRouteVisits(index int, visits []model.VertexID) error {
	if index < 0 || index >= len(s.routes) {
		return fmt.Errorf("%w: route %d", ErrInvalidLocation, index)
	}
	s.routes[index].setVisits(visits)
	return nil
}

func (s *Solution) Clone() *Solution {
	c := &Solution{eval: s.eval, routes: make([]*Route, len(s.routes))}
	for i, r := range s.routes {
		c.routes[i] = r.clone()
	}
	return c
}

func (s *Solution) checkInterior(loc model.NodeLocation) error {
	if loc.Route < 0 || loc.Route >= len(s.routes) {
		return fmt.Errorf("%w: %v", ErrInvalidLocation, loc)
	}
	if loc.Position < 1 || loc.Position > len(s.routes[loc.Route].vertices)-2 {
		return fmt.Errorf("%w: %v is not an interior node", ErrInvalidLocation, loc)
	}
	return nil
}
