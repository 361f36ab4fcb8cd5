package opt

import (
	"slices"

	"lnskit/internal/model"
	"lnskit/internal/vrp"
)

// minGain keeps floating point noise from cycling the improvement loop.
const minGain = 1e-6

// ImproveRoute2Opt applies first-improvement 2-opt to one route's visit
// order. Reversing a segment leaves the load unchanged, so only the two
// replaced edges are compared. It returns the improved interior.
func ImproveRoute2Opt(eval *vrp.Evaluation, route *vrp.Route, maxPasses int) []model.VertexID {
	if maxPasses <= 0 {
		maxPasses = 1
	}
	n := route.Len()
	tour := make([]model.VertexID, n)
	for i := range n {
		tour[i] = route.VertexAt(i)
	}
	for pass := 0; pass < maxPasses; pass++ {
		improved := false
		for i := 1; i < n-2; i++ {
			for k := i + 1; k < n-1; k++ {
				a, b := tour[i-1], tour[i]
				c, d := tour[k], tour[k+1]
				gain := eval.Distance(a, b) + eval.Distance(c, d) - eval.Distance(a, c) - eval.Distance(b, d)
				if gain > minGain {
					slices.Reverse(tour[i : k+1])
					improved = true
				}
			}
		}
		if !improved {
			break
		}
	}
	return tour[1 : n-1]
}

// ImproveSolution2Opt runs ImproveRoute2Opt over every route and reports
// whether any route changed.
func ImproveSolution2Opt(sol *vrp.Solution, maxPasses int) (bool, error) {
	changed := false
	for i, r := range sol.Routes() {
		if r.Len() < 5 {
			continue
		}
		before := r.Distance()
		visits := ImproveRoute2Opt(sol.Evaluation(), r, maxPasses)
		if err := sol.SetRouteVisits(i, visits); err != nil {
			return changed, err
		}
		if sol.Route(i).Distance() < before-minGain {
			changed = true
		}
	}
	return changed, nil
}
