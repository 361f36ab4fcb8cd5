// Package operators implements destroy and repair operators for large
// neighbourhood search on top of the move caches and selectors.
//
// Destroy operators remove up to count vertices and report their ids in the
// order they were chosen; they may remove fewer when they run out of
// candidates. Repair operators put a batch of vertices back. Every operator
// owns its caches, so an operator value must not be shared between
// goroutines.
package operators

import (
	"errors"

	"lnskit/internal/model"
	"lnskit/internal/selector"
)

var (
	// ErrNoRoutes is returned by repair operators asked to insert into a
	// solution that has no route.
	ErrNoRoutes = errors.New("operators: solution has no routes")
	// ErrInvalidParameter is returned by constructors given unusable settings.
	ErrInvalidParameter = errors.New("operators: invalid parameter")
)

type Operator interface {
	Name() string
	CanApplyTo(sol model.Solution) bool
}

type DestroyOperator interface {
	Operator
	Apply(eval model.Evaluation, sol model.Solution, count int) ([]model.VertexID, error)
}

type RepairOperator interface {
	Operator
	Apply(eval model.Evaluation, sol model.Solution, vertices []model.VertexID) error
}

// Rand is the randomness operators draw from.
type Rand = selector.Rand

// removeBatch resolves locs to vertex ids and removes them in one call.
func removeBatch(sol model.Solution, locs []model.NodeLocation) ([]model.VertexID, error) {
	if len(locs) == 0 {
		return nil, nil
	}
	ids := make([]model.VertexID, len(locs))
	for i, loc := range locs {
		ids[i] = model.VertexAtLocation(sol, loc)
	}
	if err := sol.RemoveVertices(locs); err != nil {
		return nil, err
	}
	return ids, nil
}
