package vrp

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lnskit/internal/model"
)

// lineInstance places a depot at the origin and n customers east of it,
// 0.01 degrees apart, each with unit demand.
func lineInstance(t *testing.T, n int, capacity float64) *Instance {
	t.Helper()
	b := NewBuilder("line").Capacity(capacity).Depot("depot", 0, 0)
	for i := 1; i <= n; i++ {
		b.Customer("c", 0, 0.01*float64(i), 1, 0)
	}
	inst, err := b.Build()
	require.NoError(t, err)
	return inst
}

// opaqueRoute hides the concrete type so the evaluation takes its generic path.
type opaqueRoute struct{ r *Route }

func (o opaqueRoute) Len() int                      { return o.r.Len() }
func (o opaqueRoute) VertexAt(p int) model.VertexID { return o.r.VertexAt(p) }
func (o opaqueRoute) Cost() float64                 { return o.r.Cost() }

func TestBuilderAssignsDenseIDs(t *testing.T) {
	inst, err := NewBuilder("ids").
		Depot("d", 1, 1).
		Customer("a", 1, 2, 1, 60).
		Station("s", 2, 2).
		Customer("b", 2, 1, 2, 0).
		Build()
	require.NoError(t, err)

	assert.Equal(t, 4, inst.NumberOfVertices())
	assert.True(t, inst.Vertex(0).IsDepot())
	assert.True(t, inst.Vertex(1).IsStation())
	assert.Equal(t, []model.VertexID{2, 3}, inst.CustomerIDs())
	assert.Equal(t, "a", inst.Vertex(2).Name)
	assert.Equal(t, 60, inst.Vertex(2).ServiceSec)
	for i, v := range inst.Vertices() {
		assert.Equal(t, model.VertexID(i), v.ID)
	}
}

func TestBuilderRejectsInvalid(t *testing.T) {
	_, err := NewBuilder("x").Customer("a", 0, 0, 1, 0).Build()
	require.ErrorIs(t, err, ErrInvalidInstance)

	_, err = NewBuilder("x").Depot("d", 0, 0).Customer("a", 0, 0, -1, 0).Build()
	require.ErrorIs(t, err, ErrInvalidInstance)

	_, err = NewBuilder("x").Depot("d", 0, 0).Vehicles(0).Build()
	require.ErrorIs(t, err, ErrInvalidInstance)
}

func TestRouteCostAndPrefixSums(t *testing.T) {
	inst := lineInstance(t, 3, 0)
	eval := NewEvaluation(inst, 0)
	r := eval.NewRoute([]model.VertexID{1, 2, 3})

	assert.Equal(t, 5, r.Len())
	want := 2 * eval.Distance(0, 3)
	assert.InDelta(t, want, r.Cost(), 1e-6)
	assert.InDelta(t, 3.0, r.Load(), 1e-9)
	assert.Equal(t, []model.VertexID{1, 2, 3}, r.Visits())

	empty := eval.NewRoute(nil)
	assert.True(t, empty.Empty())
	assert.Zero(t, empty.Cost())
}

func TestOverloadPenalty(t *testing.T) {
	inst := lineInstance(t, 3, 2)
	eval := NewEvaluation(inst, 1000)
	r := eval.NewRoute([]model.VertexID{1, 2, 3})
	assert.InDelta(t, r.Distance()+1000, r.Cost(), 1e-6)
}

func TestEvaluateInsertionMatchesApplied(t *testing.T) {
	inst := lineInstance(t, 4, 2)
	eval := NewEvaluation(inst, 50)
	sol, err := NewSolution(eval, [][]model.VertexID{{1, 3}, {}})
	require.NoError(t, err)

	for pos := 0; pos < 3; pos++ {
		clone := sol.Clone()
		predicted := eval.EvaluateInsertion(clone.RouteAt(0), pos, 4)
		generic := eval.EvaluateInsertion(opaqueRoute{clone.Route(0)}, pos, 4)
		require.NoError(t, clone.InsertVertexAfter(model.NodeLocation{Route: 0, Position: pos}, 4))
		assert.InDelta(t, clone.RouteAt(0).Cost(), predicted, 1e-6, "pos %d", pos)
		assert.InDelta(t, predicted, generic, 1e-6, "pos %d", pos)
	}
}

func TestEvaluateSpliceMatchesApplied(t *testing.T) {
	inst := lineInstance(t, 5, 3)
	eval := NewEvaluation(inst, 50)
	sol, err := NewSolution(eval, [][]model.VertexID{{5, 1, 4, 2, 3}})
	require.NoError(t, err)
	r := sol.Route(0)

	for pos := 1; pos <= 5; pos++ {
		fast := eval.EvaluateSplice(r, pos-1, pos+1)
		generic := eval.EvaluateSplice(opaqueRoute{r}, pos-1, pos+1)
		assert.InDelta(t, fast, generic, 1e-6)

		clone := sol.Clone()
		require.NoError(t, clone.RemoveVertex(model.NodeLocation{Route: 0, Position: pos}))
		assert.InDelta(t, clone.RouteAt(0).Cost(), fast, 1e-6, "pos %d", pos)
	}

	// Dropping a longer segment joins its endpoints directly.
	fast := eval.EvaluateSplice(r, 1, 5)
	assert.InDelta(t, eval.EvaluateSplice(opaqueRoute{r}, 1, 5), fast, 1e-6)
}

func TestSolutionFindAndNonDepotNodes(t *testing.T) {
	b := NewBuilder("dup").Depot("d", 0, 0).Station("s", 0, 1)
	b.Customer("a", 1, 0, 1, 0).Customer("b", 1, 1, 1, 0)
	inst, err := b.Build()
	require.NoError(t, err)
	sol, err := NewSolution(NewEvaluation(inst, 0), [][]model.VertexID{{2, 1}, {}, {3, 1}})
	require.NoError(t, err)

	assert.Equal(t, []model.NodeLocation{{Route: 0, Position: 2}, {Route: 2, Position: 2}}, sol.Find(1))
	assert.Empty(t, sol.Find(0))
	assert.Equal(t, []model.NodeLocation{
		{Route: 0, Position: 1}, {Route: 0, Position: 2},
		{Route: 2, Position: 1}, {Route: 2, Position: 2},
	}, sol.NonDepotNodes())
	assert.Equal(t, model.VertexID(3), model.VertexAtLocation(sol, model.NodeLocation{Route: 2, Position: 1}))
}

func TestVisitsEncodesEmptyRouteAsArray(t *testing.T) {
	inst := lineInstance(t, 2, 0)
	sol, err := NewSolution(NewEvaluation(inst, 0), [][]model.VertexID{{1}, {}})
	require.NoError(t, err)

	assert.Equal(t, []model.VertexID{}, sol.Visits()[1])
	data, err := json.Marshal(sol.Visits())
	require.NoError(t, err)
	assert.JSONEq(t, `[[1],[]]`, string(data))
}

func TestRemoveVerticesBatch(t *testing.T) {
	inst := lineInstance(t, 5, 0)
	sol, err := NewSolution(NewEvaluation(inst, 0), [][]model.VertexID{{1, 2, 3}, {4, 5}})
	require.NoError(t, err)

	require.NoError(t, sol.RemoveVertices([]model.NodeLocation{
		{Route: 0, Position: 1}, {Route: 1, Position: 2}, {Route: 0, Position: 3},
	}))
	assert.Equal(t, [][]model.VertexID{{2}, {4}}, sol.Visits())

	err = sol.RemoveVertices([]model.NodeLocation{{Route: 0, Position: 1}, {Route: 0, Position: 1}})
	require.ErrorIs(t, err, ErrDuplicateLocation)
	assert.Equal(t, [][]model.VertexID{{2}, {4}}, sol.Visits(), "failed batch must not edit")

	require.ErrorIs(t, sol.RemoveVertex(model.NodeLocation{Route: 0, Position: 0}), ErrInvalidLocation)
	require.ErrorIs(t, sol.RemoveVertex(model.NodeLocation{Route: 0, Position: 2}), ErrInvalidLocation)
	require.ErrorIs(t, sol.RemoveVertex(model.NodeLocation{Route: 7, Position: 1}), ErrInvalidLocation)
}

func TestInsertVertexAfterBounds(t *testing.T) {
	inst := lineInstance(t, 2, 0)
	sol, err := NewSolution(NewEvaluation(inst, 0), [][]model.VertexID{{}})
	require.NoError(t, err)

	require.ErrorIs(t, sol.InsertVertexAfter(model.NodeLocation{Route: 0, Position: 1}, 1), ErrInvalidLocation)
	require.ErrorIs(t, sol.InsertVertexAfter(model.NodeLocation{Route: 0, Position: 0}, 9), ErrUnknownVertex)
	require.NoError(t, sol.InsertVertexAfter(model.NodeLocation{Route: 0, Position: 0}, 2))
	require.NoError(t, sol.InsertVertexAfter(model.NodeLocation{Route: 0, Position: 0}, 1))
	assert.Equal(t, [][]model.VertexID{{1, 2}}, sol.Visits())
}

func TestRemoveAndAddRoute(t *testing.T) {
	inst := lineInstance(t, 3, 0)
	sol, err := NewSolution(NewEvaluation(inst, 0), [][]model.VertexID{{1}, {2}, {3}})
	require.NoError(t, err)

	require.NoError(t, sol.RemoveRoute(1))
	assert.Equal(t, [][]model.VertexID{{1}, {3}}, sol.Visits())
	require.ErrorIs(t, sol.RemoveRoute(2), ErrInvalidLocation)

	idx := sol.AddRoute()
	assert.Equal(t, 2, idx)
	assert.True(t, sol.Route(idx).Empty())
}

func TestCloneIsIndependent(t *testing.T) {
	inst := lineInstance(t, 3, 0)
	sol, err := NewSolution(NewEvaluation(inst, 0), [][]model.VertexID{{1, 2, 3}})
	require.NoError(t, err)
	clone := sol.Clone()
	require.NoError(t, clone.RemoveVertex(model.NodeLocation{Route: 0, Position: 2}))

	assert.Equal(t, [][]model.VertexID{{1, 2, 3}}, sol.Visits())
	assert.Greater(t, sol.Cost(), 0.0)
}

func TestNewSolutionRejectsUnknownVertex(t *testing.T) {
	inst := lineInstance(t, 1, 0)
	_, err := NewSolution(NewEvaluation(inst, 0), [][]model.VertexID{{5}})
	require.ErrorIs(t, err, ErrUnknownVertex)
}

func TestParseInstanceYAML(t *testing.T) {
	data := []byte(`
name: demo
capacity: 10
vehicles: 2
depot: {name: hub, lat: 40.0, lng: -75.0}
stations:
  - {name: s1, lat: 40.01, lng: -75.01}
customers:
  - {name: a, lat: 40.02, lng: -75.0, demand: 3, serviceSec: 120}
  - {name: b, lat: 40.0, lng: -75.02, demand: 4}
`)
	inst, err := ParseInstance(data)
	require.NoError(t, err)
	assert.Equal(t, "demo", inst.Name)
	assert.Equal(t, 2, inst.Vehicles)
	assert.Len(t, inst.Stations(), 1)
	assert.Len(t, inst.Customers(), 2)
	assert.Equal(t, 120, inst.Customers()[0].ServiceSec)
	assert.Equal(t, "hub", inst.Depot().Name)
}

func TestLoadInstanceJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inst.json")
	body := `{"name":"j","capacity":5,"depot":{"name":"d","lat":0,"lng":0},
		"customers":[{"name":"a","lat":0,"lng":0.1,"demand":1}]}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	inst, err := LoadInstance(path)
	require.NoError(t, err)
	assert.Equal(t, 1, inst.Vehicles)
	assert.Equal(t, 2, inst.NumberOfVertices())

	_, err = LoadInstance(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`{"name":"empty","depot":{}}`), 0o600))
	_, err = LoadInstance(path)
	require.ErrorIs(t, err, ErrInvalidInstance)
}
