package opt

import (
	"context"
	"errors"
	"math/rand/v2"
	"slices"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lnskit/internal/model"
	"lnskit/internal/operators"
	"lnskit/internal/vrp"
)

type fixedRand float64

func (r fixedRand) Float64() float64 { return float64(r) }
func (r fixedRand) IntN(n int) int   { return int(float64(r) * float64(n)) }

func newRand(seed uint64) *rand.Rand { return rand.New(rand.NewPCG(seed, 0)) }

func lineInstance(t *testing.T, n int) *vrp.Instance {
	t.Helper()
	b := vrp.NewBuilder("line").Depot("depot", 0, 0)
	for i := 1; i <= n; i++ {
		b.Customer("c", 0, 0.01*float64(i), 1, 0)
	}
	inst, err := b.Build()
	require.NoError(t, err)
	return inst
}

func gridInstance(t *testing.T) *vrp.Instance {
	t.Helper()
	b := vrp.NewBuilder("grid").Capacity(6).Vehicles(3).Depot("depot", 0, 0)
	b.Station("s1", 0.02, 0.02).Station("s2", -0.02, 0.01)
	for i := range 16 {
		b.Customer("c", 0.01*float64(i%4)-0.015, 0.01*float64(i/4)-0.015, 1, 60)
	}
	inst, err := b.Build()
	require.NoError(t, err)
	return inst
}

func quickParams(seed int64) Params {
	p := DefaultParams()
	p.Iterations = 150
	p.TimeBudget = 0
	p.Seed = seed
	return p
}

// visitedCustomers flattens the routes and keeps customer ids only.
func visitedCustomers(inst *vrp.Instance, routes [][]model.VertexID) []model.VertexID {
	var out []model.VertexID
	for _, r := range routes {
		for _, v := range r {
			if inst.Vertex(v).IsCustomer() {
				out = append(out, v)
			}
		}
	}
	slices.Sort(out)
	return out
}

func TestImproveRoute2OptUncrossesRoute(t *testing.T) {
	inst := lineInstance(t, 4)
	eval := vrp.NewEvaluation(inst, 0)
	route := eval.NewRoute([]model.VertexID{1, 3, 2, 4})

	got := ImproveRoute2Opt(eval, route, 3)
	assert.Equal(t, []model.VertexID{1, 2, 3, 4}, got)
}

func TestImproveSolution2OptLowersCost(t *testing.T) {
	inst := lineInstance(t, 4)
	eval := vrp.NewEvaluation(inst, 0)
	sol, err := vrp.NewSolution(eval, [][]model.VertexID{{1, 3, 2, 4}, {}})
	require.NoError(t, err)
	before := sol.Cost()

	changed, err := ImproveSolution2Opt(sol, 3)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Less(t, sol.Cost(), before)
	assert.Equal(t, [][]model.VertexID{{1, 2, 3, 4}, {}}, sol.Visits())

	changed, err = ImproveSolution2Opt(sol, 3)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestParamsValidate(t *testing.T) {
	require.NoError(t, DefaultParams().Validate())
	require.NoError(t, Params{}.Validate())

	tests := []struct {
		name   string
		mutate func(*Params)
	}{
		{"negative iterations", func(p *Params) { p.Iterations = -1 }},
		{"inverted fractions", func(p *Params) { p.MinRemovalFraction, p.MaxRemovalFraction = 0.5, 0.2 }},
		{"blink above one", func(p *Params) { p.BlinkProbability = 1.5 }},
		{"inverted radius", func(p *Params) { p.MinRadiusFactor, p.MaxRadiusFactor = 0.3, 0.1 }},
		{"unknown destroy", func(p *Params) { p.DestroyWeights = map[string]float64{"shaw": 1} }},
		{"negative weight", func(p *Params) { p.RepairWeights = map[string]float64{RepairBest: -1} }},
		{"all zero", func(p *Params) { p.RepairWeights = map[string]float64{RepairBest: 0} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.mutate(&p)
			assert.ErrorIs(t, p.Validate(), ErrInvalidParams)
		})
	}
}

func TestRemovalCount(t *testing.T) {
	p := Params{MinRemovalFraction: 0.5, MaxRemovalFraction: 0.5}
	assert.Equal(t, 5, removalCount(p, 10, fixedRand(0.3)))

	p = Params{MinRemovalFraction: 0, MaxRemovalFraction: 0.01}
	assert.Equal(t, 1, removalCount(p, 10, fixedRand(0)))
}

func TestPickSkipsIneligibleOperators(t *testing.T) {
	entries := []weighted[operators.RepairOperator]{
		{key: "a", weight: 5},
		{key: "b", weight: 1},
		{key: "c", weight: 5},
	}
	only := func(key string) func(operators.RepairOperator) bool {
		i := 0
		return func(operators.RepairOperator) bool {
			ok := entries[i].key == key
			i++
			return ok
		}
	}
	assert.Equal(t, 1, pick(entries, only("b"), fixedRand(0.99)))
	assert.Equal(t, -1, pick(entries, only("none"), fixedRand(0.5)))

	all := func(operators.RepairOperator) bool { return true }
	assert.Equal(t, 0, pick(entries, all, fixedRand(0.1)))
	assert.Equal(t, 2, pick(entries, all, fixedRand(0.9)))
}

func TestBuildPoolSkipsStationVicinityWithoutStations(t *testing.T) {
	inst := lineInstance(t, 5)
	eval := vrp.NewEvaluation(inst, 0)
	p := DefaultParams()

	pl, err := buildPool(inst, eval, p, newRand(1))
	require.NoError(t, err)
	var keys []string
	for _, d := range pl.destroy {
		keys = append(keys, d.key)
	}
	assert.NotContains(t, keys, DestroyStationVicinity)
	var repairs []string
	for _, r := range pl.repair {
		repairs = append(repairs, r.key)
	}
	assert.Equal(t, []string{RepairBest, RepairBlink, RepairGlobal, RepairRandom}, repairs)

	p.DestroyWeights = map[string]float64{"shaw": 1}
	_, err = buildPool(inst, eval, p, newRand(1))
	assert.ErrorIs(t, err, ErrInvalidParams)
}

func TestSolveKeepsEveryCustomer(t *testing.T) {
	inst := gridInstance(t)
	var mu sync.Mutex
	var types []string
	s := &Solver{Params: quickParams(7), Log: zerolog.Nop(), OnEvent: func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		types = append(types, e.Type)
	}}

	res, err := s.Solve(context.Background(), inst)
	require.NoError(t, err)
	assert.Equal(t, inst.CustomerIDs(), visitedCustomers(inst, res.Routes))
	assert.LessOrEqual(t, res.Cost, res.Metrics.InitialCost)
	assert.Equal(t, res.Cost, res.Metrics.BestCost)
	assert.Equal(t, 150, res.Metrics.Iterations)
	assert.Equal(t, int64(7), res.Metrics.Seed)
	assert.Len(t, res.Metrics.Snapshots, 1)

	selects := 0
	for _, n := range res.Metrics.DestroySelects {
		selects += n
	}
	assert.Equal(t, 150, selects)
	require.NotEmpty(t, types)
	assert.Equal(t, EventStarted, types[0])
	assert.Equal(t, EventFinished, types[len(types)-1])
}

func TestSolveIsReproducible(t *testing.T) {
	inst := gridInstance(t)
	a, err := (&Solver{Params: quickParams(42), Log: zerolog.Nop()}).Solve(context.Background(), inst)
	require.NoError(t, err)
	b, err := (&Solver{Params: quickParams(42), Log: zerolog.Nop()}).Solve(context.Background(), inst)
	require.NoError(t, err)
	assert.Equal(t, a.Routes, b.Routes)
	assert.InDelta(t, a.Cost, b.Cost, 1e-9)
}

func TestSolveStopsOnCancel(t *testing.T) {
	inst := gridInstance(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := (&Solver{Params: quickParams(1), Log: zerolog.Nop()}).Solve(ctx, inst)
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestSolveRejectsInvalidParams(t *testing.T) {
	p := quickParams(1)
	p.BlinkProbability = 2
	_, err := (&Solver{Params: p, Log: zerolog.Nop()}).Solve(context.Background(), gridInstance(t))
	assert.ErrorIs(t, err, ErrInvalidParams)
}

func TestSolveRestartsReturnsCheapest(t *testing.T) {
	inst := gridInstance(t)
	s := &Solver{Params: quickParams(100), Log: zerolog.Nop()}
	best, err := s.SolveRestarts(context.Background(), inst, 3)
	require.NoError(t, err)
	assert.Equal(t, inst.CustomerIDs(), visitedCustomers(inst, best.Routes))

	for i := range 3 {
		single := &Solver{Params: quickParams(100 + int64(i)), Log: zerolog.Nop()}
		res, err := single.solve(context.Background(), inst, single.Params.withDefaults(), i)
		require.NoError(t, err)
		assert.LessOrEqual(t, best.Cost, res.Cost+1e-9)
	}

	_, err = s.SolveRestarts(context.Background(), inst, 0)
	assert.ErrorIs(t, err, ErrInvalidParams)
}
