package opt

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"lnskit/internal/metrics"
	"lnskit/internal/model"
	"lnskit/internal/operators"
	"lnskit/internal/selector"
	"lnskit/internal/vrp"
)

// Event types emitted while searching.
const (
	EventStarted     = "started"
	EventImproved    = "improved"
	EventSnapshot    = "snapshot"
	EventFinished    = "finished"
	EventOperatorErr = "operator_error"
)

// Event is a progress notification from a running search.
type Event struct {
	Type        string  `json:"type"`
	Restart     int     `json:"restart"`
	Iteration   int     `json:"iteration"`
	Cost        float64 `json:"cost"`
	BestCost    float64 `json:"bestCost"`
	Temperature float64 `json:"temperature"`
	Destroy     string  `json:"destroy,omitempty"`
	Repair      string  `json:"repair,omitempty"`
	Error       string  `json:"error,omitempty"`
}

// WeightSnapshot records adaptive operator weights at one iteration.
type WeightSnapshot struct {
	Iteration int                `json:"iteration"`
	Destroy   map[string]float64 `json:"destroy"`
	Repair    map[string]float64 `json:"repair"`
}

type Metrics struct {
	Seed           int64              `json:"seed"`
	Iterations     int                `json:"iterations"`
	Improvements   int                `json:"improvements"`
	AcceptedWorse  int                `json:"acceptedWorse"`
	Rejected       int                `json:"rejected"`
	OperatorErrors int                `json:"operatorErrors"`
	InitialCost    float64            `json:"initialCost"`
	BestCost       float64            `json:"bestCost"`
	FinalCost      float64            `json:"finalCost"`
	DestroySelects map[string]int     `json:"destroySelects"`
	RepairSelects  map[string]int     `json:"repairSelects"`
	FinalDestroy   map[string]float64 `json:"finalDestroyWeights"`
	FinalRepair    map[string]float64 `json:"finalRepairWeights"`
	Snapshots      []WeightSnapshot   `json:"snapshots,omitempty"`
	Elapsed        time.Duration      `json:"elapsed"`
}

type Result struct {
	Routes  [][]model.VertexID `json:"routes"`
	Cost    float64            `json:"cost"`
	Metrics Metrics            `json:"metrics"`
}

// Solver runs destroy/repair searches with simulated annealing acceptance.
type Solver struct {
	Params  Params
	Log     zerolog.Logger
	OnEvent func(Event)
}

func (s *Solver) emit(e Event) {
	if s.OnEvent != nil {
		s.OnEvent(e)
	}
}

// Solve runs one search. A cancelled context stops the search and returns
// the context error.
func (s *Solver) Solve(ctx context.Context, inst *vrp.Instance) (*Result, error) {
	return s.solve(ctx, inst, s.Params.withDefaults(), 0)
}

// SolveRestarts runs n independent searches concurrently, restart i seeded
// with Seed+i, and returns the cheapest result.
func (s *Solver) SolveRestarts(ctx context.Context, inst *vrp.Instance, n int) (*Result, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: restarts must be positive, got %d", ErrInvalidParams, n)
	}
	p := s.Params.withDefaults()
	if p.Seed == 0 {
		p.Seed = time.Now().UnixNano()
	}
	results := make([]*Result, n)
	g, gctx := errgroup.WithContext(ctx)
	for i := range n {
		g.Go(func() error {
			rp := p
			rp.Seed = p.Seed + int64(i)
			res, err := s.solve(gctx, inst, rp, i)
			if err != nil {
				return fmt.Errorf("restart %d: %w", i, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	best := results[0]
	for _, r := range results[1:] {
		if r.Cost < best.Cost {
			best = r
		}
	}
	return best, nil
}

func (s *Solver) solve(ctx context.Context, inst *vrp.Instance, p Params, restart int) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.Seed == 0 {
		p.Seed = time.Now().UnixNano()
	}
	log := s.Log.With().Str("instance", inst.Name).Int("restart", restart).Int64("seed", p.Seed).Logger()
	start := time.Now()
	metrics.RunsInFlight.Inc()
	defer metrics.RunsInFlight.Dec()

	rng := rand.New(rand.NewPCG(uint64(p.Seed), uint64(restart)))
	eval := vrp.NewEvaluation(inst, p.OverloadPenalty)
	pl, err := buildPool(inst, eval, p, rng)
	if err != nil {
		return nil, err
	}

	curr, err := initialSolution(inst, eval)
	if err != nil {
		return nil, err
	}
	best := curr.Clone()
	m := Metrics{
		Seed:           p.Seed,
		InitialCost:    curr.Cost(),
		BestCost:       curr.Cost(),
		DestroySelects: map[string]int{},
		RepairSelects:  map[string]int{},
	}
	temp := p.InitialTemp
	if temp <= 0 {
		temp = 0.01 * m.InitialCost
	}
	log.Info().Float64("cost", m.InitialCost).Int("customers", len(inst.Customers())).Msg("search started")
	s.emit(Event{Type: EventStarted, Restart: restart, Cost: m.InitialCost, BestCost: m.BestCost, Temperature: temp})

	var deadline time.Time
	if p.TimeBudget > 0 {
		deadline = start.Add(p.TimeBudget)
	}
	customers := len(inst.Customers())
	for p.Iterations == 0 || m.Iterations < p.Iterations {
		if err := ctx.Err(); err != nil {
			log.Warn().Err(err).Int("iterations", m.Iterations).Msg("search cancelled")
			return nil, err
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			break
		}
		m.Iterations++

		cand := curr.Clone()
		di := pick(pl.destroy, func(op operators.DestroyOperator) bool { return op.CanApplyTo(cand) }, rng)
		if di < 0 {
			return nil, fmt.Errorf("%w: destroy", ErrNoApplicableOperator)
		}
		destroy := &pl.destroy[di]
		m.DestroySelects[destroy.key]++
		metrics.OperatorSelections.WithLabelValues("destroy", destroy.key).Inc()

		count := removalCount(p, customers, rng)
		removed, err := destroy.op.Apply(eval, cand, count)
		if err != nil {
			s.operatorFailed(&log, &m, restart, destroy.key, "", err)
			continue
		}
		for cand.Len() < inst.Vehicles {
			cand.AddRoute()
		}

		ri := pick(pl.repair, func(op operators.RepairOperator) bool { return op.CanApplyTo(cand) }, rng)
		if ri < 0 {
			return nil, fmt.Errorf("%w: repair", ErrNoApplicableOperator)
		}
		repair := &pl.repair[ri]
		m.RepairSelects[repair.key]++
		metrics.OperatorSelections.WithLabelValues("repair", repair.key).Inc()
		if err := repair.op.Apply(eval, cand, removed); err != nil {
			s.operatorFailed(&log, &m, restart, destroy.key, repair.key, err)
			continue
		}
		if p.TwoOpt {
			if _, err := ImproveSolution2Opt(cand, 2); err != nil {
				return nil, err
			}
		}
		dropEmptyRoutes(cand, inst.Vehicles)

		delta := cand.Cost() - curr.Cost()
		switch {
		case delta < 0 || rng.Float64() < math.Exp(-delta/(temp+1e-9)):
			curr = cand
			if curr.Cost() < best.Cost()-minGain {
				best = curr.Clone()
				m.Improvements++
				m.BestCost = best.Cost()
				destroy.weight += 0.1
				repair.weight += 0.1
				metrics.Iterations.WithLabelValues("improved").Inc()
				log.Debug().Int("iteration", m.Iterations).Float64("cost", m.BestCost).Str("destroy", destroy.key).Str("repair", repair.key).Msg("new best")
				s.emit(Event{Type: EventImproved, Restart: restart, Iteration: m.Iterations, Cost: curr.Cost(), BestCost: m.BestCost,
					Temperature: temp, Destroy: destroy.key, Repair: repair.key})
			} else {
				m.AcceptedWorse++
				destroy.weight += 0.01
				repair.weight += 0.01
				metrics.Iterations.WithLabelValues("accepted").Inc()
			}
		default:
			m.Rejected++
			destroy.weight = math.Max(0.01, destroy.weight*0.999)
			repair.weight = math.Max(0.01, repair.weight*0.999)
			metrics.Iterations.WithLabelValues("rejected").Inc()
		}
		temp *= p.Cooling

		if p.SnapshotEvery > 0 && m.Iterations%p.SnapshotEvery == 0 {
			m.Snapshots = append(m.Snapshots, WeightSnapshot{
				Iteration: m.Iterations,
				Destroy:   weightMap(pl.destroy),
				Repair:    weightMap(pl.repair),
			})
			s.emit(Event{Type: EventSnapshot, Restart: restart, Iteration: m.Iterations, Cost: curr.Cost(), BestCost: m.BestCost, Temperature: temp})
		}
	}

	m.FinalCost = curr.Cost()
	m.FinalDestroy = weightMap(pl.destroy)
	m.FinalRepair = weightMap(pl.repair)
	m.Elapsed = time.Since(start)
	metrics.SolveDuration.Observe(m.Elapsed.Seconds())
	metrics.BestCost.Set(m.BestCost)
	log.Info().Int("iterations", m.Iterations).Int("improvements", m.Improvements).
		Float64("best", m.BestCost).Dur("elapsed", m.Elapsed).Msg("search finished")
	s.emit(Event{Type: EventFinished, Restart: restart, Iteration: m.Iterations, Cost: m.FinalCost, BestCost: m.BestCost, Temperature: temp})
	return &Result{Routes: best.Visits(), Cost: best.Cost(), Metrics: m}, nil
}

func (s *Solver) operatorFailed(log *zerolog.Logger, m *Metrics, restart int, destroy, repair string, err error) {
	m.OperatorErrors++
	metrics.Iterations.WithLabelValues("failed").Inc()
	log.Warn().Err(err).Str("destroy", destroy).Str("repair", repair).Int("iteration", m.Iterations).Msg("operator failed")
	s.emit(Event{Type: EventOperatorErr, Restart: restart, Iteration: m.Iterations, BestCost: m.BestCost, Destroy: destroy, Repair: repair, Error: err.Error()})
}

// initialSolution opens one empty route per vehicle and greedily inserts
// every customer.
func initialSolution(inst *vrp.Instance, eval *vrp.Evaluation) (*vrp.Solution, error) {
	visits := make([][]model.VertexID, inst.Vehicles)
	sol, err := vrp.NewSolution(eval, visits)
	if err != nil {
		return nil, err
	}
	greedy := operators.NewBestInsertion(inst, selector.First[model.InsertionMove]())
	if err := greedy.Apply(eval, sol, inst.CustomerIDs()); err != nil {
		return nil, fmt.Errorf("initial solution: %w", err)
	}
	return sol, nil
}

// removalCount draws how many visits a destroy step removes.
func removalCount(p Params, customers int, rng operators.Rand) int {
	f := p.MinRemovalFraction + rng.Float64()*(p.MaxRemovalFraction-p.MinRemovalFraction)
	return max(1, int(math.Floor(f*float64(customers))))
}

// dropEmptyRoutes removes empty routes beyond the fleet size so route
// removal cannot grow the solution without bound.
func dropEmptyRoutes(sol *vrp.Solution, keep int) {
	for i := sol.Len() - 1; i >= 0 && sol.Len() > keep; i-- {
		if sol.Route(i).Empty() {
			_ = sol.RemoveRoute(i)
		}
	}
}

func weightMap[T operators.Operator](entries []weighted[T]) map[string]float64 {
	out := make(map[string]float64, len(entries))
	for _, e := range entries {
		out[e.key] = e.weight
	}
	return out
}
