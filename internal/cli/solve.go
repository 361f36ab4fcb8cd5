package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"lnskit/internal/logger"
	"lnskit/internal/opt"
	"lnskit/internal/vrp"
)

type solveOptions struct {
	iterations int
	timeBudget time.Duration
	seed       int64
	restarts   int
	format     string
	out        string
}

// Report is what the solve command prints.
type Report struct {
	Instance     string        `json:"instance" yaml:"instance"`
	Cost         float64       `json:"cost" yaml:"cost"`
	InitialCost  float64       `json:"initialCost" yaml:"initialCost"`
	Seed         int64         `json:"seed" yaml:"seed"`
	Iterations   int           `json:"iterations" yaml:"iterations"`
	Improvements int           `json:"improvements" yaml:"improvements"`
	Elapsed      string        `json:"elapsed" yaml:"elapsed"`
	Routes       []RouteReport `json:"routes" yaml:"routes"`
}

type RouteReport struct {
	Vehicle    int      `json:"vehicle" yaml:"vehicle"`
	Stops      []string `json:"stops" yaml:"stops"`
	DistanceKm float64  `json:"distanceKm" yaml:"distanceKm"`
	Load       float64  `json:"load" yaml:"load"`
}

func newSolveCmd(root *rootOptions) *cobra.Command {
	opts := &solveOptions{}
	cmd := &cobra.Command{
		Use:   "solve <instance.yaml|instance.json>",
		Short: "Solve an instance file and print the routes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runSolve(ctx, cmd, root, opts, args[0])
		},
	}
	f := cmd.Flags()
	f.IntVarP(&opts.iterations, "iterations", "n", 0, "iteration limit (overrides solver.iterations)")
	f.DurationVarP(&opts.timeBudget, "time-budget", "t", 0, "wall clock limit (overrides solver.time_budget)")
	f.Int64Var(&opts.seed, "seed", 0, "random seed; 0 picks one")
	f.IntVarP(&opts.restarts, "restarts", "r", 0, "independent parallel searches (overrides solver.restarts)")
	f.StringVarP(&opts.format, "format", "f", "yaml", "output format: yaml, json or text")
	f.StringVarP(&opts.out, "out", "o", "", "write the report to a file instead of stdout")
	return cmd
}

func runSolve(ctx context.Context, cmd *cobra.Command, root *rootOptions, opts *solveOptions, path string) error {
	switch opts.format {
	case "yaml", "json", "text":
	default:
		return fmt.Errorf("unknown format %q", opts.format)
	}
	cfg, err := root.load()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg.Logging, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	inst, err := vrp.LoadInstance(path)
	if err != nil {
		return err
	}

	sc := cfg.Solver
	if cmd.Flags().Changed("iterations") || cmd.Flags().Changed("time-budget") {
		sc.Iterations, sc.TimeBudget = opts.iterations, opts.timeBudget
	}
	if opts.seed != 0 {
		sc.Seed = opts.seed
	}
	if opts.restarts != 0 {
		sc.Restarts = opts.restarts
	}
	if err := sc.Validate(); err != nil {
		return err
	}

	solver := &opt.Solver{Params: sc.Params(), Log: logger.Component(log, "solver")}
	res, err := solver.SolveRestarts(ctx, inst, sc.Restarts)
	if err != nil {
		return err
	}
	report, err := buildReport(inst, sc.Params().OverloadPenalty, res)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if opts.out != "" {
		file, err := os.Create(opts.out)
		if err != nil {
			return err
		}
		defer file.Close()
		w = file
	}
	return writeReport(w, opts.format, report)
}

func buildReport(inst *vrp.Instance, penalty float64, res *opt.Result) (Report, error) {
	eval := vrp.NewEvaluation(inst, penalty)
	sol, err := vrp.NewSolution(eval, res.Routes)
	if err != nil {
		return Report{}, err
	}
	r := Report{
		Instance:     inst.Name,
		Cost:         res.Cost,
		InitialCost:  res.Metrics.InitialCost,
		Seed:         res.Metrics.Seed,
		Iterations:   res.Metrics.Iterations,
		Improvements: res.Metrics.Improvements,
		Elapsed:      res.Metrics.Elapsed.Round(time.Millisecond).String(),
	}
	for i, route := range sol.Routes() {
		if route.Empty() {
			continue
		}
		rr := RouteReport{Vehicle: i, DistanceKm: route.Distance() / 1000, Load: route.Load()}
		for _, v := range route.Visits() {
			rr.Stops = append(rr.Stops, inst.Vertex(v).Name)
		}
		r.Routes = append(r.Routes, rr)
	}
	return r, nil
}

func writeReport(w io.Writer, format string, r Report) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case "text":
		if _, err := fmt.Fprintf(w, "%s: cost %.2f (initial %.2f) after %d iterations in %s\n",
			r.Instance, r.Cost, r.InitialCost, r.Iterations, r.Elapsed); err != nil {
			return err
		}
		for _, rr := range r.Routes {
			if _, err := fmt.Fprintf(w, "  vehicle %d  %.2f km  load %.0f  %v\n", rr.Vehicle, rr.DistanceKm, rr.Load, rr.Stops); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
