package api

import (
	"fmt"
	"time"

	"lnskit/internal/opt"
	"lnskit/internal/vrp"
)

// RunRequest is the body of POST /v1/runs.
type RunRequest struct {
	Instance vrp.InstanceFile `json:"instance"`
	Params   *RunParams       `json:"params,omitempty"`
}

// RunParams overrides the server's solver defaults for one run. Weight maps
// replace the defaults as a whole.
type RunParams struct {
	Iterations       *int               `json:"iterations,omitempty"`
	TimeBudget       string             `json:"timeBudget,omitempty"`
	Seed             *int64             `json:"seed,omitempty"`
	Restarts         *int               `json:"restarts,omitempty"`
	BlinkProbability *float64           `json:"blinkProbability,omitempty"`
	ClusterSize      *int               `json:"clusterSize,omitempty"`
	OverloadPenalty  *float64           `json:"overloadPenalty,omitempty"`
	DestroyWeights   map[string]float64 `json:"destroyWeights,omitempty"`
	RepairWeights    map[string]float64 `json:"repairWeights,omitempty"`
	TwoOpt           *bool              `json:"twoOpt,omitempty"`
}

const maxRestarts = 16

// apply overlays rp on the defaults and validates the result.
func (rp *RunParams) apply(p opt.Params, restarts int) (opt.Params, int, error) {
	if rp == nil {
		return p, restarts, p.Validate()
	}
	if rp.Iterations != nil {
		p.Iterations = *rp.Iterations
	}
	if rp.TimeBudget != "" {
		d, err := time.ParseDuration(rp.TimeBudget)
		if err != nil {
			return p, 0, fmt.Errorf("timeBudget: %w", err)
		}
		p.TimeBudget = d
	}
	if rp.Seed != nil {
		p.Seed = *rp.Seed
	}
	if rp.Restarts != nil {
		restarts = *rp.Restarts
	}
	if rp.BlinkProbability != nil {
		p.BlinkProbability = *rp.BlinkProbability
	}
	if rp.ClusterSize != nil {
		p.ClusterSize = *rp.ClusterSize
	}
	if rp.OverloadPenalty != nil {
		p.OverloadPenalty = *rp.OverloadPenalty
	}
	if rp.DestroyWeights != nil {
		p.DestroyWeights = rp.DestroyWeights
	}
	if rp.RepairWeights != nil {
		p.RepairWeights = rp.RepairWeights
	}
	if rp.TwoOpt != nil {
		p.TwoOpt = *rp.TwoOpt
	}
	if restarts < 1 || restarts > maxRestarts {
		return p, 0, fmt.Errorf("restarts must be in [1,%d]", maxRestarts)
	}
	if p.Iterations == 0 && p.TimeBudget == 0 {
		return p, 0, fmt.Errorf("iterations or timeBudget must bound the run")
	}
	return p, restarts, p.Validate()
}

func validateRunRequest(req *RunRequest) (*vrp.Instance, error) {
	if req.Instance.Name == "" {
		return nil, fmt.Errorf("instance.name is required")
	}
	return req.Instance.Build()
}
