package opt

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

// Destroy operator keys.
const (
	DestroyRandom          = "random"
	DestroyWorst           = "worst"
	DestroyRelated         = "related"
	DestroyCluster         = "cluster"
	DestroyStationVicinity = "station_vicinity"
	DestroyRoute           = "route"
)

// Repair operator keys.
const (
	RepairBest   = "best"
	RepairBlink  = "blink"
	RepairGlobal = "global"
	RepairRandom = "random"
)

var (
	ErrInvalidParams        = errors.New("opt: invalid parameters")
	ErrNoApplicableOperator = errors.New("opt: no operator applies to the solution")
)

// Params controls one search. Zero values fall back to DefaultParams.
type Params struct {
	Iterations         int           // 0 means bounded by TimeBudget only
	TimeBudget         time.Duration // 0 means bounded by Iterations only
	Seed               int64         // 0 picks a time-based seed
	InitialTemp        float64       // 0 derives it from the initial cost
	Cooling            float64
	MinRemovalFraction float64
	MaxRemovalFraction float64
	BlinkProbability   float64
	ClusterSize        int
	MinRadiusFactor    float64
	MaxRadiusFactor    float64
	OverloadPenalty    float64
	DestroyWeights     map[string]float64
	RepairWeights      map[string]float64
	TwoOpt             bool
	SnapshotEvery      int
}

func DefaultParams() Params {
	return Params{
		Iterations:         2000,
		TimeBudget:         10 * time.Second,
		Cooling:            0.995,
		MinRemovalFraction: 0.1,
		MaxRemovalFraction: 0.3,
		BlinkProbability:   0.1,
		ClusterSize:        2,
		MinRadiusFactor:    0.05,
		MaxRadiusFactor:    0.2,
		OverloadPenalty:    10000,
		DestroyWeights: map[string]float64{
			DestroyRandom:          1,
			DestroyWorst:           1,
			DestroyRelated:         1,
			DestroyCluster:         1,
			DestroyStationVicinity: 1,
			DestroyRoute:           0.25,
		},
		RepairWeights: map[string]float64{
			RepairBest:   2,
			RepairBlink:  1,
			RepairGlobal: 1,
			RepairRandom: 0.1,
		},
		TwoOpt:        true,
		SnapshotEvery: 100,
	}
}

func (p Params) withDefaults() Params {
	d := DefaultParams()
	if p.Iterations == 0 && p.TimeBudget == 0 {
		p.Iterations, p.TimeBudget = d.Iterations, d.TimeBudget
	}
	if p.Cooling <= 0 || p.Cooling > 1 {
		p.Cooling = d.Cooling
	}
	if p.MinRemovalFraction == 0 && p.MaxRemovalFraction == 0 {
		p.MinRemovalFraction, p.MaxRemovalFraction = d.MinRemovalFraction, d.MaxRemovalFraction
	}
	if p.ClusterSize == 0 {
		p.ClusterSize = d.ClusterSize
	}
	if p.MinRadiusFactor == 0 && p.MaxRadiusFactor == 0 {
		p.MinRadiusFactor, p.MaxRadiusFactor = d.MinRadiusFactor, d.MaxRadiusFactor
	}
	if len(p.DestroyWeights) == 0 {
		p.DestroyWeights = d.DestroyWeights
	}
	if len(p.RepairWeights) == 0 {
		p.RepairWeights = d.RepairWeights
	}
	if p.SnapshotEvery == 0 {
		p.SnapshotEvery = d.SnapshotEvery
	}
	return p
}

// Validate checks ranges after defaults have been applied.
func (p Params) Validate() error {
	p = p.withDefaults()
	switch {
	case p.Iterations < 0:
		return fmt.Errorf("%w: negative iterations", ErrInvalidParams)
	case p.TimeBudget < 0:
		return fmt.Errorf("%w: negative time budget", ErrInvalidParams)
	case p.MinRemovalFraction < 0 || p.MaxRemovalFraction > 1 || p.MinRemovalFraction > p.MaxRemovalFraction:
		return fmt.Errorf("%w: removal fractions must satisfy 0 <= min <= max <= 1", ErrInvalidParams)
	case p.BlinkProbability < 0 || p.BlinkProbability > 1:
		return fmt.Errorf("%w: blink probability must lie in [0,1]", ErrInvalidParams)
	case p.ClusterSize < 1:
		return fmt.Errorf("%w: cluster size must be positive", ErrInvalidParams)
	case p.MinRadiusFactor < 0 || p.MinRadiusFactor > p.MaxRadiusFactor:
		return fmt.Errorf("%w: radius factors must satisfy 0 <= min <= max", ErrInvalidParams)
	case p.OverloadPenalty < 0:
		return fmt.Errorf("%w: negative overload penalty", ErrInvalidParams)
	}
	if err := checkWeights(p.DestroyWeights, DestroyRandom, DestroyWorst, DestroyRelated, DestroyCluster, DestroyStationVicinity, DestroyRoute); err != nil {
		return fmt.Errorf("destroy weights: %w", err)
	}
	if err := checkWeights(p.RepairWeights, RepairBest, RepairBlink, RepairGlobal, RepairRandom); err != nil {
		return fmt.Errorf("repair weights: %w", err)
	}
	return nil
}

func checkWeights(weights map[string]float64, known ...string) error {
	positive := false
	for name, w := range weights {
		if !slices.Contains(known, name) {
			return fmt.Errorf("%w: unknown operator %q", ErrInvalidParams, name)
		}
		if w < 0 {
			return fmt.Errorf("%w: negative weight for %q", ErrInvalidParams, name)
		}
		if w > 0 {
			positive = true
		}
	}
	if !positive {
		return fmt.Errorf("%w: no operator has a positive weight", ErrInvalidParams)
	}
	return nil
}
