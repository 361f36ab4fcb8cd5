package config

import (
	"fmt"
	"time"

	"lnskit/internal/opt"
)

// SolverConfig mirrors opt.Params with file and environment friendly keys.
type SolverConfig struct {
	Iterations         int                `json:"iterations"`
	TimeBudget         time.Duration      `json:"time_budget"`
	Seed               int64              `json:"seed"`
	Restarts           int                `json:"restarts"`
	InitialTemp        float64            `json:"initial_temp"`
	Cooling            float64            `json:"cooling"`
	MinRemovalFraction float64            `json:"min_removal_fraction"`
	MaxRemovalFraction float64            `json:"max_removal_fraction"`
	BlinkProbability   *float64           `json:"blink_probability"`
	ClusterSize        int                `json:"cluster_size"`
	MinRadiusFactor    float64            `json:"min_radius_factor"`
	MaxRadiusFactor    float64            `json:"max_radius_factor"`
	OverloadPenalty    *float64           `json:"overload_penalty"`
	DestroyWeights     map[string]float64 `json:"destroy_weights"`
	RepairWeights      map[string]float64 `json:"repair_weights"`
	TwoOpt             *bool              `json:"two_opt"`
	SnapshotEvery      int                `json:"snapshot_every"`
}

// SetDefaults fills unset fields from opt.DefaultParams.
func (c *SolverConfig) SetDefaults() {
	d := opt.DefaultParams()
	if c.Iterations == 0 && c.TimeBudget == 0 {
		c.Iterations, c.TimeBudget = d.Iterations, d.TimeBudget
	}
	if c.Restarts == 0 {
		c.Restarts = 1
	}
	if c.Cooling == 0 {
		c.Cooling = d.Cooling
	}
	if c.MinRemovalFraction == 0 && c.MaxRemovalFraction == 0 {
		c.MinRemovalFraction, c.MaxRemovalFraction = d.MinRemovalFraction, d.MaxRemovalFraction
	}
	if c.BlinkProbability == nil {
		c.BlinkProbability = &d.BlinkProbability
	}
	if c.ClusterSize == 0 {
		c.ClusterSize = d.ClusterSize
	}
	if c.MinRadiusFactor == 0 && c.MaxRadiusFactor == 0 {
		c.MinRadiusFactor, c.MaxRadiusFactor = d.MinRadiusFactor, d.MaxRadiusFactor
	}
	if c.OverloadPenalty == nil {
		c.OverloadPenalty = &d.OverloadPenalty
	}
	if len(c.DestroyWeights) == 0 {
		c.DestroyWeights = d.DestroyWeights
	}
	if len(c.RepairWeights) == 0 {
		c.RepairWeights = d.RepairWeights
	}
	if c.TwoOpt == nil {
		c.TwoOpt = &d.TwoOpt
	}
	if c.SnapshotEvery == 0 {
		c.SnapshotEvery = d.SnapshotEvery
	}
}

func (c SolverConfig) Validate() error {
	if c.Restarts < 1 {
		return fmt.Errorf("restarts must be positive, got %d", c.Restarts)
	}
	return c.Params().Validate()
}

// Params converts the section into solver parameters. Call after
// SetDefaults.
func (c SolverConfig) Params() opt.Params {
	p := opt.Params{
		Iterations:         c.Iterations,
		TimeBudget:         c.TimeBudget,
		Seed:               c.Seed,
		InitialTemp:        c.InitialTemp,
		Cooling:            c.Cooling,
		MinRemovalFraction: c.MinRemovalFraction,
		MaxRemovalFraction: c.MaxRemovalFraction,
		ClusterSize:        c.ClusterSize,
		MinRadiusFactor:    c.MinRadiusFactor,
		MaxRadiusFactor:    c.MaxRadiusFactor,
		DestroyWeights:     c.DestroyWeights,
		RepairWeights:      c.RepairWeights,
		SnapshotEvery:      c.SnapshotEvery,
	}
	if c.BlinkProbability != nil {
		p.BlinkProbability = *c.BlinkProbability
	}
	if c.OverloadPenalty != nil {
		p.OverloadPenalty = *c.OverloadPenalty
	}
	if c.TwoOpt != nil {
		p.TwoOpt = *c.TwoOpt
	}
	return p
}
