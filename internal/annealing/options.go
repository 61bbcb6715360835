package annealing

import (
	"fmt"
	"math"

	"github.com/GoSim-25-26J-441/fuzzy-calibration/pkg/config"
	"github.com/GoSim-25-26J-441/fuzzy-calibration/pkg/models"
)

// ScheduleKind names a cooling schedule
type ScheduleKind string

const (
	ScheduleGeometric ScheduleKind = "geometric"
	ScheduleLinear    ScheduleKind = "linear"
)

// Selection names the policy for choosing the next dimension to perturb
type Selection string

const (
	// SelectionRandom samples a dimension uniformly over all parameters.
	SelectionRandom Selection = "random"
	// SelectionSequential walks parameters and their dimensions round-robin.
	SelectionSequential Selection = "sequential"
)

// Options configures an annealing run
type Options struct {
	InitialTemperature float64
	// CoolingRate is the geometric factor alpha, 0 < alpha < 1.
	CoolingRate    float64
	MinTemperature float64
	MaxIterations  int
	// StallLimit stops the run after this many iterations without a new best.
	StallLimit int
	// Seed makes a run reproducible; nil seeds from the clock.
	Seed          *int64
	Schedule      ScheduleKind
	Selection     Selection
	RecordHistory bool
}

// DefaultOptions returns the default annealing options
func DefaultOptions() Options {
	return Options{
		InitialTemperature: 1.0,
		CoolingRate:        0.995,
		MinTemperature:     1e-9,
		MaxIterations:      10000,
		StallLimit:         2000,
		Schedule:           ScheduleGeometric,
		Selection:          SelectionRandom,
	}
}

// OptionsFromConfig converts the YAML annealing block, filling unset fields
// from DefaultOptions.
func OptionsFromConfig(cfg config.Annealing) Options {
	opts := DefaultOptions()
	if cfg.InitialTemperature != 0 {
		opts.InitialTemperature = cfg.InitialTemperature
	}
	if cfg.CoolingRate != 0 {
		opts.CoolingRate = cfg.CoolingRate
	}
	if cfg.MinTemperature != 0 {
		opts.MinTemperature = cfg.MinTemperature
	}
	if cfg.MaxIterations != 0 {
		opts.MaxIterations = cfg.MaxIterations
	}
	if cfg.StallLimit != 0 {
		opts.StallLimit = cfg.StallLimit
	}
	if cfg.RandomSeed != nil {
		seed := *cfg.RandomSeed
		opts.Seed = &seed
	}
	if cfg.Schedule != "" {
		opts.Schedule = ScheduleKind(cfg.Schedule)
	}
	if cfg.Selection != "" {
		opts.Selection = Selection(cfg.Selection)
	}
	opts.RecordHistory = cfg.RecordHistory
	return opts
}

// Validate checks the options. Every failure wraps
// models.ErrInvalidConfiguration.
func (o Options) Validate() error {
	if !(o.InitialTemperature > 0) || math.IsInf(o.InitialTemperature, 0) {
		return fmt.Errorf("%w: initial temperature must be positive, got %g", models.ErrInvalidConfiguration, o.InitialTemperature)
	}
	if o.MinTemperature < 0 || o.MinTemperature >= o.InitialTemperature {
		return fmt.Errorf("%w: min temperature must be in [0, %g), got %g", models.ErrInvalidConfiguration, o.InitialTemperature, o.MinTemperature)
	}
	if o.MaxIterations <= 0 {
		return fmt.Errorf("%w: max iterations must be positive, got %d", models.ErrInvalidConfiguration, o.MaxIterations)
	}
	if o.StallLimit <= 0 {
		return fmt.Errorf("%w: stall limit must be positive, got %d", models.ErrInvalidConfiguration, o.StallLimit)
	}
	switch o.Schedule {
	case ScheduleGeometric:
		if !(o.CoolingRate > 0 && o.CoolingRate < 1) {
			return fmt.Errorf("%w: cooling rate must be in (0, 1), got %g", models.ErrInvalidConfiguration, o.CoolingRate)
		}
	case ScheduleLinear:
	default:
		return fmt.Errorf("%w: unknown cooling schedule %q", models.ErrInvalidConfiguration, o.Schedule)
	}
	switch o.Selection {
	case SelectionRandom, SelectionSequential:
	default:
		return fmt.Errorf("%w: unknown selection policy %q", models.ErrInvalidConfiguration, o.Selection)
	}
	return nil
}

// schedule builds the cooling schedule described by the options
func (o Options) schedule() Schedule {
	if o.Schedule == ScheduleLinear {
		return Linear{
			Start: o.InitialTemperature,
			Step:  (o.InitialTemperature - o.MinTemperature) / float64(o.MaxIterations),
		}
	}
	return Geometric{Start: o.InitialTemperature, Alpha: o.CoolingRate}
}
