// Package annealing implements a simulated annealing optimizer over a
// collection of calibration parameters.
package annealing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/GoSim-25-26J-441/fuzzy-calibration/internal/calibration"
	"github.com/GoSim-25-26J-441/fuzzy-calibration/pkg/logger"
	"github.com/GoSim-25-26J-441/fuzzy-calibration/pkg/models"
	"github.com/GoSim-25-26J-441/fuzzy-calibration/pkg/utils"
)

// StopReason explains why a run terminated
type StopReason string

const (
	StopMinTemperature StopReason = "min_temperature"
	StopMaxIterations  StopReason = "max_iterations"
	StopStalled        StopReason = "stalled"
	StopCancelled      StopReason = "cancelled"
	StopError          StopReason = "error"
)

// Step records one annealing iteration
type Step struct {
	Iteration   int
	Parameter   int
	Dimension   int
	Temperature float64
	Candidate   float64
	Fitness     float64
	BestFitness float64
	Accepted    bool
}

// Result contains the outcome of a run. When a run aborts, the partial
// result is returned alongside the error.
type Result struct {
	InitialFitness   float64
	BestFitness      float64
	CurrentFitness   float64
	Iterations       int
	Accepted         int
	Rejected         int
	FinalTemperature float64
	Seed             int64
	StopReason       StopReason
	Duration         time.Duration
	// BestSnapshot holds the coefficients of the best state, per parameter.
	BestSnapshot [][]float64
	History      []Step
}

// ProgressReporter is invoked after every iteration
type ProgressReporter func(iteration int, temperature, bestFitness float64)

// Optimizer drives the annealing loop. An Optimizer holds configuration only,
// so one value can run any number of sequential or concurrent optimizations
// as long as each owns its collection.
type Optimizer struct {
	opts     Options
	progress ProgressReporter
	log      *slog.Logger
}

// NewOptimizer creates an optimizer after validating opts
func NewOptimizer(opts Options) (*Optimizer, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Optimizer{
		opts: opts,
		log:  logger.Component("annealing"),
	}, nil
}

// WithProgressReporter sets a callback receiving per-iteration progress
func (o *Optimizer) WithProgressReporter(fn ProgressReporter) *Optimizer {
	o.progress = fn
	return o
}

// WithLogger replaces the optimizer logger
func (o *Optimizer) WithLogger(l *slog.Logger) *Optimizer {
	if l != nil {
		o.log = l
	}
	return o
}

// Options returns the run options
func (o *Optimizer) Options() Options {
	return o.opts
}

// run is the mutable state of one optimization
type run struct {
	params      *calibration.Collection
	rng         *utils.RandSource
	schedule    Schedule
	picker      picker
	temperature float64
	current     float64
	best        float64
	bestSnap    [][]float64
	stall       int
	result      *Result
}

// Optimize anneals params until a stopping criterion triggers and leaves
// params holding the best state found. The context is checked before every
// perturbation. If a perturbation, evaluation or restore fails, the best
// state is still restored and the partial result is returned with the error.
func (o *Optimizer) Optimize(ctx context.Context, params *calibration.Collection) (*Result, error) {
	if params == nil || params.Len() == 0 {
		return nil, fmt.Errorf("%w: at least one calibration parameter is required", models.ErrInvalidConfiguration)
	}
	if params.TotalDimensions() == 0 {
		return nil, fmt.Errorf("%w: parameters expose no tunable dimensions", models.ErrInvalidConfiguration)
	}

	start := time.Now()
	r, err := o.init(ctx, params)
	if err != nil {
		return nil, err
	}
	o.log.Info("annealing started",
		"parameters", params.Len(),
		"dimensions", params.TotalDimensions(),
		"initial_fitness", r.current,
		"temperature", r.temperature,
		"schedule", r.schedule.Name(),
		"selection", o.opts.Selection,
		"seed", r.result.Seed)

	reason, runErr := o.loop(ctx, r)
	result, restoreErr := o.finish(r, reason, start)
	if restoreErr != nil {
		runErr = errors.Join(runErr, restoreErr)
		result.StopReason = StopError
	}
	if runErr != nil {
		o.log.Warn("annealing aborted",
			"iteration", result.Iterations,
			"best_fitness", result.BestFitness,
			"reason", reason,
			"error", runErr)
		return result, runErr
	}
	o.log.Info("annealing finished",
		"iterations", result.Iterations,
		"best_fitness", result.BestFitness,
		"accepted", result.Accepted,
		"rejected", result.Rejected,
		"temperature", result.FinalTemperature,
		"reason", reason,
		"duration", result.Duration)
	return result, nil
}

// init seeds the generator, hands it to seedable parameters and records the
// starting state as the best seen.
func (o *Optimizer) init(ctx context.Context, params *calibration.Collection) (*run, error) {
	var rng *utils.RandSource
	if o.opts.Seed != nil {
		rng = utils.NewRandSource(*o.opts.Seed)
	} else {
		rng = utils.NewTimeSeededRandSource()
	}
	for _, p := range params.All() {
		if rs, ok := p.(calibration.RandomSeeded); ok {
			rs.SetRand(rng)
		}
	}

	initial, err := totalFitness(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate initial state: %w", err)
	}

	schedule := o.opts.schedule()
	r := &run{
		params:      params,
		rng:         rng,
		schedule:    schedule,
		picker:      newPicker(o.opts.Selection, params, rng),
		temperature: schedule.Temperature(0),
		current:     initial,
		best:        initial,
		bestSnap:    params.Snapshot(),
		result: &Result{
			InitialFitness: initial,
			Seed:           rng.Seed(),
		},
	}
	if o.opts.RecordHistory {
		r.result.History = make([]Step, 0, min(o.opts.MaxIterations, 4096))
	}
	return r, nil
}

func (o *Optimizer) loop(ctx context.Context, r *run) (StopReason, error) {
	for r.result.Iterations < o.opts.MaxIterations {
		// Perturb
		if err := ctx.Err(); err != nil {
			return StopCancelled, err
		}
		r.result.Iterations++
		iteration := r.result.Iterations

		pi, dim := r.picker.next()
		p, err := r.params.At(pi)
		if err != nil {
			return StopError, err
		}
		saved := p.Snapshot()
		if err := p.ChangeParameter(dim); err != nil {
			return StopError, fmt.Errorf("iteration %d: perturb parameter %d dimension %d: %w", iteration, pi, dim, err)
		}

		// Evaluate
		candidate, err := totalFitness(ctx, r.params)
		if err != nil {
			return StopError, fmt.Errorf("iteration %d: evaluate: %w", iteration, err)
		}

		// AcceptOrReject
		accepted := r.accept(candidate - r.current)
		if accepted {
			r.current = candidate
			r.result.Accepted++
			if r.current < r.best {
				r.best = r.current
				r.bestSnap = r.params.Snapshot()
				r.stall = 0
			} else {
				r.stall++
			}
		} else {
			if err := p.Restore(saved); err != nil {
				return StopError, fmt.Errorf("iteration %d: restore parameter %d: %w", iteration, pi, err)
			}
			r.result.Rejected++
			r.stall++
		}

		if o.opts.RecordHistory {
			r.result.History = append(r.result.History, Step{
				Iteration:   iteration,
				Parameter:   pi,
				Dimension:   dim,
				Temperature: r.temperature,
				Candidate:   candidate,
				Fitness:     r.current,
				BestFitness: r.best,
				Accepted:    accepted,
			})
		}
		if o.log.Enabled(ctx, slog.LevelDebug) {
			o.log.Debug("annealing step",
				"iteration", iteration,
				"parameter", pi,
				"dimension", dim,
				"candidate", candidate,
				"fitness", r.current,
				"accepted", accepted,
				"temperature", r.temperature)
		}

		// Cool
		r.temperature = r.schedule.Temperature(iteration)
		if o.progress != nil {
			o.progress(iteration, r.temperature, r.best)
		}

		// Terminate?
		if r.temperature < o.opts.MinTemperature {
			return StopMinTemperature, nil
		}
		if r.stall >= o.opts.StallLimit {
			return StopStalled, nil
		}
	}
	return StopMaxIterations, nil
}

// accept applies the Metropolis rule
func (r *run) accept(delta float64) bool {
	if delta <= 0 {
		return true
	}
	return r.rng.BernoulliBool(AcceptanceProbability(delta, r.temperature))
}

// finish restores the best snapshot and assembles the result
func (o *Optimizer) finish(r *run, reason StopReason, start time.Time) (*Result, error) {
	res := r.result
	var err error
	if rerr := r.params.Restore(r.bestSnap); rerr != nil {
		err = fmt.Errorf("failed to restore best state: %w", rerr)
	}
	res.BestFitness = r.best
	res.CurrentFitness = r.current
	res.FinalTemperature = r.temperature
	res.StopReason = reason
	res.Duration = time.Since(start)
	res.BestSnapshot = r.bestSnap
	return res, err
}

// totalFitness sums Fitness over the collection in order
func totalFitness(ctx context.Context, params *calibration.Collection) (float64, error) {
	var total float64
	for i, p := range params.All() {
		f, err := p.Fitness(ctx)
		if err != nil {
			return 0, fmt.Errorf("parameter %d: %w", i, err)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, fmt.Errorf("parameter %d: %w: fitness %v", i, models.ErrNonFinite, f)
		}
		total += f
	}
	return total, nil
}
