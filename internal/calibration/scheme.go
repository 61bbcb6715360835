package calibration

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/GoSim-25-26J-441/fuzzy-calibration/internal/fuzzy"
	"github.com/GoSim-25-26J-441/fuzzy-calibration/pkg/config"
	"github.com/GoSim-25-26J-441/fuzzy-calibration/pkg/kvmap"
	"github.com/GoSim-25-26J-441/fuzzy-calibration/pkg/models"
	"github.com/GoSim-25-26J-441/fuzzy-calibration/pkg/utils"
)

// Sample is one observed record: factor values and the measured response
type Sample struct {
	Factors  *kvmap.Map
	Observed float64
}

// Metric names an aggregate error measure
type Metric string

const (
	MetricSSE  Metric = "sse"
	MetricMSE  Metric = "mse"
	MetricRMSE Metric = "rmse"
)

// Options configures a SchemeCalibration
type Options struct {
	// StepSize bounds the uniform perturbation applied to a consequent.
	StepSize float64
	// Lower and Upper clamp consequents when Upper > Lower.
	Lower float64
	Upper float64
	// Metric selects the aggregate error, sse by default.
	Metric Metric
	// Workers bounds parallel sample evaluation; <= 0 uses GOMAXPROCS,
	// 1 evaluates sequentially.
	Workers int
}

// DefaultOptions returns the default calibration options
func DefaultOptions() Options {
	return Options{
		StepSize: 1.0,
		Metric:   MetricSSE,
		Workers:  1,
	}
}

// OptionsFromConfig converts the YAML calibration block
func OptionsFromConfig(cfg config.Calibration) Options {
	opts := DefaultOptions()
	if cfg.StepSize > 0 {
		opts.StepSize = cfg.StepSize
	}
	opts.Lower = cfg.Lower
	opts.Upper = cfg.Upper
	if cfg.Metric != "" {
		opts.Metric = Metric(cfg.Metric)
	}
	opts.Workers = cfg.Workers
	return opts
}

// Validate checks the options
func (o Options) Validate() error {
	if !(o.StepSize > 0) || math.IsInf(o.StepSize, 0) {
		return fmt.Errorf("%w: step size must be positive, got %g", models.ErrInvalidConfiguration, o.StepSize)
	}
	switch o.Metric {
	case MetricSSE, MetricMSE, MetricRMSE:
	default:
		return fmt.Errorf("%w: unknown fitness metric %q", models.ErrInvalidConfiguration, o.Metric)
	}
	if o.Upper < o.Lower {
		return fmt.Errorf("%w: upper bound %g is below lower bound %g", models.ErrInvalidConfiguration, o.Upper, o.Lower)
	}
	return nil
}

func (o Options) bounded() bool {
	return o.Upper > o.Lower
}

// SchemeCalibration exposes the rule consequents of a fuzzy scheme as
// tunable coefficients, scored against a bound dataset.
type SchemeCalibration struct {
	scheme  *fuzzy.Scheme
	samples []Sample
	opts    Options
	rng     *utils.RandSource
}

// NewSchemeCalibration binds scheme to samples
func NewSchemeCalibration(scheme *fuzzy.Scheme, samples []Sample, opts Options) (*SchemeCalibration, error) {
	if scheme == nil {
		return nil, fmt.Errorf("%w: scheme is required", models.ErrInvalidConfiguration)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: at least one sample is required", models.ErrInvalidConfiguration)
	}
	if scheme.NumConsequents() == 0 {
		return nil, fmt.Errorf("%w: scheme %s has no rules to calibrate", models.ErrInvalidConfiguration, scheme.Name())
	}
	if opts.Metric == "" {
		opts.Metric = MetricSSE
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &SchemeCalibration{
		scheme:  scheme,
		samples: samples,
		opts:    opts,
		rng:     utils.NewTimeSeededRandSource(),
	}, nil
}

// Scheme returns the wrapped scheme
func (c *SchemeCalibration) Scheme() *fuzzy.Scheme {
	return c.scheme
}

// SetRand replaces the generator used for perturbations
func (c *SchemeCalibration) SetRand(rng *utils.RandSource) {
	if rng != nil {
		c.rng = rng
	}
}

// NumParameters returns the number of rule consequents
func (c *SchemeCalibration) NumParameters() int {
	return c.scheme.NumConsequents()
}

// ChangeParameter adds a uniform delta in [-StepSize, StepSize) to
// consequent idx, clamped to the configured bounds.
func (c *SchemeCalibration) ChangeParameter(idx int) error {
	current, err := c.scheme.Consequent(idx)
	if err != nil {
		return err
	}
	next := current + c.rng.UniformFloat64(-c.opts.StepSize, c.opts.StepSize)
	if c.opts.bounded() {
		next = utils.ClampFloat64(next, c.opts.Lower, c.opts.Upper)
	}
	return c.scheme.SetConsequent(idx, next)
}

// Snapshot returns a copy of the consequents
func (c *SchemeCalibration) Snapshot() []float64 {
	return c.scheme.Consequents()
}

// Restore writes back consequents captured by Snapshot
func (c *SchemeCalibration) Restore(snapshot []float64) error {
	return c.scheme.SetConsequents(snapshot)
}

// Residuals returns observed minus modelled response for every sample, in
// sample order.
func (c *SchemeCalibration) Residuals(ctx context.Context) ([]float64, error) {
	residuals := make([]float64, len(c.samples))

	workers := c.opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers == 1 || len(c.samples) == 1 {
		for i, s := range c.samples {
			r, err := c.residual(i, s)
			if err != nil {
				return nil, err
			}
			residuals[i] = r
		}
		return residuals, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, s := range c.samples {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := c.residual(i, s)
			if err != nil {
				return err
			}
			residuals[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return residuals, nil
}

func (c *SchemeCalibration) residual(i int, s Sample) (float64, error) {
	if s.Factors == nil {
		return 0, fmt.Errorf("sample %d: %w: no factor values", i, models.ErrMissingFactor)
	}
	predicted, err := c.scheme.ComputeResponse(s.Factors)
	if err != nil {
		return 0, fmt.Errorf("sample %d: %w", i, err)
	}
	return s.Observed - predicted, nil
}

// Fitness returns the configured error metric over all samples. Residuals
// are reduced in sample order, so the value does not depend on Workers.
func (c *SchemeCalibration) Fitness(ctx context.Context) (float64, error) {
	residuals, err := c.Residuals(ctx)
	if err != nil {
		return 0, err
	}
	sse := utils.SumSquares(residuals)
	if math.IsNaN(sse) || math.IsInf(sse, 0) {
		return 0, fmt.Errorf("scheme %s: %w: fitness %v", c.scheme.Name(), models.ErrNonFinite, sse)
	}
	switch c.opts.Metric {
	case MetricMSE:
		return sse / float64(len(residuals)), nil
	case MetricRMSE:
		return math.Sqrt(sse / float64(len(residuals))), nil
	default:
		return sse, nil
	}
}
