package calibd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/fuzzy-calibration/internal/annealing"
	"github.com/GoSim-25-26J-441/fuzzy-calibration/internal/calibration"
	"github.com/GoSim-25-26J-441/fuzzy-calibration/internal/fuzzy"
	"github.com/GoSim-25-26J-441/fuzzy-calibration/internal/store"
	"github.com/GoSim-25-26J-441/fuzzy-calibration/pkg/config"
	"github.com/GoSim-25-26J-441/fuzzy-calibration/pkg/logger"
	"github.com/GoSim-25-26J-441/fuzzy-calibration/pkg/models"
)

// MetadataOutputScheme names the stored scheme a completed run wrote
const MetadataOutputScheme = "output_scheme"

// ExecutorOptions configures a RunExecutor
type ExecutorOptions struct {
	// MaxConcurrentRuns bounds how many runs anneal at once; queued runs
	// stay pending.
	MaxConcurrentRuns int
	// Defaults fill annealing options a request leaves unset.
	Defaults config.Annealing
	// Callbacks configures completion notification delivery.
	Callbacks config.Callbacks
}

// RunExecutor manages asynchronous run execution and per-run cancellation.
type RunExecutor struct {
	store    *RunStore
	schemes  *store.Store
	opts     ExecutorOptions
	slots    chan struct{}
	notifier *Notifier
	log      *slog.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// NewRunExecutor creates an executor. schemes may be nil, in which case
// results stay in memory and scheme_name requests fail.
func NewRunExecutor(runs *RunStore, schemes *store.Store, opts ExecutorOptions) *RunExecutor {
	if opts.MaxConcurrentRuns <= 0 {
		opts.MaxConcurrentRuns = 1
	}
	return &RunExecutor{
		store:    runs,
		schemes:  schemes,
		opts:     opts,
		slots:    make(chan struct{}, opts.MaxConcurrentRuns),
		notifier: NewNotifier(opts.Callbacks),
		log:      logger.Component("executor"),
		cancels:  make(map[string]context.CancelFunc),
	}
}

// Schemes returns the scheme store, possibly nil
func (e *RunExecutor) Schemes() *store.Store {
	return e.schemes
}

// Submit validates a request, registers the run and starts it
// asynchronously. Configuration errors and samples the scheme cannot
// evaluate are returned before any run is created.
func (e *RunExecutor) Submit(req *RunRequest) (models.Run, error) {
	if req == nil {
		return models.Run{}, invalid("request is required")
	}
	base, samples, err := req.resolve(e.schemes)
	if err != nil {
		return models.Run{}, err
	}
	plan, err := e.build(req, base, samples)
	if err != nil {
		return models.Run{}, err
	}
	// A scheme that cannot score its samples fails here rather than after
	// the run is queued.
	if _, err := plan.calibration.Fitness(context.Background()); err != nil {
		return models.Run{}, err
	}

	run, err := e.store.Create(req.RunID, req, base, samples)
	if err != nil {
		return models.Run{}, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.mu.Lock()
	e.cancels[run.ID] = cancel
	e.mu.Unlock()

	runsSubmitted.Inc()
	e.wg.Add(1)
	go e.execute(ctx, run.ID)
	e.log.Info("run submitted", "run_id", run.ID, "scheme", run.SchemeName, "samples", len(samples))
	return run, nil
}

// Stop requests cancellation for a run and marks it cancelled.
func (e *RunExecutor) Stop(runID string) (models.Run, error) {
	if runID == "" {
		return models.Run{}, models.ErrRunIDMissing
	}
	if _, ok := e.store.Get(runID); !ok {
		return models.Run{}, fmt.Errorf("%w: %s", models.ErrRunNotFound, runID)
	}

	updated, err := e.store.SetStatus(runID, models.RunStatusCancelled, "")
	if err != nil {
		return updated, err
	}

	e.mu.Lock()
	cancel, ok := e.cancels[runID]
	e.mu.Unlock()
	if ok {
		cancel()
	}
	return updated, nil
}

// Shutdown cancels every active run and waits for them to finish or for
// ctx to expire.
func (e *RunExecutor) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	ids := make([]string, 0, len(e.cancels))
	for id := range e.cancels {
		ids = append(ids, id)
	}
	e.mu.Unlock()
	for _, id := range ids {
		if _, err := e.Stop(id); err != nil && !errors.Is(err, models.ErrRunTerminal) {
			e.log.Warn("failed to stop run during shutdown", "run_id", id, "error", err)
		}
	}

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until every submitted run has finished and its completion
// notification has been sent
func (e *RunExecutor) Wait() {
	e.wg.Wait()
	e.notifier.Wait()
}

type runPlan struct {
	calibration *calibration.SchemeCalibration
	optimizer   *annealing.Optimizer
}

// build assembles the calibration and optimizer for a run. scheme is
// cloned so the submitted scheme is never mutated.
func (e *RunExecutor) build(req *RunRequest, scheme *fuzzy.Scheme, samples []calibration.Sample) (*runPlan, error) {
	cal, err := calibration.NewSchemeCalibration(scheme.Clone(), samples, calibration.OptionsFromConfig(req.Calibration))
	if err != nil {
		return nil, err
	}
	opt, err := annealing.NewOptimizer(annealing.OptionsFromConfig(req.Annealing.Merge(e.opts.Defaults)))
	if err != nil {
		return nil, err
	}
	return &runPlan{calibration: cal, optimizer: opt}, nil
}

func (e *RunExecutor) cleanup(runID string) {
	e.mu.Lock()
	if cancel, ok := e.cancels[runID]; ok {
		cancel()
		delete(e.cancels, runID)
	}
	e.mu.Unlock()
}

func (e *RunExecutor) execute(ctx context.Context, runID string) {
	defer e.wg.Done()
	defer e.cleanup(runID)
	defer e.persist(runID)

	select {
	case e.slots <- struct{}{}:
		defer func() { <-e.slots }()
	case <-ctx.Done():
		e.log.Info("run cancelled before start", "run_id", runID)
		return
	}

	rec, ok := e.store.Get(runID)
	if !ok {
		e.log.Error("run not found", "run_id", runID)
		return
	}
	if _, err := e.store.SetStatus(runID, models.RunStatusRunning, ""); err != nil {
		// Stopped between acquiring a slot and starting.
		e.log.Info("run not started", "run_id", runID, "error", err)
		return
	}

	req, base, samples, ok := e.store.inputs(runID)
	if !ok {
		e.fail(runID, errors.New("run inputs missing"))
		return
	}
	plan, err := e.build(req, base, samples)
	if err != nil {
		e.fail(runID, err)
		return
	}

	plan.optimizer.WithProgressReporter(func(iteration int, temperature, bestFitness float64) {
		e.store.SetProgress(runID, iteration, temperature, bestFitness)
		annealingIterations.Inc()
	}).WithLogger(e.log.With("run_id", runID))

	runsActive.Inc()
	start := time.Now()
	e.log.Info("starting calibration", "run_id", runID, "scheme", rec.SchemeName)
	result, err := plan.optimizer.Optimize(ctx, calibration.NewCollection(plan.calibration))
	runsActive.Dec()
	runDuration.Observe(time.Since(start).Seconds())

	calibrated := plan.calibration.Scheme()
	if result != nil {
		if setErr := e.store.SetResult(runID, summarize(result, calibrated), calibrated.Clone()); setErr != nil {
			e.log.Error("failed to store result", "run_id", runID, "error", setErr)
		}
	}

	if err != nil {
		if ctx.Err() != nil {
			e.log.Info("calibration cancelled", "run_id", runID)
			return
		}
		e.fail(runID, err)
		return
	}

	runBestFitness.Observe(result.BestFitness)
	if e.schemes != nil {
		name := req.OutputName
		if name == "" {
			name = calibrated.Name()
		}
		out := calibrated.Clone()
		out.SetName(name)
		if err := e.schemes.SaveScheme(out); err != nil {
			e.fail(runID, fmt.Errorf("failed to store calibrated scheme: %w", err))
			return
		}
		e.store.SetMetadata(runID, MetadataOutputScheme, name)
	}

	if _, err := e.store.SetStatus(runID, models.RunStatusCompleted, ""); err != nil {
		e.log.Warn("failed to set completed status", "run_id", runID, "error", err)
		return
	}
	e.log.Info("run completed", "run_id", runID,
		"iterations", result.Iterations,
		"best_fitness", result.BestFitness,
		"stop_reason", result.StopReason)
}

func (e *RunExecutor) fail(runID string, err error) {
	e.log.Error("calibration failed", "run_id", runID, "error", err)
	if _, setErr := e.store.SetStatus(runID, models.RunStatusFailed, err.Error()); setErr != nil {
		e.log.Error("failed to set failed status", "run_id", runID, "error", setErr)
	}
}

// persist writes terminal runs to the scheme store so they survive restarts
// and fires the run's completion callback
func (e *RunExecutor) persist(runID string) {
	run, ok := e.store.Get(runID)
	if !ok || !run.Status.IsTerminal() {
		return
	}
	runsFinished.WithLabelValues(string(run.Status)).Inc()
	if req, _, _, ok := e.store.inputs(runID); ok {
		e.notifier.Notify(req.CallbackURL, req.CallbackSecret, run)
	}
	if e.schemes == nil {
		return
	}
	if err := e.schemes.SaveRun(&run); err != nil {
		e.log.Error("failed to persist run", "run_id", runID, "error", err)
	}
}

func summarize(res *annealing.Result, calibrated *fuzzy.Scheme) *models.RunSummary {
	return &models.RunSummary{
		InitialFitness:   res.InitialFitness,
		BestFitness:      res.BestFitness,
		Iterations:       res.Iterations,
		Accepted:         res.Accepted,
		Rejected:         res.Rejected,
		FinalTemperature: res.FinalTemperature,
		StopReason:       string(res.StopReason),
		Consequents:      calibrated.Consequents(),
	}
}
