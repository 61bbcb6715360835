package calibd

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fuzzycal_runs_submitted_total",
		Help: "Total calibration runs accepted",
	})

	runsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fuzzycal_runs_finished_total",
		Help: "Total calibration runs finished by final status",
	}, []string{"status"})

	runsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fuzzycal_runs_active",
		Help: "Calibration runs currently annealing",
	})

	annealingIterations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fuzzycal_annealing_iterations_total",
		Help: "Total annealing iterations across all runs",
	})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fuzzycal_run_duration_seconds",
		Help:    "Wall time of finished calibration runs",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to ~80s
	})

	runBestFitness = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fuzzycal_run_best_fitness",
		Help:    "Best fitness reached by finished calibration runs",
		Buckets: prometheus.ExponentialBuckets(1e-4, 10, 10),
	})

	evaluations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fuzzycal_evaluations_total",
		Help: "Scheme evaluations served by result",
	}, []string{"result"})
)
