// Package calibration defines the contract between tunable models and the
// annealing optimizer, and the fuzzy-scheme implementation of it.
package calibration

import (
	"context"

	"github.com/GoSim-25-26J-441/fuzzy-calibration/pkg/utils"
)

// Parameter is a unit the optimizer can tune.
//
// ChangeParameter mutates state in place without built-in undo; the optimizer
// takes a Snapshot before each perturbation and calls Restore on rejection.
// Fitness must be deterministic for a fixed coefficient state and dataset.
// Lower fitness is better.
type Parameter interface {
	// NumParameters returns the number of independently tunable coefficients.
	NumParameters() int
	// ChangeParameter perturbs coefficient idx. Fails with
	// models.ErrIndexOutOfRange outside [0, NumParameters()).
	ChangeParameter(idx int) error
	// Fitness returns the current error contribution.
	Fitness(ctx context.Context) (float64, error)
	// Snapshot returns a copy of the tunable coefficients.
	Snapshot() []float64
	// Restore replaces the tunable coefficients with a snapshot.
	Restore(snapshot []float64) error
}

// RandomSeeded is implemented by parameters that draw random perturbations.
// The optimizer hands its own generator over at start so a seeded run is
// reproducible end to end.
type RandomSeeded interface {
	SetRand(rng *utils.RandSource)
}
