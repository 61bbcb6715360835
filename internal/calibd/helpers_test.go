package calibd

import (
	"testing"
	"time"

	"github.com/GoSim-25-26J-441/fuzzy-calibration/internal/store"
	"github.com/GoSim-25-26J-441/fuzzy-calibration/pkg/config"
	"github.com/GoSim-25-26J-441/fuzzy-calibration/pkg/models"
)

const testSchemeXML = `<?xml version="1.0" encoding="UTF-8"?>
<FuzzyInferenceScheme name="n2o_nitrogen" numberOfFactors="1" numberOfRules="3">
  <Factor name="N_input" min="0" max="100">
    <Set name="low" type="triangular" params="0 0 50"></Set>
    <Set name="medium" type="triangular" params="0 50 100"></Set>
    <Set name="high" type="triangular" params="50 100 100"></Set>
  </Factor>
  <Rules>
    <Rule consequent="10"><Condition factor="N_input" set="low"></Condition></Rule>
    <Rule consequent="10"><Condition factor="N_input" set="medium"></Condition></Rule>
    <Rule consequent="10"><Condition factor="N_input" set="high"></Condition></Rule>
  </Rules>
</FuzzyInferenceScheme>`

const testDatasetCSV = `site,N_input,n2o_flux
plot-1,5,4.8124
plot-2,25,8.1651
plot-3,45,11.4736
plot-4,65,14.7158
plot-5,85,17.9937
`

func testSamples() []SampleInput {
	xs := []float64{5, 25, 45, 65, 85}
	ys := []float64{4.8124, 8.1651, 11.4736, 14.7158, 17.9937}
	out := make([]SampleInput, len(xs))
	for i := range xs {
		out[i] = SampleInput{Factors: map[string]float64{"N_input": xs[i]}, Observed: ys[i]}
	}
	return out
}

func seed(v int64) *int64 {
	return &v
}

// shortRequest finishes after exactly 500 iterations
func shortRequest() *RunRequest {
	return &RunRequest{
		SchemeXML: testSchemeXML,
		Samples:   testSamples(),
		Annealing: config.Annealing{
			MaxIterations: 500,
			StallLimit:    10000,
			RandomSeed:    seed(1),
		},
		Calibration: config.Calibration{StepSize: 0.5, Lower: 0, Upper: 50, Workers: 1},
	}
}

// longRequest anneals until it is stopped
func longRequest() *RunRequest {
	req := shortRequest()
	req.Annealing = config.Annealing{
		InitialTemperature: 1,
		CoolingRate:        0.9999999,
		MinTemperature:     1e-300,
		MaxIterations:      1 << 30,
		StallLimit:         1 << 30,
		RandomSeed:         seed(2),
	}
	return req
}

func newMemoryStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(store.InMemoryConfig())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// waitForProgress waits until a run has completed at least one iteration
func waitForProgress(t *testing.T, runs *RunStore, runID string) models.Run {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if run, ok := runs.Get(runID); ok && run.Progress.Iteration > 0 {
			return run
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("run %s made no progress", runID)
	return models.Run{}
}

func waitForStatus(t *testing.T, runs *RunStore, runID string, want models.RunStatus) models.Run {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		run, ok := runs.Get(runID)
		if ok && run.Status == want {
			return run
		}
		time.Sleep(5 * time.Millisecond)
	}
	run, _ := runs.Get(runID)
	t.Fatalf("run %s did not reach %s, last status %s", runID, want, run.Status)
	return run
}
