package calibd

import (
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/fuzzy-calibration/internal/calibration"
	"github.com/GoSim-25-26J-441/fuzzy-calibration/internal/fuzzy"
	"github.com/GoSim-25-26J-441/fuzzy-calibration/pkg/models"
	"github.com/GoSim-25-26J-441/fuzzy-calibration/pkg/utils"
)

// ErrRunExists is returned when creating a run with an ID already in use
var ErrRunExists = errors.New("run already exists")

// RunRecord is the in-memory state of one calibration run
type RunRecord struct {
	Run     models.Run
	Request *RunRequest

	// base is the scheme as submitted; calibrated holds the best state found.
	base       *fuzzy.Scheme
	samples    []calibration.Sample
	calibrated *fuzzy.Scheme
	progress   models.ProgressTracker
}

// RunStore keeps runs in creation order, safe for concurrent use
type RunStore struct {
	mu    sync.RWMutex
	runs  map[string]*RunRecord
	order []string
}

func NewRunStore() *RunStore {
	return &RunStore{
		runs: make(map[string]*RunRecord),
	}
}

func now() time.Time {
	return time.Now().UTC()
}

// Create registers a pending run. An empty runID generates one.
func (s *RunStore) Create(runID string, req *RunRequest, base *fuzzy.Scheme, samples []calibration.Sample) (models.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if runID == "" {
		runID = utils.GenerateRunID()
	}
	if _, exists := s.runs[runID]; exists {
		return models.Run{}, fmt.Errorf("%w: %s", ErrRunExists, runID)
	}

	rec := &RunRecord{
		Run: models.Run{
			ID:         runID,
			Status:     models.RunStatusPending,
			SchemeName: base.Name(),
			CreatedAt:  now(),
			Metadata:   maps.Clone(req.Metadata),
		},
		Request: req,
		base:    base,
		samples: samples,
	}
	s.runs[runID] = rec
	s.order = append(s.order, runID)
	return snapshot(rec), nil
}

// Load adds finished runs recovered from persistent storage. Runs already
// present are left alone.
func (s *RunStore) Load(runs []*models.Run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range runs {
		if r == nil || r.ID == "" {
			continue
		}
		if _, exists := s.runs[r.ID]; exists {
			continue
		}
		s.runs[r.ID] = &RunRecord{Run: *r}
		s.order = append(s.order, r.ID)
	}
}

// Get returns a copy of the run with its latest progress
func (s *RunStore) Get(runID string) (models.Run, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.runs[runID]
	if !ok {
		return models.Run{}, false
	}
	return snapshot(rec), true
}

// List returns runs in creation order, optionally filtered by status
func (s *RunStore) List(limit, offset int, status models.RunStatus) []models.Run {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	out := make([]models.Run, 0, min(limit, len(s.order)))
	skipped := 0
	for _, id := range s.order {
		rec := s.runs[id]
		if status != "" && rec.Run.Status != status {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		out = append(out, snapshot(rec))
		if len(out) >= limit {
			break
		}
	}
	return out
}

// SetStatus moves a run to status. Terminal runs cannot change status.
func (s *RunStore) SetStatus(runID string, status models.RunStatus, errMsg string) (models.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.runs[runID]
	if !ok {
		return models.Run{}, fmt.Errorf("%w: %s", models.ErrRunNotFound, runID)
	}
	if rec.Run.Status.IsTerminal() {
		return snapshot(rec), fmt.Errorf("%w: %s is %s", models.ErrRunTerminal, runID, rec.Run.Status)
	}

	rec.Run.Status = status
	if errMsg != "" {
		rec.Run.Error = errMsg
	}
	switch {
	case status == models.RunStatusRunning:
		if rec.Run.StartedAt.IsZero() {
			rec.Run.StartedAt = now()
		}
	case status.IsTerminal():
		rec.Run.EndedAt = now()
	}
	return snapshot(rec), nil
}

// SetProgress records the optimizer's latest progress point
func (s *RunStore) SetProgress(runID string, iteration int, temperature, bestFitness float64) {
	s.mu.RLock()
	rec, ok := s.runs[runID]
	s.mu.RUnlock()
	if ok {
		rec.progress.Update(iteration, temperature, bestFitness)
	}
}

// SetResult stores the run summary and the calibrated scheme
func (s *RunStore) SetResult(runID string, summary *models.RunSummary, calibrated *fuzzy.Scheme) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("%w: %s", models.ErrRunNotFound, runID)
	}
	rec.Run.Summary = summary
	rec.calibrated = calibrated
	return nil
}

// SetMetadata sets one metadata entry on a run
func (s *RunStore) SetMetadata(runID, key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.runs[runID]; ok {
		if rec.Run.Metadata == nil {
			rec.Run.Metadata = make(map[string]string)
		}
		rec.Run.Metadata[key] = value
	}
}

// CalibratedScheme returns a copy of the best scheme found by a run
func (s *RunStore) CalibratedScheme(runID string) (*fuzzy.Scheme, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.runs[runID]
	if !ok || rec.calibrated == nil {
		return nil, false
	}
	return rec.calibrated.Clone(), true
}

// inputs returns the request, scheme and samples a run was submitted with
func (s *RunStore) inputs(runID string) (*RunRequest, *fuzzy.Scheme, []calibration.Sample, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.runs[runID]
	if !ok || rec.base == nil || rec.Request == nil {
		return nil, nil, nil, false
	}
	return rec.Request, rec.base, rec.samples, true
}

// snapshot copies a record's run; callers hold s.mu
func snapshot(rec *RunRecord) models.Run {
	run := rec.Run
	if p := rec.progress.Get(); p.Iteration > 0 {
		run.Progress = p
	}
	run.Metadata = maps.Clone(rec.Run.Metadata)
	if rec.Run.Summary != nil {
		summary := *rec.Run.Summary
		summary.Consequents = append([]float64(nil), rec.Run.Summary.Consequents...)
		run.Summary = &summary
	}
	return run
}
