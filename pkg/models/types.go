package models

import (
	"sync"
	"time"
)

// RunStatus represents the status of a calibration run
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// IsTerminal reports whether a run in this status can no longer change.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusFailed, RunStatusCancelled:
		return true
	}
	return false
}

// Run represents a calibration run as exposed over the API
type Run struct {
	ID         string            `json:"id"`
	Status     RunStatus         `json:"status"`
	SchemeName string            `json:"scheme_name"`
	CreatedAt  time.Time         `json:"created_at"`
	StartedAt  time.Time         `json:"started_at,omitempty"`
	EndedAt    time.Time         `json:"ended_at,omitempty"`
	Progress   RunProgress       `json:"progress"`
	Summary    *RunSummary       `json:"summary,omitempty"`
	Error      string            `json:"error,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// RunProgress is the latest progress point reported by the optimizer
type RunProgress struct {
	Iteration   int     `json:"iteration"`
	Temperature float64 `json:"temperature"`
	BestFitness float64 `json:"best_fitness"`
}

// RunSummary contains the final outcome of a finished calibration run
type RunSummary struct {
	InitialFitness   float64   `json:"initial_fitness"`
	BestFitness      float64   `json:"best_fitness"`
	Iterations       int       `json:"iterations"`
	Accepted         int       `json:"accepted"`
	Rejected         int       `json:"rejected"`
	FinalTemperature float64   `json:"final_temperature"`
	StopReason       string    `json:"stop_reason"`
	Consequents      []float64 `json:"consequents"`
}

// ProgressTracker holds the progress of a running calibration (thread-safe)
type ProgressTracker struct {
	mu       sync.RWMutex
	progress RunProgress
}

// Update records a new progress point
func (p *ProgressTracker) Update(iteration int, temperature, bestFitness float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.progress = RunProgress{
		Iteration:   iteration,
		Temperature: temperature,
		BestFitness: bestFitness,
	}
}

// Get returns the last recorded progress point
func (p *ProgressTracker) Get() RunProgress {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.progress
}
