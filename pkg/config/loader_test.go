package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/GoSim-25-26J-441/fuzzy-calibration/pkg/models"
)

func TestLoadServerConfig(t *testing.T) {
	cfg, err := LoadServerConfig("../../config/fuzzycal.yaml")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("Expected log_level 'info', got '%s'", cfg.LogLevel)
	}
	if cfg.GRPCAddr != ":50051" || cfg.HTTPAddr != ":8080" {
		t.Errorf("unexpected listen addresses %s %s", cfg.GRPCAddr, cfg.HTTPAddr)
	}
	if cfg.MaxConcurrentRuns != 4 {
		t.Errorf("Expected 4 concurrent runs, got %d", cfg.MaxConcurrentRuns)
	}
	if cfg.Annealing.CoolingRate != 0.995 {
		t.Errorf("Expected cooling rate 0.995, got %f", cfg.Annealing.CoolingRate)
	}
	if cfg.Annealing.RandomSeed != nil {
		t.Errorf("Expected no default random seed")
	}
	if cfg.Callbacks != DefaultCallbacks() {
		t.Errorf("unexpected callbacks %+v", cfg.Callbacks)
	}
}

func TestServerConfigDefaults(t *testing.T) {
	cfg, err := ParseServerConfigYAML([]byte("log_level: debug\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.GRPCAddr != ":50051" || cfg.MaxConcurrentRuns != 4 {
		t.Errorf("defaults not applied: %+v", cfg)
	}

	cfg, err = ParseServerConfigYAML([]byte("callbacks:\n  backoff: linear\n  max_retries: 5\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Callbacks.Backoff != "linear" || cfg.Callbacks.MaxRetries != 5 || cfg.Callbacks.BaseDelayMs != 1000 {
		t.Errorf("callback overrides not merged with defaults: %+v", cfg.Callbacks)
	}
}

func TestServerConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad log level", "log_level: verbose\n"},
		{"no listeners", "grpc_addr: \"\"\nhttp_addr: \"\"\n"},
		{"zero runs", "max_concurrent_runs: 0\n"},
		{"bad cooling rate", "annealing:\n  cooling_rate: 1.5\n"},
		{"bad backoff", "callbacks:\n  backoff: random\n"},
		{"negative retries", "callbacks:\n  max_retries: -1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseServerConfigYAML([]byte(tt.yaml)); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestLoadJob(t *testing.T) {
	job, err := LoadJob("../../config/jobs/n2o.yaml")
	if err != nil {
		t.Fatalf("Failed to load job: %v", err)
	}

	if job.Target != "n2o_flux" {
		t.Errorf("Expected target n2o_flux, got %s", job.Target)
	}
	if filepath.Base(job.Scheme) != "n2o_scheme.xml" || !strings.Contains(job.Scheme, filepath.Join("config", "jobs")) {
		t.Errorf("scheme path not resolved against job dir: %s", job.Scheme)
	}
	if _, err := os.Stat(job.Dataset); err != nil {
		t.Errorf("dataset path %s should exist: %v", job.Dataset, err)
	}
	if job.Annealing.RandomSeed == nil || *job.Annealing.RandomSeed != 42 {
		t.Errorf("Expected random seed 42")
	}
	if job.Annealing.MaxIterations != 20000 {
		t.Errorf("Expected 20000 iterations, got %d", job.Annealing.MaxIterations)
	}
	if job.Calibration.StepSize != 0.5 || job.Calibration.Upper != 50 {
		t.Errorf("unexpected calibration block %+v", job.Calibration)
	}
}

func TestJobValidation(t *testing.T) {
	tests := []struct {
		name      string
		yaml      string
		invalidCf bool
	}{
		{"missing scheme", "dataset: d.csv\ntarget: y\n", false},
		{"missing dataset", "scheme: s.xml\ntarget: y\n", false},
		{"missing target", "scheme: s.xml\ndataset: d.csv\n", false},
		{"negative temperature", "scheme: s.xml\ndataset: d.csv\ntarget: y\nannealing:\n  initial_temperature: -1\n", true},
		{"bad schedule", "scheme: s.xml\ndataset: d.csv\ntarget: y\nannealing:\n  schedule: cosine\n", true},
		{"bad selection", "scheme: s.xml\ndataset: d.csv\ntarget: y\nannealing:\n  selection: greedy\n", true},
		{"negative iterations", "scheme: s.xml\ndataset: d.csv\ntarget: y\nannealing:\n  max_iterations: -5\n", true},
		{"inverted bounds", "scheme: s.xml\ndataset: d.csv\ntarget: y\ncalibration:\n  lower: 5\n  upper: 1\n", true},
		{"bad metric", "scheme: s.xml\ndataset: d.csv\ntarget: y\ncalibration:\n  metric: mae\n", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseJobYAMLString(tt.yaml)
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if tt.invalidCf && !errors.Is(err, models.ErrInvalidConfiguration) {
				t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
			}
		})
	}
}

func TestAnnealingMerge(t *testing.T) {
	seed := int64(7)
	defaults := Annealing{InitialTemperature: 5, CoolingRate: 0.9, MaxIterations: 100, StallLimit: 10, RandomSeed: &seed, Schedule: "geometric", Selection: "random"}
	merged := Annealing{CoolingRate: 0.5}.Merge(defaults)

	if merged.CoolingRate != 0.5 {
		t.Errorf("explicit value overwritten: %f", merged.CoolingRate)
	}
	if merged.InitialTemperature != 5 || merged.MaxIterations != 100 || merged.StallLimit != 10 {
		t.Errorf("defaults not applied: %+v", merged)
	}
	if merged.RandomSeed == nil || *merged.RandomSeed != 7 {
		t.Errorf("seed not inherited")
	}
}

func TestLoadInvalidFile(t *testing.T) {
	if _, err := LoadServerConfig("nonexistent.yaml"); err == nil {
		t.Error("Expected error when loading nonexistent file")
	}
	if _, err := LoadJob("nonexistent.yaml"); err == nil {
		t.Error("Expected error when loading nonexistent job")
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "malformed.yaml")
	if err := os.WriteFile(tmpFile, []byte("scheme: [unclosed\n"), 0644); err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}

	if _, err := LoadJob(tmpFile); err == nil {
		t.Error("Expected error when loading malformed YAML")
	}
}
