package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/GoSim-25-26J-441/fuzzy-calibration/pkg/models"
)

// DefaultServerConfig returns the daemon defaults
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		LogLevel:          "info",
		GRPCAddr:          ":50051",
		HTTPAddr:          ":8080",
		MaxConcurrentRuns: 4,
		Callbacks:         DefaultCallbacks(),
	}
}

// DefaultCallbacks returns the notification delivery defaults
func DefaultCallbacks() Callbacks {
	return Callbacks{
		MaxRetries:  3,
		Backoff:     "exponential",
		BaseDelayMs: 1000,
		MaxDelayMs:  30000,
		TimeoutMs:   10000,
	}
}

// LoadServerConfig loads and parses a daemon configuration file
func LoadServerConfig(path string) (*ServerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	cfg, err := ParseServerConfigYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// LoadJob loads and parses a calibration job file. Relative scheme, dataset
// and output paths are resolved against the job file's directory.
func LoadJob(path string) (*Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read job file %s: %w", path, err)
	}
	job, err := ParseJobYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse job file %s: %w", path, err)
	}
	dir := filepath.Dir(path)
	job.Scheme = resolve(dir, job.Scheme)
	job.Dataset = resolve(dir, job.Dataset)
	if job.Output != "" {
		job.Output = resolve(dir, job.Output)
	}
	return job, nil
}

func resolve(dir, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

// validateServerConfig performs validation on the daemon configuration
func validateServerConfig(cfg *ServerConfig) error {
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[cfg.LogLevel] {
		return fmt.Errorf("invalid log_level: %s (must be debug, info, warn, or error)", cfg.LogLevel)
	}
	if cfg.GRPCAddr == "" && cfg.HTTPAddr == "" {
		return fmt.Errorf("at least one of grpc_addr or http_addr must be set")
	}
	if cfg.MaxConcurrentRuns <= 0 {
		return fmt.Errorf("max_concurrent_runs must be positive")
	}
	if err := ValidateAnnealing(cfg.Annealing); err != nil {
		return fmt.Errorf("annealing validation failed: %w", err)
	}
	if err := validateCallbacks(cfg.Callbacks); err != nil {
		return fmt.Errorf("callbacks validation failed: %w", err)
	}
	return nil
}

func validateCallbacks(c Callbacks) error {
	switch c.Backoff {
	case "constant", "linear", "exponential":
	default:
		return fmt.Errorf("invalid backoff: %s (must be constant, linear, or exponential)", c.Backoff)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative")
	}
	if c.BaseDelayMs < 0 || c.MaxDelayMs < 0 || c.TimeoutMs <= 0 {
		return fmt.Errorf("delays cannot be negative and timeout_ms must be positive")
	}
	return nil
}

// validateJob validates a calibration job
func validateJob(job *Job) error {
	if job.Scheme == "" {
		return fmt.Errorf("scheme path is required")
	}
	if job.Dataset == "" {
		return fmt.Errorf("dataset path is required")
	}
	if job.Target == "" {
		return fmt.Errorf("target column is required")
	}
	if err := ValidateAnnealing(job.Annealing); err != nil {
		return fmt.Errorf("annealing validation failed: %w", err)
	}
	if err := validateCalibration(job.Calibration); err != nil {
		return fmt.Errorf("calibration validation failed: %w", err)
	}
	return nil
}

// ValidateAnnealing checks the annealing options that are set. Zero values
// are left to the optimizer defaults.
func ValidateAnnealing(a Annealing) error {
	if a.InitialTemperature < 0 || math.IsNaN(a.InitialTemperature) {
		return fmt.Errorf("%w: initial_temperature must be positive", models.ErrInvalidConfiguration)
	}
	if a.CoolingRate < 0 || a.CoolingRate >= 1 {
		return fmt.Errorf("%w: cooling_rate must be in (0, 1), got %g", models.ErrInvalidConfiguration, a.CoolingRate)
	}
	if a.MinTemperature < 0 {
		return fmt.Errorf("%w: min_temperature cannot be negative", models.ErrInvalidConfiguration)
	}
	if a.MaxIterations < 0 {
		return fmt.Errorf("%w: max_iterations must be positive", models.ErrInvalidConfiguration)
	}
	if a.StallLimit < 0 {
		return fmt.Errorf("%w: stall_limit must be positive", models.ErrInvalidConfiguration)
	}
	switch a.Schedule {
	case "", "geometric", "linear":
	default:
		return fmt.Errorf("%w: schedule must be geometric or linear, got %s", models.ErrInvalidConfiguration, a.Schedule)
	}
	switch a.Selection {
	case "", "random", "sequential":
	default:
		return fmt.Errorf("%w: selection must be random or sequential, got %s", models.ErrInvalidConfiguration, a.Selection)
	}
	return nil
}

func validateCalibration(c Calibration) error {
	if c.StepSize < 0 {
		return fmt.Errorf("%w: step_size cannot be negative", models.ErrInvalidConfiguration)
	}
	if c.Upper < c.Lower {
		return fmt.Errorf("%w: upper bound is below lower bound", models.ErrInvalidConfiguration)
	}
	switch c.Metric {
	case "", "sse", "mse", "rmse":
	default:
		return fmt.Errorf("%w: metric must be sse, mse or rmse, got %s", models.ErrInvalidConfiguration, c.Metric)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers cannot be negative", models.ErrInvalidConfiguration)
	}
	return nil
}
