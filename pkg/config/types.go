package config

// ServerConfig represents the calibration daemon configuration
type ServerConfig struct {
	LogLevel          string    `yaml:"log_level"`
	GRPCAddr          string    `yaml:"grpc_addr"`
	HTTPAddr          string    `yaml:"http_addr"`
	DataDir           string    `yaml:"data_dir"` // empty keeps calibrated schemes in memory
	MaxConcurrentRuns int       `yaml:"max_concurrent_runs"`
	Annealing         Annealing `yaml:"annealing"` // defaults for runs that omit options
	Callbacks         Callbacks `yaml:"callbacks"`
}

// Callbacks configures delivery of run completion notifications
type Callbacks struct {
	MaxRetries  int    `yaml:"max_retries"`
	Backoff     string `yaml:"backoff"` // constant, linear, exponential
	BaseDelayMs int    `yaml:"base_delay_ms"`
	MaxDelayMs  int    `yaml:"max_delay_ms"`
	TimeoutMs   int    `yaml:"timeout_ms"`
}

// Job represents an offline calibration job run by the CLI
type Job struct {
	Name        string      `yaml:"name"`
	Scheme      string      `yaml:"scheme"`  // path to the scheme document
	Dataset     string      `yaml:"dataset"` // path to the CSV samples
	Target      string      `yaml:"target"`  // CSV column holding the observed value
	Output      string      `yaml:"output"`  // path for the calibrated scheme
	Annealing   Annealing   `yaml:"annealing"`
	Calibration Calibration `yaml:"calibration"`
}

// Annealing holds simulated annealing options. Zero values select defaults.
type Annealing struct {
	InitialTemperature float64 `yaml:"initial_temperature" json:"initial_temperature,omitempty"`
	CoolingRate        float64 `yaml:"cooling_rate" json:"cooling_rate,omitempty"`
	MinTemperature     float64 `yaml:"min_temperature" json:"min_temperature,omitempty"`
	MaxIterations      int     `yaml:"max_iterations" json:"max_iterations,omitempty"`
	StallLimit         int     `yaml:"stall_limit" json:"stall_limit,omitempty"`
	RandomSeed         *int64  `yaml:"random_seed,omitempty" json:"random_seed,omitempty"`
	Schedule           string  `yaml:"schedule" json:"schedule,omitempty"`   // geometric, linear
	Selection          string  `yaml:"selection" json:"selection,omitempty"` // random, sequential
	RecordHistory      bool    `yaml:"record_history" json:"record_history,omitempty"`
}

// Calibration holds options for perturbing and scoring a fuzzy scheme
type Calibration struct {
	StepSize float64 `yaml:"step_size" json:"step_size,omitempty"`
	Lower    float64 `yaml:"lower" json:"lower,omitempty"`
	Upper    float64 `yaml:"upper" json:"upper,omitempty"`
	Metric   string  `yaml:"metric" json:"metric,omitempty"` // sse, mse, rmse
	Workers  int     `yaml:"workers" json:"workers,omitempty"`
}

// Merge returns a with every zero field filled from defaults
func (a Annealing) Merge(defaults Annealing) Annealing {
	if a.InitialTemperature == 0 {
		a.InitialTemperature = defaults.InitialTemperature
	}
	if a.CoolingRate == 0 {
		a.CoolingRate = defaults.CoolingRate
	}
	if a.MinTemperature == 0 {
		a.MinTemperature = defaults.MinTemperature
	}
	if a.MaxIterations == 0 {
		a.MaxIterations = defaults.MaxIterations
	}
	if a.StallLimit == 0 {
		a.StallLimit = defaults.StallLimit
	}
	if a.RandomSeed == nil {
		a.RandomSeed = defaults.RandomSeed
	}
	if a.Schedule == "" {
		a.Schedule = defaults.Schedule
	}
	if a.Selection == "" {
		a.Selection = defaults.Selection
	}
	return a
}
