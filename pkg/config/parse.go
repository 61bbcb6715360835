package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ParseServerConfigYAML parses a ServerConfig from YAML bytes, applies
// defaults and validates it.
func ParseServerConfigYAML(data []byte) (*ServerConfig, error) {
	cfg := DefaultServerConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse server config yaml: %w", err)
	}

	if err := validateServerConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid server config: %w", err)
	}

	return cfg, nil
}

// ParseJobYAML parses a Job from YAML bytes and validates it.
// Relative paths are kept as written; LoadJob resolves them.
func ParseJobYAML(data []byte) (*Job, error) {
	var job Job
	if err := yaml.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to parse job yaml: %w", err)
	}

	if err := validateJob(&job); err != nil {
		return nil, fmt.Errorf("invalid job: %w", err)
	}

	return &job, nil
}

// ParseJobYAMLString parses a Job from a YAML string and validates it.
func ParseJobYAMLString(yamlText string) (*Job, error) {
	return ParseJobYAML([]byte(yamlText))
}
