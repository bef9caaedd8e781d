// Package config carries coordinator-level settings with YAML loading and
// sensible defaults.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Settings configures a workflow coordinator.
type Settings struct {
	// ErrorBufferSize is the capacity of the passive error-notification
	// stream. Zero selects the engine default.
	ErrorBufferSize int `yaml:"error_buffer_size" json:"error_buffer_size"`

	// MetricsNamespace prefixes all prometheus metric names.
	MetricsNamespace string `yaml:"metrics_namespace" json:"metrics_namespace"`

	// Redis, when set, selects the Redis-backed state store instead of the
	// in-process one.
	Redis *RedisSettings `yaml:"redis,omitempty" json:"redis,omitempty"`

	// DefaultWorkflow applies to workflows created without a configuration.
	DefaultWorkflow WorkflowDefaults `yaml:"default_workflow" json:"default_workflow"`
}

// RedisSettings configures the Redis state store backend.
type RedisSettings struct {
	Addr      string `yaml:"addr" json:"addr"`
	Password  string `yaml:"password" json:"password"`
	DB        int    `yaml:"db" json:"db"`
	KeyPrefix string `yaml:"key_prefix" json:"key_prefix"`
}

// WorkflowDefaults mirrors the per-workflow configuration knobs.
type WorkflowDefaults struct {
	TimeoutSeconds float64 `yaml:"timeout_seconds" json:"timeout_seconds"`
	RetryAttempts  int     `yaml:"retry_attempts" json:"retry_attempts"`
	Parallel       bool    `yaml:"parallel" json:"parallel"`
	MemoryEnabled  bool    `yaml:"memory_enabled" json:"memory_enabled"`
	LoggingEnabled bool    `yaml:"logging_enabled" json:"logging_enabled"`
}

// Default returns the settings applied when no file is loaded.
func Default() Settings {
	return Settings{
		ErrorBufferSize:  64,
		MetricsNamespace: "flowmesh",
		DefaultWorkflow: WorkflowDefaults{
			TimeoutSeconds: 30,
			LoggingEnabled: true,
		},
	}
}

// Parse decodes YAML settings over the defaults, so absent fields keep
// their default values.
func Parse(data []byte) (Settings, error) {
	s := Default()
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("parse settings: %w", err)
	}
	return s, nil
}

// Load reads and parses a YAML settings file.
func Load(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("read settings file: %w", err)
	}
	return Parse(data)
}
