// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads and validates the pilot configuration file.
//
// Configuration lives at ~/.pilot/pilot.yaml by default. On first run
// a file with safe defaults is written there so users have something
// concrete to edit.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianPilot/services/pilot/autonomy"
	"github.com/AleutianAI/AleutianPilot/services/pilot/llm"
)

const (
	// DefaultMaxIterations bounds the reasoning loop.
	DefaultMaxIterations = 10

	// DefaultTaskTimeout bounds a single task's wall-clock time.
	DefaultTaskTimeout = 5 * time.Minute

	// DefaultToolTimeout bounds a single tool execution.
	DefaultToolTimeout = 30 * time.Second

	// maxConfigBytes rejects config files that are implausibly large,
	// typically a sign the path points at the wrong file.
	maxConfigBytes = 1 << 20
)

// ErrConfigTooLarge indicates the config file exceeds the size limit.
var ErrConfigTooLarge = errors.New("config file exceeds 1 MiB limit")

// Config is the full pilot configuration.
type Config struct {
	// MaxIterations bounds the reasoning loop per task.
	MaxIterations int `yaml:"max_iterations" validate:"min=1,max=1000"`

	// TaskTimeout bounds a task's total wall-clock time.
	TaskTimeout time.Duration `yaml:"task_timeout" validate:"min=1s"`

	// ToolTimeout bounds each individual tool execution.
	ToolTimeout time.Duration `yaml:"tool_timeout" validate:"min=100ms"`

	// Autonomy configures escalation thresholds and factor weights.
	Autonomy autonomy.Config `yaml:"autonomy"`

	// Reasoner configures the LLM collaborator.
	Reasoner ReasonerConfig `yaml:"reasoner"`

	// Storage configures checkpoint and task persistence.
	Storage StorageConfig `yaml:"storage"`

	// Logging configures log output.
	Logging LoggingConfig `yaml:"logging"`
}

// ReasonerConfig selects and tunes the reasoning collaborator.
type ReasonerConfig struct {
	// Backend is "openai" or "rule". The rule backend is a
	// deterministic offline fallback with no network dependency.
	Backend string `yaml:"backend" validate:"oneof=openai rule"`

	// Model names the chat model for the openai backend.
	Model string `yaml:"model,omitempty"`

	// BaseURL overrides the API endpoint, e.g. for a local
	// OpenAI-compatible server.
	BaseURL string `yaml:"base_url,omitempty"`

	// APIKeyEnv names the environment variable holding the API key.
	// The key itself is never written to the config file.
	APIKeyEnv string `yaml:"api_key_env,omitempty"`

	// Retry tunes backoff behavior for transient API failures.
	Retry llm.RetryPolicy `yaml:"retry"`

	// RateLimit caps reasoning calls per second (0 = default).
	RateLimit float64 `yaml:"rate_limit" validate:"min=0"`
}

// StorageConfig configures the badger-backed persistence layer.
type StorageConfig struct {
	// Dir is where task and checkpoint data is stored. Supports ~.
	Dir string `yaml:"dir"`

	// InMemory disables disk persistence; state is lost on exit.
	InMemory bool `yaml:"in_memory"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	// Level is debug, info, warn, or error.
	Level string `yaml:"level" validate:"oneof=debug info warn error"`

	// Dir enables JSON file logging when set. Supports ~.
	Dir string `yaml:"dir,omitempty"`

	// JSON switches stderr output to JSON.
	JSON bool `yaml:"json"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		MaxIterations: DefaultMaxIterations,
		TaskTimeout:   DefaultTaskTimeout,
		ToolTimeout:   DefaultToolTimeout,
		Autonomy:      autonomy.DefaultConfig(),
		Reasoner: ReasonerConfig{
			Backend:   "rule",
			Model:     "gpt-4o-mini",
			APIKeyEnv: "OPENAI_API_KEY",
			Retry:     llm.DefaultRetryPolicy(),
		},
		Storage: StorageConfig{
			Dir: "~/.pilot/data",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultPath returns ~/.pilot/pilot.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not find the user's home directory: %w", err)
	}
	return filepath.Join(home, ".pilot", "pilot.yaml"), nil
}

// Load reads and validates the config at path, creating it with
// defaults on first run.
func Load(path string) (Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := writeDefault(path); err != nil {
			return Config{}, err
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to stat the config file: %w", err)
	}
	if info.Size() > maxConfigBytes {
		return Config{}, fmt.Errorf("%w: %s is %d bytes", ErrConfigTooLarge, path, info.Size())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read the config file: %w", err)
	}
	return Parse(data)
}

// Parse unmarshals and validates config YAML. Omitted fields take
// their defaults.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse the config file: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field bounds and cross-field constraints.
func Validate(cfg Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Autonomy.SupervisedThreshold > cfg.Autonomy.AutonomousThreshold {
		return fmt.Errorf("invalid config: supervised threshold %.2f exceeds autonomous threshold %.2f",
			cfg.Autonomy.SupervisedThreshold, cfg.Autonomy.AutonomousThreshold)
	}
	return nil
}

func writeDefault(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create the config directory: %w", err)
	}
	data, err := yaml.Marshal(Default())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0640)
}
