// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

// TestLoad_FirstRunCreatesDefault verifies default config creation.
func TestLoad_FirstRunCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".pilot", "pilot.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Fatal("config file was not created")
	}
	if cfg.MaxIterations != DefaultMaxIterations {
		t.Errorf("MaxIterations = %d, want %d", cfg.MaxIterations, DefaultMaxIterations)
	}
	if cfg.Reasoner.Backend != "rule" {
		t.Errorf("Reasoner.Backend = %q, want %q", cfg.Reasoner.Backend, "rule")
	}
}

// TestLoad_ExistingFile verifies overrides merge onto defaults.
func TestLoad_ExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pilot.yaml")
	content := []byte("max_iterations: 25\nreasoner:\n  backend: openai\n  model: gpt-4o\n")
	if err := os.WriteFile(path, content, 0640); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.MaxIterations != 25 {
		t.Errorf("MaxIterations = %d, want 25", cfg.MaxIterations)
	}
	if cfg.Reasoner.Model != "gpt-4o" {
		t.Errorf("Reasoner.Model = %q, want %q", cfg.Reasoner.Model, "gpt-4o")
	}
	// Untouched fields keep their defaults.
	if cfg.TaskTimeout != DefaultTaskTimeout {
		t.Errorf("TaskTimeout = %v, want %v", cfg.TaskTimeout, DefaultTaskTimeout)
	}
}

// TestLoad_RejectsOversizedFile verifies the size limit.
func TestLoad_RejectsOversizedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pilot.yaml")
	big := make([]byte, maxConfigBytes+1)
	for i := range big {
		big[i] = '#'
	}
	if err := os.WriteFile(path, big, 0640); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	_, err := Load(path)
	if !errors.Is(err, ErrConfigTooLarge) {
		t.Errorf("Load() error = %v, want ErrConfigTooLarge", err)
	}
}

// TestParse_Validation verifies bounds checking.
func TestParse_Validation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr bool
	}{
		{"valid minimal", "max_iterations: 1\n", false},
		{"zero iterations", "max_iterations: 0\n", true},
		{"excessive iterations", "max_iterations: 5000\n", true},
		{"unknown backend", "reasoner:\n  backend: psychic\n", true},
		{"negative rate limit", "reasoner:\n  rate_limit: -1\n", true},
		{"invalid log level", "logging:\n  level: loud\n", true},
		{"inverted thresholds", "autonomy:\n  supervised_threshold: 0.8\n  autonomous_threshold: 0.4\n", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if (err != nil) != tt.wantErr {
				t.Errorf("Parse() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// TestDefault_RoundTrips verifies the defaults survive YAML encoding.
func TestDefault_RoundTrips(t *testing.T) {
	data, err := yaml.Marshal(Default())
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.ToolTimeout != 30*time.Second {
		t.Errorf("ToolTimeout = %v, want 30s", cfg.ToolTimeout)
	}
	if cfg.Autonomy.SupervisedThreshold != 0.3 {
		t.Errorf("SupervisedThreshold = %v, want 0.3", cfg.Autonomy.SupervisedThreshold)
	}
}

// TestDefault_IsValid guards against drift between defaults and rules.
func TestDefault_IsValid(t *testing.T) {
	if err := Validate(Default()); err != nil {
		t.Errorf("Validate(Default()) = %v", err)
	}
}
