// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package autonomy

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/AleutianAI/AleutianPilot/services/pilot/agent"
)

// Manager makes the continue/escalate/complete decisions.
//
// Description:
//
//	Decide sums the weights of the risky factors and compares the sum
//	against the mode's threshold; manual mode escalates
//	unconditionally. AssessCompletion scores five independent
//	indicators against the completion threshold. Both are pure reads
//	of the snapshot.
//
// Thread Safety: Manager is safe for concurrent use; the mode and
// config may be changed at runtime.
type Manager struct {
	logger *slog.Logger

	mu   sync.RWMutex
	mode Mode
	cfg  Config
}

// NewManager creates a manager in the given mode. An invalid mode
// falls back to supervised.
func NewManager(mode Mode, cfg Config, logger *slog.Logger) *Manager {
	if !mode.Valid() {
		mode = ModeSupervised
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		logger: logger,
		mode:   mode,
		cfg:    cfg.withDefaults(),
	}
}

// Mode returns the current operation mode.
func (m *Manager) Mode() Mode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.mode
}

// SetMode changes the operation mode.
func (m *Manager) SetMode(mode Mode) error {
	if !mode.Valid() {
		return fmt.Errorf("autonomy: invalid mode %q", mode)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mode = mode
	return nil
}

// Configure replaces the weights and thresholds.
func (m *Manager) Configure(cfg Config) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg = cfg.withDefaults()
}

// Config returns a copy of the active configuration.
func (m *Manager) Config() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// Decide evaluates the risk factors and produces the escalation
// decision for this iteration.
func (m *Manager) Decide(snap *agent.Snapshot) *Decision {
	m.mu.RLock()
	mode := m.mode
	cfg := m.cfg
	m.mu.RUnlock()

	factors := evaluateFactors(snap, cfg)

	risk := 0.0
	var triggers []string
	for _, f := range factors {
		if f.IsRisky {
			risk += f.Weight
			triggers = append(triggers, f.Trigger)
		}
	}

	d := &Decision{RiskScore: risk, Factors: factors}

	switch mode {
	case ModeManual:
		d.Escalate = true
		d.Reason = "manual mode always requires human review"
	case ModeAutonomous:
		d.Escalate = risk >= cfg.AutonomousThreshold
	default:
		d.Escalate = risk >= cfg.SupervisedThreshold
	}

	if d.Escalate {
		d.Confidence = minf(0.9, risk)
		if d.Reason == "" {
			d.Reason = fmt.Sprintf("risk %.2f at or above the %s threshold: %s",
				risk, mode, strings.Join(triggers, "; "))
		}
	} else {
		d.Confidence = maxf(0.1, 1-risk)
		d.Reason = fmt.Sprintf("risk %.2f below the %s threshold", risk, mode)
	}

	m.logger.Debug("Autonomy decision",
		slog.String("session_id", snap.SessionID),
		slog.String("mode", string(mode)),
		slog.Float64("risk", risk),
		slog.Bool("escalate", d.Escalate),
	)
	return d
}
