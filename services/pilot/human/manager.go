// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package human

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianPilot/services/pilot/agent"
)

const (
	// DefaultMaxLLMCalls is the reasoning-call budget used for
	// resource-exhaustion detection.
	DefaultMaxLLMCalls = 50

	// DefaultMaxDuration is the wall-clock budget used for
	// resource-exhaustion detection.
	DefaultMaxDuration = 10 * time.Minute

	// maxCommunications bounds the progress communication history.
	maxCommunications = 50
)

// ProgressReport is one rendered progress communication.
type ProgressReport struct {
	// SessionID identifies the task.
	SessionID string `json:"session_id"`

	// Iteration is the loop iteration at render time.
	Iteration int `json:"iteration"`

	// Status is the task status at render time.
	Status agent.TaskStatus `json:"status"`

	// Confidence is the task confidence at render time.
	Confidence float64 `json:"confidence"`

	// Summary is the human-readable progress text.
	Summary string `json:"summary"`

	// Timestamp is when the report was rendered.
	Timestamp time.Time `json:"timestamp"`
}

// Manager runs the blocker detectors and renders progress reports.
//
// Description:
//
//	DetectBlocker runs all six detectors and surfaces at most one
//	blocker per evaluation, chosen by the fixed priority order.
//	RecordProgress is a pure formatter over the snapshot; its only
//	side effect is appending to the bounded communication history.
//
// Thread Safety: Manager is safe for concurrent use.
type Manager struct {
	logger      *slog.Logger
	maxLLMCalls int
	maxDuration time.Duration

	mu    sync.Mutex
	comms []ProgressReport
}

// Option configures a Manager.
type Option func(*Manager)

// WithResourceCaps overrides the budgets used by the
// resource-exhaustion detector.
func WithResourceCaps(maxLLMCalls int, maxDuration time.Duration) Option {
	return func(m *Manager) {
		if maxLLMCalls > 0 {
			m.maxLLMCalls = maxLLMCalls
		}
		if maxDuration > 0 {
			m.maxDuration = maxDuration
		}
	}
}

// WithLogger sets the manager logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager creates a human interaction manager with default budgets.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		logger:      slog.Default(),
		maxLLMCalls: DefaultMaxLLMCalls,
		maxDuration: DefaultMaxDuration,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// DetectBlocker runs all detectors and returns the highest-priority
// blocker, or nil when none fire.
func (m *Manager) DetectBlocker(snap *agent.Snapshot) *agent.Blocker {
	found := map[agent.BlockerType]*agent.Blocker{}

	if b := detectSafety(snap); b != nil {
		found[b.Type] = b
	}
	if b := detectRepeatedFailures(snap); b != nil {
		found[b.Type] = b
	}
	if b := m.detectResourceExhaustion(snap); b != nil {
		found[b.Type] = b
	}
	if b := detectComplexityOverload(snap); b != nil {
		found[b.Type] = b
	}
	if b := detectLowConfidenceStagnation(snap); b != nil {
		found[b.Type] = b
	}
	if b := detectAmbiguousRequirements(snap); b != nil {
		found[b.Type] = b
	}

	for _, t := range surfacePriority {
		if b, ok := found[t]; ok {
			m.logger.Info("Blocker surfaced",
				slog.String("session_id", snap.SessionID),
				slog.String("type", string(b.Type)),
				slog.String("severity", string(b.Severity)),
			)
			return b
		}
	}
	return nil
}

// CheckpointPriority maps blocker severity to checkpoint priority.
func CheckpointPriority(severity agent.Severity) agent.Severity {
	switch severity {
	case agent.SeverityHigh:
		return agent.SeverityHigh
	case agent.SeverityMedium:
		return agent.SeverityMedium
	default:
		return agent.SeverityLow
	}
}

// RecordProgress renders a progress report and appends it to the
// bounded communication history.
func (m *Manager) RecordProgress(snap *agent.Snapshot) ProgressReport {
	report := ProgressReport{
		SessionID:  snap.SessionID,
		Iteration:  snap.CurrentIteration,
		Status:     snap.Status,
		Confidence: snap.Confidence,
		Summary:    FormatProgress(snap),
		Timestamp:  time.Now(),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.comms = append(m.comms, report)
	if len(m.comms) > maxCommunications {
		m.comms = m.comms[len(m.comms)-maxCommunications:]
	}
	return report
}

// Communications returns a copy of the communication history, oldest
// first.
func (m *Manager) Communications() []ProgressReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ProgressReport(nil), m.comms...)
}

// FormatProgress renders a human-readable progress summary.
func FormatProgress(snap *agent.Snapshot) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Iteration %d of %d, status %s, confidence %.2f.",
		snap.CurrentIteration, snap.MaxIterations, snap.Status, snap.Confidence)

	if last := snap.LastReasoning(); last != nil {
		fmt.Fprintf(&b, " Latest thinking: %s", truncate(last.Content, 160))
	}
	if n := len(snap.Errors); n > 0 {
		fmt.Fprintf(&b, " Errors so far: %d.", n)
	}
	if snap.Metrics.ToolCalls > 0 {
		fmt.Fprintf(&b, " Tool calls: %d (%d succeeded).",
			snap.Metrics.ToolCalls, snap.Metrics.Successes)
	}
	if snap.AwaitingHumanInput {
		b.WriteString(" Waiting on human input.")
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
