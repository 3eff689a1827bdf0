// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package recovery

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianPilot/services/pilot/agent"
)

const (
	// DefaultMaxAttempts is the per-classification firing cap inside the
	// rate window.
	DefaultMaxAttempts = 3

	// DefaultRateWindow is the trailing window for the firing cap.
	DefaultRateWindow = 5 * time.Minute

	// historyCap bounds the recovery attempt history.
	historyCap = 100

	// historyTrim is the retained size after an overflow trim.
	historyTrim = 50

	// maxPenalty and maxBonus bound the aggregate confidence adjustment.
	maxPenalty = -0.3
	maxBonus   = 0.1
)

// attempt records one strategy firing for rate limiting.
type attempt struct {
	classification Classification
	at             time.Time
}

// System matches classified errors to rate-limited recovery strategies.
//
// Description:
//
//	Plan classifies the latest error observation, looks up the single
//	strategy registered for that classification, and, when under the
//	rate limit, invokes the strategy's factory to produce a plan. The
//	attempt history is append-only and capped; on overflow it is
//	trimmed to the most recent entries.
//
// Thread Safety: System is safe for concurrent use.
type System struct {
	maxAttempts int
	window      time.Duration
	logger      *slog.Logger
	now         func() time.Time

	mu         sync.Mutex
	strategies map[Classification]Strategy
	history    []attempt
}

// Option configures a System.
type Option func(*System)

// WithMaxAttempts overrides the per-classification firing cap.
func WithMaxAttempts(n int) Option {
	return func(s *System) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithRateWindow overrides the trailing rate window.
func WithRateWindow(d time.Duration) Option {
	return func(s *System) {
		if d > 0 {
			s.window = d
		}
	}
}

// WithLogger sets the system logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *System) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(s *System) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSystem creates a recovery system with the built-in strategy set.
func NewSystem(opts ...Option) *System {
	s := &System{
		maxAttempts: DefaultMaxAttempts,
		window:      DefaultRateWindow,
		logger:      slog.Default(),
		now:         time.Now,
		strategies:  builtinStrategies(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterStrategy replaces the strategy for a classification.
func (s *System) RegisterStrategy(strategy Strategy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.strategies[strategy.Classification] = strategy
}

// Plan classifies the latest error and produces a recovery plan.
//
// Inputs:
//
//	snap - State snapshot; the observation history is consulted.
//
// Outputs:
//
//	*Plan - Nil when no error observation exists. A plan for a
//	        non-recoverable classification or a rate-limited strategy
//	        carries no actions but still reports the classification.
func (s *System) Plan(snap *agent.Snapshot) *Plan {
	classification, latest := Classify(snap)
	if latest == nil {
		return nil
	}

	plan := &Plan{
		Classification: classification,
		Recoverable:    classification.Recoverable(),
		GeneratedAt:    s.now(),
	}
	if !plan.Recoverable {
		return plan
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	strategy, ok := s.strategies[classification]
	if !ok {
		return plan
	}

	if s.recentAttempts(classification) >= s.maxAttempts {
		plan.RateLimited = true
		s.logger.Warn("Recovery rate limit reached",
			slog.String("classification", string(classification)),
			slog.Int("max_attempts", s.maxAttempts),
		)
		return plan
	}

	action := strategy.Factory(latest, snap)
	plan.Actions = append(plan.Actions, action)
	plan.ConfidenceAdjustment = aggregateAdjustment(snap, plan.Actions)

	s.history = append(s.history, attempt{classification: classification, at: s.now()})
	if len(s.history) > historyCap {
		s.history = s.history[len(s.history)-historyTrim:]
	}

	s.logger.Info("Recovery plan produced",
		slog.String("classification", string(classification)),
		slog.String("action", action.Type),
		slog.Float64("adjustment", plan.ConfidenceAdjustment),
	)
	return plan
}

// recentAttempts counts firings for a classification inside the window.
// Caller holds s.mu.
func (s *System) recentAttempts(c Classification) int {
	cutoff := s.now().Add(-s.window)
	n := 0
	for _, a := range s.history {
		if a.classification == c && a.at.After(cutoff) {
			n++
		}
	}
	return n
}

// aggregateAdjustment combines the error-volume penalty, the
// available-strategy bonus, and the mean action impact, clamped to
// [maxPenalty, maxBonus].
func aggregateAdjustment(snap *agent.Snapshot, actions []agent.RecoveryAction) float64 {
	errorCount := countErrors(snap.RecentObservations(5))
	adj := -0.05 * float64(errorCount)
	adj += 0.03 * float64(len(actions))

	if len(actions) > 0 {
		var mean float64
		for _, a := range actions {
			mean += a.ConfidenceImpact
		}
		adj += mean / float64(len(actions))
	}

	if adj < maxPenalty {
		adj = maxPenalty
	}
	if adj > maxBonus {
		adj = maxBonus
	}
	return adj
}

// builtinStrategies returns the fixed strategy per recoverable class.
func builtinStrategies() map[Classification]Strategy {
	return map[Classification]Strategy{
		ClassParameterValidation: {
			Classification: ClassParameterValidation,
			Priority:       0.9,
			Factory: func(latest *agent.Observation, _ *agent.Snapshot) agent.RecoveryAction {
				return agent.RecoveryAction{
					Type:        "fix_parameters",
					Description: fmt.Sprintf("Correct the parameters for %s and retry", sourceOf(latest)),
					Actions: []string{
						"re-derive required parameters from the query",
						"apply declared defaults for optional parameters",
						"retry the tool call with corrected parameters",
					},
					ExpectedOutcome:  "tool accepts the corrected parameters",
					ConfidenceImpact: -0.02,
				}
			},
		},
		ClassToolExecutionFailed: {
			Classification: ClassToolExecutionFailed,
			Priority:       0.8,
			Factory: func(latest *agent.Observation, _ *agent.Snapshot) agent.RecoveryAction {
				return agent.RecoveryAction{
					Type:        "retry_tool",
					Description: fmt.Sprintf("Retry %s once before considering alternatives", sourceOf(latest)),
					Actions: []string{
						"retry the failed tool call",
						"fall back to an alternative tool in the same category",
						"continue reasoning without the tool result",
					},
					ExpectedOutcome:  "tool call succeeds on retry",
					ConfidenceImpact: -0.05,
				}
			},
		},
		ClassNetworkFailure: {
			Classification: ClassNetworkFailure,
			Priority:       0.7,
			Factory: func(latest *agent.Observation, _ *agent.Snapshot) agent.RecoveryAction {
				return agent.RecoveryAction{
					Type:        "retry_with_backoff",
					Description: fmt.Sprintf("Back off, then retry %s", sourceOf(latest)),
					Actions: []string{
						"wait before retrying the call",
						"retry with an extended timeout",
						"report the outage if the retry fails",
					},
					ExpectedOutcome:  "transient network failure clears",
					ConfidenceImpact: -0.1,
				}
			},
		},
		ClassStrategyIneffective: {
			Classification: ClassStrategyIneffective,
			Priority:       0.6,
			Factory: func(_ *agent.Observation, snap *agent.Snapshot) agent.RecoveryAction {
				return agent.RecoveryAction{
					Type:        "change_strategy",
					Description: fmt.Sprintf("Abandon strategy %q after repeated failures", snap.Strategy),
					Actions: []string{
						"switch to a different tool or approach",
						"decompose the task into smaller steps",
						"re-read the query for missed constraints",
					},
					ExpectedOutcome:  "a different approach breaks the failure run",
					ConfidenceImpact: -0.15,
				}
			},
		},
	}
}

func sourceOf(latest *agent.Observation) string {
	if latest != nil && latest.ToolName != "" {
		return "tool " + latest.ToolName
	}
	return "the failed operation"
}
