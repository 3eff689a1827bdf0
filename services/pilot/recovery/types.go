// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package recovery classifies recent error observations and produces
// rate-limited recovery plans.
//
// Classification is a fixed decision tree over the most recent
// error-type observation. Each recoverable classification maps to
// exactly one strategy with a fixed priority; a strategy may fire at
// most MaxAttempts times per classification within a trailing window.
package recovery

import (
	"time"

	"github.com/AleutianAI/AleutianPilot/services/pilot/agent"
)

// Classification is the error taxonomy the recovery system reasons over.
type Classification string

const (
	// ClassToolExecutionFailed is a tool-confirmed execution failure.
	ClassToolExecutionFailed Classification = "tool_execution_failed"

	// ClassParameterValidation is a parameter validation failure.
	ClassParameterValidation Classification = "parameter_validation_failed"

	// ClassNetworkFailure is a network or timeout failure.
	ClassNetworkFailure Classification = "network_failure"

	// ClassResourceExhaustion indicates a limit or quota was hit.
	ClassResourceExhaustion Classification = "resource_exhaustion"

	// ClassStrategyIneffective indicates the current approach keeps failing.
	ClassStrategyIneffective Classification = "strategy_ineffective"

	// ClassUnknown is the fallback classification, non-recoverable.
	ClassUnknown Classification = "unknown_error"

	// ClassAgentError marks loop-level failures. Always escalated.
	ClassAgentError Classification = "agent_error"

	// ClassSystemError marks infrastructure failures. Always escalated.
	ClassSystemError Classification = "system_error"

	// ClassCriticalError marks unrecoverable failures. Always escalated.
	ClassCriticalError Classification = "critical_error"
)

// Recoverable reports whether local recovery may be attempted for the
// classification.
func (c Classification) Recoverable() bool {
	switch c {
	case ClassToolExecutionFailed, ClassParameterValidation,
		ClassNetworkFailure, ClassStrategyIneffective:
		return true
	default:
		return false
	}
}

// ActionFactory builds a recovery action from the triggering
// observation and the state snapshot. Factories must be pure.
type ActionFactory func(latest *agent.Observation, snap *agent.Snapshot) agent.RecoveryAction

// Strategy pairs a classification with a prioritized action factory.
type Strategy struct {
	// Classification is the error class this strategy handles.
	Classification Classification `json:"classification"`

	// Priority orders strategies in a plan, higher first. In [0.5, 0.9].
	Priority float64 `json:"priority"`

	// Factory produces the recovery action.
	Factory ActionFactory `json:"-"`
}

// Plan is the aggregated recovery output for one iteration.
type Plan struct {
	// Classification is the classified error.
	Classification Classification `json:"classification"`

	// Recoverable mirrors Classification.Recoverable at plan time.
	Recoverable bool `json:"recoverable"`

	// Actions are the selected recovery actions, highest priority first.
	Actions []agent.RecoveryAction `json:"actions,omitempty"`

	// ConfidenceAdjustment is the aggregate delta, in [-0.3, +0.1].
	ConfidenceAdjustment float64 `json:"confidence_adjustment"`

	// RateLimited is true when a strategy was suppressed by the limiter.
	RateLimited bool `json:"rate_limited,omitempty"`

	// GeneratedAt is when the plan was produced.
	GeneratedAt time.Time `json:"generated_at"`
}

// HasActions reports whether the plan carries at least one action.
func (p *Plan) HasActions() bool {
	return p != nil && len(p.Actions) > 0
}

// TopAction returns the highest-priority action, or nil.
func (p *Plan) TopAction() *agent.RecoveryAction {
	if !p.HasActions() {
		return nil
	}
	return &p.Actions[0]
}
