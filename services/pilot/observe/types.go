// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observe turns raw execution outcomes into observations and
// summarizes recent observations into feedback for the reasoning step.
//
// The integrator is a pure evaluator: it reads a state snapshot and
// produces a FeedbackContext without side effects. The controller feeds
// the resulting digest and confidence adjustment back into the loop.
package observe

import (
	"time"

	"github.com/AleutianAI/AleutianPilot/services/pilot/agent"
)

// EnvironmentalState grades environment stability from recent outcomes.
type EnvironmentalState string

const (
	// EnvStable means recent observations show a low error rate.
	EnvStable EnvironmentalState = "stable"

	// EnvSomewhatUnstable means the recent error rate exceeds 0.3.
	EnvSomewhatUnstable EnvironmentalState = "somewhat_unstable"

	// EnvUnstable means the recent error rate exceeds 0.5.
	EnvUnstable EnvironmentalState = "unstable"
)

// StabilityFactor converts the assessment into a multiplier applied to
// confidence adjustments. Unstable environments dampen adjustments.
func (s EnvironmentalState) StabilityFactor() float64 {
	switch s {
	case EnvUnstable:
		return 0.75
	case EnvSomewhatUnstable:
		return 0.9
	default:
		return 1.0
	}
}

// PatternType names a detected observation pattern.
type PatternType string

const (
	// PatternRepeatedToolFailure means one tool failed at least twice in
	// the window.
	PatternRepeatedToolFailure PatternType = "repeated_tool_failure"

	// PatternConsistentToolSuccess means one tool succeeded at least
	// twice with no failures in the window.
	PatternConsistentToolSuccess PatternType = "consistent_tool_success"

	// PatternProgressStagnation means a full window produced no success,
	// progress, or data observations.
	PatternProgressStagnation PatternType = "progress_stagnation"
)

// Pattern is a detected regularity in the observation window.
type Pattern struct {
	// Type names the pattern.
	Type PatternType `json:"type"`

	// Description is a human-readable summary.
	Description string `json:"description"`

	// ToolName is set for tool-specific patterns.
	ToolName string `json:"tool_name,omitempty"`
}

// Insight is a single actionable recommendation derived from one
// qualifying observation.
type Insight struct {
	// Content describes the insight.
	Content string `json:"content"`

	// Action is the recommended action tag.
	Action string `json:"action"`

	// Priority ranks the insight, in [0, 1].
	Priority float64 `json:"priority"`

	// ToolName is set when the insight concerns a specific tool.
	ToolName string `json:"tool_name,omitempty"`
}

// FeedbackContext is the integrator's output for one iteration.
type FeedbackContext struct {
	// WindowSize is the number of observations considered.
	WindowSize int `json:"window_size"`

	// TypeCounts summarizes the window by observation type.
	TypeCounts map[agent.ObservationType]int `json:"type_counts"`

	// Patterns holds up to two detected patterns.
	Patterns []Pattern `json:"patterns,omitempty"`

	// Insights is the ranked list of actionable insights.
	Insights []Insight `json:"insights,omitempty"`

	// Environment is the stability assessment.
	Environment EnvironmentalState `json:"environment"`

	// ConfidenceAdjustment is the suggested delta, in [-0.3, +0.3].
	ConfidenceAdjustment float64 `json:"confidence_adjustment"`

	// Digest is the formatted text handed to the reasoning collaborator.
	Digest string `json:"digest"`

	// GeneratedAt is when the context was produced.
	GeneratedAt time.Time `json:"generated_at"`
}
