// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package autonomy decides whether the loop continues on its own,
// escalates to a human, or declares the task complete.
//
// The risk score is the sum of the weights of the factors that test as
// risky; the weights and thresholds are configurable defaults, not
// calibrated values. Completion is scored separately from risk.
package autonomy

import (
	"time"
)

// Mode selects how conservative the escalation decision is.
type Mode string

const (
	// ModeAutonomous escalates only above the higher risk threshold.
	ModeAutonomous Mode = "autonomous"

	// ModeSupervised is the conservative default.
	ModeSupervised Mode = "supervised"

	// ModeManual always escalates.
	ModeManual Mode = "manual"
)

// Valid reports whether the mode is one of the known values.
func (m Mode) Valid() bool {
	switch m {
	case ModeAutonomous, ModeSupervised, ModeManual:
		return true
	default:
		return false
	}
}

// Factor names, also used as keys in Config.FactorWeights.
const (
	FactorConfidence  = "confidence"
	FactorComplexity  = "task_complexity"
	FactorErrorRate   = "error_rate"
	FactorStagnation  = "progress_stagnation"
	FactorUncertainty = "reasoning_uncertainty"
	FactorSafety      = "safety"
	FactorResources   = "resource_usage"
)

// Completion indicator names, keys in Config.CompletionWeights.
const (
	IndicatorSolutionKeyword = "solution_keyword"
	IndicatorHighConfidence  = "high_confidence"
	IndicatorNoRecentErrors  = "no_recent_errors"
	IndicatorProgressive     = "progressive_reasoning"
	IndicatorQueryCoverage   = "query_coverage"
)

// Factor is one evaluated risk dimension.
type Factor struct {
	// Name identifies the factor.
	Name string `json:"name"`

	// Value is the raw factor score, in [0, 1].
	Value float64 `json:"value"`

	// IsRisky is the threshold test outcome.
	IsRisky bool `json:"is_risky"`

	// Trigger explains what made the factor risky, empty otherwise.
	Trigger string `json:"trigger,omitempty"`

	// Weight is the factor's contribution to risk when risky.
	Weight float64 `json:"weight"`
}

// Decision is the escalation verdict for one iteration.
type Decision struct {
	// Escalate is true when a human checkpoint should be created.
	Escalate bool `json:"escalate"`

	// RiskScore is the sum of risky factor weights.
	RiskScore float64 `json:"risk_score"`

	// Confidence grades the decision. Continuing yields
	// max(0.1, 1-risk); escalating yields min(0.9, risk).
	Confidence float64 `json:"confidence"`

	// Reason summarizes the verdict.
	Reason string `json:"reason"`

	// Factors are all evaluated factors, risky or not.
	Factors []Factor `json:"factors"`
}

// Indicator is one evaluated completion dimension.
type Indicator struct {
	// Name identifies the indicator.
	Name string `json:"name"`

	// Met is whether the indicator holds.
	Met bool `json:"met"`

	// Weight is the indicator's contribution when met.
	Weight float64 `json:"weight"`

	// Detail explains the evaluation.
	Detail string `json:"detail,omitempty"`
}

// Completion is the task-completion assessment.
type Completion struct {
	// Complete is true when the score reached the threshold.
	Complete bool `json:"complete"`

	// Score is the weighted indicator sum, in [0, 1].
	Score float64 `json:"score"`

	// Confidence is the completion confidence, capped at 0.95.
	Confidence float64 `json:"confidence"`

	// Indicators are all evaluated indicators.
	Indicators []Indicator `json:"indicators"`
}

// Config carries the tunable weights, thresholds, and caps.
//
// Zero values are replaced by defaults; see DefaultConfig.
type Config struct {
	// SupervisedThreshold is the escalation bar in supervised mode.
	SupervisedThreshold float64 `yaml:"supervised_threshold" json:"supervised_threshold"`

	// AutonomousThreshold is the escalation bar in autonomous mode.
	AutonomousThreshold float64 `yaml:"autonomous_threshold" json:"autonomous_threshold"`

	// MaxLLMCalls is the per-task reasoning call budget.
	MaxLLMCalls int `yaml:"max_llm_calls" json:"max_llm_calls"`

	// MaxDuration is the per-task wall-clock budget for risk scoring.
	MaxDuration time.Duration `yaml:"max_duration" json:"max_duration"`

	// FactorWeights maps factor names to weights. Must sum to 1.0.
	FactorWeights map[string]float64 `yaml:"factor_weights" json:"factor_weights"`

	// CompletionWeights maps indicator names to weights. Must sum to 1.0.
	CompletionWeights map[string]float64 `yaml:"completion_weights" json:"completion_weights"`

	// CompletionThreshold is the score at which completion fires.
	CompletionThreshold float64 `yaml:"completion_threshold" json:"completion_threshold"`
}

// DefaultConfig returns the default weights and thresholds.
func DefaultConfig() Config {
	return Config{
		SupervisedThreshold: 0.3,
		AutonomousThreshold: 0.5,
		MaxLLMCalls:         50,
		MaxDuration:         10 * time.Minute,
		FactorWeights: map[string]float64{
			FactorConfidence:  0.20,
			FactorComplexity:  0.15,
			FactorErrorRate:   0.20,
			FactorStagnation:  0.10,
			FactorUncertainty: 0.10,
			FactorSafety:      0.15,
			FactorResources:   0.10,
		},
		CompletionWeights: map[string]float64{
			IndicatorSolutionKeyword: 0.30,
			IndicatorHighConfidence:  0.25,
			IndicatorNoRecentErrors:  0.15,
			IndicatorProgressive:     0.15,
			IndicatorQueryCoverage:   0.15,
		},
		CompletionThreshold: 0.7,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.SupervisedThreshold <= 0 {
		c.SupervisedThreshold = def.SupervisedThreshold
	}
	if c.AutonomousThreshold <= 0 {
		c.AutonomousThreshold = def.AutonomousThreshold
	}
	if c.MaxLLMCalls <= 0 {
		c.MaxLLMCalls = def.MaxLLMCalls
	}
	if c.MaxDuration <= 0 {
		c.MaxDuration = def.MaxDuration
	}
	if len(c.FactorWeights) == 0 {
		c.FactorWeights = def.FactorWeights
	}
	if len(c.CompletionWeights) == 0 {
		c.CompletionWeights = def.CompletionWeights
	}
	if c.CompletionThreshold <= 0 {
		c.CompletionThreshold = def.CompletionThreshold
	}
	return c
}
