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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianPilot/services/pilot/agent"
)

func calmSnapshot() *agent.Snapshot {
	return &agent.Snapshot{
		SessionID:        "test",
		OriginalQuery:    "weather in London",
		CurrentIteration: 1,
		MaxIterations:    10,
		Confidence:       0.7,
		Status:           agent.StatusProcessing,
		StartedAt:        time.Now(),
	}
}

func TestDecide_CalmStateContinues(t *testing.T) {
	m := NewManager(ModeSupervised, Config{}, nil)
	d := m.Decide(calmSnapshot())

	require.NotNil(t, d)
	assert.False(t, d.Escalate)
	assert.Len(t, d.Factors, 7)
	assert.InDelta(t, 1-d.RiskScore, d.Confidence, 1e-9)
}

func TestDecide_ManualAlwaysEscalates(t *testing.T) {
	m := NewManager(ModeManual, Config{}, nil)
	d := m.Decide(calmSnapshot())

	assert.True(t, d.Escalate)
	assert.Contains(t, d.Reason, "manual")
}

func TestDecide_SafetyPatternEscalates(t *testing.T) {
	snap := calmSnapshot()
	snap.OriginalQuery = "please delete admin password for the staging database"

	// supervised threshold 0.3: safety (0.15) alone is not enough, but
	// combined with low confidence (0.2) it is
	snap.Confidence = 0.3
	m := NewManager(ModeSupervised, Config{}, nil)
	d := m.Decide(snap)

	assert.True(t, d.Escalate)
	assert.GreaterOrEqual(t, d.RiskScore, 0.3)

	var safety *Factor
	for i := range d.Factors {
		if d.Factors[i].Name == FactorSafety {
			safety = &d.Factors[i]
		}
	}
	require.NotNil(t, safety)
	assert.True(t, safety.IsRisky)
}

func TestDecide_AutonomousToleratesModerateRisk(t *testing.T) {
	snap := calmSnapshot()
	snap.Confidence = 0.3

	supervised := NewManager(ModeSupervised, Config{}, nil).Decide(snap)
	autonomous := NewManager(ModeAutonomous, Config{}, nil).Decide(snap)

	// low confidence alone (weight 0.2) trips neither threshold
	assert.False(t, supervised.Escalate)
	assert.False(t, autonomous.Escalate)

	// add repeated errors (weight 0.2): supervised escalates at 0.4,
	// autonomous does not
	snap.Errors = []agent.ErrorEntry{
		{Type: "tool_execution_failed", Timestamp: time.Now()},
		{Type: "tool_execution_failed", Timestamp: time.Now()},
	}
	assert.True(t, NewManager(ModeSupervised, Config{}, nil).Decide(snap).Escalate)
	assert.False(t, NewManager(ModeAutonomous, Config{}, nil).Decide(snap).Escalate)
}

func TestDecide_EscalationConfidence(t *testing.T) {
	snap := calmSnapshot()
	snap.Confidence = 0.3
	snap.Errors = []agent.ErrorEntry{
		{Type: "network_failure", Timestamp: time.Now()},
		{Type: "network_failure", Timestamp: time.Now()},
	}

	d := NewManager(ModeSupervised, Config{}, nil).Decide(snap)
	require.True(t, d.Escalate)
	assert.InDelta(t, d.RiskScore, d.Confidence, 1e-9)
	assert.LessOrEqual(t, d.Confidence, 0.9)
}

func TestSetMode(t *testing.T) {
	m := NewManager(ModeSupervised, Config{}, nil)
	require.NoError(t, m.SetMode(ModeAutonomous))
	assert.Equal(t, ModeAutonomous, m.Mode())
	assert.Error(t, m.SetMode("turbo"))
	assert.Equal(t, ModeAutonomous, m.Mode())
}

func TestConfigure_CustomThresholds(t *testing.T) {
	snap := calmSnapshot()
	snap.Confidence = 0.3

	m := NewManager(ModeSupervised, Config{SupervisedThreshold: 0.1}, nil)
	assert.True(t, m.Decide(snap).Escalate)

	m.Configure(Config{SupervisedThreshold: 0.9})
	assert.False(t, m.Decide(snap).Escalate)
}

func TestAssessCompletion_FreshTaskIncomplete(t *testing.T) {
	m := NewManager(ModeSupervised, Config{}, nil)
	c := m.AssessCompletion(calmSnapshot())

	require.NotNil(t, c)
	assert.False(t, c.Complete)
	assert.Len(t, c.Indicators, 5)
}

func TestAssessCompletion_SolvedTask(t *testing.T) {
	snap := calmSnapshot()
	snap.Confidence = 0.85
	snap.Reasoning = []agent.ReasoningEntry{
		{Content: "I need the current weather in London.", Confidence: 0.6, Timestamp: time.Now()},
		{Content: "The weather tool returned data for London. The final answer is 18C and cloudy.", Confidence: 0.85, Timestamp: time.Now()},
	}

	c := NewManager(ModeSupervised, Config{}, nil).AssessCompletion(snap)

	assert.True(t, c.Complete)
	assert.GreaterOrEqual(t, c.Score, 0.7)
	assert.LessOrEqual(t, c.Confidence, 0.95)
}

func TestAssessCompletion_RecentErrorBlocksIndicator(t *testing.T) {
	snap := calmSnapshot()
	snap.Errors = []agent.ErrorEntry{{Message: "boom", Timestamp: time.Now()}}

	c := NewManager(ModeSupervised, Config{}, nil).AssessCompletion(snap)

	for _, in := range c.Indicators {
		if in.Name == IndicatorNoRecentErrors {
			assert.False(t, in.Met)
			return
		}
	}
	t.Fatal("no_recent_errors indicator missing")
}

func TestDefaultWeightsSumToOne(t *testing.T) {
	cfg := DefaultConfig()

	var factorSum, completionSum float64
	for _, w := range cfg.FactorWeights {
		factorSum += w
	}
	for _, w := range cfg.CompletionWeights {
		completionSum += w
	}
	assert.InDelta(t, 1.0, factorSum, 1e-9)
	assert.InDelta(t, 1.0, completionSum, 1e-9)
}
