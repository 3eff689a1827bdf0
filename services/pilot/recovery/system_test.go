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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianPilot/services/pilot/agent"
)

func errObs(tool, content string) agent.Observation {
	return agent.Observation{
		Type:     agent.ObservationError,
		Content:  content,
		ToolName: tool,
		GroundTruth: &agent.GroundTruth{
			Source:  tool,
			Success: false,
		},
		Confidence: 0.9,
		Timestamp:  time.Now(),
	}
}

func okObs(tool string) agent.Observation {
	return agent.Observation{
		Type:       agent.ObservationSuccess,
		Content:    "ok",
		ToolName:   tool,
		Confidence: 0.9,
		Timestamp:  time.Now(),
	}
}

func snapWith(observations ...agent.Observation) *agent.Snapshot {
	return &agent.Snapshot{SessionID: "test", Observations: observations}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		snap *agent.Snapshot
		want Classification
	}{
		{
			"tool execution failure",
			snapWith(errObs("weather-service", "Tool weather-service failed: boom")),
			ClassToolExecutionFailed,
		},
		{
			"parameter validation",
			snapWith(errObs("weather-service", "Tool weather-service failed: validation error on location")),
			ClassParameterValidation,
		},
		{
			"network failure",
			snapWith(errObs("weather-service", "Tool weather-service failed: connection refused")),
			ClassNetworkFailure,
		},
		{
			"timeout is network",
			snapWith(errObs("weather-service", "Tool weather-service failed: execution timed out")),
			ClassNetworkFailure,
		},
		{
			"resource exhaustion",
			snapWith(errObs("weather-service", "Tool weather-service failed: rate limit exceeded")),
			ClassResourceExhaustion,
		},
		{
			"unknown without tool",
			snapWith(agent.Observation{Type: agent.ObservationError, Content: "something odd happened"}),
			ClassUnknown,
		},
		{
			"repeated errors are strategy ineffective",
			snapWith(
				errObs("weather-service", "Tool weather-service failed: boom"),
				errObs("weather-service", "Tool weather-service failed: boom"),
				errObs("weather-service", "Tool weather-service failed: boom"),
			),
			ClassStrategyIneffective,
		},
		{
			"environment noise does not break the run",
			snapWith(
				errObs("weather-service", "Tool weather-service failed: boom"),
				agent.Observation{Type: agent.ObservationEnvironment, Content: "degraded", ToolName: "weather-service"},
				errObs("weather-service", "Tool weather-service failed: boom"),
				agent.Observation{Type: agent.ObservationEnvironment, Content: "degraded", ToolName: "weather-service"},
				errObs("weather-service", "Tool weather-service failed: boom"),
			),
			ClassStrategyIneffective,
		},
		{
			"successes break the run",
			snapWith(
				errObs("weather-service", "Tool weather-service failed: boom"),
				okObs("weather-service"),
				okObs("weather-service"),
				errObs("weather-service", "Tool weather-service failed: boom"),
			),
			ClassToolExecutionFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, latest := Classify(tt.snap)
			require.NotNil(t, latest)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassify_NoErrors(t *testing.T) {
	got, latest := Classify(snapWith(okObs("calculator")))
	assert.Nil(t, latest)
	assert.Empty(t, got)
}

func TestRecoverable(t *testing.T) {
	assert.True(t, ClassToolExecutionFailed.Recoverable())
	assert.True(t, ClassParameterValidation.Recoverable())
	assert.True(t, ClassNetworkFailure.Recoverable())
	assert.True(t, ClassStrategyIneffective.Recoverable())
	assert.False(t, ClassResourceExhaustion.Recoverable())
	assert.False(t, ClassUnknown.Recoverable())
	assert.False(t, ClassAgentError.Recoverable())
}

func TestPlan_ProducesAction(t *testing.T) {
	s := NewSystem()
	plan := s.Plan(snapWith(errObs("weather-service", "Tool weather-service failed: boom")))

	require.NotNil(t, plan)
	assert.Equal(t, ClassToolExecutionFailed, plan.Classification)
	assert.True(t, plan.Recoverable)
	require.True(t, plan.HasActions())
	assert.Equal(t, "retry_tool", plan.TopAction().Type)
	assert.NotEmpty(t, plan.TopAction().Actions)

	assert.GreaterOrEqual(t, plan.ConfidenceAdjustment, -0.3)
	assert.LessOrEqual(t, plan.ConfidenceAdjustment, 0.1)
}

func TestPlan_NonRecoverableHasNoActions(t *testing.T) {
	s := NewSystem()
	plan := s.Plan(snapWith(agent.Observation{
		Type: agent.ObservationError, Content: "something odd happened",
	}))

	require.NotNil(t, plan)
	assert.Equal(t, ClassUnknown, plan.Classification)
	assert.False(t, plan.Recoverable)
	assert.False(t, plan.HasActions())
}

func TestPlan_NoErrors(t *testing.T) {
	s := NewSystem()
	assert.Nil(t, s.Plan(snapWith(okObs("calculator"))))
}

func TestPlan_StrategyIneffectiveAdjustmentNonPositive(t *testing.T) {
	s := NewSystem()
	plan := s.Plan(snapWith(
		errObs("weather-service", "Tool weather-service failed: boom"),
		errObs("weather-service", "Tool weather-service failed: boom"),
		errObs("weather-service", "Tool weather-service failed: boom"),
	))

	require.NotNil(t, plan)
	assert.Equal(t, ClassStrategyIneffective, plan.Classification)
	require.True(t, plan.HasActions())
	assert.Equal(t, "change_strategy", plan.TopAction().Type)
	assert.LessOrEqual(t, plan.ConfidenceAdjustment, 0.0)
}

func TestPlan_RateLimiting(t *testing.T) {
	current := time.Unix(1_700_000_000, 0)
	s := NewSystem(WithClock(func() time.Time { return current }))

	snap := snapWith(errObs("weather-service", "Tool weather-service failed: boom"))

	for i := 0; i < DefaultMaxAttempts; i++ {
		plan := s.Plan(snap)
		require.NotNil(t, plan)
		assert.True(t, plan.HasActions(), "attempt %d should fire", i+1)
		current = current.Add(30 * time.Second)
	}

	// fourth attempt inside the window is suppressed
	plan := s.Plan(snap)
	require.NotNil(t, plan)
	assert.True(t, plan.RateLimited)
	assert.False(t, plan.HasActions())

	// after the window slides past, the strategy may fire again
	current = current.Add(DefaultRateWindow)
	plan = s.Plan(snap)
	require.NotNil(t, plan)
	assert.False(t, plan.RateLimited)
	assert.True(t, plan.HasActions())
}

func TestPlan_RateLimitIsPerClassification(t *testing.T) {
	current := time.Unix(1_700_000_000, 0)
	s := NewSystem(WithClock(func() time.Time { return current }))

	toolSnap := snapWith(errObs("weather-service", "Tool weather-service failed: boom"))
	for i := 0; i < DefaultMaxAttempts; i++ {
		require.True(t, s.Plan(toolSnap).HasActions())
	}
	assert.True(t, s.Plan(toolSnap).RateLimited)

	// a different classification is unaffected
	netSnap := snapWith(errObs("weather-service", "Tool weather-service failed: connection refused"))
	plan := s.Plan(netSnap)
	require.NotNil(t, plan)
	assert.False(t, plan.RateLimited)
	assert.True(t, plan.HasActions())
}
