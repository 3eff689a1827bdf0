// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package observe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianPilot/services/pilot/agent"
)

func obs(t agent.ObservationType, tool string, confidence float64) agent.Observation {
	return agent.Observation{
		Type:       t,
		Content:    string(t) + " from " + tool,
		ToolName:   tool,
		Confidence: confidence,
		Timestamp:  time.Now(),
	}
}

func snapshotWith(observations ...agent.Observation) *agent.Snapshot {
	return &agent.Snapshot{
		SessionID:    "test",
		Observations: observations,
	}
}

func TestIntegrate_EmptyWindow(t *testing.T) {
	ctx := NewIntegrator().Integrate(snapshotWith())

	require.NotNil(t, ctx)
	assert.Equal(t, 0, ctx.WindowSize)
	assert.Equal(t, EnvStable, ctx.Environment)
	assert.Zero(t, ctx.ConfidenceAdjustment)
	assert.Equal(t, "No recent observations.", ctx.Digest)
}

func TestIntegrate_RepeatedToolFailure(t *testing.T) {
	ctx := NewIntegrator().Integrate(snapshotWith(
		obs(agent.ObservationError, "weather-service", 0.9),
		obs(agent.ObservationError, "weather-service", 0.9),
		obs(agent.ObservationEnvironment, "weather-service", 0.6),
	))

	require.NotEmpty(t, ctx.Patterns)
	assert.Equal(t, PatternRepeatedToolFailure, ctx.Patterns[0].Type)
	assert.Equal(t, "weather-service", ctx.Patterns[0].ToolName)

	// all-error window is unstable and pushes confidence down
	assert.Equal(t, EnvUnstable, ctx.Environment)
	assert.Less(t, ctx.ConfidenceAdjustment, 0.0)
}

func TestIntegrate_ConsistentToolSuccess(t *testing.T) {
	ctx := NewIntegrator().Integrate(snapshotWith(
		obs(agent.ObservationSuccess, "calculator", 0.9),
		obs(agent.ObservationSuccess, "calculator", 0.9),
	))

	require.Len(t, ctx.Patterns, 1)
	assert.Equal(t, PatternConsistentToolSuccess, ctx.Patterns[0].Type)
	assert.Equal(t, EnvStable, ctx.Environment)
	assert.Greater(t, ctx.ConfidenceAdjustment, 0.0)
}

func TestIntegrate_ProgressStagnation(t *testing.T) {
	window := make([]agent.Observation, 0, DefaultWindow)
	for i := 0; i < DefaultWindow; i++ {
		window = append(window, obs(agent.ObservationEnvironment, "", 0.5))
	}
	ctx := NewIntegrator().Integrate(snapshotWith(window...))

	require.NotEmpty(t, ctx.Patterns)
	assert.Equal(t, PatternProgressStagnation, ctx.Patterns[0].Type)
}

func TestIntegrate_PatternCap(t *testing.T) {
	// repeated failure + stagnation + would-be third pattern stays at two
	ctx := NewIntegrator().Integrate(snapshotWith(
		obs(agent.ObservationError, "a", 0.9),
		obs(agent.ObservationError, "a", 0.9),
		obs(agent.ObservationError, "b", 0.9),
		obs(agent.ObservationError, "b", 0.9),
		obs(agent.ObservationEnvironment, "", 0.5),
	))
	assert.LessOrEqual(t, len(ctx.Patterns), 2)
}

func TestIntegrate_InsightRanking(t *testing.T) {
	ctx := NewIntegrator().Integrate(snapshotWith(
		obs(agent.ObservationData, "calculator", 0.5),
		obs(agent.ObservationError, "weather-service", 0.9),
	))

	require.GreaterOrEqual(t, len(ctx.Insights), 2)
	assert.Equal(t, "address_error", ctx.Insights[0].Action)
	for i := 1; i < len(ctx.Insights); i++ {
		assert.GreaterOrEqual(t, ctx.Insights[i-1].Priority, ctx.Insights[i].Priority)
	}
	for _, in := range ctx.Insights {
		assert.GreaterOrEqual(t, in.Priority, 0.0)
		assert.LessOrEqual(t, in.Priority, 1.0)
	}
}

func TestIntegrate_EnvironmentThresholds(t *testing.T) {
	tests := []struct {
		name   string
		errors int
		total  int
		want   EnvironmentalState
	}{
		{"no errors", 0, 4, EnvStable},
		{"rate at 0.25", 1, 4, EnvStable},
		{"rate at 0.4", 2, 5, EnvSomewhatUnstable},
		{"rate at 0.6", 3, 5, EnvUnstable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var window []agent.Observation
			for i := 0; i < tt.errors; i++ {
				window = append(window, obs(agent.ObservationError, "t", 0.9))
			}
			for i := tt.errors; i < tt.total; i++ {
				window = append(window, obs(agent.ObservationProgress, "", 0.7))
			}
			ctx := NewIntegrator(WithWindow(tt.total)).Integrate(snapshotWith(window...))
			assert.Equal(t, tt.want, ctx.Environment)
		})
	}
}

func TestIntegrate_AdjustmentBounds(t *testing.T) {
	var window []agent.Observation
	for i := 0; i < 20; i++ {
		window = append(window, obs(agent.ObservationSuccess, "t", 1.0))
	}
	ctx := NewIntegrator(WithWindow(20)).Integrate(snapshotWith(window...))
	assert.LessOrEqual(t, ctx.ConfidenceAdjustment, 0.3)

	window = window[:0]
	for i := 0; i < 20; i++ {
		window = append(window, obs(agent.ObservationError, "t", 1.0))
	}
	ctx = NewIntegrator(WithWindow(20)).Integrate(snapshotWith(window...))
	assert.GreaterOrEqual(t, ctx.ConfidenceAdjustment, -0.3)
}

func TestIntegrate_DigestContents(t *testing.T) {
	ctx := NewIntegrator().Integrate(snapshotWith(
		obs(agent.ObservationError, "weather-service", 0.9),
		obs(agent.ObservationError, "weather-service", 0.9),
	))

	assert.Contains(t, ctx.Digest, "Recent observations (2)")
	assert.Contains(t, ctx.Digest, "unstable")
	assert.Contains(t, ctx.Digest, "weather-service")
	assert.Contains(t, ctx.Digest, "confidence adjustment")
}

func TestStabilityFactor(t *testing.T) {
	assert.Equal(t, 1.0, EnvStable.StabilityFactor())
	assert.Equal(t, 0.9, EnvSomewhatUnstable.StabilityFactor())
	assert.Equal(t, 0.75, EnvUnstable.StabilityFactor())
}
