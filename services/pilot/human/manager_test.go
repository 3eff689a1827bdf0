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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianPilot/services/pilot/agent"
)

func healthySnapshot() *agent.Snapshot {
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

func TestDetectBlocker_None(t *testing.T) {
	assert.Nil(t, NewManager().DetectBlocker(healthySnapshot()))
}

func TestDetectBlocker_Safety(t *testing.T) {
	snap := healthySnapshot()
	snap.OriginalQuery = "delete admin password for the test account"

	b := NewManager().DetectBlocker(snap)
	require.NotNil(t, b)
	assert.Equal(t, agent.BlockerSafetyConstraints, b.Type)
	assert.Equal(t, agent.SeverityHigh, b.Severity)
	assert.NotEmpty(t, b.Evidence)
}

func TestDetectBlocker_SafetyInAction(t *testing.T) {
	snap := healthySnapshot()
	snap.Actions = []agent.ActionEntry{{
		Iteration:   1,
		Type:        agent.ActionToolCall,
		Description: "run rm -rf on the workspace",
	}}

	b := NewManager().DetectBlocker(snap)
	require.NotNil(t, b)
	assert.Equal(t, agent.BlockerSafetyConstraints, b.Type)
}

func TestDetectBlocker_RepeatedFailures(t *testing.T) {
	snap := healthySnapshot()
	for i := 0; i < 2; i++ {
		snap.Errors = append(snap.Errors, agent.ErrorEntry{
			Type: "tool_execution_failed", Message: "boom", Timestamp: time.Now(),
		})
	}

	b := NewManager().DetectBlocker(snap)
	require.NotNil(t, b)
	assert.Equal(t, agent.BlockerRepeatedFailures, b.Type)
	assert.Equal(t, agent.SeverityMedium, b.Severity)

	snap.Errors = append(snap.Errors, agent.ErrorEntry{
		Type: "tool_execution_failed", Message: "boom", Timestamp: time.Now(),
	})
	b = NewManager().DetectBlocker(snap)
	require.NotNil(t, b)
	assert.Equal(t, agent.SeverityHigh, b.Severity)
}

func TestDetectBlocker_SafetyOutranksRepeatedFailures(t *testing.T) {
	snap := healthySnapshot()
	snap.OriginalQuery = "delete admin password"
	for i := 0; i < 3; i++ {
		snap.Errors = append(snap.Errors, agent.ErrorEntry{
			Type: "tool_execution_failed", Message: "boom", Timestamp: time.Now(),
		})
	}

	b := NewManager().DetectBlocker(snap)
	require.NotNil(t, b)
	assert.Equal(t, agent.BlockerSafetyConstraints, b.Type)
}

func TestDetectBlocker_ResourceExhaustion(t *testing.T) {
	snap := healthySnapshot()
	snap.Metrics.LLMCalls = 9

	m := NewManager(WithResourceCaps(10, time.Hour))
	b := m.DetectBlocker(snap)
	require.NotNil(t, b)
	assert.Equal(t, agent.BlockerResourceExhaustion, b.Type)
	assert.Equal(t, agent.SeverityMedium, b.Severity)

	snap.Metrics.LLMCalls = 10
	b = m.DetectBlocker(snap)
	require.NotNil(t, b)
	assert.Equal(t, agent.SeverityHigh, b.Severity)
}

func TestDetectBlocker_ComplexityOverload(t *testing.T) {
	snap := healthySnapshot()
	snap.Confidence = 0.4

	var query string
	for i := 0; i < 60; i++ {
		query += fmt.Sprintf("step%d and ", i)
	}
	snap.OriginalQuery = query
	for i := 0; i < 20; i++ {
		snap.Reasoning = append(snap.Reasoning, agent.ReasoningEntry{Content: "step", Confidence: 0.6})
	}

	b := NewManager().DetectBlocker(snap)
	require.NotNil(t, b)
	assert.Equal(t, agent.BlockerComplexityOverload, b.Type)
}

func TestDetectBlocker_LowConfidenceStagnation(t *testing.T) {
	snap := healthySnapshot()
	snap.Confidence = 0.3
	for i := 0; i < 3; i++ {
		snap.Reasoning = append(snap.Reasoning, agent.ReasoningEntry{
			Content: "trying the same approach for the weather request", Confidence: 0.4,
		})
	}

	b := NewManager().DetectBlocker(snap)
	require.NotNil(t, b)
	assert.Equal(t, agent.BlockerLowConfidenceStagnation, b.Type)
}

func TestDetectBlocker_AmbiguousRequirements(t *testing.T) {
	snap := healthySnapshot()
	snap.OriginalQuery = "do something useful with the data and stuff"

	b := NewManager().DetectBlocker(snap)
	require.NotNil(t, b)
	assert.Equal(t, agent.BlockerAmbiguousRequirements, b.Type)
	assert.Equal(t, agent.SeverityLow, b.Severity)
}

func TestCheckpointPriority(t *testing.T) {
	assert.Equal(t, agent.SeverityHigh, CheckpointPriority(agent.SeverityHigh))
	assert.Equal(t, agent.SeverityMedium, CheckpointPriority(agent.SeverityMedium))
	assert.Equal(t, agent.SeverityLow, CheckpointPriority(agent.SeverityLow))
	assert.Equal(t, agent.SeverityLow, CheckpointPriority(agent.Severity("weird")))
}

func TestRecordProgress(t *testing.T) {
	m := NewManager()
	snap := healthySnapshot()
	snap.Reasoning = []agent.ReasoningEntry{{Content: "looking up the forecast", Confidence: 0.6}}
	snap.Metrics.ToolCalls = 2
	snap.Metrics.Successes = 1

	report := m.RecordProgress(snap)
	assert.Contains(t, report.Summary, "Iteration 1 of 10")
	assert.Contains(t, report.Summary, "looking up the forecast")
	assert.Contains(t, report.Summary, "Tool calls: 2")

	assert.Len(t, m.Communications(), 1)
}

func TestRecordProgress_HistoryBounded(t *testing.T) {
	m := NewManager()
	snap := healthySnapshot()
	for i := 0; i < maxCommunications+10; i++ {
		m.RecordProgress(snap)
	}
	assert.Len(t, m.Communications(), maxCommunications)
}
