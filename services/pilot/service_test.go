// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pilot

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianPilot/services/pilot/agent"
	"github.com/AleutianAI/AleutianPilot/services/pilot/autonomy"
	"github.com/AleutianAI/AleutianPilot/services/pilot/events"
	"github.com/AleutianAI/AleutianPilot/services/pilot/tools"
)

// stubTool is a scripted tool for exercising the loop.
type stubTool struct {
	def tools.Definition
	fn  func(ctx context.Context, params map[string]any) (*tools.Result, error)
}

func (t *stubTool) Definition() tools.Definition { return t.def }

func (t *stubTool) Execute(ctx context.Context, params map[string]any) (*tools.Result, error) {
	return t.fn(ctx, params)
}

func weatherTool() *stubTool {
	return &stubTool{
		def: tools.Definition{
			Name:        "weather-service",
			Description: "Get current weather conditions for a location",
			Category:    "information",
			Parameters: []tools.ParamDef{
				{Name: "location", Type: tools.ParamString, Required: true},
			},
		},
		fn: func(_ context.Context, _ map[string]any) (*tools.Result, error) {
			return &tools.Result{
				Success: true,
				Data:    "Sunny, 22C with a light breeze",
				Message: "weather retrieved",
			}, nil
		},
	}
}

func failingFetchTool() *stubTool {
	return &stubTool{
		def: tools.Definition{
			Name:        "fetch-service",
			Description: "Fetch records from the upstream data service",
			Category:    "information",
			Parameters: []tools.ParamDef{
				{Name: "query", Type: tools.ParamString, Required: true},
			},
		},
		fn: func(_ context.Context, _ map[string]any) (*tools.Result, error) {
			return &tools.Result{Success: false, Error: "upstream boom"}, nil
		},
	}
}

func TestProcessQuery_AnswersWithToolData(t *testing.T) {
	svc := NewService()
	require.NoError(t, svc.RegisterTool(weatherTool()))

	resp, err := svc.ProcessQuery(context.Background(), "What is the weather in London today?", nil)
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, agent.StatusCompleted, resp.Status)
	assert.True(t, resp.AgentMode)
	assert.LessOrEqual(t, resp.Iterations, 3)
	assert.Equal(t, []string{"weather-service"}, resp.ToolsUsed)
	assert.Contains(t, resp.Response, "Sunny")
	assert.Contains(t, resp.Response, "weather-service")
	assert.Greater(t, resp.FinalConfidence, 0.6)
	assert.False(t, resp.AwaitingHumanInput)

	// Exactly one tool call answers the query.
	assert.Len(t, svc.Events().BufferByType(events.TypeToolResult), 1)
	assert.NotEmpty(t, svc.Events().BufferByType(events.TypeTaskEnd))
	assert.NotEmpty(t, svc.GetProgressCommunication())
}

func TestProcessQuery_RepeatedFailuresEscalateThenChangeStrategy(t *testing.T) {
	svc := NewService(WithMode(autonomy.ModeAutonomous))
	svc.ConfigureAutonomousOperation(autonomy.Config{
		SupervisedThreshold: 0.3,
		AutonomousThreshold: 0.85,
	})
	require.NoError(t, svc.RegisterTool(failingFetchTool()))

	ctx := context.Background()
	resp1, err := svc.ProcessQuery(ctx, "Fetch the latest records from the upstream service", nil)
	require.NoError(t, err)

	// Two identical failures raise the repeated-failures blocker.
	assert.False(t, resp1.Success)
	assert.True(t, resp1.AwaitingHumanInput)
	require.NotNil(t, resp1.PendingCheckpoint)
	assert.Equal(t, agent.SeverityMedium, resp1.PendingCheckpoint.Priority)
	assert.Equal(t, 3, resp1.Iterations)

	blockers := svc.GetActiveBlockers()
	require.Contains(t, blockers, resp1.SessionID)
	assert.Equal(t, agent.BlockerRepeatedFailures, blockers[resp1.SessionID].Type)

	// The human waves the loop on; a third failure follows and the
	// recovery system abandons the approach.
	resp2, err := svc.ResumeAfterHumanInput(ctx, resp1.PendingCheckpoint.ID, agent.HumanInput{
		Guidance: "Keep trying; the upstream service should recover shortly.",
	})
	require.NoError(t, err)

	assert.True(t, resp2.AwaitingHumanInput)
	require.NotNil(t, resp2.PendingCheckpoint)
	assert.Equal(t, agent.SeverityHigh, resp2.PendingCheckpoint.Priority)
	assert.Equal(t, agent.StatusProcessing, resp2.Status)
	assert.Equal(t, 5, resp2.Iterations)
	assert.Less(t, resp2.FinalConfidence, 0.4)

	var sawStrategyChange bool
	for _, e := range svc.Events().BufferByType(events.TypeRecovery) {
		data, ok := e.Data.(events.RecoveryData)
		if !ok {
			continue
		}
		if data.Classification == "strategy_ineffective" {
			sawStrategyChange = true
			assert.Equal(t, "change_strategy", data.ActionType)
		}
	}
	assert.True(t, sawStrategyChange, "expected a strategy_ineffective recovery plan after three failures")

	// A checkpoint resolves exactly once.
	_, err = svc.ResumeAfterHumanInput(ctx, resp1.PendingCheckpoint.ID, agent.HumanInput{Decision: "approve"})
	assert.ErrorIs(t, err, agent.ErrCheckpointResolved)
}

func TestProcessQuery_UnsafeQuerySuspendsBeforeTools(t *testing.T) {
	svc := NewService()
	require.NoError(t, svc.RegisterTool(weatherTool()))

	resp, err := svc.ProcessQuery(context.Background(),
		"Delete the admin password file from the production server", nil)
	require.NoError(t, err)

	assert.False(t, resp.Success)
	assert.True(t, resp.AwaitingHumanInput)
	require.NotNil(t, resp.PendingCheckpoint)
	assert.Equal(t, agent.SeverityHigh, resp.PendingCheckpoint.Priority)
	assert.Equal(t, 1, resp.Iterations)
	assert.Empty(t, resp.ToolsUsed)
	assert.Empty(t, svc.Events().BufferByType(events.TypeToolResult))

	pending, err := svc.GetPendingCheckpoints(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, resp.PendingCheckpoint.ID, pending[0].ID)
}

func TestProcessQuery_IterationBoundReached(t *testing.T) {
	svc := NewService()

	resp, err := svc.ProcessQuery(context.Background(),
		"Summarize the deployment checklist", &Options{MaxIterations: 1})
	require.NoError(t, err)

	assert.False(t, resp.Success)
	assert.Equal(t, agent.StatusMaxIterations, resp.Status)
	assert.Equal(t, 1, resp.Iterations)
	assert.Empty(t, resp.ToolsUsed)
	assert.Contains(t, resp.Response, "iteration limit")
	assert.NotEmpty(t, svc.Events().BufferByType(events.TypeTaskEnd))
}

func TestProcessQuery_EmptyQuery(t *testing.T) {
	svc := NewService()

	resp, err := svc.ProcessQuery(context.Background(), "   ", nil)
	assert.ErrorIs(t, err, agent.ErrEmptyQuery)
	assert.Nil(t, resp)
}

func TestResumeAfterHumanInput_Reject(t *testing.T) {
	svc := NewService()
	require.NoError(t, svc.RegisterTool(weatherTool()))

	ctx := context.Background()
	resp, err := svc.ProcessQuery(ctx, "Delete the admin password file right away", nil)
	require.NoError(t, err)
	require.NotNil(t, resp.PendingCheckpoint)

	final, err := svc.ResumeAfterHumanInput(ctx, resp.PendingCheckpoint.ID, agent.HumanInput{Decision: "reject"})
	require.NoError(t, err)

	assert.Equal(t, agent.StatusError, final.Status)
	assert.False(t, final.Success)
	require.NotNil(t, final.Error)
	assert.Equal(t, "human_rejection", final.Error.Type)
	assert.Empty(t, final.ToolsUsed)
}

func TestResumeAfterHumanInput_UnknownCheckpoint(t *testing.T) {
	svc := NewService()

	_, err := svc.ResumeAfterHumanInput(context.Background(), "no-such-checkpoint", agent.HumanInput{})
	assert.ErrorIs(t, err, agent.ErrCheckpointNotFound)
}

func TestService_GetTask(t *testing.T) {
	svc := NewService()
	require.NoError(t, svc.RegisterTool(weatherTool()))

	resp, err := svc.ProcessQuery(context.Background(), "What is the weather in Paris?", nil)
	require.NoError(t, err)

	snap, ok := svc.GetTask(resp.SessionID)
	require.True(t, ok)
	assert.Equal(t, resp.Status, snap.Status)
	assert.Equal(t, "What is the weather in Paris?", snap.OriginalQuery)

	_, ok = svc.GetTask("unknown-session")
	assert.False(t, ok)
}
