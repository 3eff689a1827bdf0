// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianPilot/services/pilot/agent"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_CheckpointRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	cp := &agent.Checkpoint{
		ID:        "cp-1",
		SessionID: "s-1",
		Reason:    "risk score exceeded threshold",
		Priority:  agent.SeverityHigh,
		Iteration: 2,
		Status:    agent.CheckpointPending,
		Timestamp: time.Now().UTC(),
	}
	require.NoError(t, store.SaveCheckpoint(ctx, cp))

	got, err := store.GetCheckpoint(ctx, "cp-1")
	require.NoError(t, err)
	assert.Equal(t, cp.SessionID, got.SessionID)
	assert.Equal(t, cp.Reason, got.Reason)
	assert.Equal(t, agent.CheckpointPending, got.Status)
}

func TestStore_GetCheckpoint_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetCheckpoint(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_SaveCheckpoint_RequiresID(t *testing.T) {
	store := newTestStore(t)

	assert.Error(t, store.SaveCheckpoint(context.Background(), nil))
	assert.Error(t, store.SaveCheckpoint(context.Background(), &agent.Checkpoint{}))
}

func TestStore_PendingCheckpoints(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC()

	checkpoints := []*agent.Checkpoint{
		{ID: "cp-b", SessionID: "s-1", Status: agent.CheckpointPending, Timestamp: base.Add(2 * time.Minute)},
		{ID: "cp-a", SessionID: "s-1", Status: agent.CheckpointPending, Timestamp: base},
		{ID: "cp-c", SessionID: "s-2", Status: agent.CheckpointResolved, Timestamp: base.Add(time.Minute)},
	}
	for _, cp := range checkpoints {
		require.NoError(t, store.SaveCheckpoint(ctx, cp))
	}

	pending, err := store.PendingCheckpoints(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	// Oldest first.
	assert.Equal(t, "cp-a", pending[0].ID)
	assert.Equal(t, "cp-b", pending[1].ID)
}

func TestStore_ResolvedCheckpointPersists(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	cp := &agent.Checkpoint{ID: "cp-1", SessionID: "s-1", Status: agent.CheckpointPending, Timestamp: time.Now()}
	require.NoError(t, store.SaveCheckpoint(ctx, cp))

	cp.Status = agent.CheckpointResolved
	cp.HumanResponse = &agent.HumanInput{Decision: "approve"}
	require.NoError(t, store.SaveCheckpoint(ctx, cp))

	got, err := store.GetCheckpoint(ctx, "cp-1")
	require.NoError(t, err)
	assert.Equal(t, agent.CheckpointResolved, got.Status)
	require.NotNil(t, got.HumanResponse)
	assert.Equal(t, "approve", got.HumanResponse.Decision)
}

func TestStore_TaskRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	snap := &agent.Snapshot{
		SessionID:        "s-1",
		OriginalQuery:    "what is the weather in London",
		CurrentIteration: 3,
		MaxIterations:    10,
		Confidence:       0.82,
		Status:           agent.StatusCompleted,
	}
	require.NoError(t, store.SaveTask(ctx, snap))

	got, err := store.GetTask(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, snap.OriginalQuery, got.OriginalQuery)
	assert.Equal(t, agent.StatusCompleted, got.Status)
	assert.InDelta(t, 0.82, got.Confidence, 1e-9)
}

func TestStore_GetTask_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetTask(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ListTasks_Sorted(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"s-c", "s-a", "s-b"} {
		require.NoError(t, store.SaveTask(ctx, &agent.Snapshot{SessionID: id}))
	}

	ids, err := store.ListTasks(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"s-a", "s-b", "s-c"}, ids)
}

func TestStore_CanceledContext(t *testing.T) {
	store := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, store.SaveTask(ctx, &agent.Snapshot{SessionID: "s-1"}))
	_, err := store.PendingCheckpoints(ctx)
	assert.Error(t, err)
}
