// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package agent

import (
	"errors"
	"testing"
)

func TestNewTask_Validation(t *testing.T) {
	t.Run("empty query rejected", func(t *testing.T) {
		_, err := NewTask("   ", DefaultTaskConfig())
		if !errors.Is(err, ErrEmptyQuery) {
			t.Errorf("expected ErrEmptyQuery, got %v", err)
		}
	})

	t.Run("negative max iterations rejected", func(t *testing.T) {
		_, err := NewTask("q", TaskConfig{MaxIterations: -1})
		if !errors.Is(err, ErrInvalidMaxIterations) {
			t.Errorf("expected ErrInvalidMaxIterations, got %v", err)
		}
	})

	t.Run("defaults applied", func(t *testing.T) {
		task, err := NewTask("q", TaskConfig{})
		if err != nil {
			t.Fatalf("NewTask: %v", err)
		}
		if task.Config().MaxIterations != DefaultMaxIterations {
			t.Errorf("MaxIterations = %d, want %d", task.Config().MaxIterations, DefaultMaxIterations)
		}
		if task.Status() != StatusNotStarted {
			t.Errorf("Status = %s, want not_started", task.Status())
		}
		if task.Confidence() != InitialConfidence {
			t.Errorf("Confidence = %f, want %f", task.Confidence(), InitialConfidence)
		}
	})
}

func TestTaskState_BeginIteration_Bound(t *testing.T) {
	task, err := NewTask("q", TaskConfig{MaxIterations: 2})
	if err != nil {
		t.Fatalf("NewTask: %v", err)
	}

	for want := 1; want <= 2; want++ {
		got, err := task.BeginIteration()
		if err != nil {
			t.Fatalf("BeginIteration %d: %v", want, err)
		}
		if got != want {
			t.Errorf("iteration = %d, want %d", got, want)
		}
	}

	// Third increment must fail fast and leave the counter unchanged.
	got, err := task.BeginIteration()
	if !errors.Is(err, ErrIterationBudget) {
		t.Errorf("expected ErrIterationBudget, got %v", err)
	}
	if got != 2 {
		t.Errorf("iteration after budget = %d, want 2", got)
	}
}

func TestTaskState_ConfidenceClamped(t *testing.T) {
	task, _ := NewTask("q", DefaultTaskConfig())

	task.SetConfidence(1.7)
	if task.Confidence() != 1 {
		t.Errorf("Confidence = %f, want 1", task.Confidence())
	}

	task.AdjustConfidence(-5)
	if task.Confidence() != 0 {
		t.Errorf("Confidence = %f, want 0", task.Confidence())
	}

	task.AdjustConfidence(0.25)
	if task.Confidence() != 0.25 {
		t.Errorf("Confidence = %f, want 0.25", task.Confidence())
	}
}

func TestTaskState_CheckpointResolveOnce(t *testing.T) {
	task, _ := NewTask("q", DefaultTaskConfig())
	task.AddCheckpoint(Checkpoint{ID: "cp-1", Reason: "escalation", Priority: SeverityHigh})

	if !task.AwaitingHumanInput() {
		t.Fatal("expected awaiting human input after checkpoint")
	}

	cp, err := task.ResolveCheckpoint("cp-1", HumanInput{Guidance: "proceed"})
	if err != nil {
		t.Fatalf("ResolveCheckpoint: %v", err)
	}
	if cp.Status != CheckpointResolved {
		t.Errorf("Status = %s, want resolved", cp.Status)
	}
	if cp.HumanResponse == nil || cp.HumanResponse.Guidance != "proceed" {
		t.Error("human response not recorded")
	}
	if task.AwaitingHumanInput() {
		t.Error("awaiting flag should clear after last pending checkpoint resolves")
	}

	// Second resolve is rejected.
	_, err = task.ResolveCheckpoint("cp-1", HumanInput{})
	if !errors.Is(err, ErrCheckpointResolved) {
		t.Errorf("expected ErrCheckpointResolved, got %v", err)
	}

	_, err = task.ResolveCheckpoint("missing", HumanInput{})
	if !errors.Is(err, ErrCheckpointNotFound) {
		t.Errorf("expected ErrCheckpointNotFound, got %v", err)
	}
}

func TestTaskState_SnapshotIsolation(t *testing.T) {
	task, _ := NewTask("original query", DefaultTaskConfig())
	task.AppendReasoning(1, "first thought", 0.6)

	snap := task.Snapshot()
	task.AppendReasoning(2, "second thought", 0.7)

	if len(snap.Reasoning) != 1 {
		t.Errorf("snapshot reasoning = %d entries, want 1", len(snap.Reasoning))
	}
	if len(task.Snapshot().Reasoning) != 2 {
		t.Errorf("live reasoning = %d entries, want 2", len(task.Snapshot().Reasoning))
	}
}

func TestTaskState_MarkActionOutcome(t *testing.T) {
	task, _ := NewTask("q", DefaultTaskConfig())
	idx := task.AppendAction(ActionEntry{Iteration: 1, Type: ActionToolCall, ToolName: "weather-service"})

	task.MarkActionOutcome(idx, true)

	snap := task.Snapshot()
	if snap.Actions[idx].Success == nil || !*snap.Actions[idx].Success {
		t.Error("action outcome not recorded")
	}

	// Out of range is ignored.
	task.MarkActionOutcome(99, false)
}

func TestStatusMachine(t *testing.T) {
	m := NewStatusMachine()

	valid := []struct{ from, to TaskStatus }{
		{StatusNotStarted, StatusProcessing},
		{StatusProcessing, StatusProcessing},
		{StatusProcessing, StatusCompleted},
		{StatusProcessing, StatusError},
		{StatusProcessing, StatusMaxIterations},
	}
	for _, tt := range valid {
		if !m.CanTransition(tt.from, tt.to) {
			t.Errorf("expected %s -> %s to be valid", tt.from, tt.to)
		}
	}

	invalid := []struct{ from, to TaskStatus }{
		{StatusCompleted, StatusProcessing},
		{StatusError, StatusProcessing},
		{StatusMaxIterations, StatusProcessing},
		{StatusNotStarted, StatusCompleted},
		{StatusCompleted, StatusError},
	}
	for _, tt := range invalid {
		if m.CanTransition(tt.from, tt.to) {
			t.Errorf("expected %s -> %s to be invalid", tt.from, tt.to)
		}
	}

	t.Run("transition applies status", func(t *testing.T) {
		task, _ := NewTask("q", DefaultTaskConfig())
		if err := m.Transition(task, StatusProcessing); err != nil {
			t.Fatalf("Transition: %v", err)
		}
		if task.Status() != StatusProcessing {
			t.Errorf("Status = %s, want processing", task.Status())
		}

		err := m.Transition(task, StatusNotStarted)
		if !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("expected ErrInvalidTransition, got %v", err)
		}
	})
}

func TestTaskStore(t *testing.T) {
	store := NewInMemoryTaskStore()

	a, _ := NewTask("a", DefaultTaskConfig())
	b, _ := NewTask("b", DefaultTaskConfig())
	store.Put(a)
	store.Put(b)

	got, ok := store.Get(a.ID())
	if !ok || got.ID() != a.ID() {
		t.Error("Get returned wrong task")
	}

	if len(store.List()) != 2 {
		t.Errorf("List = %d IDs, want 2", len(store.List()))
	}

	store.Delete(a.ID())
	if _, ok := store.Get(a.ID()); ok {
		t.Error("task not deleted")
	}
}
