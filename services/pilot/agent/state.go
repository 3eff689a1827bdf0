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
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxIterations bounds the loop when no config is supplied.
const DefaultMaxIterations = 10

// InitialConfidence is the confidence a fresh task starts with.
const InitialConfidence = 0.5

// TaskConfig carries the immutable per-task configuration.
type TaskConfig struct {
	// MaxIterations bounds the loop. Must be >= 1.
	MaxIterations int

	// TimeLimit is the wall-clock budget (0 = unlimited).
	TimeLimit time.Duration

	// Strategy is the initial strategy label.
	Strategy string
}

// DefaultTaskConfig returns production defaults.
func DefaultTaskConfig() TaskConfig {
	return TaskConfig{
		MaxIterations: DefaultMaxIterations,
		TimeLimit:     5 * time.Minute,
		Strategy:      "general",
	}
}

// TaskState is the single mutable record for a running task.
//
// Description:
//
//	Holds the iteration counter, the four append-only histories, the
//	clamped confidence value, the lifecycle status, checkpoints, and
//	per-task counters. Only the controller mutates a TaskState; all
//	evaluators receive a Snapshot.
//
// Thread Safety: Safe for concurrent use. Mutation is serialized by the
// internal mutex; the controller additionally holds the TryAcquire flag
// while driving the loop so two callers can never drive one task.
type TaskState struct {
	mu sync.RWMutex

	id     string
	query  string
	config TaskConfig

	currentIteration int
	reasoning        []ReasoningEntry
	actions          []ActionEntry
	observations     []Observation
	errs             []ErrorEntry
	confidence       float64
	status           TaskStatus
	checkpoints      []Checkpoint
	awaitingHuman    bool
	strategy         string
	metrics          Metrics
	startedAt        time.Time

	running bool
}

// NewTask creates a task for the given query.
//
// Inputs:
//
//	query - The immutable input query. Must not be blank.
//	config - Task configuration. Zero MaxIterations uses the default.
//
// Outputs:
//
//	*TaskState - The task in not_started status.
//	error - ErrEmptyQuery or ErrInvalidMaxIterations.
func NewTask(query string, config TaskConfig) (*TaskState, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if config.MaxIterations == 0 {
		config.MaxIterations = DefaultMaxIterations
	}
	if config.MaxIterations < 1 {
		return nil, ErrInvalidMaxIterations
	}
	if config.Strategy == "" {
		config.Strategy = "general"
	}

	return &TaskState{
		id:         uuid.NewString(),
		query:      query,
		config:     config,
		confidence: InitialConfidence,
		status:     StatusNotStarted,
		strategy:   config.Strategy,
	}, nil
}

// ID returns the opaque session identifier.
func (t *TaskState) ID() string {
	return t.id
}

// Query returns the immutable input query.
func (t *TaskState) Query() string {
	return t.query
}

// Config returns the immutable task configuration.
func (t *TaskState) Config() TaskConfig {
	return t.config
}

// Status returns the current lifecycle status.
func (t *TaskState) Status() TaskStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// setStatus applies a status change. Called only by the status machine.
func (t *TaskState) setStatus(s TaskStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = s
	if s != StatusProcessing {
		// Invariant: awaitingHumanInput implies status == processing.
		t.awaitingHuman = false
	}
}

// TryAcquire marks the task as being driven by a controller.
//
// Outputs:
//
//	bool - False if another caller is already driving the task.
func (t *TaskState) TryAcquire() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return false
	}
	t.running = true
	return true
}

// Release clears the driving flag set by TryAcquire.
func (t *TaskState) Release() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = false
}

// MarkStarted records the processing start time once.
func (t *TaskState) MarkStarted() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.startedAt.IsZero() {
		t.startedAt = time.Now()
	}
}

// CurrentIteration returns the 1-based iteration counter.
func (t *TaskState) CurrentIteration() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.currentIteration
}

// BeginIteration increments the iteration counter, failing fast when the
// increment would exceed MaxIterations.
//
// Outputs:
//
//	int - The new iteration number (1-based).
//	error - ErrIterationBudget when the bound would be exceeded; the
//	        counter is left unchanged in that case.
func (t *TaskState) BeginIteration() (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.currentIteration+1 > t.config.MaxIterations {
		return t.currentIteration, ErrIterationBudget
	}
	t.currentIteration++
	return t.currentIteration, nil
}

// AppendReasoning appends a reasoning entry for the given iteration.
func (t *TaskState) AppendReasoning(iteration int, content string, confidence float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reasoning = append(t.reasoning, ReasoningEntry{
		Iteration:  iteration,
		Content:    content,
		Confidence: clamp01(confidence),
		Timestamp:  time.Now(),
	})
}

// AppendAction appends an action entry and returns its index so the
// controller can record the outcome after execution.
func (t *TaskState) AppendAction(entry ActionEntry) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.actions = append(t.actions, entry)
	return len(t.actions) - 1
}

// MarkActionOutcome records the execution outcome of an action by index.
// Out-of-range indexes are ignored.
func (t *TaskState) MarkActionOutcome(index int, success bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if index < 0 || index >= len(t.actions) {
		return
	}
	t.actions[index].Success = &success
}

// AppendObservation appends an observation.
func (t *TaskState) AppendObservation(obs Observation) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if obs.Timestamp.IsZero() {
		obs.Timestamp = time.Now()
	}
	obs.Confidence = clamp01(obs.Confidence)
	t.observations = append(t.observations, obs)
}

// AppendError appends an error entry.
func (t *TaskState) AppendError(entry ErrorEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	t.errs = append(t.errs, entry)
}

// Confidence returns the current confidence in [0, 1].
func (t *TaskState) Confidence() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.confidence
}

// SetConfidence replaces the confidence, clamped to [0, 1].
func (t *TaskState) SetConfidence(v float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.confidence = clamp01(v)
}

// AdjustConfidence applies a delta to the confidence, clamped to [0, 1].
func (t *TaskState) AdjustConfidence(delta float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.confidence = clamp01(t.confidence + delta)
}

// Strategy returns the current strategy label.
func (t *TaskState) Strategy() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.strategy
}

// SetStrategy replaces the strategy label (strategy recovery).
func (t *TaskState) SetStrategy(s string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.strategy = s
}

// AwaitingHumanInput reports whether an unresolved checkpoint blocks the loop.
func (t *TaskState) AwaitingHumanInput() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.awaitingHuman
}

// AddCheckpoint appends a pending checkpoint and marks the task as
// awaiting human input.
func (t *TaskState) AddCheckpoint(cp Checkpoint) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cp.Timestamp.IsZero() {
		cp.Timestamp = time.Now()
	}
	cp.SessionID = t.id
	cp.Status = CheckpointPending
	t.checkpoints = append(t.checkpoints, cp)
	t.awaitingHuman = true
}

// ResolveCheckpoint resolves a pending checkpoint exactly once.
//
// Inputs:
//
//	id - The checkpoint ID.
//	input - The human-provided payload.
//
// Outputs:
//
//	*Checkpoint - A copy of the resolved checkpoint.
//	error - ErrCheckpointNotFound or ErrCheckpointResolved.
func (t *TaskState) ResolveCheckpoint(id string, input HumanInput) (*Checkpoint, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.checkpoints {
		if t.checkpoints[i].ID != id {
			continue
		}
		if t.checkpoints[i].Status != CheckpointPending {
			return nil, ErrCheckpointResolved
		}
		t.checkpoints[i].Status = CheckpointResolved
		in := input
		t.checkpoints[i].HumanResponse = &in

		// Clear the block only when no other pending checkpoint remains.
		pending := false
		for j := range t.checkpoints {
			if t.checkpoints[j].Status == CheckpointPending {
				pending = true
				break
			}
		}
		t.awaitingHuman = pending

		cp := t.checkpoints[i]
		return &cp, nil
	}
	return nil, ErrCheckpointNotFound
}

// PendingCheckpoints returns copies of all pending checkpoints.
func (t *TaskState) PendingCheckpoints() []Checkpoint {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []Checkpoint
	for _, cp := range t.checkpoints {
		if cp.Status == CheckpointPending {
			out = append(out, cp)
		}
	}
	return out
}

// AddLLMCall increments the LLM call counter.
func (t *TaskState) AddLLMCall() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.metrics.LLMCalls++
}

// AddToolCall increments the tool counters.
func (t *TaskState) AddToolCall(success bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.metrics.ToolCalls++
	if success {
		t.metrics.Successes++
	} else {
		t.metrics.Failures++
	}
}

// Snapshot returns an immutable copy of the task state.
//
// Description:
//
//	Histories and checkpoints are copied so evaluators can hold the
//	snapshot across controller mutations. The copy is shallow below
//	slice level; entries are treated as immutable by convention.
func (t *TaskState) Snapshot() *Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	snap := &Snapshot{
		SessionID:          t.id,
		OriginalQuery:      t.query,
		CurrentIteration:   t.currentIteration,
		MaxIterations:      t.config.MaxIterations,
		Reasoning:          append([]ReasoningEntry(nil), t.reasoning...),
		Actions:            append([]ActionEntry(nil), t.actions...),
		Observations:       append([]Observation(nil), t.observations...),
		Errors:             append([]ErrorEntry(nil), t.errs...),
		Confidence:         t.confidence,
		Status:             t.status,
		AwaitingHumanInput: t.awaitingHuman,
		Strategy:           t.strategy,
		Metrics:            t.metrics,
		StartedAt:          t.startedAt,
		TimeLimit:          t.config.TimeLimit,
		Checkpoints:        append([]Checkpoint(nil), t.checkpoints...),
	}
	return snap
}

// clamp01 bounds v to [0, 1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
