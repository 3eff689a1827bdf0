// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package agent defines the task data model and state store for the
// autonomous task-execution controller.
//
// One TaskState exists per running task. The controller is the sole
// mutator; every other subsystem (stopping conditions, autonomy, human
// interaction, recovery, feedback) operates on an immutable Snapshot
// taken between mutations. History sequences are append-only and are
// never reordered or mutated in place.
//
// Thread Safety:
//
//	TaskState is protected by an internal mutex and safe for concurrent
//	reads. Mutation is expected from a single controller goroutine.
package agent

import (
	"time"
)

// TaskStatus represents the lifecycle status of a task.
//
// Transitions are forward-only and enforced by the status state machine.
// The only self-transition allowed is PROCESSING -> PROCESSING.
type TaskStatus string

const (
	// StatusNotStarted is the initial status before the loop runs.
	StatusNotStarted TaskStatus = "not_started"

	// StatusProcessing indicates the loop is running or suspended on a
	// human checkpoint.
	StatusProcessing TaskStatus = "processing"

	// StatusCompleted indicates the task finished successfully.
	StatusCompleted TaskStatus = "completed"

	// StatusError indicates the task terminated with an error.
	StatusError TaskStatus = "error"

	// StatusMaxIterations indicates the iteration bound was reached.
	StatusMaxIterations TaskStatus = "max_iterations_reached"
)

// String returns the string representation of the status.
func (s TaskStatus) String() string {
	return string(s)
}

// IsTerminal returns true if no further iterations may run.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusError, StatusMaxIterations:
		return true
	default:
		return false
	}
}

// ObservationType classifies an observation.
type ObservationType string

const (
	// ObservationSuccess records a successful tool or environment outcome.
	ObservationSuccess ObservationType = "success"

	// ObservationError records a failure outcome.
	ObservationError ObservationType = "error"

	// ObservationProgress records forward progress without a tool call.
	ObservationProgress ObservationType = "progress"

	// ObservationData records structured data returned by a tool.
	ObservationData ObservationType = "data"

	// ObservationPerformance records timing/performance facts.
	ObservationPerformance ObservationType = "performance"

	// ObservationEnvironment records environment state changes.
	ObservationEnvironment ObservationType = "environment"

	// ObservationToolFeedback records auxiliary tool feedback.
	ObservationToolFeedback ObservationType = "tool_feedback"
)

// GroundTruth is the authoritative, non-LLM-derived fact embedded in an
// Observation. It is derived directly from a tool or environment result
// and is the signal error detection and blocker detection reason over.
type GroundTruth struct {
	// Source identifies what produced the fact (tool name or "environment").
	Source string `json:"source"`

	// Success indicates whether the underlying operation succeeded.
	Success bool `json:"success"`

	// HasData indicates whether the operation returned data.
	HasData bool `json:"has_data"`

	// DataType describes the shape of returned data ("map", "string", ...).
	DataType string `json:"data_type,omitempty"`

	// Statement is a human-readable rendering of the fact.
	Statement string `json:"statement,omitempty"`
}

// Observation is a structured, confidence-scored fact derived from a tool
// execution or environment check.
type Observation struct {
	// Type classifies the observation.
	Type ObservationType `json:"type"`

	// Content is a human-readable description.
	Content string `json:"content"`

	// ToolName is set when the observation came from a tool execution.
	ToolName string `json:"tool_name,omitempty"`

	// Confidence is in [0, 1].
	Confidence float64 `json:"confidence"`

	// Data carries structured payload data.
	Data map[string]any `json:"data,omitempty"`

	// GroundTruth is the authoritative fact behind the observation.
	GroundTruth *GroundTruth `json:"ground_truth,omitempty"`

	// Iteration is the loop iteration that produced the observation.
	Iteration int `json:"iteration"`

	// Timestamp is when the observation was recorded.
	Timestamp time.Time `json:"timestamp"`
}

// ReasoningEntry records one reasoning step.
type ReasoningEntry struct {
	// Iteration is the loop iteration of this step.
	Iteration int `json:"iteration"`

	// Content is the reasoning text.
	Content string `json:"content"`

	// Confidence is the confidence attached to the step, in [0, 1].
	Confidence float64 `json:"confidence"`

	// Timestamp is when the step was recorded.
	Timestamp time.Time `json:"timestamp"`
}

// ActionType classifies a planned action.
type ActionType string

const (
	// ActionToolCall invokes a registered tool.
	ActionToolCall ActionType = "tool_call"

	// ActionReasoning continues reasoning without external effects.
	ActionReasoning ActionType = "continue_reasoning"

	// ActionRecovery applies a recovery strategy action.
	ActionRecovery ActionType = "recovery"
)

// ActionEntry records one planned (and possibly executed) action.
type ActionEntry struct {
	// Iteration is the loop iteration of this action.
	Iteration int `json:"iteration"`

	// Type classifies the action.
	Type ActionType `json:"type"`

	// Description explains the action.
	Description string `json:"description"`

	// Success records the execution outcome. Nil until executed.
	Success *bool `json:"success,omitempty"`

	// ToolName is set for tool_call actions.
	ToolName string `json:"tool_name,omitempty"`

	// Parameters are the tool input parameters for tool_call actions.
	Parameters map[string]any `json:"parameters,omitempty"`
}

// ErrorEntry records one error encountered by the loop.
type ErrorEntry struct {
	// Iteration is the loop iteration when the error occurred.
	Iteration int `json:"iteration"`

	// Type is the error classification (see recovery package taxonomy).
	Type string `json:"type"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Recoverable indicates whether local recovery may be attempted.
	Recoverable bool `json:"recoverable"`

	// Phase identifies where the error was caught (e.g. "main_loop").
	Phase string `json:"phase,omitempty"`

	// Timestamp is when the error was recorded.
	Timestamp time.Time `json:"timestamp"`
}

// Severity grades blockers and checkpoint priorities.
type Severity string

const (
	// SeverityLow is informational; the loop could continue.
	SeverityLow Severity = "low"

	// SeverityMedium should be reviewed soon.
	SeverityMedium Severity = "medium"

	// SeverityHigh mandates immediate human review.
	SeverityHigh Severity = "high"
)

// BlockerType identifies which detector produced a blocker.
type BlockerType string

const (
	// BlockerRepeatedFailures fires when recent errors repeat a type.
	BlockerRepeatedFailures BlockerType = "repeated_failures"

	// BlockerLowConfidenceStagnation fires on low and falling confidence.
	BlockerLowConfidenceStagnation BlockerType = "low_confidence_stagnation"

	// BlockerResourceExhaustion fires when time or call budgets near caps.
	BlockerResourceExhaustion BlockerType = "resource_exhaustion"

	// BlockerComplexityOverload fires when task complexity outruns confidence.
	BlockerComplexityOverload BlockerType = "complexity_overload"

	// BlockerAmbiguousRequirements fires on ambiguity markers in the query.
	BlockerAmbiguousRequirements BlockerType = "ambiguous_requirements"

	// BlockerSafetyConstraints fires on unsafe query or action patterns.
	BlockerSafetyConstraints BlockerType = "safety_constraints"
)

// Blocker is a detected condition that mandates human review, independent
// of risk scoring.
type Blocker struct {
	// Type identifies the detector that fired.
	Type BlockerType `json:"type"`

	// Severity grades the blocker.
	Severity Severity `json:"severity"`

	// Description is a human-readable summary.
	Description string `json:"description"`

	// Evidence lists the facts the detector reasoned over.
	Evidence []string `json:"evidence,omitempty"`

	// Recommendation suggests what the human should do.
	Recommendation string `json:"recommendation,omitempty"`
}

// CheckpointStatus is the lifecycle status of a checkpoint.
type CheckpointStatus string

const (
	// CheckpointPending awaits human input.
	CheckpointPending CheckpointStatus = "pending"

	// CheckpointResolved received human input exactly once.
	CheckpointResolved CheckpointStatus = "resolved"

	// CheckpointSkipped was dismissed without input.
	CheckpointSkipped CheckpointStatus = "skipped"
)

// HumanInput is the payload a human provides when resolving a checkpoint.
type HumanInput struct {
	// Guidance is free-form steering text.
	Guidance string `json:"guidance,omitempty"`

	// Decision is an approve/reject style decision.
	Decision string `json:"decision,omitempty"`

	// Clarification answers an ambiguity question.
	Clarification string `json:"clarification,omitempty"`

	// Feedback is general feedback on progress so far.
	Feedback string `json:"feedback,omitempty"`
}

// Checkpoint is a suspension point where the loop exits awaiting human
// input. Created by either the autonomy manager (risk escalation) or the
// human interaction manager (blocker detection); resolved exactly once.
type Checkpoint struct {
	// ID is the unique checkpoint identifier.
	ID string `json:"id"`

	// SessionID links the checkpoint to its task.
	SessionID string `json:"session_id"`

	// Reason explains why the loop was suspended.
	Reason string `json:"reason"`

	// Priority grades urgency (mirrors blocker severity).
	Priority Severity `json:"priority"`

	// Iteration is the loop iteration at suspension time.
	Iteration int `json:"iteration"`

	// Snapshot captures task state at suspension time.
	Snapshot *Snapshot `json:"snapshot,omitempty"`

	// Status is the checkpoint lifecycle status.
	Status CheckpointStatus `json:"status"`

	// HumanResponse is set when the checkpoint is resolved.
	HumanResponse *HumanInput `json:"human_response,omitempty"`

	// Timestamp is when the checkpoint was created.
	Timestamp time.Time `json:"timestamp"`
}

// RecoveryAction is a structured response produced by a recovery strategy.
type RecoveryAction struct {
	// Type identifies the strategy family (e.g. "retry_tool").
	Type string `json:"type"`

	// Description explains the action.
	Description string `json:"description"`

	// Actions are concrete steps, most preferred first.
	Actions []string `json:"actions"`

	// ExpectedOutcome describes what success looks like.
	ExpectedOutcome string `json:"expected_outcome,omitempty"`

	// ConfidenceImpact is the expected confidence delta of applying
	// the action, typically in [-0.2, 0.1].
	ConfidenceImpact float64 `json:"confidence_impact"`
}

// Metrics holds per-task counters. Updated only by the controller.
type Metrics struct {
	// LLMCalls counts reasoning-collaborator invocations.
	LLMCalls int `json:"llm_calls"`

	// ToolCalls counts tool executions.
	ToolCalls int `json:"tool_calls"`

	// Successes counts successful tool executions.
	Successes int `json:"successes"`

	// Failures counts failed tool executions.
	Failures int `json:"failures"`
}

// Snapshot is an immutable copy of task state handed to evaluators.
//
// Description:
//
//	Every subsystem that scores or inspects a task receives a Snapshot,
//	never the live TaskState. Slices are copied on creation, so holding
//	a Snapshot across controller mutations is safe.
type Snapshot struct {
	// SessionID is the opaque task identifier.
	SessionID string `json:"session_id"`

	// OriginalQuery is the immutable input query.
	OriginalQuery string `json:"original_query"`

	// CurrentIteration is the 1-based iteration counter.
	CurrentIteration int `json:"current_iteration"`

	// MaxIterations is the immutable iteration bound (>= 1).
	MaxIterations int `json:"max_iterations"`

	// Reasoning is the append-only reasoning history.
	Reasoning []ReasoningEntry `json:"reasoning"`

	// Actions is the append-only action history.
	Actions []ActionEntry `json:"actions"`

	// Observations is the append-only observation history.
	Observations []Observation `json:"observations"`

	// Errors is the append-only error history.
	Errors []ErrorEntry `json:"errors"`

	// Confidence is the current confidence in [0, 1].
	Confidence float64 `json:"confidence"`

	// Status is the current lifecycle status.
	Status TaskStatus `json:"status"`

	// AwaitingHumanInput is true while an unresolved checkpoint exists.
	AwaitingHumanInput bool `json:"awaiting_human_input"`

	// Strategy is the current strategy label.
	Strategy string `json:"strategy"`

	// Metrics are the per-task counters.
	Metrics Metrics `json:"metrics"`

	// StartedAt is when the task began processing.
	StartedAt time.Time `json:"started_at"`

	// TimeLimit is the wall-clock budget (0 = unlimited).
	TimeLimit time.Duration `json:"time_limit,omitempty"`

	// Checkpoints are the checkpoints created so far.
	Checkpoints []Checkpoint `json:"checkpoints,omitempty"`
}

// LastReasoning returns the most recent reasoning entry, or nil.
func (s *Snapshot) LastReasoning() *ReasoningEntry {
	if len(s.Reasoning) == 0 {
		return nil
	}
	return &s.Reasoning[len(s.Reasoning)-1]
}

// RecentObservations returns up to n observations, most recent first.
func (s *Snapshot) RecentObservations(n int) []Observation {
	if n <= 0 || len(s.Observations) == 0 {
		return nil
	}
	if n > len(s.Observations) {
		n = len(s.Observations)
	}
	out := make([]Observation, 0, n)
	for i := len(s.Observations) - 1; i >= len(s.Observations)-n; i-- {
		out = append(out, s.Observations[i])
	}
	return out
}

// RecentErrors returns up to n error entries, most recent first.
func (s *Snapshot) RecentErrors(n int) []ErrorEntry {
	if n <= 0 || len(s.Errors) == 0 {
		return nil
	}
	if n > len(s.Errors) {
		n = len(s.Errors)
	}
	out := make([]ErrorEntry, 0, n)
	for i := len(s.Errors) - 1; i >= len(s.Errors)-n; i-- {
		out = append(out, s.Errors[i])
	}
	return out
}

// Elapsed returns the wall-clock time since the task started.
func (s *Snapshot) Elapsed() time.Duration {
	if s.StartedAt.IsZero() {
		return 0
	}
	return time.Since(s.StartedAt)
}
