// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package events broadcasts controller lifecycle events.
//
// Events let external systems observe the loop, collect metrics, and
// log without coupling to the controller implementation.
//
// Thread Safety:
//
//	All types in this package are designed for concurrent use.
package events

import (
	"time"

	"github.com/AleutianAI/AleutianPilot/services/pilot/agent"
)

// Type identifies the kind of event.
type Type string

const (
	// TypeTaskStart is emitted when a task begins processing.
	TypeTaskStart Type = "task_start"

	// TypeIterationStart is emitted at the top of each loop iteration.
	TypeIterationStart Type = "iteration_start"

	// TypeStatusTransition is emitted when the task status changes.
	TypeStatusTransition Type = "status_transition"

	// TypeReasoning is emitted when a reasoning step is appended.
	TypeReasoning Type = "reasoning"

	// TypeToolResult is emitted when a tool execution finishes.
	TypeToolResult Type = "tool_result"

	// TypeRecovery is emitted when a recovery plan fires.
	TypeRecovery Type = "recovery"

	// TypeEscalation is emitted when a checkpoint is created.
	TypeEscalation Type = "escalation"

	// TypeCheckpointResolved is emitted when human input arrives.
	TypeCheckpointResolved Type = "checkpoint_resolved"

	// TypeTaskEnd is emitted when a task reaches a terminal status.
	TypeTaskEnd Type = "task_end"

	// TypeError is emitted when a loop-level error is recorded.
	TypeError Type = "error"
)

// Event is one controller event. Treat as immutable after creation.
type Event struct {
	// ID is a unique identifier for this event.
	ID string `json:"id"`

	// Type identifies the kind of event.
	Type Type `json:"type"`

	// SessionID links the event to a task.
	SessionID string `json:"session_id"`

	// Iteration is the loop iteration when the event occurred.
	Iteration int `json:"iteration"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Data contains event-specific data; one of the typed data structs
	// below.
	Data any `json:"data,omitempty"`
}

// StatusTransitionData accompanies TypeStatusTransition.
type StatusTransitionData struct {
	// From is the previous status.
	From agent.TaskStatus `json:"from"`

	// To is the new status.
	To agent.TaskStatus `json:"to"`

	// Reason explains the transition.
	Reason string `json:"reason,omitempty"`
}

// ReasoningData accompanies TypeReasoning.
type ReasoningData struct {
	// Content is the reasoning text.
	Content string `json:"content"`

	// Confidence is the confidence attached to the step.
	Confidence float64 `json:"confidence"`
}

// ToolResultData accompanies TypeToolResult.
type ToolResultData struct {
	// ToolName is the executed tool.
	ToolName string `json:"tool_name"`

	// Success indicates whether the execution succeeded.
	Success bool `json:"success"`

	// Duration is how long the execution took.
	Duration time.Duration `json:"duration"`

	// Error is set when the execution failed.
	Error string `json:"error,omitempty"`
}

// RecoveryData accompanies TypeRecovery.
type RecoveryData struct {
	// Classification is the classified error.
	Classification string `json:"classification"`

	// ActionType is the chosen recovery action, empty when suppressed.
	ActionType string `json:"action_type,omitempty"`

	// RateLimited indicates the limiter suppressed the strategy.
	RateLimited bool `json:"rate_limited,omitempty"`
}

// EscalationData accompanies TypeEscalation.
type EscalationData struct {
	// CheckpointID is the created checkpoint.
	CheckpointID string `json:"checkpoint_id"`

	// Reason explains the escalation.
	Reason string `json:"reason"`

	// Priority is the checkpoint priority.
	Priority agent.Severity `json:"priority"`

	// Origin is "autonomy" or "blocker".
	Origin string `json:"origin"`
}

// TaskEndData accompanies TypeTaskEnd.
type TaskEndData struct {
	// Status is the terminal status.
	Status agent.TaskStatus `json:"status"`

	// Iterations is how many iterations ran.
	Iterations int `json:"iterations"`

	// Duration is the total wall-clock time.
	Duration time.Duration `json:"duration"`

	// Confidence is the final confidence.
	Confidence float64 `json:"confidence"`
}

// ErrorData accompanies TypeError.
type ErrorData struct {
	// Error is the error message.
	Error string `json:"error"`

	// Classification is the error classification.
	Classification string `json:"classification,omitempty"`

	// Recoverable indicates whether recovery may be attempted.
	Recoverable bool `json:"recoverable"`

	// Phase identifies where the error was caught.
	Phase string `json:"phase,omitempty"`
}
