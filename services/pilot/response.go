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
	"fmt"
	"time"

	"github.com/AleutianAI/AleutianPilot/services/pilot/agent"
)

// Response is the full result of driving a task, returned whether the
// task finished, failed, or paused for human input.
type Response struct {
	// Success is true only for completed tasks.
	Success bool `json:"success"`

	// Response is the final answer or a status explanation.
	Response string `json:"response"`

	// SessionID identifies the task for resumption and inspection.
	SessionID string `json:"sessionId"`

	// Status is the task status when the loop exited.
	Status agent.TaskStatus `json:"status"`

	// AgentMode is always true; it distinguishes controller responses
	// from single-shot completions.
	AgentMode bool `json:"agentMode"`

	// Iterations is how many loop iterations ran.
	Iterations int `json:"iterations"`

	// ToolsUsed lists distinct tools in first-use order.
	ToolsUsed []string `json:"toolsUsed"`

	// FinalConfidence is the confidence when the loop exited.
	FinalConfidence float64 `json:"finalConfidence"`

	// Strategy is the strategy label when the loop exited.
	Strategy string `json:"strategy"`

	// ExecutionTime is the wall-clock time of this drive call.
	ExecutionTime time.Duration `json:"executionTime"`

	// Reasoning is the full reasoning history.
	Reasoning []agent.ReasoningEntry `json:"reasoning"`

	// Actions is the full action history.
	Actions []agent.ActionEntry `json:"actions"`

	// Observations is the full observation history.
	Observations []agent.Observation `json:"observations"`

	// AwaitingHumanInput is true when the loop paused on a checkpoint.
	AwaitingHumanInput bool `json:"awaitingHumanInput"`

	// PendingCheckpoint is the checkpoint blocking the loop, if any.
	PendingCheckpoint *agent.Checkpoint `json:"pendingCheckpoint,omitempty"`

	// Error is set when the task ended in error status.
	Error *ResponseError `json:"error,omitempty"`
}

// ResponseError describes a terminal task failure.
type ResponseError struct {
	// Type is the error classification.
	Type string `json:"type"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Iteration is the loop iteration when the error occurred.
	Iteration int `json:"iteration"`
}

// buildResponse renders the task state into a Response.
func buildResponse(snap *agent.Snapshot, elapsed time.Duration) *Response {
	resp := &Response{
		Success:            snap.Status == agent.StatusCompleted,
		Response:           finalAnswer(snap),
		SessionID:          snap.SessionID,
		Status:             snap.Status,
		AgentMode:          true,
		Iterations:         snap.CurrentIteration,
		ToolsUsed:          toolsUsed(snap),
		FinalConfidence:    snap.Confidence,
		Strategy:           snap.Strategy,
		ExecutionTime:      elapsed,
		Reasoning:          snap.Reasoning,
		Actions:            snap.Actions,
		Observations:       snap.Observations,
		AwaitingHumanInput: snap.AwaitingHumanInput,
	}

	if snap.AwaitingHumanInput {
		for i := len(snap.Checkpoints) - 1; i >= 0; i-- {
			if snap.Checkpoints[i].Status == agent.CheckpointPending {
				cp := snap.Checkpoints[i]
				resp.PendingCheckpoint = &cp
				break
			}
		}
	}

	if snap.Status == agent.StatusError && len(snap.Errors) > 0 {
		last := snap.Errors[len(snap.Errors)-1]
		resp.Error = &ResponseError{
			Type:      last.Type,
			Message:   last.Message,
			Iteration: last.Iteration,
		}
	}
	return resp
}

// finalAnswer derives the response text from the exit status.
func finalAnswer(snap *agent.Snapshot) string {
	switch snap.Status {
	case agent.StatusCompleted:
		if payload, tool, ok := latestDataPayload(snap); ok {
			return fmt.Sprintf("%v (from %s)", payload, tool)
		}
		if last := snap.LastReasoning(); last != nil {
			return last.Content
		}
		return "Task completed."
	case agent.StatusMaxIterations:
		return fmt.Sprintf("Stopped after reaching the iteration limit of %d without a confirmed answer.", snap.MaxIterations)
	case agent.StatusError:
		if len(snap.Errors) > 0 {
			return "Task failed: " + snap.Errors[len(snap.Errors)-1].Message
		}
		return "Task failed."
	default:
		if snap.AwaitingHumanInput {
			return "Task paused: human input is required before the work can continue."
		}
		return "Task is still processing."
	}
}

// latestDataPayload returns the most recent tool data payload.
func latestDataPayload(snap *agent.Snapshot) (any, string, bool) {
	for i := len(snap.Observations) - 1; i >= 0; i-- {
		o := snap.Observations[i]
		if o.Type != agent.ObservationData {
			continue
		}
		if payload, ok := o.Data["payload"]; ok {
			return payload, o.ToolName, true
		}
	}
	return nil, "", false
}

// toolsUsed lists distinct executed tools in first-use order.
func toolsUsed(snap *agent.Snapshot) []string {
	seen := make(map[string]bool)
	var out []string
	for _, a := range snap.Actions {
		if a.ToolName == "" || a.Success == nil || seen[a.ToolName] {
			continue
		}
		seen[a.ToolName] = true
		out = append(out, a.ToolName)
	}
	return out
}
