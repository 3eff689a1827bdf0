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
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianPilot/services/pilot/agent"
	"github.com/AleutianAI/AleutianPilot/services/pilot/autonomy"
	"github.com/AleutianAI/AleutianPilot/services/pilot/events"
	"github.com/AleutianAI/AleutianPilot/services/pilot/human"
	"github.com/AleutianAI/AleutianPilot/services/pilot/observe"
	"github.com/AleutianAI/AleutianPilot/services/pilot/recovery"
	"github.com/AleutianAI/AleutianPilot/services/pilot/stopping"
	"github.com/AleutianAI/AleutianPilot/services/pilot/telemetry"
	"github.com/AleutianAI/AleutianPilot/services/pilot/tools"
)

// runLoop executes iterations until a terminal status or a checkpoint.
//
// Description:
//
//	Each iteration is a fixed sequence: begin the iteration against the
//	bound, plan recovery for the latest error, integrate environmental
//	feedback, reason, decide on escalation, detect blockers, evaluate
//	stopping conditions, assess completion, act, and recompute
//	confidence from the fresh feedback. Escalation paths exit the loop
//	with the task suspended; a loop panic terminates the task with a
//	recorded agent error instead of crashing the caller.
func (s *Service) runLoop(ctx context.Context, task *agent.TaskState) {
	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("loop panic: %v", r)
			s.logger.Error("Loop panicked",
				slog.String("session_id", task.ID()),
				slog.String("panic", msg),
			)
			task.AppendError(agent.ErrorEntry{
				Iteration:   task.CurrentIteration(),
				Type:        "agent_error",
				Message:     msg,
				Recoverable: false,
				Phase:       "main_loop",
			})
			s.emitter.Emit(events.TypeError, task.ID(), task.CurrentIteration(), events.ErrorData{
				Error:          msg,
				Classification: "agent_error",
				Phase:          "main_loop",
			})
			if s.status.CanTransition(task.Status(), agent.StatusError) {
				s.finish(task, agent.StatusError, "unrecoverable loop error")
			}
		}
	}()

	for {
		if err := ctx.Err(); err != nil {
			task.AppendError(agent.ErrorEntry{
				Iteration:   task.CurrentIteration(),
				Type:        "context_canceled",
				Message:     err.Error(),
				Recoverable: false,
				Phase:       "main_loop",
			})
			s.finish(task, agent.StatusError, "context canceled")
			return
		}

		// Increment against the iteration bound; the counter is left
		// unchanged when the budget is exhausted.
		iter, err := task.BeginIteration()
		if err != nil {
			s.finish(task, agent.StatusMaxIterations, "iteration budget exhausted")
			return
		}
		telemetry.IterationRun()
		s.emitter.Emit(events.TypeIterationStart, task.ID(), iter, nil)
		if err := s.status.Transition(task, agent.StatusProcessing); err != nil {
			s.finish(task, agent.StatusError, err.Error())
			return
		}

		snap := task.Snapshot()

		// Plan recovery for the latest error before reasoning, so the
		// reasoner sees the plan in its prompt.
		plan := s.recovery.Plan(snap)
		if plan != nil {
			telemetry.RecoveryPlanned(string(plan.Classification))
			data := events.RecoveryData{
				Classification: string(plan.Classification),
				RateLimited:    plan.RateLimited,
			}
			if top := plan.TopAction(); top != nil {
				data.ActionType = top.Type
			}
			s.emitter.Emit(events.TypeRecovery, task.ID(), iter, data)
		}

		feedback := s.integrator.Integrate(snap)

		thought := s.reason(ctx, task, iter, buildPrompt(snap, feedback, plan))
		stepConfidence := task.Confidence() + feedback.ConfidenceAdjustment
		task.AppendReasoning(iter, thought, stepConfidence)
		s.emitter.Emit(events.TypeReasoning, task.ID(), iter, events.ReasoningData{
			Content:    thought,
			Confidence: stepConfidence,
		})

		snap = task.Snapshot()

		// Risk-based escalation.
		if decision := s.autonomy.Decide(snap); decision.Escalate {
			s.checkpoint(ctx, task, iter, decision.Reason, escalationPriority(decision), "autonomy")
			return
		}

		// Blocker detection, independent of risk scoring.
		if blocker := s.detectBlocker(task, snap); blocker != nil {
			s.checkpoint(ctx, task, iter, blocker.Description, human.CheckpointPriority(blocker.Severity), "blocker")
			return
		}

		s.humans.RecordProgress(snap)

		if result := s.stopping.Evaluate(snap); result != nil {
			s.finishForCondition(task, result)
			return
		}

		if completion := s.autonomy.AssessCompletion(snap); completion.Complete {
			task.SetConfidence(completion.Confidence)
			s.finish(task, agent.StatusCompleted,
				fmt.Sprintf("completion score %.2f at or above threshold", completion.Score))
			return
		}

		s.performAction(ctx, task, iter, snap, plan)

		// Fold the fresh environmental feedback back into confidence,
		// damped by how unstable the environment looks.
		post := s.integrator.Integrate(task.Snapshot())
		task.AdjustConfidence(post.ConfidenceAdjustment * post.Environment.StabilityFactor())
	}
}

// reason invokes the reasoning collaborator, degrading to a stock
// continuation when it fails.
func (s *Service) reason(ctx context.Context, task *agent.TaskState, iter int, prompt string) string {
	start := time.Now()
	thought, err := s.reasoner.Reason(ctx, prompt)
	telemetry.ReasoningCall(time.Since(start))
	task.AddLLMCall()
	if err != nil {
		s.logger.Warn("Reasoning call failed",
			slog.String("session_id", task.ID()),
			slog.Int("iteration", iter),
			slog.String("error", err.Error()),
		)
		task.AppendError(agent.ErrorEntry{
			Iteration:   iter,
			Type:        "reasoning_failed",
			Message:     err.Error(),
			Recoverable: true,
			Phase:       "reasoning",
		})
		s.emitter.Emit(events.TypeError, task.ID(), iter, events.ErrorData{
			Error:       err.Error(),
			Recoverable: true,
			Phase:       "reasoning",
		})
		return "Reasoning was unavailable this iteration; continuing with environmental feedback only."
	}
	return thought
}

// detectBlocker runs the detectors and suppresses a blocker identical
// to the one the human most recently reviewed for this session.
func (s *Service) detectBlocker(task *agent.TaskState, snap *agent.Snapshot) *agent.Blocker {
	blocker := s.humans.DetectBlocker(snap)
	if blocker == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if last, ok := s.resolved[task.ID()]; ok &&
		last.Type == blocker.Type && last.Description == blocker.Description {
		return nil
	}
	s.blockers[task.ID()] = blocker
	return blocker
}

// checkpoint suspends the task awaiting human input.
func (s *Service) checkpoint(ctx context.Context, task *agent.TaskState, iter int, reason string, priority agent.Severity, origin string) {
	cp := agent.Checkpoint{
		ID:        newCheckpointID(),
		Reason:    reason,
		Priority:  priority,
		Iteration: iter,
		Snapshot:  task.Snapshot(),
	}
	task.AddCheckpoint(cp)
	telemetry.Escalated(origin)
	s.emitter.Emit(events.TypeEscalation, task.ID(), iter, events.EscalationData{
		CheckpointID: cp.ID,
		Reason:       reason,
		Priority:     priority,
		Origin:       origin,
	})
	s.logger.Info("Checkpoint created",
		slog.String("session_id", task.ID()),
		slog.String("checkpoint_id", cp.ID),
		slog.String("origin", origin),
		slog.String("priority", string(priority)),
	)

	if s.store != nil {
		// AddCheckpoint stamps session and status on its internal copy
		// only; mirror that on the persisted record.
		persisted := cp
		persisted.SessionID = task.ID()
		persisted.Status = agent.CheckpointPending
		if err := s.store.SaveCheckpoint(ctx, &persisted); err != nil {
			s.logger.Warn("Failed to persist checkpoint",
				slog.String("checkpoint_id", cp.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}

// performAction plans and executes the next action: a recovery action
// takes precedence, then a tool call, then reasoning continuation.
func (s *Service) performAction(ctx context.Context, task *agent.TaskState, iter int, snap *agent.Snapshot, plan *recovery.Plan) {
	if plan.HasActions() {
		top := plan.TopAction()
		switch top.Type {
		case "retry_tool", "retry_with_backoff":
			if tool, params, ok := lastToolCall(snap); ok {
				task.AdjustConfidence(plan.ConfidenceAdjustment)
				s.executeTool(ctx, task, iter, tool, params, agent.ActionRecovery, top.Description)
				return
			}
		case "fix_parameters":
			if tool, _, ok := lastToolCall(snap); ok {
				task.AdjustConfidence(plan.ConfidenceAdjustment)
				s.executeTool(ctx, task, iter, tool, s.deriveParams(tool, snap.OriginalQuery), agent.ActionRecovery, top.Description)
				return
			}
		case "change_strategy":
			task.AdjustConfidence(plan.ConfidenceAdjustment)
			task.SetStrategy("alternative_approach")
			exclude := ""
			if tool, _, ok := lastToolCall(snap); ok {
				exclude = tool
			}
			if name, ok := s.selectTool(snap.OriginalQuery, exclude); ok {
				s.executeTool(ctx, task, iter, name, s.deriveParams(name, snap.OriginalQuery), agent.ActionRecovery, top.Description)
				return
			}
			s.continueReasoning(task, iter, "No alternative tool is available; rethinking the approach without one.")
			return
		}
	}

	if latestToolSucceeded(snap) {
		s.continueReasoning(task, iter, "Consolidating the latest tool result into an answer.")
		return
	}
	if name, ok := s.selectTool(snap.OriginalQuery, ""); ok {
		s.executeTool(ctx, task, iter, name, s.deriveParams(name, snap.OriginalQuery),
			agent.ActionToolCall, fmt.Sprintf("Execute %s for the query", name))
		return
	}
	s.continueReasoning(task, iter, "No registered tool matches the query; reasoning over what is known.")
}

// executeTool runs one tool call and records the full outcome: action
// entry, observations, error entries, counters, and events.
func (s *Service) executeTool(ctx context.Context, task *agent.TaskState, iter int, name string, params map[string]any, actionType agent.ActionType, description string) {
	idx := task.AppendAction(agent.ActionEntry{
		Iteration:   iter,
		Type:        actionType,
		Description: description,
		ToolName:    name,
		Parameters:  params,
	})

	exec, obs, err := s.executor.Execute(ctx, name, params, iter)
	if err != nil {
		// Registry or parameter errors produce no observations of their
		// own; synthesize one so recovery can classify the failure.
		task.MarkActionOutcome(idx, false)
		task.AddToolCall(false)
		errType := "tool_execution_failed"
		if errors.Is(err, tools.ErrMissingParameter) {
			errType = "parameter_validation_failed"
		}
		task.AppendError(agent.ErrorEntry{
			Iteration:   iter,
			Type:        errType,
			Message:     err.Error(),
			Recoverable: true,
			Phase:       "tool_execution",
		})
		task.AppendObservation(agent.Observation{
			Type:       agent.ObservationError,
			Content:    fmt.Sprintf("Tool %s failed: %v", name, err),
			ToolName:   name,
			Confidence: 0.9,
			Iteration:  iter,
		})
		telemetry.ToolExecuted(name, false, 0)
		s.emitter.Emit(events.TypeToolResult, task.ID(), iter, events.ToolResultData{
			ToolName: name,
			Success:  false,
			Error:    err.Error(),
		})
		return
	}

	for _, o := range obs {
		task.AppendObservation(o)
	}
	success := exec.Result.Success
	task.MarkActionOutcome(idx, success)
	task.AddToolCall(success)
	telemetry.ToolExecuted(name, success, exec.Duration)

	data := events.ToolResultData{ToolName: name, Success: success, Duration: exec.Duration}
	if !success {
		data.Error = exec.Result.Error
		task.AppendError(agent.ErrorEntry{
			Iteration:   iter,
			Type:        "tool_execution_failed",
			Message:     exec.Result.Error,
			Recoverable: true,
			Phase:       "tool_execution",
		})
	}
	s.emitter.Emit(events.TypeToolResult, task.ID(), iter, data)
}

// continueReasoning records a no-tool iteration as forward progress.
func (s *Service) continueReasoning(task *agent.TaskState, iter int, why string) {
	idx := task.AppendAction(agent.ActionEntry{
		Iteration:   iter,
		Type:        agent.ActionReasoning,
		Description: why,
	})
	task.MarkActionOutcome(idx, true)
	task.AppendObservation(observe.Progress(why, iter, task.Confidence()))
}

// selectTool scores registered tools by word overlap between the query
// and the tool's name, description, and category. Ties resolve to the
// alphabetically first tool; with no overlap at all the first
// registered tool is used as a last resort.
func (s *Service) selectTool(query, exclude string) (string, bool) {
	words := wordSet(query)

	best := ""
	bestScore := 0
	var fallback string
	for _, def := range s.registry.Definitions() {
		if def.Name == exclude {
			continue
		}
		if fallback == "" {
			fallback = def.Name
		}
		score := overlap(words, def.Name) + overlap(words, def.Description) + overlap(words, def.Category)
		if score > bestScore {
			best, bestScore = def.Name, score
		}
	}
	if best != "" {
		return best, true
	}
	if fallback != "" {
		return fallback, true
	}
	return "", false
}

// deriveParams fills required parameters without defaults from the
// query text.
func (s *Service) deriveParams(name, query string) map[string]any {
	tool, ok := s.registry.Get(name)
	if !ok {
		return nil
	}
	params := make(map[string]any)
	for _, p := range tool.Definition().Parameters {
		if !p.Required || p.Default != nil {
			continue
		}
		switch p.Type {
		case tools.ParamString:
			params[p.Name] = query
		case tools.ParamNumber:
			params[p.Name] = 0
		case tools.ParamBoolean:
			params[p.Name] = false
		}
	}
	return params
}

// finish applies a terminal status transition and emits the event.
func (s *Service) finish(task *agent.TaskState, to agent.TaskStatus, reason string) {
	from := task.Status()
	if err := s.status.Transition(task, to); err != nil {
		s.logger.Error("Status transition rejected",
			slog.String("session_id", task.ID()),
			slog.String("to", string(to)),
			slog.String("error", err.Error()),
		)
		return
	}
	s.emitter.Emit(events.TypeStatusTransition, task.ID(), task.CurrentIteration(), events.StatusTransitionData{
		From:   from,
		To:     to,
		Reason: reason,
	})
	s.logger.Info("Task finished",
		slog.String("session_id", task.ID()),
		slog.String("status", string(to)),
		slog.String("reason", reason),
	)
}

// finishForCondition maps a fired stopping condition to its terminal
// status.
func (s *Service) finishForCondition(task *agent.TaskState, result *stopping.Result) {
	switch result.Condition {
	case stopping.CondMaxIterations, stopping.CondTimeLimit:
		s.finish(task, agent.StatusMaxIterations, result.Verdict.Reason)
	case stopping.CondErrorThreshold:
		s.finish(task, agent.StatusError, result.Verdict.Reason)
	case stopping.CondAwaitingHuman:
		// The task stays in processing; the checkpoint path already
		// suspended it.
	default:
		s.finish(task, agent.StatusCompleted, result.Verdict.Reason)
	}
}

// buildPrompt assembles the reasoning prompt from the task, the
// feedback digest, and the pending recovery plan.
func buildPrompt(snap *agent.Snapshot, feedback *observe.FeedbackContext, plan *recovery.Plan) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Task: %s\n", snap.OriginalQuery)
	fmt.Fprintf(&b, "Iteration %d of %d, strategy %q, confidence %.2f.\n",
		snap.CurrentIteration, snap.MaxIterations, snap.Strategy, snap.Confidence)
	b.WriteString("Feedback:\n")
	b.WriteString(feedback.Digest)
	if plan.HasActions() {
		top := plan.TopAction()
		fmt.Fprintf(&b, "\nRecovery plan [%s]: %s", top.Type, top.Description)
	}
	return b.String()
}

// escalationPriority grades an autonomy escalation: safety findings
// mandate immediate review, everything else is medium.
func escalationPriority(decision *autonomy.Decision) agent.Severity {
	for _, f := range decision.Factors {
		if f.Name == autonomy.FactorSafety && f.IsRisky {
			return agent.SeverityHigh
		}
	}
	return agent.SeverityMedium
}

// lastToolCall returns the most recent executed tool call.
func lastToolCall(snap *agent.Snapshot) (string, map[string]any, bool) {
	for i := len(snap.Actions) - 1; i >= 0; i-- {
		a := snap.Actions[i]
		if a.ToolName != "" && a.Success != nil {
			return a.ToolName, a.Parameters, true
		}
	}
	return "", nil, false
}

// latestToolSucceeded reports whether the most recent tool-derived
// observation confirms a success.
func latestToolSucceeded(snap *agent.Snapshot) bool {
	for i := len(snap.Observations) - 1; i >= 0; i-- {
		o := snap.Observations[i]
		if o.GroundTruth == nil {
			continue
		}
		return o.GroundTruth.Success
	}
	return false
}

// wordSet lowercases and splits text into a word set.
func wordSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(s)) {
		set[strings.Trim(w, ".,!?;:()\"'")] = struct{}{}
	}
	return set
}

// overlap counts query words appearing in the candidate text.
func overlap(words map[string]struct{}, text string) int {
	n := 0
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,!?;:()\"'-")
		for q := range words {
			if q != "" && (q == w || strings.Contains(w, q)) {
				n++
				break
			}
		}
	}
	return n
}
