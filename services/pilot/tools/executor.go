// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tools

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianPilot/services/pilot/agent"
)

const (
	// DefaultTimeout bounds a single tool execution.
	DefaultTimeout = 30 * time.Second

	// MaxHistoryEntries caps the execution history.
	MaxHistoryEntries = 100
)

// Executor runs registered tools with a timeout and converts every raw
// outcome into environmental feedback.
//
// Description:
//
//	Execute never propagates a raw tool failure: timeouts, panics, and
//	returned errors all become failed Results. Every execution, success
//	or failure, yields a ground-truth fact plus observations for the
//	feedback integrator. The execution history is append-only and capped
//	at MaxHistoryEntries.
//
// Thread Safety: Executor is safe for concurrent use.
type Executor struct {
	registry *Registry
	timeout  time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	history []Execution
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithTimeout sets the default execution timeout.
func WithTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithLogger sets the executor logger.
func WithLogger(logger *slog.Logger) ExecutorOption {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewExecutor creates an executor backed by the given registry.
func NewExecutor(registry *Registry, opts ...ExecutorOption) *Executor {
	e := &Executor{
		registry: registry,
		timeout:  DefaultTimeout,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs a named tool and derives environmental feedback.
//
// Inputs:
//
//	ctx - Context for cancellation; a per-call timeout is layered on top.
//	name - The registered tool name.
//	params - Raw input parameters.
//	iteration - The loop iteration, stamped onto observations.
//
// Outputs:
//
//	*Execution - The recorded execution. Non-nil whenever error is nil.
//	[]agent.Observation - Feedback observations derived from the outcome.
//	error - ErrToolNotFound for unregistered names, or a wrapped
//	        ErrMissingParameter. Execution failures are NOT errors here;
//	        they are failed Results inside the Execution.
func (e *Executor) Execute(ctx context.Context, name string, params map[string]any, iteration int) (*Execution, []agent.Observation, error) {
	tool, ok := e.registry.Get(name)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrToolNotFound, name)
	}

	def := tool.Definition()
	effective, err := applyDefaults(def, params)
	if err != nil {
		return nil, nil, err
	}

	timeout := e.timeout
	if def.Timeout > 0 {
		timeout = def.Timeout
	}

	start := time.Now()
	result := e.run(ctx, tool, effective, timeout)
	exec := Execution{
		ToolName:   name,
		Parameters: effective,
		Result:     result,
		Duration:   time.Since(start),
		StartedAt:  start,
	}

	e.appendHistory(exec)

	e.logger.Info("Tool executed",
		slog.String("tool", name),
		slog.Bool("success", result.Success),
		slog.Duration("duration", exec.Duration),
	)

	return &exec, e.buildObservations(exec, iteration), nil
}

// run invokes the tool with timeout and panic containment.
func (e *Executor) run(ctx context.Context, tool Tool, params map[string]any, timeout time.Duration) *Result {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		result *Result
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("tool panicked: %v", r)}
			}
		}()
		res, err := tool.Execute(ctx, params)
		done <- outcome{result: res, err: err}
	}()

	select {
	case <-ctx.Done():
		return &Result{
			Success: false,
			Error:   fmt.Sprintf("tool execution timed out after %v", timeout),
			Message: "execution timed out",
		}
	case out := <-done:
		if out.err != nil {
			return &Result{
				Success: false,
				Error:   out.err.Error(),
				Message: "execution failed",
			}
		}
		if out.result == nil {
			return &Result{
				Success: false,
				Error:   "tool returned no result",
				Message: "execution failed",
			}
		}
		return out.result
	}
}

// applyDefaults validates required parameters and fills in defaults.
func applyDefaults(def Definition, params map[string]any) (map[string]any, error) {
	effective := make(map[string]any, len(params))
	for k, v := range params {
		effective[k] = v
	}
	for _, p := range def.Parameters {
		if _, present := effective[p.Name]; present {
			continue
		}
		if p.Required {
			return nil, fmt.Errorf("%w: %q for tool %q", ErrMissingParameter, p.Name, def.Name)
		}
		if p.Default != nil {
			effective[p.Name] = p.Default
		}
	}
	return effective, nil
}

// buildObservations converts an execution into environmental feedback.
//
// Success yields success + data (when present) + performance
// observations; failure yields error + environment observations. The
// ground truth is attached to the primary observation in both cases.
func (e *Executor) buildObservations(exec Execution, iteration int) []agent.Observation {
	truth := &agent.GroundTruth{
		Source:   exec.ToolName,
		Success:  exec.Result.Success,
		HasData:  exec.Result.Data != nil,
		DataType: dataType(exec.Result.Data),
	}

	if exec.Result.Success {
		truth.Statement = fmt.Sprintf("tool %s succeeded", exec.ToolName)
		obs := []agent.Observation{{
			Type:        agent.ObservationSuccess,
			Content:     fmt.Sprintf("Tool %s completed successfully: %s", exec.ToolName, exec.Result.Message),
			ToolName:    exec.ToolName,
			Confidence:  0.9,
			GroundTruth: truth,
			Iteration:   iteration,
			Timestamp:   exec.StartedAt,
		}}
		if truth.HasData {
			obs = append(obs, agent.Observation{
				Type:       agent.ObservationData,
				Content:    fmt.Sprintf("Tool %s returned %s data", exec.ToolName, truth.DataType),
				ToolName:   exec.ToolName,
				Confidence: 0.85,
				Data:       map[string]any{"payload": exec.Result.Data},
				Iteration:  iteration,
				Timestamp:  exec.StartedAt,
			})
		}
		obs = append(obs, agent.Observation{
			Type:       agent.ObservationPerformance,
			Content:    fmt.Sprintf("Tool %s took %v", exec.ToolName, exec.Duration.Round(time.Millisecond)),
			ToolName:   exec.ToolName,
			Confidence: 0.7,
			Data:       map[string]any{"duration_ms": exec.Duration.Milliseconds()},
			Iteration:  iteration,
			Timestamp:  exec.StartedAt,
		})
		return obs
	}

	truth.Statement = fmt.Sprintf("tool %s failed: %s", exec.ToolName, exec.Result.Error)
	return []agent.Observation{
		{
			Type:        agent.ObservationError,
			Content:     fmt.Sprintf("Tool %s failed: %s", exec.ToolName, exec.Result.Error),
			ToolName:    exec.ToolName,
			Confidence:  0.9,
			GroundTruth: truth,
			Iteration:   iteration,
			Timestamp:   exec.StartedAt,
		},
		{
			Type:       agent.ObservationEnvironment,
			Content:    fmt.Sprintf("Environment state after %s failure may be degraded", exec.ToolName),
			ToolName:   exec.ToolName,
			Confidence: 0.6,
			Iteration:  iteration,
			Timestamp:  exec.StartedAt,
		},
	}
}

// appendHistory appends an execution, trimming the oldest on overflow.
func (e *Executor) appendHistory(exec Execution) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.history = append(e.history, exec)
	if len(e.history) > MaxHistoryEntries {
		e.history = e.history[len(e.history)-MaxHistoryEntries:]
	}
}

// History returns a copy of the execution history, oldest first.
func (e *Executor) History() []Execution {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Execution(nil), e.history...)
}

// dataType describes the shape of a result payload.
func dataType(data any) string {
	switch data.(type) {
	case nil:
		return ""
	case string:
		return "string"
	case float64, float32, int, int64:
		return "number"
	case bool:
		return "boolean"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	default:
		return fmt.Sprintf("%T", data)
	}
}
