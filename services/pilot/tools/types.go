// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package tools provides the tool registry and execution framework for the
// pilot controller.
//
// Tools are the controller's only mechanism for acting on the outside
// world. Each tool is described by a Definition that is validated at
// registration time; non-conforming tools are rejected with a typed error,
// never silently ignored. Execution is wrapped in a timeout and always
// produces environmental feedback: a ground-truth fact plus one or more
// observations, whether the tool succeeded or failed.
//
// Thread Safety:
//
//	All types in this package are designed for concurrent use. The
//	registry is read-mostly after initialization.
package tools

import (
	"context"
	"time"
)

// ParamType is the wire type of a tool parameter.
type ParamType string

const (
	// ParamString is a string parameter.
	ParamString ParamType = "string"

	// ParamNumber is a numeric parameter.
	ParamNumber ParamType = "number"

	// ParamBoolean is a boolean parameter.
	ParamBoolean ParamType = "boolean"

	// ParamObject is an object parameter.
	ParamObject ParamType = "object"

	// ParamArray is an array parameter.
	ParamArray ParamType = "array"
)

// ParamDef defines a single tool parameter.
type ParamDef struct {
	// Name is the parameter name.
	Name string `json:"name" validate:"required"`

	// Type is the parameter type.
	Type ParamType `json:"type" validate:"required,oneof=string number boolean object array"`

	// Required indicates the parameter must be provided.
	Required bool `json:"required"`

	// Default is applied when an optional parameter is absent.
	Default any `json:"default,omitempty"`

	// Description explains the parameter.
	Description string `json:"description,omitempty"`
}

// Definition describes a tool's interface.
//
// The struct tags drive registration-time validation; see Registry.Register.
type Definition struct {
	// Name is the unique tool identifier.
	Name string `json:"name" validate:"required"`

	// Description explains what the tool does.
	Description string `json:"description" validate:"required"`

	// Category groups related tools (e.g. "information", "calculation").
	Category string `json:"category" validate:"required"`

	// Parameters defines the input parameters.
	Parameters []ParamDef `json:"parameters,omitempty" validate:"dive"`

	// Timeout overrides the executor default for this tool (0 = default).
	Timeout time.Duration `json:"timeout,omitempty"`
}

// Tool is the contract external collaborators implement.
//
// Implementations must be safe for concurrent use and must return within
// the configured timeout or be treated as failed.
type Tool interface {
	// Definition returns the tool's validated interface description.
	Definition() Definition

	// Execute runs the tool with validated parameters.
	//
	// Inputs:
	//   ctx - Context carrying the execution deadline.
	//   params - Input parameters with defaults applied.
	//
	// Outputs:
	//   *Result - Execution result. Must be non-nil on nil error.
	//   error - Non-nil if execution failed outright.
	Execute(ctx context.Context, params map[string]any) (*Result, error)
}

// Result contains the outcome of a tool execution.
type Result struct {
	// Success indicates if the tool succeeded.
	Success bool `json:"success"`

	// Data is the tool's output payload.
	Data any `json:"data,omitempty"`

	// Message is a human-readable summary.
	Message string `json:"message,omitempty"`

	// Error contains the failure message when Success is false.
	Error string `json:"error,omitempty"`
}

// Execution records one tool execution, successful or not.
type Execution struct {
	// ToolName is the executed tool.
	ToolName string `json:"tool_name"`

	// Parameters are the effective input parameters.
	Parameters map[string]any `json:"parameters,omitempty"`

	// Result is the execution result. Always non-nil: timeouts, panics
	// and thrown errors are converted into failed results.
	Result *Result `json:"result"`

	// Duration is how long execution took.
	Duration time.Duration `json:"duration"`

	// StartedAt is when execution started.
	StartedAt time.Time `json:"started_at"`
}
