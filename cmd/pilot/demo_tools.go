// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/AleutianAI/AleutianPilot/services/pilot/tools"
)

// demoTool adapts a function to the tools.Tool interface.
type demoTool struct {
	def tools.Definition
	fn  func(ctx context.Context, params map[string]any) (*tools.Result, error)
}

func (t *demoTool) Definition() tools.Definition { return t.def }

func (t *demoTool) Execute(ctx context.Context, params map[string]any) (*tools.Result, error) {
	return t.fn(ctx, params)
}

// demoTools returns the built-in tools registered on every CLI run.
// They exist so the loop has something real to act with out of the
// box; applications embedding the service register their own.
func demoTools() []tools.Tool {
	return []tools.Tool{clockTool(), calculatorTool(), systemInfoTool()}
}

func clockTool() tools.Tool {
	return &demoTool{
		def: tools.Definition{
			Name:        "clock",
			Description: "Report the current date and time",
			Category:    "information",
		},
		fn: func(_ context.Context, _ map[string]any) (*tools.Result, error) {
			now := time.Now()
			return &tools.Result{
				Success: true,
				Data:    now.Format(time.RFC1123),
				Message: "current time retrieved",
			}, nil
		},
	}
}

func calculatorTool() tools.Tool {
	return &demoTool{
		def: tools.Definition{
			Name:        "calculator",
			Description: "Calculate an arithmetic result from two numbers and an operator",
			Category:    "computation",
			Parameters: []tools.ParamDef{
				{Name: "a", Type: tools.ParamNumber, Required: true},
				{Name: "b", Type: tools.ParamNumber, Required: true},
				{Name: "op", Type: tools.ParamString, Required: false, Default: "+"},
			},
		},
		fn: func(_ context.Context, params map[string]any) (*tools.Result, error) {
			a, okA := toFloat(params["a"])
			b, okB := toFloat(params["b"])
			if !okA || !okB {
				return &tools.Result{Success: false, Error: "operands a and b must be numbers"}, nil
			}
			op, _ := params["op"].(string)

			var result float64
			switch op {
			case "+":
				result = a + b
			case "-":
				result = a - b
			case "*":
				result = a * b
			case "/":
				if b == 0 {
					return &tools.Result{Success: false, Error: "division by zero"}, nil
				}
				result = a / b
			default:
				return &tools.Result{Success: false, Error: fmt.Sprintf("unsupported operator %q", op)}, nil
			}

			return &tools.Result{
				Success: true,
				Data:    result,
				Message: fmt.Sprintf("%g %s %g = %g", a, op, b, result),
			}, nil
		},
	}
}

func systemInfoTool() tools.Tool {
	return &demoTool{
		def: tools.Definition{
			Name:        "system-info",
			Description: "Describe the host system running the task loop",
			Category:    "information",
		},
		fn: func(_ context.Context, _ map[string]any) (*tools.Result, error) {
			info := fmt.Sprintf("%s/%s, %d CPUs, %s", runtime.GOOS, runtime.GOARCH, runtime.NumCPU(), runtime.Version())
			return &tools.Result{
				Success: true,
				Data:    info,
				Message: "host details retrieved",
			}, nil
		},
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
