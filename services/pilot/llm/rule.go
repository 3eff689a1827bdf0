// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"strings"
)

// RuleReasoner is a deterministic, offline reasoner.
//
// Description:
//
//	It reads the prompt the controller assembles (task, feedback
//	digest, recovery plan) and emits a templated reasoning step. It is
//	the fallback when no API key is configured and keeps the loop
//	usable offline. It is intentionally simple: data in hand means the
//	answer is announced, failures mean a retry or change of approach.
type RuleReasoner struct{}

// NewRuleReasoner creates the offline reasoner.
func NewRuleReasoner() *RuleReasoner {
	return &RuleReasoner{}
}

// Reason derives the next step from the prompt text alone.
func (r *RuleReasoner) Reason(_ context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyPrompt
	}
	lower := strings.ToLower(prompt)

	switch {
	case strings.Contains(lower, "data is available") ||
		strings.Contains(lower, "completed successfully"):
		return "The tool returned the requested data. Task complete: the final answer is in the latest tool result.", nil
	case strings.Contains(lower, "change_strategy"):
		return "The current approach keeps failing. I will switch to a different approach for the remaining work.", nil
	case strings.Contains(lower, "retry_tool") || strings.Contains(lower, "retry_with_backoff"):
		return "The last tool call failed. I will retry it before considering alternatives.", nil
	case strings.Contains(lower, "fix_parameters"):
		return "The tool rejected the parameters. I will correct them from the query and retry.", nil
	case strings.Contains(lower, "no recent observations"):
		return "Starting on the task. I will select a tool that can answer the query directly.", nil
	default:
		return "Continuing the task with the available feedback. I will gather more evidence with a tool call.", nil
	}
}
