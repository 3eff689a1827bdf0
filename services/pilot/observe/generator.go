// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package observe

import (
	"time"

	"github.com/AleutianAI/AleutianPilot/services/pilot/agent"
)

// Progress builds a progress observation for a reasoning-only step.
func Progress(content string, iteration int, confidence float64) agent.Observation {
	return agent.Observation{
		Type:       agent.ObservationProgress,
		Content:    content,
		Confidence: clamp01(confidence),
		Iteration:  iteration,
		Timestamp:  time.Now(),
	}
}

// Environment builds an environment-state observation backed by a
// ground-truth fact.
func Environment(content string, success bool, iteration int) agent.Observation {
	return agent.Observation{
		Type:    agent.ObservationEnvironment,
		Content: content,
		GroundTruth: &agent.GroundTruth{
			Source:    "environment",
			Success:   success,
			Statement: content,
		},
		Confidence: 0.8,
		Iteration:  iteration,
		Timestamp:  time.Now(),
	}
}

// ToolFeedback builds an auxiliary tool-feedback observation.
func ToolFeedback(toolName, content string, iteration int) agent.Observation {
	return agent.Observation{
		Type:       agent.ObservationToolFeedback,
		Content:    content,
		ToolName:   toolName,
		Confidence: 0.7,
		Iteration:  iteration,
		Timestamp:  time.Now(),
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
