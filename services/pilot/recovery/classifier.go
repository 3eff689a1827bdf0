// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package recovery

import (
	"strings"

	"github.com/AleutianAI/AleutianPilot/services/pilot/agent"
)

// Classify runs the decision tree over the most recent error
// observation.
//
// Description:
//
//	Returns the classification and the triggering observation, or
//	("", nil) when the observation history holds no error to classify.
//	A run of repeated errors (two or more errors among the five
//	observations preceding the latest error, with no forward progress
//	between them) classifies as strategy_ineffective before the
//	per-error checks, so persistent failure of one approach is
//	recognized even when each individual error would classify on its
//	own. Environment observations do not break the run; success,
//	progress, and data observations do.
func Classify(snap *agent.Snapshot) (Classification, *agent.Observation) {
	latest, preceding := latestError(snap)
	if latest == nil {
		return "", nil
	}

	if errorRun(preceding) >= 2 {
		return ClassStrategyIneffective, latest
	}

	content := strings.ToLower(latest.Content)

	switch {
	case latest.ToolName != "" && latest.GroundTruth != nil && !latest.GroundTruth.Success:
		if mentionsAny(content, "validation", "invalid parameter", "missing required") {
			return ClassParameterValidation, latest
		}
		if mentionsAny(content, "network", "timeout", "timed out", "connection") {
			return ClassNetworkFailure, latest
		}
		if mentionsAny(content, "limit", "exhausted", "quota") {
			return ClassResourceExhaustion, latest
		}
		return ClassToolExecutionFailed, latest
	case mentionsAny(content, "validation", "invalid parameter", "missing required"):
		return ClassParameterValidation, latest
	case mentionsAny(content, "network", "timeout", "timed out", "connection"):
		return ClassNetworkFailure, latest
	case mentionsAny(content, "limit", "exhausted", "quota"):
		return ClassResourceExhaustion, latest
	default:
		return ClassUnknown, latest
	}
}

// latestError finds the most recent error observation and up to five
// observations immediately preceding it, most recent first.
func latestError(snap *agent.Snapshot) (*agent.Observation, []agent.Observation) {
	obs := snap.Observations
	for i := len(obs) - 1; i >= 0; i-- {
		if obs[i].Type != agent.ObservationError {
			continue
		}
		start := i - 5
		if start < 0 {
			start = 0
		}
		preceding := make([]agent.Observation, 0, i-start)
		for j := i - 1; j >= start; j-- {
			preceding = append(preceding, obs[j])
		}
		return &obs[i], preceding
	}
	return nil, nil
}

func countErrors(obs []agent.Observation) int {
	n := 0
	for _, o := range obs {
		if o.Type == agent.ObservationError {
			n++
		}
	}
	return n
}

// errorRun counts errors walking back from the latest error until a
// forward-progress observation breaks the run.
func errorRun(obs []agent.Observation) int {
	n := 0
	for _, o := range obs {
		switch o.Type {
		case agent.ObservationError:
			n++
		case agent.ObservationSuccess, agent.ObservationProgress, agent.ObservationData:
			return n
		}
	}
	return n
}

func mentionsAny(s string, terms ...string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
