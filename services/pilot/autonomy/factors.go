// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package autonomy

import (
	"fmt"
	"strings"

	"github.com/AleutianAI/AleutianPilot/services/pilot/agent"
	"github.com/AleutianAI/AleutianPilot/services/pilot/safety"
)

// negationPairs mark contradictory reasoning when both sides appear.
var negationPairs = [][2]string{
	{"will ", "will not "},
	{"can ", "cannot "},
	{"is possible", "is not possible"},
	{"should ", "should not "},
	{"works", "does not work"},
}

// uncertaintyMarkers are hedging phrases counted toward uncertainty.
var uncertaintyMarkers = []string{
	"not sure", "unsure", "unclear", "i think", "maybe",
	"possibly", "uncertain", "don't know", "cannot determine",
}

// evaluateFactors computes the seven risk factors for a snapshot.
func evaluateFactors(snap *agent.Snapshot, cfg Config) []Factor {
	weights := cfg.FactorWeights
	return []Factor{
		confidenceFactor(snap, weights[FactorConfidence]),
		complexityFactor(snap, weights[FactorComplexity]),
		errorRateFactor(snap, weights[FactorErrorRate]),
		stagnationFactor(snap, weights[FactorStagnation]),
		uncertaintyFactor(snap, weights[FactorUncertainty]),
		safetyFactor(snap, weights[FactorSafety]),
		resourceFactor(snap, cfg, weights[FactorResources]),
	}
}

func confidenceFactor(snap *agent.Snapshot, weight float64) Factor {
	f := Factor{
		Name:   FactorConfidence,
		Value:  1 - snap.Confidence,
		Weight: weight,
	}
	if snap.Confidence < 0.4 {
		f.IsRisky = true
		f.Trigger = fmt.Sprintf("confidence %.2f below 0.4", snap.Confidence)
	}
	return f
}

// complexityFactor blends query structure with accumulated loop volume.
func complexityFactor(snap *agent.Snapshot, weight float64) Factor {
	words := len(strings.Fields(snap.OriginalQuery))
	clauses := strings.Count(snap.OriginalQuery, ",") + strings.Count(snap.OriginalQuery, " and ")

	queryScore := minf(float64(words)/50.0+float64(clauses)/5.0, 1.0)
	volumeScore := minf(float64(len(snap.Reasoning)+len(snap.Actions))/20.0, 1.0)
	value := 0.6*queryScore + 0.4*volumeScore

	f := Factor{Name: FactorComplexity, Value: value, Weight: weight}
	if value > 0.7 {
		f.IsRisky = true
		f.Trigger = fmt.Sprintf("complexity score %.2f above 0.7", value)
	}
	return f
}

func errorRateFactor(snap *agent.Snapshot, weight float64) Factor {
	iterations := snap.CurrentIteration
	if iterations == 0 {
		iterations = 1
	}
	rate := minf(float64(len(snap.Errors))/float64(iterations), 1.0)

	f := Factor{Name: FactorErrorRate, Value: rate, Weight: weight}
	if rate > 0.3 {
		f.IsRisky = true
		f.Trigger = fmt.Sprintf("error rate %.2f above 0.3", rate)
		return f
	}
	if repeated := repeatedErrorType(snap.RecentErrors(3)); repeated != "" {
		f.IsRisky = true
		f.Trigger = fmt.Sprintf("error type %q repeating", repeated)
	}
	return f
}

func repeatedErrorType(errs []agent.ErrorEntry) string {
	counts := make(map[string]int, len(errs))
	for _, e := range errs {
		counts[e.Type]++
		if counts[e.Type] >= 2 {
			return e.Type
		}
	}
	return ""
}

func stagnationFactor(snap *agent.Snapshot, weight float64) Factor {
	f := Factor{Name: FactorStagnation, Weight: weight}
	if snap.CurrentIteration < 3 {
		return f
	}

	forward := 0
	for _, o := range snap.RecentObservations(5) {
		switch o.Type {
		case agent.ObservationSuccess, agent.ObservationProgress, agent.ObservationData:
			forward++
		}
	}
	if forward == 0 {
		f.Value = 1.0
		f.IsRisky = true
		f.Trigger = "no forward progress in recent observations"
	}
	return f
}

// uncertaintyFactor combines contradiction detection with hedging and
// the error-observation ratio.
func uncertaintyFactor(snap *agent.Snapshot, weight float64) Factor {
	var text strings.Builder
	for _, r := range snap.Reasoning {
		text.WriteString(strings.ToLower(r.Content))
		text.WriteString(" ")
	}
	combined := text.String()

	score := 0.0
	for _, pair := range negationPairs {
		if strings.Contains(combined, pair[0]) && strings.Contains(combined, pair[1]) {
			score += 0.3
		}
	}
	for _, marker := range uncertaintyMarkers {
		if strings.Contains(combined, marker) {
			score += 0.15
		}
	}
	if total := len(snap.Observations); total > 0 {
		errs := 0
		for _, o := range snap.Observations {
			if o.Type == agent.ObservationError {
				errs++
			}
		}
		score += 0.5 * float64(errs) / float64(total)
	}
	score = minf(score, 1.0)

	f := Factor{Name: FactorUncertainty, Value: score, Weight: weight}
	if score > 0.5 {
		f.IsRisky = true
		f.Trigger = fmt.Sprintf("uncertainty score %.2f above 0.5", score)
	}
	return f
}

func safetyFactor(snap *agent.Snapshot, weight float64) Factor {
	f := Factor{Name: FactorSafety, Weight: weight}

	if m := safety.Scan(snap.OriginalQuery); m != nil {
		f.Value = 1.0
		f.IsRisky = true
		f.Trigger = fmt.Sprintf("query matches unsafe pattern %s", m.Rule)
		return f
	}
	for _, a := range snap.Actions {
		if m := safety.Scan(a.Description); m != nil {
			f.Value = 1.0
			f.IsRisky = true
			f.Trigger = fmt.Sprintf("action matches unsafe pattern %s", m.Rule)
			return f
		}
	}
	return f
}

func resourceFactor(snap *agent.Snapshot, cfg Config, weight float64) Factor {
	timeRatio := 0.0
	if cfg.MaxDuration > 0 {
		timeRatio = minf(float64(snap.Elapsed())/float64(cfg.MaxDuration), 1.0)
	}
	callRatio := 0.0
	if cfg.MaxLLMCalls > 0 {
		callRatio = minf(float64(snap.Metrics.LLMCalls)/float64(cfg.MaxLLMCalls), 1.0)
	}
	value := maxf(timeRatio, callRatio)

	f := Factor{Name: FactorResources, Value: value, Weight: weight}
	if value > 0.8 {
		f.IsRisky = true
		f.Trigger = fmt.Sprintf("resource usage ratio %.2f above 0.8", value)
	}
	return f
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
