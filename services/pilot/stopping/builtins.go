// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package stopping

import (
	"fmt"
	"strings"

	"github.com/AleutianAI/AleutianPilot/services/pilot/agent"
)

// Built-in predicate names, in canonical evaluation order.
const (
	CondMaxIterations  = "max_iterations"
	CondSolutionFound  = "solution_found"
	CondHighConfidence = "high_confidence"
	CondErrorThreshold = "error_threshold"
	CondStagnation     = "stagnation"
	CondAwaitingHuman  = "awaiting_human"
	CondTimeLimit      = "time_limit"
)

const (
	// highConfidenceBar is the confidence at which the loop may stop.
	highConfidenceBar = 0.9

	// errorThreshold is the error count that stops the loop.
	errorThreshold = 3

	// stagnationSimilarity is the mean pairwise similarity above which
	// the last reasoning entries count as stagnant.
	stagnationSimilarity = 0.7

	// stagnationDepth is how many trailing reasoning entries to compare.
	stagnationDepth = 3
)

// solutionKeywords are matched against the latest reasoning entry.
var solutionKeywords = []string{
	"solution found", "task complete", "final answer",
	"answer is", "successfully completed", "here is the result",
}

func builtins() []namedPredicate {
	return []namedPredicate{
		{CondMaxIterations, maxIterations},
		{CondSolutionFound, solutionFound},
		{CondHighConfidence, highConfidence},
		{CondErrorThreshold, errorCount},
		{CondStagnation, stagnation},
		{CondAwaitingHuman, awaitingHuman},
		{CondTimeLimit, timeLimit},
	}
}

func maxIterations(snap *agent.Snapshot) Verdict {
	if snap.CurrentIteration >= snap.MaxIterations {
		return Verdict{
			ShouldStop: true,
			Reason:     fmt.Sprintf("reached iteration limit of %d", snap.MaxIterations),
			Confidence: 1.0,
		}
	}
	return Verdict{}
}

func solutionFound(snap *agent.Snapshot) Verdict {
	last := snap.LastReasoning()
	if last == nil {
		return Verdict{}
	}
	content := strings.ToLower(last.Content)
	for _, kw := range solutionKeywords {
		if strings.Contains(content, kw) {
			return Verdict{
				ShouldStop: true,
				Reason:     fmt.Sprintf("reasoning indicates a solution (%q)", kw),
				Confidence: last.Confidence,
			}
		}
	}
	return Verdict{}
}

func highConfidence(snap *agent.Snapshot) Verdict {
	if snap.Confidence >= highConfidenceBar {
		return Verdict{
			ShouldStop: true,
			Reason:     fmt.Sprintf("confidence %.2f at or above %.2f", snap.Confidence, highConfidenceBar),
			Confidence: snap.Confidence,
		}
	}
	return Verdict{}
}

func errorCount(snap *agent.Snapshot) Verdict {
	if len(snap.Errors) >= errorThreshold {
		return Verdict{
			ShouldStop: true,
			Reason:     fmt.Sprintf("%d errors accumulated", len(snap.Errors)),
			Confidence: 0.9,
		}
	}
	return Verdict{}
}

// stagnation fires when the mean pairwise word similarity of the last
// reasoning entries exceeds the stagnation bar.
func stagnation(snap *agent.Snapshot) Verdict {
	n := len(snap.Reasoning)
	if n < stagnationDepth {
		return Verdict{}
	}
	recent := snap.Reasoning[n-stagnationDepth:]

	var total float64
	pairs := 0
	for i := 0; i < len(recent); i++ {
		for j := i + 1; j < len(recent); j++ {
			total += wordSimilarity(recent[i].Content, recent[j].Content)
			pairs++
		}
	}
	mean := total / float64(pairs)
	if mean > stagnationSimilarity {
		return Verdict{
			ShouldStop: true,
			Reason:     fmt.Sprintf("reasoning is stagnating (similarity %.2f)", mean),
			Confidence: 0.8,
		}
	}
	return Verdict{}
}

func awaitingHuman(snap *agent.Snapshot) Verdict {
	if snap.AwaitingHumanInput {
		return Verdict{
			ShouldStop: true,
			Reason:     "awaiting human input on a pending checkpoint",
			Confidence: 1.0,
		}
	}
	return Verdict{}
}

func timeLimit(snap *agent.Snapshot) Verdict {
	if snap.TimeLimit > 0 && snap.Elapsed() >= snap.TimeLimit {
		return Verdict{
			ShouldStop: true,
			Reason:     fmt.Sprintf("wall-clock limit of %v exceeded", snap.TimeLimit),
			Confidence: 1.0,
		}
	}
	return Verdict{}
}

// wordSimilarity is intersection-over-union of the word sets.
func wordSimilarity(a, b string) float64 {
	wordsA := wordSet(a)
	wordsB := wordSet(b)
	if len(wordsA) == 0 && len(wordsB) == 0 {
		return 1.0
	}
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0
	}

	intersection := 0
	for w := range wordsA {
		if _, ok := wordsB[w]; ok {
			intersection++
		}
	}
	union := len(wordsA) + len(wordsB) - intersection
	return float64(intersection) / float64(union)
}

func wordSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(s)) {
		set[strings.Trim(w, ".,!?;:()\"'")] = struct{}{}
	}
	return set
}
