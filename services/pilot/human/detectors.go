// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package human detects blockers that mandate human review and renders
// progress communication.
//
// The six detectors are independent and order-agnostic; when several
// fire in the same evaluation a fixed priority order picks the one
// blocker that is surfaced.
package human

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianPilot/services/pilot/agent"
	"github.com/AleutianAI/AleutianPilot/services/pilot/safety"
)

// surfacePriority is the fixed ordering used when multiple detectors
// fire. Safety always wins.
var surfacePriority = []agent.BlockerType{
	agent.BlockerSafetyConstraints,
	agent.BlockerRepeatedFailures,
	agent.BlockerResourceExhaustion,
	agent.BlockerComplexityOverload,
	agent.BlockerLowConfidenceStagnation,
	agent.BlockerAmbiguousRequirements,
}

// ambiguityMarkers flag underspecified queries.
var ambiguityMarkers = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(something|somehow|whatever|stuff|things?)\b`),
	regexp.MustCompile(`(?i)\b(maybe|perhaps|possibly)\b`),
	regexp.MustCompile(`(?i)\b(etc|and so on)\b`),
	regexp.MustCompile(`(?i)\b(not sure|don't know|no idea)\b`),
}

// hedgingMarkers flag expressed uncertainty in reasoning.
var hedgingMarkers = []string{
	"not sure", "unsure", "unclear", "uncertain",
	"cannot determine", "don't know", "ambiguous",
}

func detectSafety(snap *agent.Snapshot) *agent.Blocker {
	m := safety.Scan(snap.OriginalQuery)
	evidence := "query"
	if m == nil {
		for _, a := range snap.Actions {
			if m = safety.Scan(a.Description); m != nil {
				evidence = fmt.Sprintf("action at iteration %d", a.Iteration)
				break
			}
		}
	}
	if m == nil {
		return nil
	}
	return &agent.Blocker{
		Type:        agent.BlockerSafetyConstraints,
		Severity:    agent.SeverityHigh,
		Description: fmt.Sprintf("Safety constraint violated: %s", m.Description),
		Evidence: []string{
			fmt.Sprintf("rule %s matched the %s", m.Rule, evidence),
		},
		Recommendation: "Review the request and explicitly approve or reject the operation.",
	}
}

func detectRepeatedFailures(snap *agent.Snapshot) *agent.Blocker {
	recent := snap.RecentErrors(3)
	counts := make(map[string]int, len(recent))
	for _, e := range recent {
		counts[e.Type]++
	}
	for errType, n := range counts {
		if n < 2 {
			continue
		}
		severity := agent.SeverityMedium
		if n >= 3 {
			severity = agent.SeverityHigh
		}
		return &agent.Blocker{
			Type:        agent.BlockerRepeatedFailures,
			Severity:    severity,
			Description: fmt.Sprintf("Error type %q occurred %d times in the last %d errors", errType, n, len(recent)),
			Evidence:    errorMessages(recent, errType),
			Recommendation: "Inspect the failing operation; the current approach is unlikely to " +
				"succeed without a change.",
		}
	}
	return nil
}

func (m *Manager) detectResourceExhaustion(snap *agent.Snapshot) *agent.Blocker {
	timeRatio := 0.0
	if m.maxDuration > 0 {
		timeRatio = float64(snap.Elapsed()) / float64(m.maxDuration)
	}
	callRatio := 0.0
	if m.maxLLMCalls > 0 {
		callRatio = float64(snap.Metrics.LLMCalls) / float64(m.maxLLMCalls)
	}
	ratio := timeRatio
	resource := "wall-clock time"
	if callRatio > ratio {
		ratio = callRatio
		resource = "reasoning calls"
	}
	if ratio <= 0.8 {
		return nil
	}

	severity := agent.SeverityMedium
	if ratio > 0.95 {
		severity = agent.SeverityHigh
	}
	return &agent.Blocker{
		Type:        agent.BlockerResourceExhaustion,
		Severity:    severity,
		Description: fmt.Sprintf("%.0f%% of the %s budget is consumed", ratio*100, resource),
		Evidence: []string{
			fmt.Sprintf("elapsed %v, llm calls %d", snap.Elapsed().Round(time.Second), snap.Metrics.LLMCalls),
		},
		Recommendation: "Decide whether to extend the budget or accept a partial result.",
	}
}

func detectComplexityOverload(snap *agent.Snapshot) *agent.Blocker {
	words := len(strings.Fields(snap.OriginalQuery))
	clauses := strings.Count(snap.OriginalQuery, ",") + strings.Count(snap.OriginalQuery, " and ")
	queryScore := float64(words)/50.0 + float64(clauses)/5.0
	volumeScore := float64(len(snap.Reasoning)+len(snap.Actions)) / 20.0

	composite := 0.6*queryScore + 0.4*volumeScore
	if composite > 1 {
		composite = 1
	}
	if composite <= 0.8 || snap.Confidence >= 0.6 {
		return nil
	}
	return &agent.Blocker{
		Type:        agent.BlockerComplexityOverload,
		Severity:    agent.SeverityMedium,
		Description: fmt.Sprintf("Task complexity %.2f outruns confidence %.2f", composite, snap.Confidence),
		Evidence: []string{
			fmt.Sprintf("%d query words, %d reasoning steps, %d actions", words, len(snap.Reasoning), len(snap.Actions)),
		},
		Recommendation: "Consider splitting the task or providing more specific instructions.",
	}
}

func detectLowConfidenceStagnation(snap *agent.Snapshot) *agent.Blocker {
	if snap.Confidence >= 0.4 || len(snap.Reasoning) < 3 {
		return nil
	}
	recent := snap.Reasoning[len(snap.Reasoning)-3:]
	var mean float64
	for _, r := range recent {
		mean += r.Confidence
	}
	mean /= 3
	if mean >= 0.5 {
		return nil
	}
	return &agent.Blocker{
		Type:        agent.BlockerLowConfidenceStagnation,
		Severity:    agent.SeverityMedium,
		Description: fmt.Sprintf("Confidence %.2f is low and not recovering (recent mean %.2f)", snap.Confidence, mean),
		Evidence: []string{
			fmt.Sprintf("last reasoning confidences: %.2f %.2f %.2f", recent[0].Confidence, recent[1].Confidence, recent[2].Confidence),
		},
		Recommendation: "Provide guidance on the preferred approach.",
	}
}

func detectAmbiguousRequirements(snap *agent.Snapshot) *agent.Blocker {
	for _, p := range ambiguityMarkers {
		if p.MatchString(snap.OriginalQuery) {
			return &agent.Blocker{
				Type:        agent.BlockerAmbiguousRequirements,
				Severity:    agent.SeverityLow,
				Description: "The query contains ambiguity markers",
				Evidence:    []string{fmt.Sprintf("query: %q", snap.OriginalQuery)},
				Recommendation: "Clarify what outcome is expected.",
			}
		}
	}
	if snap.Confidence >= 0.5 {
		return nil
	}
	last := snap.LastReasoning()
	if last == nil {
		return nil
	}
	content := strings.ToLower(last.Content)
	for _, marker := range hedgingMarkers {
		if strings.Contains(content, marker) {
			return &agent.Blocker{
				Type:        agent.BlockerAmbiguousRequirements,
				Severity:    agent.SeverityLow,
				Description: "Reasoning expresses uncertainty about the requirements",
				Evidence:    []string{fmt.Sprintf("reasoning: %q", last.Content)},
				Recommendation: "Answer the open question the reasoning is stuck on.",
			}
		}
	}
	return nil
}

func errorMessages(errs []agent.ErrorEntry, errType string) []string {
	var out []string
	for _, e := range errs {
		if e.Type == errType {
			out = append(out, e.Message)
		}
	}
	return out
}
