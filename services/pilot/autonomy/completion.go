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
	"time"

	"github.com/AleutianAI/AleutianPilot/services/pilot/agent"
)

const (
	// completionConfidenceCap bounds the reported completion confidence.
	completionConfidenceCap = 0.95

	// recentErrorWindow is how far back errors block completion.
	recentErrorWindow = 60 * time.Second

	// queryCoverageBar is the fraction of meaningful query terms that
	// must appear in reasoning text.
	queryCoverageBar = 0.5
)

// completionKeywords mark a reasoning entry as announcing a solution.
var completionKeywords = []string{
	"solution found", "task complete", "final answer",
	"answer is", "successfully completed", "here is the result",
}

// stopWords are excluded from query-coverage matching.
var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "in": {}, "on": {}, "at": {}, "of": {},
	"to": {}, "for": {}, "is": {}, "are": {}, "what": {}, "how": {},
	"please": {}, "me": {}, "my": {}, "with": {}, "and": {}, "or": {},
}

// AssessCompletion scores the five completion indicators.
//
// Outputs:
//
//	*Completion - Never nil. Complete is true when the weighted score
//	              reaches the configured threshold; Confidence is the
//	              score capped at 0.95.
func (m *Manager) AssessCompletion(snap *agent.Snapshot) *Completion {
	m.mu.RLock()
	cfg := m.cfg
	m.mu.RUnlock()

	weights := cfg.CompletionWeights
	indicators := []Indicator{
		solutionKeywordIndicator(snap, weights[IndicatorSolutionKeyword]),
		highConfidenceIndicator(snap, weights[IndicatorHighConfidence]),
		noRecentErrorsIndicator(snap, weights[IndicatorNoRecentErrors]),
		progressiveIndicator(snap, weights[IndicatorProgressive]),
		coverageIndicator(snap, weights[IndicatorQueryCoverage]),
	}

	score := 0.0
	for _, in := range indicators {
		if in.Met {
			score += in.Weight
		}
	}

	c := &Completion{
		Score:      score,
		Indicators: indicators,
		Confidence: minf(score, completionConfidenceCap),
	}
	c.Complete = score >= cfg.CompletionThreshold
	return c
}

func solutionKeywordIndicator(snap *agent.Snapshot, weight float64) Indicator {
	in := Indicator{Name: IndicatorSolutionKeyword, Weight: weight}
	last := snap.LastReasoning()
	if last == nil {
		return in
	}
	content := strings.ToLower(last.Content)
	for _, kw := range completionKeywords {
		if strings.Contains(content, kw) {
			in.Met = true
			in.Detail = fmt.Sprintf("reasoning contains %q", kw)
			return in
		}
	}
	return in
}

func highConfidenceIndicator(snap *agent.Snapshot, weight float64) Indicator {
	in := Indicator{Name: IndicatorHighConfidence, Weight: weight}
	if snap.Confidence >= 0.8 {
		in.Met = true
		in.Detail = fmt.Sprintf("confidence %.2f", snap.Confidence)
	}
	return in
}

func noRecentErrorsIndicator(snap *agent.Snapshot, weight float64) Indicator {
	in := Indicator{Name: IndicatorNoRecentErrors, Weight: weight}
	cutoff := time.Now().Add(-recentErrorWindow)
	for _, e := range snap.Errors {
		if e.Timestamp.After(cutoff) {
			in.Detail = "errors recorded within the last minute"
			return in
		}
	}
	in.Met = true
	return in
}

// progressiveIndicator checks for at least two reasoning steps whose
// lengths do not shrink, a cheap proxy for building on prior steps.
func progressiveIndicator(snap *agent.Snapshot, weight float64) Indicator {
	in := Indicator{Name: IndicatorProgressive, Weight: weight}
	if len(snap.Reasoning) < 2 {
		return in
	}
	for i := 1; i < len(snap.Reasoning); i++ {
		if len(snap.Reasoning[i].Content) < len(snap.Reasoning[i-1].Content)/2 {
			in.Detail = "reasoning steps are shrinking"
			return in
		}
	}
	in.Met = true
	in.Detail = fmt.Sprintf("%d progressive reasoning steps", len(snap.Reasoning))
	return in
}

func coverageIndicator(snap *agent.Snapshot, weight float64) Indicator {
	in := Indicator{Name: IndicatorQueryCoverage, Weight: weight}

	terms := meaningfulTerms(snap.OriginalQuery)
	if len(terms) == 0 {
		return in
	}

	var text strings.Builder
	for _, r := range snap.Reasoning {
		text.WriteString(strings.ToLower(r.Content))
		text.WriteString(" ")
	}
	combined := text.String()

	covered := 0
	for _, t := range terms {
		if strings.Contains(combined, t) {
			covered++
		}
	}
	ratio := float64(covered) / float64(len(terms))
	if ratio >= queryCoverageBar {
		in.Met = true
	}
	in.Detail = fmt.Sprintf("%d of %d query terms covered", covered, len(terms))
	return in
}

func meaningfulTerms(query string) []string {
	var terms []string
	for _, w := range strings.Fields(strings.ToLower(query)) {
		w = strings.Trim(w, ".,!?;:()\"'")
		if len(w) < 3 {
			continue
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		terms = append(terms, w)
	}
	return terms
}
