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
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianPilot/services/pilot/agent"
)

const (
	// DefaultWindow is the number of recent observations integrated.
	DefaultWindow = 5

	// maxPatterns caps the patterns reported per window.
	maxPatterns = 2

	// maxAdjustment bounds the confidence adjustment magnitude.
	maxAdjustment = 0.3

	// slowCallMillis marks a performance observation as worth acting on.
	slowCallMillis = 5000
)

// Integrator summarizes a sliding window of recent observations.
//
// Description:
//
//	Integrate is a pure function of the snapshot. It produces type
//	counts, up to two detected patterns, ranked actionable insights, an
//	environmental-stability assessment, a bounded confidence adjustment,
//	and a text digest for the reasoning collaborator.
//
// Thread Safety: Integrator is stateless after construction and safe
// for concurrent use.
type Integrator struct {
	window int
	logger *slog.Logger
}

// IntegratorOption configures an Integrator.
type IntegratorOption func(*Integrator)

// WithWindow overrides the observation window size.
func WithWindow(n int) IntegratorOption {
	return func(i *Integrator) {
		if n > 0 {
			i.window = n
		}
	}
}

// WithIntegratorLogger sets the integrator logger.
func WithIntegratorLogger(logger *slog.Logger) IntegratorOption {
	return func(i *Integrator) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// NewIntegrator creates a feedback integrator with the default window.
func NewIntegrator(opts ...IntegratorOption) *Integrator {
	i := &Integrator{
		window: DefaultWindow,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Integrate produces the feedback context for the current iteration.
//
// Inputs:
//
//	snap - State snapshot; only the observation window is consulted.
//
// Outputs:
//
//	*FeedbackContext - Never nil. An empty window yields a neutral
//	                   context (stable environment, zero adjustment).
func (i *Integrator) Integrate(snap *agent.Snapshot) *FeedbackContext {
	window := snap.RecentObservations(i.window)

	ctx := &FeedbackContext{
		WindowSize:  len(window),
		TypeCounts:  make(map[agent.ObservationType]int, len(window)),
		Environment: EnvStable,
		GeneratedAt: time.Now(),
	}
	for _, o := range window {
		ctx.TypeCounts[o.Type]++
	}

	ctx.Patterns = detectPatterns(window, i.window)
	ctx.Insights = buildInsights(window)
	ctx.Environment = assessEnvironment(ctx.TypeCounts, len(window))
	ctx.ConfidenceAdjustment = computeAdjustment(window, ctx.TypeCounts)
	ctx.Digest = formatDigest(ctx)

	i.logger.Debug("Feedback integrated",
		slog.Int("window", ctx.WindowSize),
		slog.String("environment", string(ctx.Environment)),
		slog.Float64("adjustment", ctx.ConfidenceAdjustment),
	)
	return ctx
}

// detectPatterns runs the frequency tests over the window, most
// significant first, capped at maxPatterns.
func detectPatterns(window []agent.Observation, fullWindow int) []Pattern {
	var patterns []Pattern

	failures := make(map[string]int)
	successes := make(map[string]int)
	for _, o := range window {
		if o.ToolName == "" {
			continue
		}
		switch o.Type {
		case agent.ObservationError:
			failures[o.ToolName]++
		case agent.ObservationSuccess:
			successes[o.ToolName]++
		}
	}

	for _, tool := range sortedKeys(failures) {
		if failures[tool] >= 2 {
			patterns = append(patterns, Pattern{
				Type:        PatternRepeatedToolFailure,
				Description: fmt.Sprintf("tool %s failed %d times in the recent window", tool, failures[tool]),
				ToolName:    tool,
			})
			break
		}
	}

	for _, tool := range sortedKeys(successes) {
		if successes[tool] >= 2 && failures[tool] == 0 {
			patterns = append(patterns, Pattern{
				Type:        PatternConsistentToolSuccess,
				Description: fmt.Sprintf("tool %s succeeded %d times with no failures", tool, successes[tool]),
				ToolName:    tool,
			})
			break
		}
	}

	if len(window) >= fullWindow && fullWindow > 0 {
		forward := 0
		for _, o := range window {
			switch o.Type {
			case agent.ObservationSuccess, agent.ObservationProgress, agent.ObservationData:
				forward++
			}
		}
		if forward == 0 {
			patterns = append(patterns, Pattern{
				Type:        PatternProgressStagnation,
				Description: "no success, progress, or data observations in a full window",
			})
		}
	}

	if len(patterns) > maxPatterns {
		patterns = patterns[:maxPatterns]
	}
	return patterns
}

// buildInsights creates one insight per qualifying observation, ranked
// by priority descending.
func buildInsights(window []agent.Observation) []Insight {
	var insights []Insight
	for _, o := range window {
		switch o.Type {
		case agent.ObservationError:
			insights = append(insights, Insight{
				Content:  fmt.Sprintf("Recent failure needs attention: %s", o.Content),
				Action:   "address_error",
				Priority: min1(o.Confidence + 0.1),
				ToolName: o.ToolName,
			})
		case agent.ObservationData:
			insights = append(insights, Insight{
				Content:  fmt.Sprintf("Data is available for use: %s", o.Content),
				Action:   "use_data",
				Priority: o.Confidence,
				ToolName: o.ToolName,
			})
		case agent.ObservationPerformance:
			if ms, ok := o.Data["duration_ms"].(int64); ok && ms > slowCallMillis {
				insights = append(insights, Insight{
					Content:  fmt.Sprintf("Slow tool call detected: %s", o.Content),
					Action:   "reduce_tool_latency",
					Priority: 0.4,
					ToolName: o.ToolName,
				})
			}
		case agent.ObservationEnvironment:
			insights = append(insights, Insight{
				Content:  fmt.Sprintf("Environment change noted: %s", o.Content),
				Action:   "verify_environment",
				Priority: o.Confidence * 0.8,
				ToolName: o.ToolName,
			})
		}
	}
	sort.SliceStable(insights, func(a, b int) bool {
		return insights[a].Priority > insights[b].Priority
	})
	return insights
}

// assessEnvironment grades stability from the window error rate.
func assessEnvironment(counts map[agent.ObservationType]int, total int) EnvironmentalState {
	if total == 0 {
		return EnvStable
	}
	errorRate := float64(counts[agent.ObservationError]) / float64(total)
	switch {
	case errorRate > 0.5:
		return EnvUnstable
	case errorRate > 0.3:
		return EnvSomewhatUnstable
	default:
		return EnvStable
	}
}

// computeAdjustment derives the bounded confidence adjustment from the
// success/error balance scaled by mean observation confidence.
func computeAdjustment(window []agent.Observation, counts map[agent.ObservationType]int) float64 {
	total := len(window)
	if total == 0 {
		return 0
	}

	successRate := float64(counts[agent.ObservationSuccess]+counts[agent.ObservationData]) / float64(total)
	errorRate := float64(counts[agent.ObservationError]) / float64(total)

	var meanConfidence float64
	for _, o := range window {
		meanConfidence += o.Confidence
	}
	meanConfidence /= float64(total)

	adj := (successRate - errorRate) * maxAdjustment * meanConfidence
	if adj > maxAdjustment {
		adj = maxAdjustment
	}
	if adj < -maxAdjustment {
		adj = -maxAdjustment
	}
	return adj
}

// formatDigest renders the context as text for the reasoning prompt.
func formatDigest(ctx *FeedbackContext) string {
	var b strings.Builder

	if ctx.WindowSize == 0 {
		b.WriteString("No recent observations.")
		return b.String()
	}

	b.WriteString(fmt.Sprintf("Recent observations (%d):", ctx.WindowSize))
	for _, t := range sortedTypes(ctx.TypeCounts) {
		b.WriteString(fmt.Sprintf(" %s=%d", t, ctx.TypeCounts[agent.ObservationType(t)]))
	}
	b.WriteString(fmt.Sprintf("\nEnvironment: %s", ctx.Environment))

	for _, p := range ctx.Patterns {
		b.WriteString(fmt.Sprintf("\nPattern: %s", p.Description))
	}
	for idx, in := range ctx.Insights {
		if idx >= 3 {
			break
		}
		b.WriteString(fmt.Sprintf("\nInsight [%s, priority %.2f]: %s", in.Action, in.Priority, in.Content))
	}
	b.WriteString(fmt.Sprintf("\nSuggested confidence adjustment: %+.2f", ctx.ConfidenceAdjustment))
	return b.String()
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedTypes(m map[agent.ObservationType]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	return keys
}

func min1(v float64) float64 {
	if v > 1 {
		return 1
	}
	return v
}
