// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry exposes Prometheus metrics for the controller.
//
// Counters are process-wide and shared across tasks; per-task state
// stays in the agent package.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tasksStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pilot_tasks_started_total",
		Help: "Tasks accepted for processing",
	})

	tasksFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pilot_tasks_finished_total",
		Help: "Tasks reaching a terminal status",
	}, []string{"status"})

	iterations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pilot_iterations_total",
		Help: "Loop iterations executed",
	})

	toolExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pilot_tool_executions_total",
		Help: "Tool executions by tool and outcome",
	}, []string{"tool", "outcome"})

	toolDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pilot_tool_duration_seconds",
		Help:    "Tool execution duration",
		Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 30},
	}, []string{"tool"})

	recoveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pilot_recoveries_total",
		Help: "Recovery plans by classification",
	}, []string{"classification"})

	escalations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pilot_escalations_total",
		Help: "Human checkpoints created by origin",
	}, []string{"origin"})

	reasoningDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pilot_reasoning_duration_seconds",
		Help:    "Reasoning collaborator call duration",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 15, 60},
	})
)

// TaskStarted records a task acceptance.
func TaskStarted() {
	tasksStarted.Inc()
}

// TaskFinished records a terminal status.
func TaskFinished(status string) {
	tasksFinished.WithLabelValues(status).Inc()
}

// IterationRun records one loop iteration.
func IterationRun() {
	iterations.Inc()
}

// ToolExecuted records a tool execution and its duration.
func ToolExecuted(tool string, success bool, d time.Duration) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	toolExecutions.WithLabelValues(tool, outcome).Inc()
	toolDuration.WithLabelValues(tool).Observe(d.Seconds())
}

// RecoveryPlanned records a recovery plan firing.
func RecoveryPlanned(classification string) {
	recoveries.WithLabelValues(classification).Inc()
}

// Escalated records a checkpoint creation. Origin is "autonomy" or
// "blocker".
func Escalated(origin string) {
	escalations.WithLabelValues(origin).Inc()
}

// ReasoningCall records the duration of one reasoning call.
func ReasoningCall(d time.Duration) {
	reasoningDuration.Observe(d.Seconds())
}
