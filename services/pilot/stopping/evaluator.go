// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package stopping evaluates named stop predicates over task state.
//
// Predicates run in registration order and the first one that fires
// wins, so evaluation is deterministic for identical state. A predicate
// that panics counts as no-stop and is logged; it never aborts the
// remaining predicates.
package stopping

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/AleutianAI/AleutianPilot/services/pilot/agent"
)

// Verdict is one predicate's answer.
type Verdict struct {
	// ShouldStop is true when the loop must terminate.
	ShouldStop bool `json:"should_stop"`

	// Reason explains the verdict.
	Reason string `json:"reason,omitempty"`

	// Confidence grades the verdict, in [0, 1].
	Confidence float64 `json:"confidence"`
}

// Predicate decides whether the loop should stop for the given state.
// Predicates must be pure and must not retain the snapshot.
type Predicate func(snap *agent.Snapshot) Verdict

// Result pairs a fired predicate's name with its verdict.
type Result struct {
	// Condition is the registered predicate name.
	Condition string `json:"condition"`

	// Verdict is the predicate's answer.
	Verdict Verdict `json:"verdict"`
}

type namedPredicate struct {
	name string
	fn   Predicate
}

// Evaluator is an ordered registry of stop predicates.
//
// Thread Safety: Register and Evaluate are safe for concurrent use;
// registration is expected to finish before the loop starts.
type Evaluator struct {
	logger *slog.Logger

	mu         sync.RWMutex
	predicates []namedPredicate
}

// NewEvaluator creates an evaluator preloaded with the built-in
// predicates in their canonical order.
func NewEvaluator(logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Evaluator{logger: logger}
	for _, p := range builtins() {
		e.predicates = append(e.predicates, p)
	}
	return e
}

// NewEmptyEvaluator creates an evaluator with no predicates registered.
func NewEmptyEvaluator(logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{logger: logger}
}

// Register appends a named predicate. Order of registration is order
// of evaluation.
func (e *Evaluator) Register(name string, fn Predicate) error {
	if name == "" || fn == nil {
		return fmt.Errorf("stopping: predicate requires a name and a function")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, p := range e.predicates {
		if p.name == name {
			return fmt.Errorf("stopping: predicate %q already registered", name)
		}
	}
	e.predicates = append(e.predicates, namedPredicate{name: name, fn: fn})
	return nil
}

// Names returns the registered predicate names in evaluation order.
func (e *Evaluator) Names() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, len(e.predicates))
	for i, p := range e.predicates {
		names[i] = p.name
	}
	return names
}

// Evaluate runs the predicates in order and returns the first that
// fires, or nil when none do.
func (e *Evaluator) Evaluate(snap *agent.Snapshot) *Result {
	e.mu.RLock()
	predicates := make([]namedPredicate, len(e.predicates))
	copy(predicates, e.predicates)
	e.mu.RUnlock()

	for _, p := range predicates {
		verdict := e.safeCall(p, snap)
		if verdict.ShouldStop {
			return &Result{Condition: p.name, Verdict: verdict}
		}
	}
	return nil
}

// safeCall converts a predicate panic into a no-stop verdict.
func (e *Evaluator) safeCall(p namedPredicate, snap *agent.Snapshot) (verdict Verdict) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Stop predicate panicked",
				slog.String("predicate", p.name),
				slog.Any("panic", r),
			)
			verdict = Verdict{ShouldStop: false}
		}
	}()
	return p.fn(snap)
}
