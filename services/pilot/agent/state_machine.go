// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package agent

import "fmt"

// StatusMachine validates task status transitions.
//
// Description:
//
//	Status transitions are forward-only: once a task leaves not_started
//	it can never return, and terminal statuses accept no transitions at
//	all. The single allowed self-transition is processing -> processing,
//	which the loop performs on every iteration.
//
// Thread Safety: StatusMachine is immutable after construction.
type StatusMachine struct {
	transitions map[TaskStatus][]TaskStatus
}

// NewStatusMachine creates the status machine with the fixed transition table.
func NewStatusMachine() *StatusMachine {
	return &StatusMachine{
		transitions: map[TaskStatus][]TaskStatus{
			StatusNotStarted: {StatusProcessing},
			StatusProcessing: {
				StatusProcessing,
				StatusCompleted,
				StatusError,
				StatusMaxIterations,
			},
			// Terminal statuses have no outgoing transitions.
			StatusCompleted:     {},
			StatusError:         {},
			StatusMaxIterations: {},
		},
	}
}

// DefaultStatusMachine is the shared immutable instance.
var DefaultStatusMachine = NewStatusMachine()

// CanTransition reports whether from -> to is a legal transition.
func (m *StatusMachine) CanTransition(from, to TaskStatus) bool {
	allowed, ok := m.transitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Transition applies a status change to the task.
//
// Inputs:
//
//	task - The task to transition.
//	to - The target status.
//
// Outputs:
//
//	error - ErrInvalidTransition (wrapped with detail) if disallowed.
func (m *StatusMachine) Transition(task *TaskState, to TaskStatus) error {
	from := task.Status()
	if !m.CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	task.setStatus(to)
	return nil
}
