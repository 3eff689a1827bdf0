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

import "errors"

// Sentinel errors for the agent package.
var (
	// ErrInvalidTransition indicates a disallowed status transition.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrTaskNotFound indicates the task ID is unknown to the store.
	ErrTaskNotFound = errors.New("task not found")

	// ErrTaskInProgress indicates the task is already being driven.
	ErrTaskInProgress = errors.New("task already in progress")

	// ErrEmptyQuery indicates an empty input query.
	ErrEmptyQuery = errors.New("query must not be empty")

	// ErrIterationBudget indicates the iteration bound would be exceeded.
	ErrIterationBudget = errors.New("iteration budget exhausted")

	// ErrCheckpointNotFound indicates the checkpoint ID is unknown.
	ErrCheckpointNotFound = errors.New("checkpoint not found")

	// ErrCheckpointResolved indicates the checkpoint was already resolved.
	ErrCheckpointResolved = errors.New("checkpoint already resolved")

	// ErrInvalidMaxIterations indicates a max-iterations config below 1.
	ErrInvalidMaxIterations = errors.New("max iterations must be >= 1")
)
