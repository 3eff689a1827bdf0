// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tools

import "errors"

// Sentinel errors for the tools package.
var (
	// ErrNilTool indicates a nil tool was offered for registration.
	ErrNilTool = errors.New("tool must not be nil")

	// ErrInvalidDefinition indicates the tool definition failed validation.
	ErrInvalidDefinition = errors.New("invalid tool definition")

	// ErrDuplicateTool indicates the tool name is already registered.
	ErrDuplicateTool = errors.New("tool already registered")

	// ErrToolNotFound indicates the named tool is not registered.
	ErrToolNotFound = errors.New("tool not found")

	// ErrMissingParameter indicates a required parameter was absent.
	ErrMissingParameter = errors.New("missing required parameter")
)
