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

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Registry holds validated tools by name.
//
// Description:
//
//	Registration validates the tool's Definition before acceptance:
//	non-empty name/description/category and, for every parameter, a
//	non-empty name and a type from the allowed set. Malformed tools are
//	rejected with an error wrapping ErrInvalidDefinition.
//
// Thread Safety: Registry is safe for concurrent use; it is read-mostly
// after initialization.
type Registry struct {
	mu       sync.RWMutex
	tools    map[string]Tool
	validate *validator.Validate
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:    make(map[string]Tool),
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Register validates and stores a tool.
//
// Inputs:
//
//	tool - The tool to register.
//
// Outputs:
//
//	error - ErrNilTool, ErrDuplicateTool, or a wrapped
//	        ErrInvalidDefinition describing the first violation.
func (r *Registry) Register(tool Tool) error {
	if tool == nil {
		return ErrNilTool
	}

	def := tool.Definition()
	if err := r.validateDefinition(def); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[def.Name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateTool, def.Name)
	}
	r.tools[def.Name] = tool
	return nil
}

// validateDefinition checks the definition shape.
func (r *Registry) validateDefinition(def Definition) error {
	if strings.TrimSpace(def.Name) == "" ||
		strings.TrimSpace(def.Description) == "" ||
		strings.TrimSpace(def.Category) == "" {
		return fmt.Errorf("%w: name, description and category are required", ErrInvalidDefinition)
	}

	if err := r.validate.Struct(def); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}

	seen := make(map[string]struct{}, len(def.Parameters))
	for _, p := range def.Parameters {
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("%w: duplicate parameter %q", ErrInvalidDefinition, p.Name)
		}
		seen[p.Name] = struct{}{}
	}
	return nil
}

// Get returns a registered tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns all registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definitions returns the definitions of all registered tools, sorted by name.
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]Definition, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, t.Definition())
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}
