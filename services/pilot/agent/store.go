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

import (
	"sort"
	"sync"
)

// TaskStore holds live tasks by session ID.
//
// Implementations must be safe for concurrent use.
type TaskStore interface {
	// Get retrieves a task by session ID.
	Get(id string) (*TaskState, bool)

	// Put stores a task.
	Put(task *TaskState)

	// Delete removes a task.
	Delete(id string)

	// List returns all session IDs, sorted for deterministic ordering.
	List() []string
}

// InMemoryTaskStore is a mutex-guarded in-memory task store.
//
// Thread Safety: InMemoryTaskStore is safe for concurrent use.
type InMemoryTaskStore struct {
	mu    sync.RWMutex
	tasks map[string]*TaskState
}

// NewInMemoryTaskStore creates an empty store.
func NewInMemoryTaskStore() *InMemoryTaskStore {
	return &InMemoryTaskStore{tasks: make(map[string]*TaskState)}
}

// Get implements TaskStore.
func (s *InMemoryTaskStore) Get(id string) (*TaskState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, ok := s.tasks[id]
	return task, ok
}

// Put implements TaskStore.
func (s *InMemoryTaskStore) Put(task *TaskState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.ID()] = task
}

// Delete implements TaskStore.
func (s *InMemoryTaskStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, id)
}

// List implements TaskStore.
func (s *InMemoryTaskStore) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.tasks))
	for id := range s.tasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
