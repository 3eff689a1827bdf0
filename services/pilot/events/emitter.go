// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package events

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Handler processes events.
type Handler func(event *Event)

// Subscription ties a handler to an optional type filter.
type Subscription struct {
	// ID uniquely identifies this subscription.
	ID string

	// Handler processes matching events.
	Handler Handler

	// Types limits which event types to handle (nil = all types).
	Types []Type
}

// Emitter broadcasts events to subscribers and keeps a bounded buffer
// of recent events.
//
// Thread Safety: Emitter is safe for concurrent use. Handler panics
// are recovered so one failing handler cannot starve the others.
type Emitter struct {
	mu            sync.RWMutex
	subscriptions map[string]*Subscription
	buffer        []Event
	bufferSize    int
}

// EmitterOption configures an Emitter.
type EmitterOption func(*Emitter)

// WithBufferSize sets the event buffer size.
func WithBufferSize(size int) EmitterOption {
	return func(e *Emitter) {
		if size > 0 {
			e.bufferSize = size
		}
	}
}

// NewEmitter creates a new event emitter.
func NewEmitter(opts ...EmitterOption) *Emitter {
	e := &Emitter{
		subscriptions: make(map[string]*Subscription),
		bufferSize:    1000,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.buffer = make([]Event, 0, e.bufferSize)
	return e
}

// Subscribe registers a handler for the given event types (none = all).
// It returns the subscription ID for unsubscribing.
func (e *Emitter) Subscribe(handler Handler, types ...Type) string {
	e.mu.Lock()
	defer e.mu.Unlock()

	sub := &Subscription{
		ID:      uuid.NewString(),
		Handler: handler,
		Types:   types,
	}
	e.subscriptions[sub.ID] = sub
	return sub.ID
}

// Unsubscribe removes a subscription. Returns true when it existed.
func (e *Emitter) Unsubscribe(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.subscriptions[id]; ok {
		delete(e.subscriptions, id)
		return true
	}
	return false
}

// Emit buffers an event and broadcasts it to matching subscribers.
func (e *Emitter) Emit(eventType Type, sessionID string, iteration int, data any) {
	event := Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		SessionID: sessionID,
		Iteration: iteration,
		Timestamp: time.Now(),
		Data:      data,
	}

	e.mu.Lock()
	if len(e.buffer) >= e.bufferSize {
		e.buffer = e.buffer[1:]
	}
	e.buffer = append(e.buffer, event)
	subs := make([]*Subscription, 0, len(e.subscriptions))
	for _, sub := range e.subscriptions {
		subs = append(subs, sub)
	}
	e.mu.Unlock()

	for _, sub := range subs {
		if matches(sub, event.Type) {
			safeInvoke(sub.Handler, &event)
		}
	}
}

// Buffer returns a copy of the buffered events, oldest first.
func (e *Emitter) Buffer() []Event {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Event, len(e.buffer))
	copy(out, e.buffer)
	return out
}

// BufferByType returns buffered events of one type, oldest first.
func (e *Emitter) BufferByType(eventType Type) []Event {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []Event
	for _, ev := range e.buffer {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}

// SubscriptionCount returns the number of active subscriptions.
func (e *Emitter) SubscriptionCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.subscriptions)
}

func matches(sub *Subscription, t Type) bool {
	if len(sub.Types) == 0 {
		return true
	}
	for _, st := range sub.Types {
		if st == t {
			return true
		}
	}
	return false
}

func safeInvoke(handler Handler, event *Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("event handler panicked",
				"event_type", event.Type,
				"event_id", event.ID,
				"panic", r,
			)
		}
	}()
	handler(event)
}
