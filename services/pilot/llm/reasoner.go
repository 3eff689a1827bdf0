// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm is the reasoning-collaborator boundary.
//
// The controller treats reasoning as an opaque function from a prompt
// to text. Retry with exponential backoff and rate limiting live here,
// at the calling boundary, decoupled from the loop's iteration counter.
package llm

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for the llm package.
var (
	// ErrEmptyPrompt indicates a blank prompt was submitted.
	ErrEmptyPrompt = errors.New("prompt must not be empty")

	// ErrNoChoices indicates the provider returned no completion.
	ErrNoChoices = errors.New("no completion choices returned")

	// ErrAttemptsExhausted indicates all retry attempts failed.
	ErrAttemptsExhausted = errors.New("reasoning attempts exhausted")
)

// Reasoner produces a reasoning statement from a prompt context.
//
// Implementations must return within the caller's context deadline and
// must be safe for concurrent use.
type Reasoner interface {
	// Reason generates the next reasoning statement.
	Reason(ctx context.Context, prompt string) (string, error)
}

// RetryPolicy is a bounded-attempt exponential backoff policy.
type RetryPolicy struct {
	// MaxAttempts is the total attempt budget (>= 1).
	MaxAttempts int `yaml:"max_attempts" json:"max_attempts"`

	// InitialDelay is the delay before the second attempt.
	InitialDelay time.Duration `yaml:"initial_delay" json:"initial_delay"`

	// MaxDelay caps the backoff delay.
	MaxDelay time.Duration `yaml:"max_delay" json:"max_delay"`

	// Multiplier grows the delay between attempts.
	Multiplier float64 `yaml:"multiplier" json:"multiplier"`
}

// DefaultRetryPolicy returns the default bounded backoff policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     8 * time.Second,
		Multiplier:   2.0,
	}
}

// normalized fills invalid fields with defaults.
func (p RetryPolicy) normalized() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.MaxAttempts < 1 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = def.InitialDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = def.MaxDelay
	}
	if p.Multiplier < 1 {
		p.Multiplier = def.Multiplier
	}
	return p
}

// retry runs fn under the policy, sleeping between failed attempts.
func retry(ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) (string, error)) (string, error) {
	policy = policy.normalized()
	delay := policy.InitialDelay

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		out, err := fn(ctx)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if attempt == policy.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
		delay = time.Duration(float64(delay) * policy.Multiplier)
		if delay > policy.MaxDelay {
			delay = policy.MaxDelay
		}
	}
	return "", errors.Join(ErrAttemptsExhausted, lastErr)
}
