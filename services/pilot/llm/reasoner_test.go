// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(maxAttempts int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  maxAttempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	out, err := retry(context.Background(), fastPolicy(3), func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("transient")
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 3, calls)
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	calls := 0
	_, err := retry(context.Background(), fastPolicy(3), func(context.Context) (string, error) {
		calls++
		return "", errors.New("permanent")
	})

	assert.ErrorIs(t, err, ErrAttemptsExhausted)
	assert.Equal(t, 3, calls)
}

func TestRetry_RespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	policy := RetryPolicy{MaxAttempts: 5, InitialDelay: time.Hour, MaxDelay: time.Hour, Multiplier: 2}
	done := make(chan error, 1)
	go func() {
		_, err := retry(ctx, policy, func(context.Context) (string, error) {
			calls++
			return "", errors.New("transient")
		})
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("retry did not honor cancellation")
	}
	assert.Equal(t, 1, calls)
}

func TestRuleReasoner(t *testing.T) {
	r := NewRuleReasoner()
	ctx := context.Background()

	t.Run("empty prompt rejected", func(t *testing.T) {
		_, err := r.Reason(ctx, "  ")
		assert.ErrorIs(t, err, ErrEmptyPrompt)
	})

	t.Run("data announces completion", func(t *testing.T) {
		out, err := r.Reason(ctx, "Task: weather\nInsight [use_data]: Data is available for use")
		require.NoError(t, err)
		assert.Contains(t, out, "final answer")
	})

	t.Run("strategy change acknowledged", func(t *testing.T) {
		out, err := r.Reason(ctx, "Recovery plan: change_strategy")
		require.NoError(t, err)
		assert.Contains(t, out, "different approach")
	})

	t.Run("fresh task plans a tool call", func(t *testing.T) {
		out, err := r.Reason(ctx, "Task: weather in London\nNo recent observations.")
		require.NoError(t, err)
		assert.Contains(t, out, "select a tool")
	})
}

func TestRetryPolicy_Normalized(t *testing.T) {
	p := RetryPolicy{}.normalized()
	def := DefaultRetryPolicy()
	assert.Equal(t, def, p)

	custom := RetryPolicy{MaxAttempts: 5, InitialDelay: time.Second, MaxDelay: time.Minute, Multiplier: 3}
	assert.Equal(t, custom, custom.normalized())
}
