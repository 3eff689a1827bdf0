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
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

const systemPrompt = "You are the reasoning engine of an autonomous task controller. " +
	"Given the task, recent feedback, and any recovery plan, produce one concise " +
	"reasoning step. When the task is solved, state the final answer explicitly."

// OpenAIReasoner calls an OpenAI-compatible chat completion endpoint.
//
// Thread Safety: safe for concurrent use.
type OpenAIReasoner struct {
	client  *openai.Client
	model   string
	policy  RetryPolicy
	limiter *rate.Limiter
	logger  *slog.Logger
}

// OpenAIOption configures an OpenAIReasoner.
type OpenAIOption func(*OpenAIReasoner)

// WithModel overrides the completion model.
func WithModel(model string) OpenAIOption {
	return func(r *OpenAIReasoner) {
		if model != "" {
			r.model = model
		}
	}
}

// WithBaseURL points the client at a compatible endpoint, e.g. a local
// inference server.
func WithBaseURL(apiKey, baseURL string) OpenAIOption {
	return func(r *OpenAIReasoner) {
		cfg := openai.DefaultConfig(apiKey)
		cfg.BaseURL = baseURL
		r.client = openai.NewClientWithConfig(cfg)
	}
}

// WithRetryPolicy overrides the retry policy.
func WithRetryPolicy(policy RetryPolicy) OpenAIOption {
	return func(r *OpenAIReasoner) {
		r.policy = policy.normalized()
	}
}

// WithRateLimit bounds calls per second with a burst allowance.
func WithRateLimit(perSecond float64, burst int) OpenAIOption {
	return func(r *OpenAIReasoner) {
		if perSecond > 0 && burst > 0 {
			r.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

// WithLogger sets the reasoner logger.
func WithLogger(logger *slog.Logger) OpenAIOption {
	return func(r *OpenAIReasoner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewOpenAIReasoner creates a reasoner for the given API key.
func NewOpenAIReasoner(apiKey string, opts ...OpenAIOption) *OpenAIReasoner {
	r := &OpenAIReasoner{
		client:  openai.NewClient(apiKey),
		model:   openai.GPT4oMini,
		policy:  DefaultRetryPolicy(),
		limiter: rate.NewLimiter(rate.Limit(2), 4),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reason submits the prompt, retrying under the policy.
func (r *OpenAIReasoner) Reason(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyPrompt
	}
	if err := r.limiter.Wait(ctx); err != nil {
		return "", err
	}

	return retry(ctx, r.policy, func(ctx context.Context) (string, error) {
		resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: r.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
		})
		if err != nil {
			r.logger.Warn("Reasoning call failed", slog.String("error", err.Error()))
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", ErrNoChoices
		}
		return strings.TrimSpace(resp.Choices[0].Message.Content), nil
	})
}
