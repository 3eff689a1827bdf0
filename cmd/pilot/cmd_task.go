// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianPilot/services/pilot"
	"github.com/AleutianAI/AleutianPilot/services/pilot/agent"
	"github.com/AleutianAI/AleutianPilot/services/pilot/autonomy"
	"github.com/AleutianAI/AleutianPilot/services/pilot/llm"
	storage "github.com/AleutianAI/AleutianPilot/services/pilot/storage/badger"
)

// maxConcurrentTasks bounds batch execution in runAsk.
const maxConcurrentTasks = 4

func runAsk(cmd *cobra.Command, args []string) {
	svc, cleanup, err := newService()
	if err != nil {
		fatalf("Error building the task service: %v", err)
	}
	defer cleanup()

	ctx := cmd.Context()
	opts := &pilot.Options{
		MaxIterations: maxIterations,
		TimeLimit:     taskTimeout,
		Strategy:      strategyLabel,
	}

	if len(args) == 1 {
		resp, err := svc.ProcessQuery(ctx, args[0], opts)
		if err != nil {
			fatalf("Error running task: %v", err)
		}
		if !noInput {
			resp = superviseTask(ctx, svc, resp)
		}
		printResponse(resp)
		return
	}

	// Batch mode: each query is an independent task, driven
	// concurrently. Paused tasks are reported, not prompted for.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentTasks)
	responses := make([]*pilot.Response, len(args))
	for i, query := range args {
		i, query := i, query
		g.Go(func() error {
			resp, err := svc.ProcessQuery(gctx, query, opts)
			if err != nil {
				return fmt.Errorf("task %q: %w", query, err)
			}
			responses[i] = resp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		fatalf("Error running tasks: %v", err)
	}
	for _, resp := range responses {
		printResponse(resp)
	}
}

// superviseTask handles checkpoints interactively: each time the loop
// pauses, the user's answer resolves the checkpoint and the task is
// driven again, until the task reaches a terminal status or the user
// walks away.
func superviseTask(ctx context.Context, svc *pilot.Service, resp *pilot.Response) *pilot.Response {
	reader := bufio.NewScanner(os.Stdin)
	for resp.AwaitingHumanInput && resp.PendingCheckpoint != nil {
		cp := resp.PendingCheckpoint
		fmt.Printf("\nTask paused at iteration %d (%s priority):\n  %s\n", cp.Iteration, cp.Priority, cp.Reason)
		fmt.Print("Enter 'approve', 'reject', or free-text guidance (empty to leave it paused): ")

		if !reader.Scan() {
			break
		}
		line := strings.TrimSpace(reader.Text())
		if line == "" {
			break
		}

		var input agent.HumanInput
		switch strings.ToLower(line) {
		case "approve", "reject", "abort":
			input.Decision = strings.ToLower(line)
		default:
			input.Guidance = line
		}

		next, err := svc.ResumeAfterHumanInput(ctx, cp.ID, input)
		if err != nil {
			fatalf("Error resuming task: %v", err)
		}
		resp = next
	}
	return resp
}

// newService wires the store, reasoner, and demo tools into a Service
// from the loaded config and flags. The returned cleanup closes the
// store.
func newService() (*pilot.Service, func(), error) {
	store, err := openStore()
	if err != nil {
		return nil, nil, err
	}

	svcOpts := []pilot.ServiceOption{
		pilot.WithLogger(logger),
		pilot.WithStore(store),
		pilot.WithReasoner(buildReasoner()),
		pilot.WithAutonomyConfig(cfg.Autonomy),
		pilot.WithToolTimeout(cfg.ToolTimeout),
	}
	if autonomousMode {
		svcOpts = append(svcOpts, pilot.WithMode(autonomy.ModeAutonomous))
	}

	svc := pilot.NewService(svcOpts...)
	for _, t := range demoTools() {
		if err := svc.RegisterTool(t); err != nil {
			store.Close()
			return nil, nil, fmt.Errorf("failed to register tool: %w", err)
		}
	}
	return svc, func() { store.Close() }, nil
}

func openStore() (*storage.Store, error) {
	if inMemory || cfg.Storage.InMemory {
		return storage.NewStore(storage.InMemoryConfig())
	}
	dataCfg := storage.DefaultConfig(expandHome(cfg.Storage.Dir))
	dataCfg.Logger = logger.Slog()
	return storage.NewStore(dataCfg)
}

// buildReasoner selects the reasoning backend. The openai backend
// needs its API key in the environment; without one the deterministic
// rule backend keeps the loop usable offline.
func buildReasoner() llm.Reasoner {
	rc := cfg.Reasoner
	if rc.Backend != "openai" {
		return llm.NewRuleReasoner()
	}

	key := os.Getenv(rc.APIKeyEnv)
	if key == "" {
		logger.Warn("reasoner API key not set, falling back to the rule backend", "env", rc.APIKeyEnv)
		return llm.NewRuleReasoner()
	}

	opts := []llm.OpenAIOption{
		llm.WithModel(rc.Model),
		llm.WithRetryPolicy(rc.Retry),
		llm.WithLogger(logger.Slog()),
	}
	if rc.BaseURL != "" {
		opts = append(opts, llm.WithBaseURL(key, rc.BaseURL))
	}
	if rc.RateLimit > 0 {
		opts = append(opts, llm.WithRateLimit(rc.RateLimit, 1))
	}
	return llm.NewOpenAIReasoner(key, opts...)
}

func printResponse(resp *pilot.Response) {
	if jsonOutput {
		data, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			fatalf("Error encoding response: %v", err)
		}
		fmt.Println(string(data))
		return
	}

	fmt.Printf("\n%s\n\n", resp.Response)
	fmt.Printf("  session:    %s\n", resp.SessionID)
	fmt.Printf("  status:     %s\n", resp.Status)
	fmt.Printf("  iterations: %d\n", resp.Iterations)
	fmt.Printf("  confidence: %.2f\n", resp.FinalConfidence)
	fmt.Printf("  elapsed:    %s\n", resp.ExecutionTime.Round(time.Millisecond))
	if len(resp.ToolsUsed) > 0 {
		fmt.Printf("  tools:      %s\n", strings.Join(resp.ToolsUsed, ", "))
	}
	if resp.Error != nil {
		fmt.Printf("  error:      %s: %s\n", resp.Error.Type, resp.Error.Message)
	}
	if resp.AwaitingHumanInput && resp.PendingCheckpoint != nil {
		fmt.Printf("  checkpoint: %s (%s) %s\n",
			resp.PendingCheckpoint.ID, resp.PendingCheckpoint.Priority, resp.PendingCheckpoint.Reason)
	}
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
