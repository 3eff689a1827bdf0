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
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianPilot/services/pilot/agent"
)

func runCheckpoints(cmd *cobra.Command, args []string) {
	store, err := openStore()
	if err != nil {
		fatalf("Error opening the task store: %v", err)
	}
	defer store.Close()

	pending, err := store.PendingCheckpoints(context.Background())
	if err != nil {
		fatalf("Error listing checkpoints: %v", err)
	}

	if jsonOutput {
		printJSON(pending)
		return
	}
	if len(pending) == 0 {
		fmt.Println("No checkpoints are awaiting human input.")
		return
	}
	for _, cp := range pending {
		fmt.Printf("%s  [%s]  session %s, iteration %d\n  %s\n",
			cp.ID, cp.Priority, cp.SessionID, cp.Iteration, cp.Reason)
	}
}

func runListSessions(cmd *cobra.Command, args []string) {
	store, err := openStore()
	if err != nil {
		fatalf("Error opening the task store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	ids, err := store.ListTasks(ctx)
	if err != nil {
		fatalf("Error listing sessions: %v", err)
	}

	if len(ids) == 0 {
		fmt.Println("No stored sessions.")
		return
	}
	for _, id := range ids {
		snap, err := store.GetTask(ctx, id)
		if err != nil {
			fmt.Printf("%s  (unreadable: %v)\n", id, err)
			continue
		}
		fmt.Printf("%s  %-15s  %2d iterations  %q\n",
			snap.SessionID, snap.Status, snap.CurrentIteration, snap.OriginalQuery)
	}
}

func runShowSession(cmd *cobra.Command, args []string) {
	store, err := openStore()
	if err != nil {
		fatalf("Error opening the task store: %v", err)
	}
	defer store.Close()

	snap, err := store.GetTask(context.Background(), args[0])
	if err != nil {
		fatalf("Error loading session %s: %v", args[0], err)
	}

	if jsonOutput {
		printJSON(snap)
		return
	}
	printSession(snap)
}

func printSession(snap *agent.Snapshot) {
	fmt.Printf("Session %s\n", snap.SessionID)
	fmt.Printf("  query:      %s\n", snap.OriginalQuery)
	fmt.Printf("  status:     %s\n", snap.Status)
	fmt.Printf("  iterations: %d of %d\n", snap.CurrentIteration, snap.MaxIterations)
	fmt.Printf("  confidence: %.2f\n", snap.Confidence)
	fmt.Printf("  strategy:   %s\n", snap.Strategy)

	if len(snap.Reasoning) > 0 {
		fmt.Println("\nReasoning:")
		for _, r := range snap.Reasoning {
			fmt.Printf("  [%d] %s\n", r.Iteration, r.Content)
		}
	}
	if len(snap.Actions) > 0 {
		fmt.Println("\nActions:")
		for _, a := range snap.Actions {
			outcome := "pending"
			if a.Success != nil {
				outcome = "failed"
				if *a.Success {
					outcome = "ok"
				}
			}
			name := a.ToolName
			if name == "" {
				name = string(a.Type)
			}
			fmt.Printf("  [%d] %s (%s)\n", a.Iteration, name, outcome)
		}
	}
	if len(snap.Errors) > 0 {
		fmt.Println("\nErrors:")
		for _, e := range snap.Errors {
			fmt.Printf("  [%d] %s: %s\n", e.Iteration, e.Type, e.Message)
		}
	}
	if len(snap.Checkpoints) > 0 {
		fmt.Println("\nCheckpoints:")
		for _, cp := range snap.Checkpoints {
			fmt.Printf("  [%d] %s (%s, %s) %s\n", cp.Iteration, cp.ID, cp.Priority, cp.Status, cp.Reason)
		}
	}
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fatalf("Error encoding output: %v", err)
	}
	fmt.Println(string(data))
}
