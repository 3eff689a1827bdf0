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
	"time"

	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	configPath     string
	jsonOutput     bool
	inMemory       bool
	autonomousMode bool
	noInput        bool
	maxIterations  int
	taskTimeout    time.Duration
	strategyLabel  string

	rootCmd = &cobra.Command{
		Use:   "pilot",
		Short: "A cli for running bounded autonomous tasks with human oversight",
		Long: `Pilot drives a task through an iterative reasoning loop: reason,
act through a tool, observe the result, and adjust. The loop stops on
its own when the answer is found, the iteration budget runs out, or a
risky situation needs a human decision.`,
		PersistentPreRun: initRuntime,
	}

	// --- Tasks ---
	askCmd = &cobra.Command{
		Use:   "ask [query...]",
		Short: "Run one or more queries through the task loop",
		Long: `Runs each query as its own task. A single query runs interactively:
when the loop pauses for human input you are prompted to approve,
reject, or steer it. Multiple queries run concurrently and paused
tasks are reported instead of prompted for.`,
		Args: cobra.MinimumNArgs(1),
		Run:  runAsk, // Defined in cmd_task.go
	}

	// --- Oversight ---
	checkpointsCmd = &cobra.Command{
		Use:   "checkpoints",
		Short: "List checkpoints still awaiting human input",
		Run:   runCheckpoints, // Defined in cmd_session.go
	}

	// --- Sessions ---
	sessionCmd = &cobra.Command{
		Use:   "session",
		Short: "Inspect stored task sessions",
	}
	listSessionsCmd = &cobra.Command{
		Use:   "list",
		Short: "List all stored task sessions",
		Run:   runListSessions, // Defined in cmd_session.go
	}
	showSessionCmd = &cobra.Command{
		Use:   "show [session_id]",
		Short: "Show the full history of a stored session",
		Args:  cobra.ExactArgs(1),
		Run:   runShowSession, // Defined in cmd_session.go
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the config file (default ~/.pilot/pilot.yaml)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print results as JSON")
	rootCmd.PersistentFlags().BoolVar(&inMemory, "in-memory", false, "Skip disk persistence for this run")

	askCmd.Flags().IntVar(&maxIterations, "max-iterations", 0, "Override the iteration budget for this task")
	askCmd.Flags().DurationVar(&taskTimeout, "timeout", 0, "Override the wall-clock budget for this task")
	askCmd.Flags().StringVar(&strategyLabel, "strategy", "", "Initial strategy label for this task")
	askCmd.Flags().BoolVar(&autonomousMode, "autonomous", false, "Raise the escalation threshold to the autonomous tier")
	askCmd.Flags().BoolVar(&noInput, "no-input", false, "Never prompt; report paused tasks and exit")

	sessionCmd.AddCommand(listSessionsCmd)
	sessionCmd.AddCommand(showSessionCmd)

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(checkpointsCmd)
	rootCmd.AddCommand(sessionCmd)
}
