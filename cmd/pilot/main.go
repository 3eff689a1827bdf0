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
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianPilot/pkg/logging"
	"github.com/AleutianAI/AleutianPilot/services/pilot/config"
)

var (
	cfg    config.Config
	logger *logging.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		if logger != nil {
			logger.Close()
		}
		os.Exit(1)
	}
	if logger != nil {
		logger.Close()
	}
}

// initRuntime loads the config file and builds the logger before any
// command runs. A missing config file is created with defaults.
func initRuntime(cmd *cobra.Command, args []string) {
	path := configPath
	if path == "" {
		var err error
		path, err = config.DefaultPath()
		if err != nil {
			log.Fatalf("Error resolving config path: %v", err)
		}
	}

	var err error
	cfg, err = config.Load(path)
	if err != nil {
		log.Fatalf("Error loading %s: %v", path, err)
	}

	logger = logging.New(logging.Config{
		Level:   parseLogLevel(cfg.Logging.Level),
		LogDir:  cfg.Logging.Dir,
		Service: "pilot",
		JSON:    cfg.Logging.JSON,
	})
}

func parseLogLevel(s string) logging.Level {
	switch s {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

// fatalf logs the error and exits. Used by command handlers.
func fatalf(format string, args ...any) {
	if logger != nil {
		logger.Close()
	}
	log.Fatalf(format, args...)
}
