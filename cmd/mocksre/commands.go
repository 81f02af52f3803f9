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
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/MockSRE/pkg/logging"
	"github.com/AleutianAI/MockSRE/services/profile/config"
	"github.com/AleutianAI/MockSRE/services/profile/telemetry"
)

// app holds state shared by every subcommand once the root pre-run has
// loaded configuration.
type app struct {
	configFile string
	cfg        *config.Config
	log        *logging.Logger
}

func (a *app) logger() *slog.Logger {
	if a.log == nil {
		return slog.Default()
	}
	return a.log.Slog()
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "mocksre",
		Short: "Mock SRE profile service with runtime-switchable failure modes",
		Long: `mocksre serves user profiles over HTTP and can be switched at runtime
into failure modes that reproduce the telemetry of a data-access incident,
from a bypassed cache up to connection pool saturation.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd.ErrOrStderr())
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if a.log != nil {
				_ = a.log.Close()
			}
		},
	}
	root.PersistentFlags().StringVar(&a.configFile, "config", "",
		"path to a YAML config file (default: ./mocksre.yaml when present)")

	root.AddCommand(
		newServeCmd(a),
		newSeedCmd(a),
		newMigrateCmd(a),
		newDrillCmd(a),
		newModeCmd(a),
	)
	return root
}

// load reads configuration and installs the process logger.
func (a *app) load(console io.Writer) error {
	cfg, err := config.Load(a.configFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level, _ := logging.ParseLevel(cfg.LogLevel)
	format, _ := logging.ParseFormat(cfg.LogFormat)
	a.log = logging.New(logging.Config{
		Level:   level,
		Format:  format,
		Service: telemetry.ServiceTag,
		LogDir:  cfg.LogDir,
		Writer:  console,
	})
	slog.SetDefault(a.log.Slog())
	return nil
}
