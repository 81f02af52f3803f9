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
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/MockSRE/services/profile"
	"github.com/AleutianAI/MockSRE/services/profile/seed"
	"github.com/AleutianAI/MockSRE/services/profile/store"
)

func newServeCmd(a *app) *cobra.Command {
	var withSeed bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the profile service",
		Long: `Runs the HTTP service until SIGINT or SIGTERM, then drains in-flight
requests for up to SHUTDOWN_TIMEOUT.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if a.cfg.Env != "local" {
				gin.SetMode(gin.ReleaseMode)
			}

			svc, err := profile.New(ctx, profile.ConfigFrom(a.cfg), &profile.Options{Logger: a.logger()})
			if err != nil {
				return err
			}
			if withSeed {
				if _, err := seed.Seed(ctx, svc.Store(), nil, a.logger()); err != nil {
					_ = svc.Close()
					return err
				}
			}
			return svc.Run(ctx)
		},
	}
	cmd.Flags().BoolVar(&withSeed, "seed", false, "insert the demo profiles before serving")
	return cmd
}

func newSeedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert the ten demo profiles if they are missing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := openStore(cmd.Context(), a)
			if err != nil {
				return err
			}
			defer st.Close()

			report, err := seed.Seed(cmd.Context(), st, nil, a.logger())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), report.String())
			return nil
		},
	}
}

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the profile schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := openStore(cmd.Context(), a)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.EnsureSchema(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date.")
			return nil
		},
	}
}

func openStore(ctx context.Context, a *app) (store.Store, error) {
	return store.Open(ctx, store.OpenConfig{
		URL:       a.cfg.DatabaseURL,
		PoolLimit: a.cfg.DBPoolLimit,
		Logger:    a.logger(),
	})
}
