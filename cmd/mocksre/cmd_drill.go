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
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/MockSRE/services/profile/drill"
	"github.com/AleutianAI/MockSRE/services/profile/failuremode"
)

const defaultTarget = "http://localhost:8000"

func newDrillCmd(a *app) *cobra.Command {
	var (
		target     string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "drill [scenario.yaml]",
		Short: "Replay an incident timeline against a running service",
		Long: `Switches the failure mode step by step as described in the scenario
file, fires the configured probe requests, and prints a per-step summary
of status codes and latency. The service must run with ENV=demo.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := drill.LoadScenario(args[0])
			if err != nil {
				return err
			}
			if target == "" {
				target = sc.Target
			}
			if target == "" {
				target = defaultTarget
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			runner := drill.NewRunner(drill.NewClient(target, nil), a.logger())
			report, runErr := runner.Run(ctx, sc)
			if report != nil {
				if jsonOutput {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					if err := enc.Encode(report); err != nil {
						return err
					}
				} else {
					printReport(cmd.OutOrStdout(), report)
				}
			}
			return runErr
		},
	}
	cmd.Flags().StringVar(&target, "target", "", "service base URL (overrides the scenario)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print the report as JSON")
	return cmd
}

func newModeCmd(a *app) *cobra.Command {
	var target string

	cmd := &cobra.Command{
		Use:   "mode [" + strings.Join(failuremode.Names(), "|") + "]",
		Short: "Show or switch the failure mode of a running service",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := drill.NewClient(target, nil)
			if len(args) == 1 {
				if err := client.SetMode(cmd.Context(), failuremode.Mode(args[0])); err != nil {
					return err
				}
			}
			status, err := client.Status(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "failure_mode=%s environment=%s admin_enabled=%t\n",
				status.FailureMode, status.Environment, status.AdminOpen)
			return nil
		},
	}
	cmd.Flags().StringVar(&target, "target", defaultTarget, "service base URL")
	return cmd
}

func printReport(w io.Writer, report *drill.Report) {
	if report.Scenario != "" {
		fmt.Fprintf(w, "Scenario: %s\n", report.Scenario)
	}
	for i, step := range report.Steps {
		fmt.Fprintf(w, "  step %d  %-16s failures=%d mismatched_mode=%d p50=%s max=%s  %s\n",
			i+1, step.Mode, step.Failures(), step.ModeMismatches,
			step.P50Latency, step.MaxLatency, formatStatuses(step.Statuses))
	}
}

func formatStatuses(statuses map[int]int) string {
	codes := make([]int, 0, len(statuses))
	for code := range statuses {
		codes = append(codes, code)
	}
	sort.Ints(codes)

	parts := make([]string, 0, len(codes))
	for _, code := range codes {
		label := fmt.Sprint(code)
		if code == 0 {
			label = "transport_error"
		}
		parts = append(parts, fmt.Sprintf("%s:%d", label, statuses[code]))
	}
	return strings.Join(parts, " ")
}
