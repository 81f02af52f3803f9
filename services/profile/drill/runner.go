// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package drill

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/MockSRE/services/profile/failuremode"
)

// StepReport summarises one step.
type StepReport struct {
	Mode failuremode.Mode `json:"mode"`

	// Statuses counts responses by HTTP status. Transport failures are
	// counted under 0.
	Statuses map[int]int `json:"statuses"`

	// ModeMismatches counts responses whose X-Failure-Mode differed from
	// the step's mode.
	ModeMismatches int `json:"mode_mismatches"`

	MaxLatency time.Duration `json:"max_latency"`
	P50Latency time.Duration `json:"p50_latency"`
}

// Failures is the number of probe responses that were not 2xx or 404.
func (r StepReport) Failures() int {
	n := 0
	for status, count := range r.Statuses {
		if status == 0 || status >= 500 {
			n += count
		}
	}
	return n
}

// Report summarises a whole scenario run.
type Report struct {
	Scenario string       `json:"scenario"`
	Steps    []StepReport `json:"steps"`
}

// Runner executes scenarios.
type Runner struct {
	client *Client
	logger *slog.Logger
}

// NewRunner creates a Runner. A nil logger uses slog.Default().
func NewRunner(client *Client, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{client: client, logger: logger}
}

// Run executes every step in order.
//
// # Description
//
// For each step: set the mode, fire the probes, then hold. Mode changes
// that fail abort the run. Probe failures are expected and only counted.
// Cancelling ctx stops the run between requests or during a hold.
//
// # Inputs
//
//   - ctx: Cancels the run.
//   - sc: A validated scenario.
//
// # Outputs
//
//   - *Report: Steps completed so far, also on error.
//   - error: Admin API failure or cancellation.
func (r *Runner) Run(ctx context.Context, sc *Scenario) (*Report, error) {
	report := &Report{Scenario: sc.Name}

	for i, step := range sc.Steps {
		r.logger.Info("drill step", "step", i+1, "mode", step.Mode, "hold", step.Hold.String())

		if err := r.client.SetMode(ctx, step.Mode); err != nil {
			return report, fmt.Errorf("step %d: %w", i+1, err)
		}

		sr := StepReport{Mode: step.Mode, Statuses: map[int]int{}}
		if step.Probe != nil && step.Probe.Requests > 0 {
			results, err := r.probe(ctx, step.Probe)
			summarize(&sr, step.Mode, results)
			if err != nil {
				report.Steps = append(report.Steps, sr)
				return report, fmt.Errorf("step %d: %w", i+1, err)
			}
		}
		report.Steps = append(report.Steps, sr)

		r.logger.Info("drill step complete",
			"step", i+1,
			"mode", step.Mode,
			"failures", sr.Failures(),
			"p50", sr.P50Latency.String(),
		)

		if err := hold(ctx, step.Hold); err != nil {
			return report, err
		}
	}
	return report, nil
}

// probe fires p.Requests lookups, at most p.Concurrency at a time and at
// most p.Rate per second.
func (r *Runner) probe(ctx context.Context, p *Probe) ([]ProbeResult, error) {
	limit := rate.Inf
	if p.Rate > 0 {
		limit = rate.Limit(p.Rate)
	}
	limiter := rate.NewLimiter(limit, 1)

	var (
		mu      sync.Mutex
		results = make([]ProbeResult, 0, p.Requests)
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(p.Concurrency)
	for i := 0; i < p.Requests; i++ {
		if err := limiter.Wait(gCtx); err != nil {
			_ = g.Wait()
			return results, err
		}
		id := p.IDs[i%len(p.IDs)]
		g.Go(func() error {
			res := r.client.GetProfile(gCtx, id)
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results, ctx.Err()
}

func summarize(sr *StepReport, mode failuremode.Mode, results []ProbeResult) {
	latencies := make([]time.Duration, 0, len(results))
	for _, res := range results {
		sr.Statuses[res.Status]++
		if res.Err == nil && res.Mode != string(mode) {
			sr.ModeMismatches++
		}
		latencies = append(latencies, res.Latency)
	}
	if len(latencies) == 0 {
		return
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	sr.P50Latency = latencies[len(latencies)/2]
	sr.MaxLatency = latencies[len(latencies)-1]
}

func hold(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
