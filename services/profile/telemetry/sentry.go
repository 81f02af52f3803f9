// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
)

// Process-wide tags stamped on every Sentry event.
const (
	ServiceTag      = "mock-sre-service"
	DemoScenarioTag = "incident_b"
)

// SentryConfig configures InitSentry.
type SentryConfig struct {
	// DSN of the Sentry project. Empty disables Sentry.
	DSN string

	// Environment label reported with every event.
	Environment string

	// Release is optional.
	Release string

	// TracesSampleRate defaults to 1.0 when zero.
	TracesSampleRate float64

	// BeforeSend, when set, may scrub or drop events.
	BeforeSend func(*sentry.Event, *sentry.EventHint) *sentry.Event
}

// InitSentry initialises the global Sentry client.
//
// # Description
//
// Returns NopSink when cfg.DSN is empty. Otherwise initialises the SDK,
// stamps the "service" and "demo_scenario" tags on the global scope and
// returns a SentrySink bound to the current hub.
//
// # Inputs
//
//   - cfg: Sentry configuration.
//
// # Outputs
//
//   - Sink: SentrySink, or NopSink when disabled.
//   - error: Non-nil when the DSN is malformed.
//
// # Thread Safety
//
// Call once at startup.
func InitSentry(cfg SentryConfig) (Sink, error) {
	if cfg.DSN == "" {
		return NopSink{}, nil
	}
	rate := cfg.TracesSampleRate
	if rate == 0 {
		rate = 1.0
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		EnableTracing:    true,
		TracesSampleRate: rate,
		AttachStacktrace: true,
		BeforeSend:       cfg.BeforeSend,
	})
	if err != nil {
		return nil, fmt.Errorf("init sentry: %w", err)
	}

	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("service", ServiceTag)
		scope.SetTag("demo_scenario", DemoScenarioTag)
	})
	return NewSentrySink(sentry.CurrentHub()), nil
}

// SentrySink forwards sink calls to a Sentry hub.
//
// The hub bound to the request context wins. The fallback hub is used for
// calls made outside a request, such as startup mode changes.
type SentrySink struct {
	fallback *sentry.Hub
}

var _ Sink = (*SentrySink)(nil)

// NewSentrySink returns a sink that falls back to hub, or to the current
// global hub when hub is nil.
func NewSentrySink(hub *sentry.Hub) *SentrySink {
	return &SentrySink{fallback: hub}
}

func (s *SentrySink) hub(ctx context.Context) *sentry.Hub {
	if ctx != nil {
		if h := sentry.GetHubFromContext(ctx); h != nil {
			return h
		}
	}
	if s.fallback != nil {
		return s.fallback
	}
	return sentry.CurrentHub()
}

func (s *SentrySink) SetTag(ctx context.Context, key, value string) {
	s.hub(ctx).Scope().SetTag(key, value)
}

func (s *SentrySink) AddBreadcrumb(ctx context.Context, b Breadcrumb) {
	s.hub(ctx).AddBreadcrumb(&sentry.Breadcrumb{
		Message:   b.Message,
		Category:  b.Category,
		Level:     sentry.Level(b.Level),
		Data:      b.Data,
		Timestamp: time.Now(),
	}, nil)
}

func (s *SentrySink) CaptureException(ctx context.Context, err error) {
	if err == nil {
		return
	}
	s.hub(ctx).CaptureException(err)
}

func (s *SentrySink) Flush(timeout time.Duration) bool {
	return s.hub(nil).Flush(timeout)
}
