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
	"time"
)

// =============================================================================
// Breadcrumbs
// =============================================================================

// Level is the severity attached to a breadcrumb.
type Level string

const (
	LevelDebug   Level = "debug"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Breadcrumb is a timestamped trail marker attached to the current request.
type Breadcrumb struct {
	Message  string
	Category string
	Level    Level
	Data     map[string]any
}

// =============================================================================
// Sink
// =============================================================================

// Sink receives tags, breadcrumbs and exception reports.
//
// # Description
//
// Implementations scope every call to the request carried by ctx when the
// backend supports it and fall back to process scope otherwise. None of the
// methods return errors: telemetry must never change the outcome of a
// request.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type Sink interface {
	// SetTag attaches a key/value label to the current scope.
	SetTag(ctx context.Context, key, value string)

	// AddBreadcrumb records a trail marker on the current scope.
	AddBreadcrumb(ctx context.Context, b Breadcrumb)

	// CaptureException reports err. Nil errors are ignored.
	CaptureException(ctx context.Context, err error)

	// Flush waits up to timeout for buffered events to be delivered.
	// Returns false if the timeout elapsed first.
	Flush(timeout time.Duration) bool
}

// NopSink discards everything. It is the sink used when telemetry is
// unconfigured.
type NopSink struct{}

var _ Sink = NopSink{}

func (NopSink) SetTag(context.Context, string, string)    {}
func (NopSink) AddBreadcrumb(context.Context, Breadcrumb) {}
func (NopSink) CaptureException(context.Context, error)   {}
func (NopSink) Flush(time.Duration) bool                  { return true }

// =============================================================================
// Fan-out
// =============================================================================

// Multi forwards every call to each of its sinks in order.
type Multi []Sink

var _ Sink = Multi(nil)

// NewMulti builds a Multi, dropping nil entries. It returns NopSink when no
// sinks remain and the single sink when only one does.
func NewMulti(sinks ...Sink) Sink {
	out := make(Multi, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	switch len(out) {
	case 0:
		return NopSink{}
	case 1:
		return out[0]
	default:
		return out
	}
}

func (m Multi) SetTag(ctx context.Context, key, value string) {
	for _, s := range m {
		s.SetTag(ctx, key, value)
	}
}

func (m Multi) AddBreadcrumb(ctx context.Context, b Breadcrumb) {
	for _, s := range m {
		s.AddBreadcrumb(ctx, b)
	}
}

func (m Multi) CaptureException(ctx context.Context, err error) {
	if err == nil {
		return
	}
	for _, s := range m {
		s.CaptureException(ctx, err)
	}
}

// Flush flushes every sink and reports whether all of them finished in time.
func (m Multi) Flush(timeout time.Duration) bool {
	ok := true
	for _, s := range m {
		if !s.Flush(timeout) {
			ok = false
		}
	}
	return ok
}
