// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package failuremode

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/AleutianAI/MockSRE/services/profile/telemetry"
)

// TagKey is the telemetry tag carrying the active failure mode.
const TagKey = "failure_mode"

// Registry is the process-wide failure mode cell.
//
// Callers hold it by interface so tests can substitute a fixed mode.
type Registry interface {
	// Get returns the currently active mode.
	Get() Mode

	// Set replaces the active mode.
	Set(ctx context.Context, m Mode) error
}

// State is a point-in-time copy of the registry.
type State struct {
	Mode      Mode      `json:"failure_mode"`
	ChangedAt time.Time `json:"changed_at"`
}

// ChangeObserver is notified after every successful Set.
type ChangeObserver func(from, to Mode)

// Options configures a ModeRegistry.
type Options struct {
	// Demo enables Set. Outside demo every Set returns ErrForbidden.
	Demo bool

	// Initial is the starting mode. Empty means None.
	Initial Mode

	// Sink receives the failure_mode tag on every successful Set.
	Sink telemetry.Sink

	// OnChange is optional.
	OnChange ChangeObserver

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// ModeRegistry is the atomic implementation of Registry.
type ModeRegistry struct {
	state    atomic.Pointer[State]
	demo     bool
	sink     telemetry.Sink
	onChange ChangeObserver
	logger   *slog.Logger
}

var _ Registry = (*ModeRegistry)(nil)

// NewRegistry builds a ModeRegistry.
//
// # Description
//
// Validates opts.Initial before anything else so a bad FAILURE_MODE fails
// startup rather than silently falling back.
//
// # Inputs
//
//   - opts: Registry options.
//
// # Outputs
//
//   - *ModeRegistry: Ready registry holding opts.Initial (or None).
//   - error: *InvalidModeError when opts.Initial is not a valid mode.
//
// # Examples
//
//	reg, err := failuremode.NewRegistry(failuremode.Options{Demo: cfg.Env == "demo", Sink: sink})
func NewRegistry(opts Options) (*ModeRegistry, error) {
	initial := opts.Initial
	if initial == "" {
		initial = None
	}
	if !initial.Valid() {
		return nil, fmt.Errorf("initial mode: %w", &InvalidModeError{Value: string(initial)})
	}

	r := &ModeRegistry{
		demo:     opts.Demo,
		sink:     opts.Sink,
		onChange: opts.OnChange,
		logger:   opts.Logger,
	}
	if r.sink == nil {
		r.sink = telemetry.NopSink{}
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	r.state.Store(&State{Mode: initial, ChangedAt: time.Now().UTC()})
	return r, nil
}

// Get returns the active mode.
func (r *ModeRegistry) Get() Mode {
	return r.state.Load().Mode
}

// Snapshot returns the active mode and when it was last changed.
func (r *ModeRegistry) Snapshot() State {
	return *r.state.Load()
}

// Demo reports whether Set is permitted.
func (r *ModeRegistry) Demo() bool {
	return r.demo
}

// Set replaces the active mode.
//
// # Description
//
// The environment check runs first, so a non-demo deployment answers
// ErrForbidden even for garbage input. A successful Set tags telemetry with
// failure_mode, logs the transition and notifies OnChange. Setting the
// current mode again is a successful no-op change.
//
// # Outputs
//
//   - error: ErrForbidden, *InvalidModeError, or nil.
//
// # Thread Safety
//
// Safe for concurrent use. Last write wins.
func (r *ModeRegistry) Set(ctx context.Context, m Mode) error {
	if !r.demo {
		return ErrForbidden
	}
	if !m.Valid() {
		return &InvalidModeError{Value: string(m)}
	}

	prev := r.state.Swap(&State{Mode: m, ChangedAt: time.Now().UTC()})
	r.sink.SetTag(ctx, TagKey, string(m))
	r.logger.InfoContext(ctx, "failure mode changed", "from", prev.Mode, "to", m)
	if r.onChange != nil {
		r.onChange(prev.Mode, m)
	}
	return nil
}

// Reset forces the mode back to None regardless of environment. Tests only.
func (r *ModeRegistry) Reset() {
	r.state.Store(&State{Mode: None, ChangedAt: time.Now().UTC()})
}

// Fixed is a read-only Registry pinned to one value. Its Set always fails
// with ErrForbidden. The value is not validated.
type Fixed Mode

var _ Registry = Fixed(None)

func (f Fixed) Get() Mode                       { return Mode(f) }
func (f Fixed) Set(context.Context, Mode) error { return ErrForbidden }
