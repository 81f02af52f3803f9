// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package dispatch routes profile lookups through the active failure mode.
//
// # Description
//
// The Dispatcher reads the failure mode once per call and runs the matching
// strategy:
//
//	none            cache, then store (misses are coalesced)
//	cache_off       breadcrumb, then store
//	slow_query      slow_query tag, delay, then store
//	pool_saturation delay, then simulated pool exhaustion
//	combined        breadcrumb, tag, delay, then simulated pool exhaustion
//
// A mode outside the enumeration falls back to the none strategy.
//
// # Thread Safety
//
// Dispatcher is safe for concurrent use. Delays block only the calling
// goroutine and never hold a lock.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/AleutianAI/MockSRE/services/profile/cache"
	"github.com/AleutianAI/MockSRE/services/profile/datatypes"
	"github.com/AleutianAI/MockSRE/services/profile/failuremode"
	"github.com/AleutianAI/MockSRE/services/profile/observability"
	"github.com/AleutianAI/MockSRE/services/profile/store"
	"github.com/AleutianAI/MockSRE/services/profile/telemetry"
)

const (
	// DefaultSlowQueryDelay is the slow_query and combined delay.
	DefaultSlowQueryDelay = 2 * time.Second

	// DefaultPoolHoldDelay is the pool_saturation delay.
	DefaultPoolHoldDelay = time.Second

	// SlowQueryTag is set to "true" by slow_query and combined.
	SlowQueryTag = "slow_query"

	// CacheBypassMessage is the breadcrumb left by cache_off and combined.
	CacheBypassMessage = "Cache bypassed — querying DB directly"

	tracerName = "github.com/AleutianAI/MockSRE/services/profile/dispatch"
)

var tracer = otel.Tracer(tracerName)

// Result is the outcome of a lookup that did not fail.
//
// Found is false when the store has no profile for the id. Mode is the
// failure mode the call ran under, and is set on error too.
type Result struct {
	Profile *datatypes.Profile
	Found   bool
	Mode    failuremode.Mode
}

// Options configures a Dispatcher. Zero values pick the defaults.
type Options struct {
	// SlowQueryDelay applies to slow_query and combined. Default: 2s.
	SlowQueryDelay time.Duration

	// PoolHoldDelay applies to pool_saturation. Default: 1s.
	PoolHoldDelay time.Duration

	// Sink receives tags, breadcrumbs and exceptions. Default: NopSink.
	Sink telemetry.Sink

	// Metrics may be nil.
	Metrics *observability.ProfileMetrics

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Dispatcher resolves profile lookups under the active failure mode.
type Dispatcher struct {
	registry failuremode.Registry
	cache    *cache.LookupCache
	store    store.Store

	sink    telemetry.Sink
	metrics *observability.ProfileMetrics
	logger  *slog.Logger

	slowQueryDelay time.Duration
	poolHoldDelay  time.Duration

	misses singleflight.Group
}

// New creates a Dispatcher.
//
// # Inputs
//
//   - registry: Source of the active failure mode. Required.
//   - c: Lookup cache used by the none strategy. Required.
//   - s: Profile store. Required.
//   - opts: Delays and telemetry.
//
// # Outputs
//
//   - *Dispatcher: Ready to serve lookups.
//   - error: Non-nil if a required dependency is missing.
func New(registry failuremode.Registry, c *cache.LookupCache, s store.Store, opts Options) (*Dispatcher, error) {
	if registry == nil {
		return nil, errors.New("dispatch: registry is required")
	}
	if c == nil {
		return nil, errors.New("dispatch: cache is required")
	}
	if s == nil {
		return nil, errors.New("dispatch: store is required")
	}

	d := &Dispatcher{
		registry:       registry,
		cache:          c,
		store:          s,
		sink:           opts.Sink,
		metrics:        opts.Metrics,
		logger:         opts.Logger,
		slowQueryDelay: opts.SlowQueryDelay,
		poolHoldDelay:  opts.PoolHoldDelay,
	}
	if d.sink == nil {
		d.sink = telemetry.NopSink{}
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	if d.slowQueryDelay <= 0 {
		d.slowQueryDelay = DefaultSlowQueryDelay
	}
	if d.poolHoldDelay <= 0 {
		d.poolHoldDelay = DefaultPoolHoldDelay
	}
	return d, nil
}

// Mode returns the failure mode the next call would run under.
func (d *Dispatcher) Mode() failuremode.Mode {
	return d.registry.Get()
}

// Retrieve looks up a profile under the current failure mode.
//
// # Description
//
// The mode is read once on entry; a concurrent mode change affects only
// later calls. Every call tags the telemetry scope with failure_mode.
// Absence is reported through Result.Found, not as an error.
//
// Injected delays run to completion even if ctx is cancelled.
//
// # Inputs
//
//   - ctx: Carries the telemetry scope and request span.
//   - id: Profile identifier.
//
// # Outputs
//
//   - Result: Profile and the mode the call ran under.
//   - error: *SimulatedExhaustionError or *StoreError. Every error is
//     reported to the sink before it is returned.
//
// # Examples
//
//	res, err := d.Retrieve(ctx, 1)
//	switch {
//	case errors.Is(err, dispatch.ErrSimulatedExhaustion):
//	case err != nil:
//	case !res.Found:
//	}
func (d *Dispatcher) Retrieve(ctx context.Context, id int64) (Result, error) {
	mode := d.registry.Get()
	start := time.Now()

	ctx, span := tracer.Start(ctx, "profile.Retrieve",
		trace.WithAttributes(
			attribute.Int64("profile.id", id),
			attribute.String(failuremode.TagKey, mode.String()),
		),
	)
	defer span.End()

	d.sink.SetTag(ctx, failuremode.TagKey, mode.String())

	var (
		p   *datatypes.Profile
		err error
	)
	switch mode {
	case failuremode.CacheOff:
		p, err = d.retrieveCacheOff(ctx, id)
	case failuremode.SlowQuery:
		p, err = d.retrieveSlowQuery(ctx, mode, id)
	case failuremode.PoolSaturation:
		err = d.retrievePoolSaturation(ctx, mode)
	case failuremode.Combined:
		err = d.retrieveCombined(ctx, mode, id)
	case failuremode.None:
		p, err = d.retrieveCached(ctx, id)
	default:
		d.logger.DebugContext(ctx, "unknown failure mode, using none strategy",
			slog.String("failure_mode", mode.String()))
		p, err = d.retrieveCached(ctx, id)
	}

	res := Result{Profile: p, Found: p != nil, Mode: mode}
	elapsed := time.Since(start)

	if err != nil {
		d.sink.CaptureException(ctx, err)
		d.metrics.RecordLookup(mode.String(), outcomeOf(err), elapsed)
		d.logFailure(ctx, mode, id, err)
		return Result{Mode: mode}, err
	}

	outcome := observability.OutcomeFound
	if !res.Found {
		outcome = observability.OutcomeNotFound
	}
	d.metrics.RecordLookup(mode.String(), outcome, elapsed)
	return res, nil
}

// retrieveCached serves from the cache and fills it from the store.
func (d *Dispatcher) retrieveCached(ctx context.Context, id int64) (*datatypes.Profile, error) {
	if p, ok := d.cache.Get(id); ok {
		d.metrics.RecordCache(true)
		return &p, nil
	}
	d.metrics.RecordCache(false)

	// The shared query must not inherit one caller's cancellation.
	shared := context.WithoutCancel(ctx)
	v, err, _ := d.misses.Do(strconv.FormatInt(id, 10), func() (interface{}, error) {
		p, err := d.query(shared, id)
		if err != nil {
			return nil, err
		}
		if p != nil {
			d.cache.Put(id, *p)
		}
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*datatypes.Profile), nil
}

func (d *Dispatcher) retrieveCacheOff(ctx context.Context, id int64) (*datatypes.Profile, error) {
	d.leaveBypassBreadcrumb(ctx, id)
	return d.query(ctx, id)
}

func (d *Dispatcher) retrieveSlowQuery(ctx context.Context, mode failuremode.Mode, id int64) (*datatypes.Profile, error) {
	d.sink.SetTag(ctx, SlowQueryTag, "true")
	d.hold(ctx, mode, d.slowQueryDelay)
	return d.query(ctx, id)
}

func (d *Dispatcher) retrievePoolSaturation(ctx context.Context, mode failuremode.Mode) error {
	d.hold(ctx, mode, d.poolHoldDelay)
	return d.exhaust(mode)
}

func (d *Dispatcher) retrieveCombined(ctx context.Context, mode failuremode.Mode, id int64) error {
	d.leaveBypassBreadcrumb(ctx, id)
	d.sink.SetTag(ctx, SlowQueryTag, "true")
	d.hold(ctx, mode, d.slowQueryDelay)
	return d.exhaust(mode)
}

func (d *Dispatcher) leaveBypassBreadcrumb(ctx context.Context, id int64) {
	d.sink.AddBreadcrumb(ctx, telemetry.Breadcrumb{
		Message:  CacheBypassMessage,
		Category: "cache",
		Level:    telemetry.LevelWarning,
		Data:     map[string]any{"user_id": id},
	})
}

// hold blocks the calling goroutine for delay. It deliberately ignores
// ctx cancellation.
func (d *Dispatcher) hold(ctx context.Context, mode failuremode.Mode, delay time.Duration) {
	span := trace.SpanFromContext(ctx)
	span.AddEvent("injected delay", trace.WithAttributes(
		attribute.String(failuremode.TagKey, mode.String()),
		attribute.Int64("delay_ms", delay.Milliseconds()),
	))

	timer := time.NewTimer(delay)
	defer timer.Stop()
	<-timer.C

	d.metrics.RecordDelay(mode.String(), delay)
}

func (d *Dispatcher) exhaust(mode failuremode.Mode) error {
	d.metrics.RecordExhaustion(mode.String())
	return newExhaustion(mode)
}

func (d *Dispatcher) query(ctx context.Context, id int64) (*datatypes.Profile, error) {
	p, err := d.store.FindByID(ctx, id)
	if err != nil {
		return nil, &StoreError{ID: id, Err: err}
	}
	return p, nil
}

func (d *Dispatcher) logFailure(ctx context.Context, mode failuremode.Mode, id int64, err error) {
	var exhausted *SimulatedExhaustionError
	if errors.As(err, &exhausted) {
		d.logger.WarnContext(ctx, exhausted.Statement,
			slog.Int64("user_id", id),
			slog.String("failure_mode", mode.String()),
			slog.String("cause", exhausted.Cause),
		)
		return
	}
	d.logger.ErrorContext(ctx, fmt.Sprintf("profile lookup failed for id %d", id),
		slog.String("failure_mode", mode.String()),
		slog.String("error", err.Error()),
	)
}

func outcomeOf(err error) string {
	if errors.Is(err, ErrSimulatedExhaustion) {
		return observability.OutcomeExhausted
	}
	return observability.OutcomeError
}
