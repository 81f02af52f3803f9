// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package profile provides the mock SRE profile service as a reusable
// component.
//
// # Overview
//
// The service serves user profiles over HTTP and can be switched at runtime
// into one of several failure modes that reproduce the telemetry signature
// of a real data-access incident: a bypassed cache, slow queries, and a
// saturated connection pool.
//
// # Usage
//
//	cfg, _ := config.Load("")
//	svc, err := profile.New(ctx, profile.ConfigFrom(cfg), nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(svc.Run(ctx))
//
// # Thread Safety
//
// The Service is safe for concurrent use after New returns.
package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"

	"github.com/AleutianAI/MockSRE/services/profile/cache"
	"github.com/AleutianAI/MockSRE/services/profile/config"
	"github.com/AleutianAI/MockSRE/services/profile/dispatch"
	"github.com/AleutianAI/MockSRE/services/profile/failuremode"
	"github.com/AleutianAI/MockSRE/services/profile/middleware"
	"github.com/AleutianAI/MockSRE/services/profile/observability"
	"github.com/AleutianAI/MockSRE/services/profile/routes"
	"github.com/AleutianAI/MockSRE/services/profile/store"
	"github.com/AleutianAI/MockSRE/services/profile/telemetry"
)

// =============================================================================
// Service Interface
// =============================================================================

// Service is the profile service.
type Service interface {
	// Run serves on the configured port until ctx is cancelled, then shuts
	// down gracefully and releases every resource.
	Run(ctx context.Context) error

	// Serve is Run on an existing listener.
	Serve(ctx context.Context, ln net.Listener) error

	// Router returns the configured gin engine.
	Router() *gin.Engine

	// Registry returns the failure mode registry.
	Registry() failuremode.Registry

	// Store returns the profile store.
	Store() store.Store

	// Close releases the store, cache and telemetry. Safe to call twice.
	Close() error
}

// =============================================================================
// Configuration
// =============================================================================

// Config holds service settings.
type Config struct {
	// Port is the HTTP port. Default: 8000.
	Port int

	// Environment label. "demo" opens the admin endpoint. Default: "local".
	Environment string

	// SentryDSN enables Sentry when set.
	SentryDSN string

	// DatabaseURL selects the store backend. Default: memory://.
	DatabaseURL string

	// DBPoolLimit is the store pool-size hint. Default: 20.
	DBPoolLimit int

	// FailureMode is the initial mode. Default: none.
	FailureMode failuremode.Mode

	// CacheCapacity bounds the lookup cache. Zero is unbounded.
	CacheCapacity uint64

	// SlowQueryDelay and PoolHoldDelay default to 2s and 1s.
	SlowQueryDelay time.Duration
	PoolHoldDelay  time.Duration

	// ShutdownTimeout bounds graceful shutdown. Default: 10s.
	ShutdownTimeout time.Duration

	// Telemetry configures the OTel providers. Empty exporters are off.
	Telemetry telemetry.Config
}

// ConfigFrom converts loaded settings into a service Config.
func ConfigFrom(c *config.Config) Config {
	return Config{
		Port:            c.Port,
		Environment:     c.Env,
		SentryDSN:       c.SentryDSN,
		DatabaseURL:     c.DatabaseURL,
		DBPoolLimit:     c.DBPoolLimit,
		FailureMode:     failuremode.Mode(c.FailureMode),
		CacheCapacity:   c.CacheCapacity,
		SlowQueryDelay:  c.SlowQueryDelay,
		PoolHoldDelay:   c.PoolHoldDelay,
		ShutdownTimeout: c.ShutdownTimeout,
		Telemetry: telemetry.Config{
			ServiceName:    telemetry.ServiceTag,
			ServiceVersion: Version,
			Environment:    c.Env,
			TraceExporter:  c.TracesExporter,
			MetricExporter: c.MetricsExporter,
			OTLPEndpoint:   c.OTLPEndpoint,
		},
	}
}

// Options injects collaborators. Every field is optional.
type Options struct {
	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Store replaces the store opened from DatabaseURL. The service takes
	// ownership and closes it.
	Store store.Store

	// Registerer receives the service metrics. Default: the global
	// Prometheus registry.
	Registerer prometheus.Registerer

	// Gatherer backs /metrics. Default: the global Prometheus registry.
	Gatherer prometheus.Gatherer

	// Sink is added to the telemetry fan-out.
	Sink telemetry.Sink
}

// Version is reported as the service version on telemetry resources.
var Version = "dev"

// =============================================================================
// Service Implementation
// =============================================================================

type service struct {
	config   Config
	logger   *slog.Logger
	router   *gin.Engine
	store    store.Store
	cache    *cache.LookupCache
	registry *failuremode.ModeRegistry
	sink     telemetry.Sink
	metrics  *observability.ProfileMetrics

	telemetryShutdown func(context.Context) error
	closeOnce         sync.Once
	closeErr          error
}

// New builds the service and every collaborator.
//
// # Description
//
// Initialisation order:
//  1. OpenTelemetry providers and propagators
//  2. Sentry (skipped without a DSN) and the telemetry fan-out
//  3. Prometheus metrics
//  4. Failure mode registry, seeded with cfg.FailureMode
//  5. Profile store and schema
//  6. Lookup cache, dispatcher and router
//
// On failure every collaborator created so far is released.
//
// # Inputs
//
//   - ctx: Bounds store connection and schema setup.
//   - cfg: Service configuration. Zero fields take defaults.
//   - opts: Optional collaborators. May be nil.
//
// # Outputs
//
//   - Service: Ready to Run.
//   - error: Telemetry, registry, store or schema failure.
func New(ctx context.Context, cfg Config, opts *Options) (Service, error) {
	if opts == nil {
		opts = &Options{}
	}
	s := &service{
		config: applyConfigDefaults(cfg),
		logger: opts.Logger,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	shutdown, err := telemetry.Init(ctx, s.config.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	s.telemetryShutdown = shutdown

	if err := s.initSinks(opts.Sink); err != nil {
		s.cleanup()
		return nil, err
	}

	if opts.Registerer != nil {
		s.metrics = observability.NewProfileMetrics(opts.Registerer)
	} else {
		s.metrics = observability.InitMetrics()
	}

	s.registry, err = failuremode.NewRegistry(failuremode.Options{
		Demo:    s.config.Environment == config.DemoEnvironment,
		Initial: s.config.FailureMode,
		Sink:    s.sink,
		Logger:  s.logger,
		OnChange: func(_, to failuremode.Mode) {
			s.metrics.RecordModeChange(to.String(), failuremode.Names())
		},
	})
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize failure mode registry: %w", err)
	}
	s.metrics.SetActiveMode(s.registry.Get().String(), failuremode.Names())

	if err := s.initStore(ctx, opts.Store); err != nil {
		s.cleanup()
		return nil, err
	}

	s.cache = cache.New(cache.Options{Capacity: s.config.CacheCapacity})

	d, err := dispatch.New(s.registry, s.cache, s.store, dispatch.Options{
		SlowQueryDelay: s.config.SlowQueryDelay,
		PoolHoldDelay:  s.config.PoolHoldDelay,
		Sink:           s.sink,
		Metrics:        s.metrics,
		Logger:         s.logger,
	})
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize dispatcher: %w", err)
	}

	s.initRouter(d, opts.Gatherer)

	s.logger.Info("profile service initialized",
		"environment", s.config.Environment,
		"failure_mode", s.registry.Get().String(),
		"admin_enabled", s.registry.Demo(),
	)
	return s, nil
}

// Run implements Service.
func (s *service) Run(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		_ = s.Close()
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve implements Service.
func (s *service) Serve(ctx context.Context, ln net.Listener) error {
	defer func() { _ = s.Close() }()

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting profile server", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down profile server", "timeout", s.config.ShutdownTimeout.String())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

func (s *service) Router() *gin.Engine {
	return s.router
}

func (s *service) Registry() failuremode.Registry {
	return s.registry
}

func (s *service) Store() store.Store {
	return s.store
}

// Close implements Service.
func (s *service) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.cleanup()
	})
	return s.closeErr
}

// =============================================================================
// Private Helpers
// =============================================================================

// applyConfigDefaults fills zero fields with their defaults.
func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 8000
	}
	if cfg.Environment == "" {
		cfg.Environment = "local"
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "memory://"
	}
	if cfg.DBPoolLimit == 0 {
		cfg.DBPoolLimit = 20
	}
	if cfg.FailureMode == "" {
		cfg.FailureMode = failuremode.None
	}
	if cfg.SlowQueryDelay == 0 {
		cfg.SlowQueryDelay = dispatch.DefaultSlowQueryDelay
	}
	if cfg.PoolHoldDelay == 0 {
		cfg.PoolHoldDelay = dispatch.DefaultPoolHoldDelay
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = telemetry.ServiceTag
	}
	if cfg.Telemetry.Environment == "" {
		cfg.Telemetry.Environment = cfg.Environment
	}
	return cfg
}

// initSinks builds the telemetry fan-out: OTel span events always, Sentry
// when configured, plus any caller-supplied sink.
func (s *service) initSinks(extra telemetry.Sink) error {
	otelSink, err := telemetry.NewOTelSink(otel.Meter(telemetry.ServiceTag))
	if err != nil {
		return fmt.Errorf("failed to initialize otel sink: %w", err)
	}

	sentrySink, err := telemetry.InitSentry(telemetry.SentryConfig{
		DSN:         s.config.SentryDSN,
		Environment: s.config.Environment,
		Release:     Version,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize sentry: %w", err)
	}
	if s.config.SentryDSN != "" {
		s.logger.Info("Sentry initialized", "environment", s.config.Environment)
	}

	sinks := []telemetry.Sink{otelSink, sentrySink}
	if extra != nil {
		sinks = append(sinks, extra)
	}
	s.sink = telemetry.NewMulti(sinks...)
	return nil
}

func (s *service) initStore(ctx context.Context, injected store.Store) error {
	if injected != nil {
		s.store = injected
	} else {
		st, err := store.Open(ctx, store.OpenConfig{
			URL:       s.config.DatabaseURL,
			PoolLimit: s.config.DBPoolLimit,
			Logger:    s.logger,
		})
		if err != nil {
			return fmt.Errorf("failed to open profile store: %w", err)
		}
		s.store = st
	}

	if err := s.store.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("failed to ensure profile schema: %w", err)
	}
	return nil
}

func (s *service) initRouter(d *dispatch.Dispatcher, gatherer prometheus.Gatherer) {
	s.router = gin.New()
	s.router.Use(
		gin.Recovery(),
		otelgin.Middleware(telemetry.ServiceTag),
		middleware.RequestID(),
		middleware.SentryHub(),
		middleware.RequestLogger(s.logger),
	)

	routes.SetupRoutes(s.router, routes.Deps{
		Profiles:    d,
		Registry:    s.registry,
		Environment: s.config.Environment,
		Gatherer:    gatherer,
	})
}

// cleanup releases whatever New managed to create.
func (s *service) cleanup() error {
	var errs []error
	if s.cache != nil {
		s.cache.Close()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	if s.sink != nil {
		if !s.sink.Flush(2 * time.Second) {
			s.logger.Warn("telemetry flush timed out")
		}
	}
	if s.telemetryShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.telemetryShutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown telemetry: %w", err))
		}
	}
	return errors.Join(errs...)
}

var _ Service = (*service)(nil)
