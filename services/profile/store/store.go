// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store provides the profile store behind the lookup path.
//
// # Description
//
// Two backends implement Store:
//
//   - BadgerStore: embedded key-value store, on disk or in memory. Default.
//   - PostgresStore: pgx connection pool with schema migrations, used when
//     the deployment points DATABASE_URL at Postgres.
//
// Open picks the backend from the connection string scheme:
//
//	memory://                 in-memory badger
//	badger:///var/lib/mocksre on-disk badger at the given path
//	postgres://... postgresql://...
//
// # Thread Safety
//
// Both backends are safe for concurrent use.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/AleutianAI/MockSRE/services/profile/datatypes"
)

// Store is the keyed profile lookup the dispatcher reads from.
type Store interface {
	// FindByID returns the profile with the given id, or (nil, nil) when
	// no such profile exists.
	FindByID(ctx context.Context, id int64) (*datatypes.Profile, error)

	// InsertIfAbsent validates and stores p unless a profile with the same
	// id exists. Returns true when a row was written. A zero CreatedAt is
	// replaced with the current UTC time.
	InsertIfAbsent(ctx context.Context, p datatypes.Profile) (bool, error)

	// EnsureSchema prepares the backend for use. Idempotent.
	EnsureSchema(ctx context.Context) error

	// Close releases the backend.
	Close() error
}

var (
	// ErrUnsupportedScheme is returned by Open for unknown connection strings.
	ErrUnsupportedScheme = errors.New("unsupported store scheme")

	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("store is closed")
)

// OpenConfig configures Open.
type OpenConfig struct {
	// URL is the connection string. See the package documentation.
	URL string

	// PoolLimit is the connection pool size hint. Postgres only.
	PoolLimit int

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Open connects to the store named by cfg.URL.
//
// # Description
//
// Dispatches on the URL scheme. The returned store has not had
// EnsureSchema called.
//
// # Inputs
//
//   - ctx: Bounds connection establishment.
//   - cfg: Connection string and pool hint.
//
// # Outputs
//
//   - Store: The opened backend. Caller must Close it.
//   - error: ErrUnsupportedScheme, or a backend-specific open failure.
//
// # Examples
//
//	st, err := store.Open(ctx, store.OpenConfig{URL: "memory://"})
func Open(ctx context.Context, cfg OpenConfig) (Store, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	switch {
	case cfg.URL == "" || strings.HasPrefix(cfg.URL, "memory://"):
		bcfg := InMemoryConfig()
		bcfg.Logger = logger
		return OpenBadger(bcfg)

	case strings.HasPrefix(cfg.URL, "badger://"):
		bcfg := DefaultBadgerConfig()
		bcfg.Path = strings.TrimPrefix(cfg.URL, "badger://")
		bcfg.Logger = logger
		return OpenBadger(bcfg)

	case strings.HasPrefix(cfg.URL, "postgres://"), strings.HasPrefix(cfg.URL, "postgresql://"):
		return OpenPostgres(ctx, PostgresConfig{
			URL:      cfg.URL,
			MaxConns: cfg.PoolLimit,
			Logger:   logger,
		})

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, redact(cfg.URL))
	}
}

// redact strips everything after the scheme so credentials never reach logs.
func redact(url string) string {
	if i := strings.Index(url, "://"); i >= 0 {
		return url[:i+3] + "..."
	}
	if len(url) > 8 {
		return url[:8] + "..."
	}
	return url
}
