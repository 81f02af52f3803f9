// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pgx-contrib/pgxotel"

	"github.com/AleutianAI/MockSRE/services/profile/datatypes"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const (
	migrationsTable = "gomigrate_mocksre"

	findProfileSQL = `SELECT id, username, email, bio, created_at
FROM user_profiles WHERE id = $1`

	insertProfileSQL = `INSERT INTO user_profiles (id, username, email, bio, created_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO NOTHING`
)

// PostgresConfig configures OpenPostgres.
type PostgresConfig struct {
	// URL is a postgres:// connection string.
	URL string

	// MaxConns caps the pool. Zero keeps the pgx default.
	MaxConns int

	// ConnectTimeout bounds the initial ping. Default: 10s.
	ConnectTimeout time.Duration

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// PostgresStore reads profiles from the user_profiles table.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

var _ Store = (*PostgresStore)(nil)

// OpenPostgres creates a traced pgx pool and verifies connectivity.
//
// # Description
//
// The pool size comes from cfg.MaxConns, which is the DB_POOL_LIMIT hint.
// Every query is traced through pgxotel so store latency shows up under
// the request span.
//
// # Inputs
//
//   - ctx: Bounds pool creation and the initial ping.
//   - cfg: Connection settings.
//
// # Outputs
//
//   - *PostgresStore: Connected store. Caller must Close it.
//   - error: Parse, connect, or ping failure.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse postgres url: %w", err)
	}
	if cfg.MaxConns > 0 {
		if cfg.MaxConns > math.MaxInt32 {
			cfg.MaxConns = math.MaxInt32
		}
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}
	poolCfg.ConnConfig.Tracer = &pgxotel.QueryTracer{
		Name: "mocksre-profile-store",
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("postgres store connected", "max_conns", poolCfg.MaxConns)
	return &PostgresStore{pool: pool, logger: logger}, nil
}

// FindByID implements Store.
func (s *PostgresStore) FindByID(ctx context.Context, id int64) (*datatypes.Profile, error) {
	var p datatypes.Profile
	err := s.pool.QueryRow(ctx, findProfileSQL, id).Scan(&p.ID, &p.Username, &p.Email, &p.Bio, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find profile %d: %w", id, err)
	}
	p.CreatedAt = p.CreatedAt.UTC()
	return &p, nil
}

// InsertIfAbsent implements Store.
func (s *PostgresStore) InsertIfAbsent(ctx context.Context, p datatypes.Profile) (bool, error) {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if err := p.Validate(); err != nil {
		return false, err
	}
	tag, err := s.pool.Exec(ctx, insertProfileSQL, p.ID, p.Username, p.Email, p.Bio, p.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("insert profile %d: %w", p.ID, err)
	}
	return tag.RowsAffected() == 1, nil
}

// EnsureSchema applies the embedded migrations.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	return runMigrationsUp(ctx, s.pool, s.logger)
}

// Close closes the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// runMigrationsUp applies all pending up migrations.
func runMigrationsUp(_ context.Context, pool *pgxpool.Pool, logger *slog.Logger) error {
	sourceDriver, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("create iofs driver: %w", err)
	}

	sqlDB := stdlib.OpenDBFromPool(pool)
	defer func() {
		_ = sqlDB.Close()
	}()

	dbDriver, err := migratepgx.WithInstance(sqlDB, &migratepgx.Config{
		MigrationsTable: migrationsTable,
	})
	if err != nil {
		return fmt.Errorf("create pgx migrate driver: %w", err)
	}
	defer func() {
		_ = dbDriver.Close()
	}()

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	_, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("read migration version: %w", err)
	}
	if dirty {
		return errors.New("profile schema migration is dirty, fix it before proceeding")
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	version, _, _ := m.Version()
	logger.Info("profile schema ready", "version", version)
	return nil
}
