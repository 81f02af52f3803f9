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
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/MockSRE/services/profile/datatypes"
)

const (
	profileKeyPrefix = "profile/"
	schemaVersionKey = "meta/schema_version"

	// badgerSchemaVersion is bumped when the stored value layout changes.
	badgerSchemaVersion = "1"
)

// ErrSchemaMismatch is returned by EnsureSchema when the database was
// written by an incompatible layout.
var ErrSchemaMismatch = errors.New("badger schema version mismatch")

// BadgerConfig holds configuration for a BadgerStore.
type BadgerConfig struct {
	// Path is the directory for database files. Ignored when InMemory.
	Path string

	// InMemory keeps everything in RAM. Used by tests and memory://.
	InMemory bool

	// SyncWrites fsyncs every commit.
	SyncWrites bool

	// Logger receives BadgerDB's internal logs at Warn and above.
	// Nil disables them.
	Logger *slog.Logger

	// GCInterval is how often value-log GC runs. Zero disables it.
	GCInterval time.Duration

	// GCDiscardRatio is the garbage ratio that triggers a rewrite.
	GCDiscardRatio float64
}

// DefaultBadgerConfig returns durable on-disk defaults. Path must be set.
func DefaultBadgerConfig() BadgerConfig {
	return BadgerConfig{
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns a config for an in-memory store with GC disabled.
func InMemoryConfig() BadgerConfig {
	return BadgerConfig{InMemory: true}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface. Badger is
// chatty at Info, so Info and Debug go to Debug.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...), "component", "badger")
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...), "component", "badger")
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...), "component", "badger")
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...), "component", "badger")
}

// BadgerStore keeps profiles as JSON values under "profile/<id>".
type BadgerStore struct {
	db      *badger.DB
	stopGC  chan struct{}
	gcDone  chan struct{}
	logger  *slog.Logger
	closeMu sync.Mutex
	closed  bool
}

var _ Store = (*BadgerStore)(nil)

// OpenBadger opens a BadgerStore.
//
// Description:
//
//	Opens the database at cfg.Path (created with 0750 if missing) or in
//	memory, and starts the value-log GC loop when configured for disk.
//
// Inputs:
//
//	cfg - Store configuration. Path is required unless InMemory.
//
// Outputs:
//
//	*BadgerStore - The opened store. Caller must Close it.
//	error - Non-nil if the path is missing or badger fails to open.
//
// Thread Safety: The returned store is safe for concurrent use.
func OpenBadger(cfg BadgerConfig) (*BadgerStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("badger path is required for a persistent store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create badger directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	s := &BadgerStore{db: db, logger: cfg.Logger}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.stopGC = make(chan struct{})
		s.gcDone = make(chan struct{})
		go s.runGC(cfg.GCInterval, cfg.GCDiscardRatio)
	}
	return s, nil
}

func profileKey(id int64) []byte {
	return []byte(profileKeyPrefix + strconv.FormatInt(id, 10))
}

// FindByID implements Store.
func (s *BadgerStore) FindByID(_ context.Context, id int64) (*datatypes.Profile, error) {
	var (
		p     datatypes.Profile
		found bool
	)
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(profileKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &p)
		})
	})
	if err != nil {
		return nil, s.wrap(fmt.Sprintf("find profile %d", id), err)
	}
	if !found {
		return nil, nil
	}
	return &p, nil
}

// InsertIfAbsent implements Store.
func (s *BadgerStore) InsertIfAbsent(_ context.Context, p datatypes.Profile) (bool, error) {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if err := p.Validate(); err != nil {
		return false, err
	}
	val, err := json.Marshal(p)
	if err != nil {
		return false, fmt.Errorf("encode profile %d: %w", p.ID, err)
	}

	inserted := false
	err = s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(profileKey(p.ID))
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		inserted = true
		return txn.Set(profileKey(p.ID), val)
	})
	if err != nil {
		return false, s.wrap(fmt.Sprintf("insert profile %d", p.ID), err)
	}
	return inserted, nil
}

// EnsureSchema records the value layout version, or verifies it on an
// existing database.
func (s *BadgerStore) EnsureSchema(_ context.Context) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(schemaVersionKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return txn.Set([]byte(schemaVersionKey), []byte(badgerSchemaVersion))
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if string(val) != badgerSchemaVersion {
				return fmt.Errorf("%w: have %s, want %s", ErrSchemaMismatch, val, badgerSchemaVersion)
			}
			return nil
		})
	})
	if err != nil {
		return s.wrap("ensure schema", err)
	}
	return nil
}

// Close stops GC and closes the database. Safe to call more than once.
func (s *BadgerStore) Close() error {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.stopGC != nil {
		close(s.stopGC)
		<-s.gcDone
	}
	return s.db.Close()
}

func (s *BadgerStore) wrap(op string, err error) error {
	if errors.Is(err, badger.ErrDBClosed) {
		return fmt.Errorf("%s: %w", op, ErrClosed)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (s *BadgerStore) runGC(interval time.Duration, ratio float64) {
	defer close(s.gcDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopGC:
			return
		case <-ticker.C:
			// ErrNoRewrite means nothing was worth collecting.
			if err := s.db.RunValueLogGC(ratio); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				s.logger.Warn("badger value log GC error", slog.String("error", err.Error()))
			}
		}
	}
}
