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
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/MockSRE/services/profile/datatypes"
)

func testProfile() datatypes.Profile {
	return datatypes.Profile{
		ID:        1,
		Username:  "testuser",
		Email:     "testuser@example.com",
		Bio:       datatypes.StringPtr("Test bio"),
		CreatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func openMemory(t *testing.T) *BadgerStore {
	t.Helper()
	s, err := OpenBadger(InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.EnsureSchema(context.Background()))
	return s
}

// =============================================================================
// BadgerStore
// =============================================================================

func TestBadgerStore_FindMissing(t *testing.T) {
	s := openMemory(t)

	p, err := s.FindByID(context.Background(), 42)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestBadgerStore_InsertAndFind(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	inserted, err := s.InsertIfAbsent(ctx, testProfile())
	require.NoError(t, err)
	assert.True(t, inserted)

	got, err := s.FindByID(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, testProfile().Username, got.Username)
	assert.Equal(t, testProfile().Email, got.Email)
	require.NotNil(t, got.Bio)
	assert.Equal(t, "Test bio", *got.Bio)
	assert.True(t, testProfile().CreatedAt.Equal(got.CreatedAt))
}

func TestBadgerStore_KeyLayout(t *testing.T) {
	assert.Equal(t, []byte("profile/42"), profileKey(42))
	assert.Equal(t, []byte("profile/1099511627776"), profileKey(1<<40))
}

func TestBadgerStore_IDBeyondInt32(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	p := testProfile()
	p.ID = 1 << 40
	inserted, err := s.InsertIfAbsent(ctx, p)
	require.NoError(t, err)
	assert.True(t, inserted)

	got, err := s.FindByID(ctx, 1<<40)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(1<<40), got.ID)
}

func TestBadgerStore_InsertIfAbsentKeepsFirst(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	_, err := s.InsertIfAbsent(ctx, testProfile())
	require.NoError(t, err)

	second := testProfile()
	second.Username = "imposter"
	inserted, err := s.InsertIfAbsent(ctx, second)
	require.NoError(t, err)
	assert.False(t, inserted)

	got, err := s.FindByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "testuser", got.Username)
}

func TestBadgerStore_InsertDefaultsCreatedAt(t *testing.T) {
	s := openMemory(t)
	p := testProfile()
	p.CreatedAt = time.Time{}

	before := time.Now().UTC().Add(-time.Second)
	_, err := s.InsertIfAbsent(context.Background(), p)
	require.NoError(t, err)

	got, err := s.FindByID(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, got.CreatedAt.After(before))
}

func TestBadgerStore_InsertRejectsInvalid(t *testing.T) {
	s := openMemory(t)
	p := testProfile()
	p.Email = "nope"

	inserted, err := s.InsertIfAbsent(context.Background(), p)
	assert.Error(t, err)
	assert.False(t, inserted)

	got, err := s.FindByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestBadgerStore_ConcurrentInsertSameID(t *testing.T) {
	s := openMemory(t)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.InsertIfAbsent(context.Background(), testProfile())
			if err == nil && ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	// Conflicting transactions may fail, but at most one write lands.
	assert.LessOrEqual(t, wins.Load(), int32(1))
}

func TestBadgerStore_EnsureSchemaIdempotent(t *testing.T) {
	s := openMemory(t)
	require.NoError(t, s.EnsureSchema(context.Background()))
	require.NoError(t, s.EnsureSchema(context.Background()))
}

func TestBadgerStore_ClosedStoreFails(t *testing.T) {
	s, err := OpenBadger(InMemoryConfig())
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "second close is a no-op")

	_, err = s.FindByID(context.Background(), 1)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestBadgerStore_PersistsAcrossReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "profiles")
	cfg := DefaultBadgerConfig()
	cfg.Path = dir

	s, err := OpenBadger(cfg)
	require.NoError(t, err)
	require.NoError(t, s.EnsureSchema(context.Background()))
	_, err = s.InsertIfAbsent(context.Background(), testProfile())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = OpenBadger(cfg)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.EnsureSchema(context.Background()))

	got, err := s.FindByID(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "testuser", got.Username)
}

func TestOpenBadger_RequiresPath(t *testing.T) {
	_, err := OpenBadger(BadgerConfig{})
	assert.Error(t, err)
}

// =============================================================================
// Open
// =============================================================================

func TestOpen_Schemes(t *testing.T) {
	ctx := context.Background()

	for _, url := range []string{"", "memory://"} {
		s, err := Open(ctx, OpenConfig{URL: url})
		require.NoError(t, err, "url %q", url)
		_, ok := s.(*BadgerStore)
		assert.True(t, ok)
		require.NoError(t, s.Close())
	}

	s, err := Open(ctx, OpenConfig{URL: "badger://" + t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestOpen_UnsupportedSchemeRedacts(t *testing.T) {
	_, err := Open(context.Background(), OpenConfig{URL: "mysql://root:hunter2@db/app"})
	require.ErrorIs(t, err, ErrUnsupportedScheme)
	assert.NotContains(t, err.Error(), "hunter2")
}

func TestOpen_PostgresUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := OpenPostgres(ctx, PostgresConfig{
		URL:            "postgres://mocksre@127.0.0.1:1/mocksre?sslmode=disable&connect_timeout=1",
		MaxConns:       4,
		ConnectTimeout: 2 * time.Second,
	})
	assert.Error(t, err)
}

func TestOpenPostgres_BadURL(t *testing.T) {
	_, err := OpenPostgres(context.Background(), PostgresConfig{URL: "postgres://%zz"})
	assert.Error(t, err)
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := fs.ReadDir(migrationFiles, "migrations")
	require.NoError(t, err)

	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Contains(t, names, "000001_create_user_profiles.up.sql")
	assert.Contains(t, names, "000001_create_user_profiles.down.sql")

	up, err := fs.ReadFile(migrationFiles, "migrations/000001_create_user_profiles.up.sql")
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(up), "user_profiles"))
	assert.Contains(t, string(up), "id         BIGINT PRIMARY KEY")
}
