// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package seed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/MockSRE/services/profile/datatypes"
	"github.com/AleutianAI/MockSRE/services/profile/store"
)

func memoryStore(t *testing.T) *store.BadgerStore {
	t.Helper()
	s, err := store.OpenBadger(store.InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestDemoProfiles(t *testing.T) {
	profiles := DemoProfiles(DefaultCount)
	require.Len(t, profiles, 10)

	first, last := profiles[0], profiles[9]
	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, "user01", first.Username)
	assert.Equal(t, "user01@example.com", first.Email)
	assert.Equal(t, "Bio for user 01", *first.Bio)
	assert.Equal(t, "user10", last.Username)

	for _, p := range profiles {
		assert.NoError(t, p.Validate())
	}
}

func TestSeed_Idempotent(t *testing.T) {
	s := memoryStore(t)
	ctx := context.Background()

	first, err := Seed(ctx, s, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, Report{Inserted: 10, Existing: 0}, first)
	assert.Equal(t, "Seed complete: 10 rows inserted, 0 already existed.", first.String())

	second, err := Seed(ctx, s, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, Report{Inserted: 0, Existing: 10}, second)

	p, err := s.FindByID(ctx, 7)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "user07", p.Username)
	assert.False(t, p.CreatedAt.IsZero())
}

func TestSeed_DoesNotOverwrite(t *testing.T) {
	s := memoryStore(t)
	ctx := context.Background()

	custom := []datatypes.Profile{{ID: 1, Username: "testuser", Email: "testuser@example.com"}}
	report, err := Seed(ctx, s, custom, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Inserted)

	report, err = Seed(ctx, s, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, Report{Inserted: 9, Existing: 1}, report)

	p, err := s.FindByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "testuser", p.Username)
}

func TestSeed_StopsOnInvalidProfile(t *testing.T) {
	s := memoryStore(t)

	profiles := []datatypes.Profile{
		{ID: 1, Username: "ok", Email: "ok@example.com"},
		{ID: 2, Username: "bad", Email: "not-an-email"},
		{ID: 3, Username: "never", Email: "never@example.com"},
	}
	report, err := Seed(context.Background(), s, profiles, nil)
	require.Error(t, err)
	assert.Equal(t, 1, report.Inserted)
}
