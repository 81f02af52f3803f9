// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/MockSRE/services/profile/datatypes"
)

func profile(id int64) datatypes.Profile {
	return datatypes.Profile{
		ID:        id,
		Username:  fmt.Sprintf("user%02d", id),
		Email:     fmt.Sprintf("user%02d@example.com", id),
		CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestLookupCache_GetPut(t *testing.T) {
	c := New(Options{})
	defer c.Close()

	_, ok := c.Get(1)
	assert.False(t, ok)

	c.Put(1, profile(1))
	got, ok := c.Get(1)
	require.True(t, ok)
	assert.Equal(t, profile(1), got)
	assert.Equal(t, 1, c.Len())

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, uint64(1), stats.Insertions)
}

func TestLookupCache_PutIsUpsert(t *testing.T) {
	c := New(Options{})
	c.Put(1, profile(1))

	updated := profile(1)
	updated.Username = "renamed"
	c.Put(1, updated)

	got, ok := c.Get(1)
	require.True(t, ok)
	assert.Equal(t, "renamed", got.Username)
	assert.Equal(t, 1, c.Len())
}

func TestLookupCache_Clear(t *testing.T) {
	c := New(Options{})
	for i := int64(1); i <= 10; i++ {
		c.Put(i, profile(i))
	}
	require.Equal(t, 10, c.Len())

	c.Clear()
	assert.Equal(t, 0, c.Len())
	_, ok := c.Get(3)
	assert.False(t, ok)
}

func TestLookupCache_UnboundedByDefault(t *testing.T) {
	c := New(Options{})
	const n = 5000
	for i := int64(1); i <= n; i++ {
		c.Put(i, profile(i))
	}
	assert.Equal(t, n, c.Len())
	assert.Zero(t, c.Stats().Evictions)
}

func TestLookupCache_ExplicitCapacity(t *testing.T) {
	c := New(Options{Capacity: 2})
	c.Put(1, profile(1))
	c.Put(2, profile(2))
	c.Put(3, profile(3))

	assert.Equal(t, 2, c.Len())
	_, ok := c.Get(1)
	assert.False(t, ok, "oldest entry should be evicted once capacity is reached")
}

func TestLookupCache_ConcurrentSameKey(t *testing.T) {
	c := New(Options{})

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			p := profile(1)
			p.Username = fmt.Sprintf("writer%d", n)
			c.Put(1, p)
			_, _ = c.Get(1)
		}(i)
	}
	wg.Wait()

	got, ok := c.Get(1)
	require.True(t, ok)
	assert.Contains(t, got.Username, "writer")
	assert.Equal(t, 1, c.Len())
}
