// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cache provides the in-process profile lookup cache.
//
// # Description
//
// The cache maps profile IDs to records returned by the store. By default it
// is unbounded and entries live for the life of the process. Nothing in the
// service invalidates an entry; Clear exists for tests.
//
// An explicit Capacity or TTL may be configured to bound memory. Neither is
// enabled by default and callers must not rely on eviction happening.
//
// # Thread Safety
//
// All methods are safe for concurrent use. Concurrent Puts of the same key
// are last-write-wins.
package cache

import (
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/AleutianAI/MockSRE/services/profile/datatypes"
)

// Options bounds the cache. The zero value is unbounded with no expiry.
type Options struct {
	// Capacity caps the number of entries. Zero means unbounded.
	Capacity uint64

	// TTL expires entries after the given duration. Zero means never.
	TTL time.Duration
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Insertions uint64
	Hits       uint64
	Misses     uint64
	Evictions  uint64
}

// LookupCache is the profile cache.
type LookupCache struct {
	items    *ttlcache.Cache[int64, datatypes.Profile]
	expiring bool
}

// New creates a LookupCache.
//
// # Inputs
//
//   - opts: Optional bounds. Use Options{} for the unbounded default.
//
// # Outputs
//
//   - *LookupCache: Ready cache. Call Close when a TTL is configured.
//
// # Examples
//
//	c := cache.New(cache.Options{})
//	c.Put(1, profile)
//	p, ok := c.Get(1)
func New(opts Options) *LookupCache {
	cacheOpts := []ttlcache.Option[int64, datatypes.Profile]{
		ttlcache.WithDisableTouchOnHit[int64, datatypes.Profile](),
	}
	if opts.Capacity > 0 {
		cacheOpts = append(cacheOpts, ttlcache.WithCapacity[int64, datatypes.Profile](opts.Capacity))
	}
	if opts.TTL > 0 {
		cacheOpts = append(cacheOpts, ttlcache.WithTTL[int64, datatypes.Profile](opts.TTL))
	}

	c := &LookupCache{items: ttlcache.New(cacheOpts...)}
	if opts.TTL > 0 {
		c.expiring = true
		go c.items.Start()
	}
	return c
}

// Get returns the cached profile for id without touching the store.
func (c *LookupCache) Get(id int64) (datatypes.Profile, bool) {
	item := c.items.Get(id)
	if item == nil {
		return datatypes.Profile{}, false
	}
	return item.Value(), true
}

// Put stores p under id, replacing any previous entry.
func (c *LookupCache) Put(id int64, p datatypes.Profile) {
	c.items.Set(id, p, ttlcache.DefaultTTL)
}

// Clear removes every entry. Counters are kept.
func (c *LookupCache) Clear() {
	c.items.DeleteAll()
}

// Len returns the number of entries.
func (c *LookupCache) Len() int {
	return c.items.Len()
}

// Stats returns the cache counters.
func (c *LookupCache) Stats() Stats {
	m := c.items.Metrics()
	return Stats{
		Insertions: m.Insertions,
		Hits:       m.Hits,
		Misses:     m.Misses,
		Evictions:  m.Evictions,
	}
}

// Close stops the expiry loop started for a TTL-bounded cache.
func (c *LookupCache) Close() {
	if c.expiring {
		c.items.Stop()
	}
}
