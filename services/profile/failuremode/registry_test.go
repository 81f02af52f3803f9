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
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/MockSRE/services/profile/telemetry"
)

func newDemoRegistry(t *testing.T) (*ModeRegistry, *telemetry.Recorder) {
	t.Helper()
	rec := telemetry.NewRecorder()
	reg, err := NewRegistry(Options{Demo: true, Sink: rec})
	require.NoError(t, err)
	return reg, rec
}

func TestNames_Sorted(t *testing.T) {
	assert.Equal(t, []string{"cache_off", "combined", "none", "pool_saturation", "slow_query"}, Names())
	assert.Len(t, Modes(), 5)
}

func TestParseMode(t *testing.T) {
	for _, m := range Modes() {
		got, err := ParseMode(string(m))
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}

	for _, bad := range []string{"", "bogus", "NONE", "cache-off"} {
		_, err := ParseMode(bad)
		assert.ErrorIs(t, err, ErrInvalidMode, "value %q", bad)
		var ime *InvalidModeError
		require.True(t, errors.As(err, &ime))
		assert.Equal(t, bad, ime.Value)
	}
}

func TestNewRegistry_DefaultsToNone(t *testing.T) {
	reg, _ := newDemoRegistry(t)
	assert.Equal(t, None, reg.Get())
	assert.Equal(t, None, reg.Snapshot().Mode)
	assert.False(t, reg.Snapshot().ChangedAt.IsZero())
}

func TestNewRegistry_InitialMode(t *testing.T) {
	reg, err := NewRegistry(Options{Initial: SlowQuery})
	require.NoError(t, err)
	assert.Equal(t, SlowQuery, reg.Get())

	_, err = NewRegistry(Options{Initial: "chaos"})
	assert.ErrorIs(t, err, ErrInvalidMode)
}

func TestSet_ValidModeTagsAndNotifies(t *testing.T) {
	var transitions [][2]Mode
	rec := telemetry.NewRecorder()
	reg, err := NewRegistry(Options{
		Demo: true,
		Sink: rec,
		OnChange: func(from, to Mode) {
			transitions = append(transitions, [2]Mode{from, to})
		},
	})
	require.NoError(t, err)

	require.NoError(t, reg.Set(context.Background(), PoolSaturation))
	require.NoError(t, reg.Set(context.Background(), CacheOff))

	assert.Equal(t, CacheOff, reg.Get())
	assert.Equal(t, []string{"pool_saturation", "cache_off"}, rec.TagValues(TagKey))
	assert.Equal(t, [][2]Mode{{None, PoolSaturation}, {PoolSaturation, CacheOff}}, transitions)
}

func TestSet_InvalidModeLeavesStateAlone(t *testing.T) {
	reg, rec := newDemoRegistry(t)

	err := reg.Set(context.Background(), "bogus")
	assert.ErrorIs(t, err, ErrInvalidMode)
	assert.Equal(t, None, reg.Get())
	assert.Empty(t, rec.Tags())
}

func TestSet_ForbiddenOutsideDemo(t *testing.T) {
	rec := telemetry.NewRecorder()
	reg, err := NewRegistry(Options{Demo: false, Sink: rec})
	require.NoError(t, err)

	assert.ErrorIs(t, reg.Set(context.Background(), CacheOff), ErrForbidden)
	// Forbidden wins over validation.
	assert.ErrorIs(t, reg.Set(context.Background(), "bogus"), ErrForbidden)
	assert.Equal(t, None, reg.Get())
	assert.Empty(t, rec.Tags())
	assert.False(t, reg.Demo())
}

func TestReset(t *testing.T) {
	reg, _ := newDemoRegistry(t)
	require.NoError(t, reg.Set(context.Background(), Combined))
	reg.Reset()
	assert.Equal(t, None, reg.Get())
}

func TestRegistry_ConcurrentReadersAndWriter(t *testing.T) {
	reg, _ := newDemoRegistry(t)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				assert.True(t, reg.Get().Valid())
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for _, m := range Modes() {
			_ = reg.Set(context.Background(), m)
		}
	}()
	wg.Wait()

	assert.Equal(t, None, reg.Get())
}

func TestFixed(t *testing.T) {
	var r Registry = Fixed("legacy")
	assert.Equal(t, Mode("legacy"), r.Get())
	assert.ErrorIs(t, r.Set(context.Background(), None), ErrForbidden)
}
