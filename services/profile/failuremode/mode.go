// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package failuremode holds the process-wide failure mode that steers every
// profile lookup.
//
// # Description
//
// Exactly one Mode is active at any instant. It is read once at the start of
// each lookup and changed only through the administrative Set operation,
// which is refused outside the demo environment.
//
// # Thread Safety
//
// ModeRegistry is lock-free for readers. Concurrent Set calls are
// last-write-wins.
package failuremode

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Mode names one deterministic data-access behaviour.
type Mode string

const (
	// None reads through the in-process cache.
	None Mode = "none"

	// CacheOff bypasses the cache and queries the store directly.
	CacheOff Mode = "cache_off"

	// SlowQuery delays before querying the store.
	SlowQuery Mode = "slow_query"

	// PoolSaturation holds a simulated connection and then fails.
	PoolSaturation Mode = "pool_saturation"

	// Combined bypasses the cache, delays, and then fails.
	Combined Mode = "combined"
)

var allModes = []Mode{None, CacheOff, SlowQuery, PoolSaturation, Combined}

// Modes returns every valid mode in declaration order.
func Modes() []Mode {
	return append([]Mode(nil), allModes...)
}

// Names returns every valid mode name sorted alphabetically.
func Names() []string {
	out := make([]string, len(allModes))
	for i, m := range allModes {
		out[i] = string(m)
	}
	sort.Strings(out)
	return out
}

// Valid reports whether m is one of the enumerated modes.
func (m Mode) Valid() bool {
	for _, v := range allModes {
		if m == v {
			return true
		}
	}
	return false
}

func (m Mode) String() string { return string(m) }

// ParseMode validates s and returns it as a Mode.
//
// # Outputs
//
//   - Mode: The parsed mode.
//   - error: *InvalidModeError (matching ErrInvalidMode) when s is not valid.
func ParseMode(s string) (Mode, error) {
	m := Mode(s)
	if !m.Valid() {
		return "", &InvalidModeError{Value: s}
	}
	return m, nil
}

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrInvalidMode matches any *InvalidModeError.
	ErrInvalidMode = errors.New("invalid failure mode")

	// ErrForbidden is returned by Set outside the demo environment.
	ErrForbidden = errors.New("failure mode changes are only available in the demo environment")
)

// InvalidModeError reports a mode value outside the enumeration.
type InvalidModeError struct {
	Value string
}

func (e *InvalidModeError) Error() string {
	return fmt.Sprintf("invalid failure mode %q: choose from %s", e.Value, strings.Join(Names(), ", "))
}

// Is makes errors.Is(err, ErrInvalidMode) hold.
func (e *InvalidModeError) Is(target error) bool {
	return target == ErrInvalidMode
}
