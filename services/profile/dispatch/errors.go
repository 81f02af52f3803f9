// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package dispatch

import (
	"errors"
	"fmt"

	"github.com/AleutianAI/MockSRE/services/profile/failuremode"
)

var (
	// ErrSimulatedExhaustion matches every *SimulatedExhaustionError.
	ErrSimulatedExhaustion = errors.New("simulated resource exhaustion")

	// ErrStoreFailure matches every *StoreError.
	ErrStoreFailure = errors.New("profile store failure")
)

const (
	// ExhaustionCause is the client-visible message of a simulated
	// pool exhaustion.
	ExhaustionCause = "pool timeout: all connections in use"

	poolSaturationStatement = "simulated pool saturation — connection pool exhausted"
	combinedStatement       = "simulated pool saturation under combined failure mode"
)

// SimulatedExhaustionError is the injected failure returned by the
// pool_saturation and combined modes.
//
// Error returns Cause, which is what API clients see. Statement is the
// operator-facing description that ends up in logs and telemetry.
type SimulatedExhaustionError struct {
	Mode      failuremode.Mode
	Statement string
	Cause     string
}

func newExhaustion(mode failuremode.Mode) *SimulatedExhaustionError {
	statement := poolSaturationStatement
	if mode == failuremode.Combined {
		statement = combinedStatement
	}
	return &SimulatedExhaustionError{
		Mode:      mode,
		Statement: statement,
		Cause:     ExhaustionCause,
	}
}

func (e *SimulatedExhaustionError) Error() string {
	return e.Cause
}

// Is reports whether target is ErrSimulatedExhaustion.
func (e *SimulatedExhaustionError) Is(target error) bool {
	return target == ErrSimulatedExhaustion
}

// StoreError wraps a failure reported by the profile store. The message
// is the store's own, unchanged.
type StoreError struct {
	ID  int64
	Err error
}

func (e *StoreError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("profile store failure for id %d", e.ID)
	}
	return e.Err.Error()
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrStoreFailure.
func (e *StoreError) Is(target error) bool {
	return target == ErrStoreFailure
}
