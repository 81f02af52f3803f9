// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes holds the profile record and the JSON shapes served by
// the profile service.
package datatypes

import (
	"fmt"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/go-playground/validator/v10"
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

var profileValidate = validator.New(validator.WithRequiredStructEnabled())

// =============================================================================
// Profile Record
// =============================================================================

// Profile is a user profile as owned by the profile store.
//
// # Description
//
// Profiles are immutable once created. The cache and the dispatcher hold
// copies and never write back.
//
// # Fields
//
//   - ID: Unique positive identifier.
//   - Username: Required, at most 255 characters.
//   - Email: Required, valid address, at most 255 characters.
//   - Bio: Optional free text. Nil when absent.
//   - CreatedAt: Creation instant in UTC.
type Profile struct {
	ID        int64     `json:"id" validate:"gt=0"`
	Username  string    `json:"username" validate:"required,max=255"`
	Email     string    `json:"email" validate:"required,email,max=255"`
	Bio       *string   `json:"bio,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks the struct tags on p.
//
// # Outputs
//
//   - error: Nil when valid, otherwise wraps validator.ValidationErrors.
func (p Profile) Validate() error {
	if err := profileValidate.Struct(p); err != nil {
		return fmt.Errorf("invalid profile %d: %w", p.ID, err)
	}
	return nil
}

// StringPtr returns a pointer to s. Convenience for building Bio values.
func StringPtr(s string) *string {
	return &s
}

// =============================================================================
// Response Types
// =============================================================================

// ProfileResponse is the body of a successful profile lookup.
//
// Bio serialises as null when absent. CreatedAt uses RFC 3339 with
// millisecond precision.
type ProfileResponse struct {
	ID        int64           `json:"id"`
	Username  string          `json:"username"`
	Email     string          `json:"email"`
	Bio       *string         `json:"bio"`
	CreatedAt strfmt.DateTime `json:"created_at"`
}

// NewProfileResponse converts a store record into its response shape.
func NewProfileResponse(p Profile) ProfileResponse {
	return ProfileResponse{
		ID:        p.ID,
		Username:  p.Username,
		Email:     p.Email,
		Bio:       p.Bio,
		CreatedAt: strfmt.DateTime(p.CreatedAt.UTC()),
	}
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// FailureModeResponse is the body of a successful mode change.
type FailureModeResponse struct {
	FailureMode string `json:"failure_mode"`
}

// FailureModeStatus is the body of GET /admin/failure-mode.
type FailureModeStatus struct {
	FailureMode string   `json:"failure_mode"`
	ValidModes  []string `json:"valid_modes"`
	Environment string   `json:"environment"`
	AdminOpen   bool     `json:"admin_enabled"`
}
