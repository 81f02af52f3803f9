// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package seed loads the demo user profiles into a store.
package seed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/AleutianAI/MockSRE/services/profile/datatypes"
	"github.com/AleutianAI/MockSRE/services/profile/store"
)

// DefaultCount is the number of demo users.
const DefaultCount = 10

// Report summarises a seeding run.
type Report struct {
	Inserted int `json:"inserted"`
	Existing int `json:"existing"`
}

// String renders the report the way the seed command prints it.
func (r Report) String() string {
	return fmt.Sprintf("Seed complete: %d rows inserted, %d already existed.", r.Inserted, r.Existing)
}

// DemoProfiles returns users 1..n as user01, user01@example.com and
// "Bio for user 01". CreatedAt is left zero so the store stamps it.
func DemoProfiles(n int) []datatypes.Profile {
	profiles := make([]datatypes.Profile, 0, n)
	for i := 1; i <= n; i++ {
		profiles = append(profiles, datatypes.Profile{
			ID:       int64(i),
			Username: fmt.Sprintf("user%02d", i),
			Email:    fmt.Sprintf("user%02d@example.com", i),
			Bio:      datatypes.StringPtr(fmt.Sprintf("Bio for user %02d", i)),
		})
	}
	return profiles
}

// Seed ensures the schema exists and inserts every profile not already
// present. Existing rows are never modified, so running it twice is safe.
//
// # Inputs
//
//   - ctx: Context for store calls.
//   - s: Target store.
//   - profiles: Rows to insert. Nil means DemoProfiles(DefaultCount).
//   - logger: Nil uses slog.Default().
//
// # Outputs
//
//   - Report: Counts of inserted and already-present rows.
//   - error: First schema or insert failure. The report covers the rows
//     processed before it.
func Seed(ctx context.Context, s store.Store, profiles []datatypes.Profile, logger *slog.Logger) (Report, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if profiles == nil {
		profiles = DemoProfiles(DefaultCount)
	}

	var report Report
	if err := s.EnsureSchema(ctx); err != nil {
		return report, fmt.Errorf("ensure schema: %w", err)
	}

	for _, p := range profiles {
		inserted, err := s.InsertIfAbsent(ctx, p)
		if err != nil {
			return report, fmt.Errorf("seed profile %d: %w", p.ID, err)
		}
		if inserted {
			report.Inserted++
		} else {
			report.Existing++
		}
	}

	logger.Info("profiles seeded", "inserted", report.Inserted, "existing", report.Existing)
	return report, nil
}
