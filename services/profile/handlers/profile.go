// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers turns HTTP requests into dispatcher and registry calls.
//
// This is the only place error kinds become status codes:
//
//	not found                 404 "User not found"
//	simulated exhaustion      500 with the exhaustion cause
//	store failure             500 with the store's message
//	anything else             500 "Internal server error"
//	non-integer id            422
//	invalid failure mode      400 listing the valid modes
//	admin outside demo        403
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/MockSRE/services/profile/datatypes"
	"github.com/AleutianAI/MockSRE/services/profile/dispatch"
	"github.com/AleutianAI/MockSRE/services/profile/failuremode"
	"github.com/AleutianAI/MockSRE/services/profile/middleware"
)

const (
	detailNotFound      = "User not found"
	detailInternalError = "Internal server error"
	detailInvalidID     = "Invalid user id: must be an integer"
)

// ProfileRetriever is the slice of the dispatcher GetProfile needs.
type ProfileRetriever interface {
	// Retrieve looks a profile up under the active failure mode.
	Retrieve(ctx context.Context, id int64) (dispatch.Result, error)

	// Mode returns the active failure mode.
	Mode() failuremode.Mode
}

// GetProfile handles GET /api/users/profile/:id.
//
// # Description
//
// Every response carries X-Failure-Mode with the mode the request was
// dispatched under. A request rejected before dispatch (non-integer id)
// carries the mode active at the time of rejection.
//
// # Inputs
//
//   - r: The profile dispatcher.
//
// # Outputs
//
//   - gin.HandlerFunc: Handler returning a ProfileResponse or ErrorResponse.
func GetProfile(r ProfileRetriever) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.Header(middleware.FailureModeHeader, r.Mode().String())
			c.JSON(http.StatusUnprocessableEntity, datatypes.ErrorResponse{Detail: detailInvalidID})
			return
		}

		res, err := r.Retrieve(c.Request.Context(), id)
		c.Header(middleware.FailureModeHeader, res.Mode.String())

		if err != nil {
			_ = c.Error(err)
			status, detail := classify(err)
			c.JSON(status, datatypes.ErrorResponse{Detail: detail})
			return
		}
		if !res.Found {
			c.JSON(http.StatusNotFound, datatypes.ErrorResponse{Detail: detailNotFound})
			return
		}
		c.JSON(http.StatusOK, datatypes.NewProfileResponse(*res.Profile))
	}
}

// classify maps a dispatcher error to a status and client-visible detail.
func classify(err error) (int, string) {
	var exhausted *dispatch.SimulatedExhaustionError
	if errors.As(err, &exhausted) {
		return http.StatusInternalServerError, exhausted.Cause
	}
	var storeErr *dispatch.StoreError
	if errors.As(err, &storeErr) {
		return http.StatusInternalServerError, storeErr.Error()
	}
	slog.Error("unexpected profile lookup failure", "error", err)
	return http.StatusInternalServerError, detailInternalError
}
