// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/MockSRE/services/profile/datatypes"
	"github.com/AleutianAI/MockSRE/services/profile/failuremode"
)

const detailForbidden = "Only available in demo environment"

// invalidModeDetail lists the valid modes, sorted.
func invalidModeDetail() string {
	return "Invalid mode. Choose from: " + strings.Join(failuremode.Names(), ", ")
}

// SetFailureMode handles POST /admin/failure-mode/:mode.
//
// # Description
//
// Outside the demo environment every request is rejected with 403, even
// for an invalid mode. In demo, an invalid mode is rejected with 400 and
// a valid one takes effect for every request dispatched afterwards.
//
// # Inputs
//
//   - reg: The process-wide failure mode registry.
//
// # Outputs
//
//   - gin.HandlerFunc: Handler returning a FailureModeResponse or ErrorResponse.
func SetFailureMode(reg failuremode.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		mode := failuremode.Mode(c.Param("mode"))

		err := reg.Set(c.Request.Context(), mode)
		switch {
		case errors.Is(err, failuremode.ErrForbidden):
			c.JSON(http.StatusForbidden, datatypes.ErrorResponse{Detail: detailForbidden})
		case errors.Is(err, failuremode.ErrInvalidMode):
			c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{Detail: invalidModeDetail()})
		case err != nil:
			slog.Error("failure mode change failed", "mode", mode, "error", err)
			c.JSON(http.StatusInternalServerError, datatypes.ErrorResponse{Detail: detailInternalError})
		default:
			c.JSON(http.StatusOK, datatypes.FailureModeResponse{FailureMode: mode.String()})
		}
	}
}

// GetFailureMode handles GET /admin/failure-mode. It is readable in every
// environment.
func GetFailureMode(reg failuremode.Registry, environment string) gin.HandlerFunc {
	adminOpen := false
	if d, ok := reg.(interface{ Demo() bool }); ok {
		adminOpen = d.Demo()
	}
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, datatypes.FailureModeStatus{
			FailureMode: reg.Get().String(),
			ValidModes:  failuremode.Names(),
			Environment: environment,
			AdminOpen:   adminOpen,
		})
	}
}
