// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// FailureModeHeader carries the failure mode a profile request ran under.
const FailureModeHeader = "X-Failure-Mode"

// RequestLogger logs one line per request once the handler has finished.
//
// # Description
//
// Logs method, route, status, latency, request id and the failure mode
// reported in the X-Failure-Mode response header. 5xx responses log at
// Error, 4xx at Warn, everything else at Info.
//
// # Inputs
//
//   - logger: Destination. Nil uses slog.Default().
//
// # Outputs
//
//   - gin.HandlerFunc: Middleware ready for router.Use.
func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		attrs := []slog.Attr{
			slog.String("method", c.Request.Method),
			slog.String("route", route),
			slog.Int("status", status),
			slog.Duration("latency", time.Since(start)),
			slog.String("request_id", GetRequestID(c)),
		}
		if mode := c.Writer.Header().Get(FailureModeHeader); mode != "" {
			attrs = append(attrs, slog.String("failure_mode", mode))
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, slog.String("errors", c.Errors.String()))
		}

		level := slog.LevelInfo
		switch {
		case status >= http.StatusInternalServerError:
			level = slog.LevelError
		case status >= http.StatusBadRequest:
			level = slog.LevelWarn
		}
		logger.LogAttrs(c.Request.Context(), level, "request completed", attrs...)
	}
}
