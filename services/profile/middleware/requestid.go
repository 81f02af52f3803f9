// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package middleware provides gin middleware for the profile service.
//
// # Request Flow
//
//	Request
//	   │
//	   ▼
//	RequestID ──► X-Request-ID echoed, id stored in gin context
//	   │
//	   ▼
//	SentryHub ──► per-request hub bound to the request context
//	   │
//	   ▼
//	RequestLogger ──► one log line per request after the handler ran
//	   │
//	   ▼
//	Handler
package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDHeader is read from the request and echoed on the response.
const RequestIDHeader = "X-Request-ID"

// requestIDKey is the gin context key for the request id.
const requestIDKey = "mocksre_request_id"

// RequestID assigns every request an id.
//
// # Description
//
// Reuses the caller's X-Request-ID when present, otherwise generates a
// UUID. The id is echoed in the response header and stored for
// GetRequestID.
//
// # Outputs
//
//   - gin.HandlerFunc: Middleware ready for router.Use.
//
// # Thread Safety
//
// Thread-safe. The returned middleware can be used concurrently.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// GetRequestID returns the id stored by RequestID, or "" if the middleware
// did not run.
func GetRequestID(c *gin.Context) string {
	if v, ok := c.Get(requestIDKey); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}
