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
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
)

// SentryHub binds a per-request Sentry hub to the request context.
//
// # Description
//
// Tags, breadcrumbs and exceptions recorded through telemetry.SentrySink
// during the request land on this hub's scope, so they never leak into
// other requests. The request itself is attached to the scope. Panics are
// reported and then re-raised for gin's recovery middleware.
//
// When Sentry is not initialised the cloned hub has no client and every
// call on it is a no-op.
//
// # Outputs
//
//   - gin.HandlerFunc: Middleware ready for router.Use.
//
// # Thread Safety
//
// Thread-safe. Each request gets its own hub clone.
func SentryHub() gin.HandlerFunc {
	return func(c *gin.Context) {
		hub := sentry.GetHubFromContext(c.Request.Context())
		if hub == nil {
			hub = sentry.CurrentHub().Clone()
		}
		hub.Scope().SetRequest(c.Request)
		if id := GetRequestID(c); id != "" {
			hub.Scope().SetTag("request_id", id)
		}

		ctx := sentry.SetHubOnContext(c.Request.Context(), hub)
		c.Request = c.Request.WithContext(ctx)

		defer func() {
			if r := recover(); r != nil {
				if r != http.ErrAbortHandler {
					hub.RecoverWithContext(ctx, r)
				}
				panic(r)
			}
		}()
		c.Next()
	}
}
