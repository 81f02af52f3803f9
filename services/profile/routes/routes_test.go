// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"

	"github.com/AleutianAI/MockSRE/services/profile/dispatch"
	"github.com/AleutianAI/MockSRE/services/profile/failuremode"
)

// ============================================================================
// Test Setup
// ============================================================================

func init() {
	gin.SetMode(gin.TestMode)
}

type notFoundRetriever struct{}

func (notFoundRetriever) Retrieve(context.Context, int64) (dispatch.Result, error) {
	return dispatch.Result{Mode: failuremode.None}, nil
}

func (notFoundRetriever) Mode() failuremode.Mode { return failuremode.None }

func newRouter() *gin.Engine {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "routes_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	router := gin.New()
	SetupRoutes(router, Deps{
		Profiles:    notFoundRetriever{},
		Registry:    failuremode.Fixed(failuremode.None),
		Environment: "local",
		Gatherer:    reg,
	})
	return router
}

// ============================================================================
// SetupRoutes Tests
// ============================================================================

func TestSetupRoutes_RegistersEveryRoute(t *testing.T) {
	router := newRouter()

	want := []struct {
		method string
		path   string
	}{
		{"GET", "/health"},
		{"GET", "/metrics"},
		{"GET", "/api/users/profile/:id"},
		{"GET", "/admin/failure-mode"},
		{"POST", "/admin/failure-mode/:mode"},
	}

	routes := router.Routes()
	for _, expected := range want {
		found := false
		for _, r := range routes {
			if r.Method == expected.method && r.Path == expected.path {
				found = true
				break
			}
		}
		assert.True(t, found, "route %s %s not registered", expected.method, expected.path)
	}
}

func TestSetupRoutes_Metrics(t *testing.T) {
	router := newRouter()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "routes_test_total 1")
}

func TestSetupRoutes_ProfileAndAdmin(t *testing.T) {
	router := newRouter()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/users/profile/5", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "none", w.Header().Get("X-Failure-Mode"))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/admin/failure-mode/cache_off", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
}
