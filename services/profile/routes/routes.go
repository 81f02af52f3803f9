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
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/MockSRE/services/profile/failuremode"
	"github.com/AleutianAI/MockSRE/services/profile/handlers"
)

// Deps is everything the routes need.
type Deps struct {
	Profiles    handlers.ProfileRetriever
	Registry    failuremode.Registry
	Environment string

	// Gatherer backs /metrics. Nil uses the default Prometheus registry.
	Gatherer prometheus.Gatherer
}

func SetupRoutes(router *gin.Engine, deps Deps) {
	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(metricsHandler(deps.Gatherer)))

	api := router.Group("/api")
	{
		api.GET("/users/profile/:id", handlers.GetProfile(deps.Profiles))
	}

	admin := router.Group("/admin")
	{
		admin.GET("/failure-mode", handlers.GetFailureMode(deps.Registry, deps.Environment))
		admin.POST("/failure-mode/:mode", handlers.SetFailureMode(deps.Registry))
	}
}

func metricsHandler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
