// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package protokb

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/protokb/services/protokb/telemetry"
)

// DefaultBasePath is where the routes are mounted unless configured
// otherwise.
const DefaultBasePath = "/v1/protokb"

// RegisterRoutes registers the prototype server routes.
//
// Endpoints (relative to rg):
//
//	GET /prototypes - Definitions or fixpoints of prototypes
//	GET /health     - Liveness
//	GET /ready      - 503 until a knowledge base is loaded
//	GET /stats      - Load and ETag cache counters
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	rg.GET("/prototypes", handlers.HandleGetPrototypes)
	rg.GET("/health", handlers.HandleHealth)
	rg.GET("/ready", handlers.HandleReady)
	rg.GET("/stats", handlers.HandleStats)
}

// NewRouter builds the complete HTTP handler: recovery, tracing, the
// prototype routes under basePath and /metrics.
func NewRouter(handlers *Handlers, basePath string) *gin.Engine {
	if basePath == "" {
		basePath = DefaultBasePath
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("protokb"))

	RegisterRoutes(router.Group(basePath), handlers)

	var metrics http.Handler = promhttp.Handler()
	if h := telemetry.MetricsHandler(); h != nil {
		metrics = h
	}
	router.GET("/metrics", gin.WrapH(metrics))
	return router
}
