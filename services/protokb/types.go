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
	"time"

	"github.com/AleutianAI/protokb/services/protokb/cache"
)

// ServiceVersion is reported by the health endpoint.
const ServiceVersion = "0.1.0"

// PrototypeQuery binds the query string of GET /v1/protokb/prototypes.
type PrototypeQuery struct {
	// IDs are the requested identifiers. At least one is required.
	IDs []string `form:"p" binding:"required,min=1,dive,required"`

	// FixPoint is "true" to ask for fixpoints instead of definitions. Any
	// other value asks for definitions.
	FixPoint string `form:"fp"`
}

// WantsFixPoint reports whether fixpoints were requested.
func (q PrototypeQuery) WantsFixPoint() bool {
	return q.FixPoint == "true"
}

// HealthResponse is the response for GET /v1/protokb/health.
type HealthResponse struct {
	// Status is "healthy".
	Status string `json:"status"`

	// Version is the service version.
	Version string `json:"version"`
}

// ReadyResponse is the response for GET /v1/protokb/ready.
type ReadyResponse struct {
	// Ready is true once a knowledge base is being served.
	Ready bool `json:"ready"`

	// Prototypes is the number of local prototypes served.
	Prototypes int `json:"prototypes"`

	// Generation counts successful loads.
	Generation uint64 `json:"generation"`
}

// StatsResponse is the response for GET /v1/protokb/stats.
type StatsResponse struct {
	Prototypes   int         `json:"prototypes"`
	Generation   uint64      `json:"generation"`
	LoadedAt     *time.Time  `json:"loaded_at,omitempty"`
	ReloadErrors int64       `json:"reload_errors"`
	LastError    string      `json:"last_error,omitempty"`
	ETags        cache.Stats `json:"etags"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is a stable machine-readable error code.
	Code string `json:"code,omitempty"`

	// Details provides additional context (optional).
	Details string `json:"details,omitempty"`
}
