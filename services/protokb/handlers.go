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
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/protokb/services/protokb/codec"
	kb "github.com/AleutianAI/protokb/services/protokb/knowledgebase"
	"github.com/AleutianAI/protokb/services/protokb/remote"
	"github.com/AleutianAI/protokb/services/protokb/telemetry"
)

// Handlers contains the HTTP handlers for the prototype server.
//
// Thread Safety: Safe for concurrent use.
type Handlers struct {
	svc *Service
}

// NewHandlers creates handlers serving svc.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// HandleGetPrototypes handles GET /v1/protokb/prototypes.
//
// Description:
//
//	Returns the definitions, or with fp=true the fixpoints, of the
//	prototypes named by the p parameters. The representation follows the
//	Accept header: JSON by default, or the line format.
//
//	For definitions, Cache-Control carries the smallest max-age of the
//	requested prototypes. A response holding a single prototype also
//	carries an ETag and one Link header per alternate location; an
//	If-None-Match naming a tag minted for an equal prototype yields 304.
//
// Query Parameters:
//
//	p: Prototype IRI. Required, repeatable.
//	fp: "true" to request fixpoints.
//
// Response:
//
//	200 OK: One prototype, or a list for several p values
//	304 Not Modified: If-None-Match still matches
//	400 Bad Request: Missing or malformed p
//	404 Not Found: Some requested prototype is not defined
//	503 Service Unavailable: No knowledge base loaded yet
func (h *Handlers) HandleGetPrototypes(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleGetPrototypes")
	logger = telemetry.LoggerWithTrace(c.Request.Context(), logger)

	var q PrototypeQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		requestsTotal.WithLabelValues("missing_id").Inc()
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing p parameter naming the requested prototype",
			Code:    CodeMissingID,
			Details: err.Error(),
		})
		return
	}

	ids := make([]kb.ID, 0, len(q.IDs))
	for _, raw := range q.IDs {
		id, err := kb.NewID(raw)
		if err != nil {
			requestsTotal.WithLabelValues("invalid_id").Inc()
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   fmt.Sprintf("parameter p with value %q is not an IRI", raw),
				Code:    CodeInvalidID,
				Details: err.Error(),
			})
			return
		}
		ids = append(ids, id)
	}

	fixpoint := q.WantsFixPoint()
	res, err := h.svc.Lookup(c.Request.Context(), ids, fixpoint)
	if err != nil {
		h.writeLookupError(c, logger, err)
		return
	}

	cd := negotiate(c)
	if !fixpoint && res.MaxAge > 0 {
		c.Header("Cache-Control", "public, max-age="+strconv.FormatInt(int64(res.MaxAge.Seconds()), 10))
	}

	if len(res.Prototypes) > 1 {
		requestsTotal.WithLabelValues("ok").Inc()
		c.Status(http.StatusOK)
		c.Header("Content-Type", cd.ContentType()+"; charset=utf-8")
		if err := cd.Serialize(c.Writer, res.Prototypes); err != nil {
			logger.Error("failed to write prototypes", "error", err)
		}
		return
	}

	p := res.Prototypes[0]
	for _, alt := range h.svc.Alternates(p.ID()) {
		c.Writer.Header().Add("Link", remote.FormatAlternate(alt))
	}

	for _, token := range parseETags(c.GetHeader("If-None-Match")) {
		if h.svc.Revalidate(token, p) {
			requestsTotal.WithLabelValues("not_modified").Inc()
			c.Header("ETag", quoteETag(token))
			c.Status(http.StatusNotModified)
			return
		}
	}

	c.Header("ETag", quoteETag(h.svc.MintETag(p)))
	c.Header("Content-Type", cd.ContentType()+"; charset=utf-8")
	c.Status(http.StatusOK)
	requestsTotal.WithLabelValues("ok").Inc()
	if err := cd.SerializeOne(c.Writer, p); err != nil {
		logger.Error("failed to write prototype", "id", p.ID().String(), "error", err)
	}
}

func (h *Handlers) writeLookupError(c *gin.Context, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, ErrNotReady):
		requestsTotal.WithLabelValues("not_ready").Inc()
		c.Header("Retry-After", "5")
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: err.Error(), Code: CodeNotReady})
	case errors.Is(err, kb.ErrNotDefined):
		requestsTotal.WithLabelValues("not_found").Inc()
		logger.Debug("prototype not found", "error", err)
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: CodeNotFound})
	default:
		requestsTotal.WithLabelValues("error").Inc()
		logger.Error("fixpoint computation failed", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: CodeFixPointFailed})
	}
}

// HandleHealth handles GET /v1/protokb/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: ServiceVersion,
	})
}

// HandleReady handles GET /v1/protokb/ready.
//
// Response:
//
//	200 OK: ReadyResponse (Ready=true)
//	503 Service Unavailable: ReadyResponse (Ready=false) before the first load
func (h *Handlers) HandleReady(c *gin.Context) {
	base := h.svc.Base()
	if base == nil {
		c.Header("Retry-After", "5")
		c.JSON(http.StatusServiceUnavailable, ReadyResponse{})
		return
	}
	c.JSON(http.StatusOK, ReadyResponse{
		Ready:      true,
		Prototypes: base.Len(),
		Generation: h.svc.Generation(),
	})
}

// HandleStats handles GET /v1/protokb/stats.
func (h *Handlers) HandleStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Stats())
}

// negotiate picks the codec for the response from the Accept header,
// defaulting to JSON.
func negotiate(c *gin.Context) codec.Codec {
	offered := append(codec.ContentTypes(), "text/plain")
	format := c.NegotiateFormat(offered...)
	if cd, err := codec.ByContentType(format); err == nil {
		return cd
	}
	return codec.JSON
}

// parseETags splits an If-None-Match value into bare tokens.
func parseETags(header string) []string {
	if header == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		part = strings.TrimPrefix(part, "W/")
		part = strings.Trim(part, `"`)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func quoteETag(token string) string {
	return `"` + token + `"`
}

// getOrCreateRequestID returns the X-Request-ID header or generates one.
func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}
