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
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	// requestsTotal counts prototype requests by outcome.
	// Labels: "ok", "not_modified", "missing_id", "invalid_id", "not_found", "not_ready", "error"
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "protokb_prototype_requests_total",
		Help: "Prototype requests by outcome",
	}, []string{"result"})

	lookupDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "protokb_lookup_duration_seconds",
		Help:    "Time to resolve the prototypes of one request",
		Buckets: []float64{0.00001, 0.0001, 0.001, 0.01, 0.1, 1},
	})

	// etagChecks counts If-None-Match evaluations.
	// Labels: "match", "mismatch"
	etagChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "protokb_etag_checks_total",
		Help: "If-None-Match evaluations by result",
	}, []string{"result"})

	// reloadsTotal counts knowledge base loads.
	// Labels: "success", "failure"
	reloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "protokb_reloads_total",
		Help: "Knowledge base loads by result",
	}, []string{"result"})

	servedPrototypes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "protokb_served_prototypes",
		Help: "Local prototypes in the served knowledge base",
	})
)

var (
	tracer      trace.Tracer
	meter       metric.Meter
	metricsOnce sync.Once

	fixpointCounter metric.Int64Counter
)

// initMetrics binds the OTel instruments to the global providers. It runs
// lazily so that telemetry.Init can install providers first.
func initMetrics() {
	metricsOnce.Do(func() {
		tracer = otel.Tracer("protokb.service")
		meter = otel.Meter("protokb.service")

		var err error
		fixpointCounter, err = meter.Int64Counter("protokb.fixpoint.computations",
			metric.WithDescription("Fixpoints computed for requests"))
		if err != nil {
			fixpointCounter = nil
		}
	})
}

func startLookupSpan(ctx context.Context, ids int, fixpoint bool) (context.Context, trace.Span) {
	initMetrics()
	return tracer.Start(ctx, "protokb.Lookup", trace.WithAttributes(
		attribute.Int("protokb.ids", ids),
		attribute.Bool("protokb.fixpoint", fixpoint),
	))
}

func startReloadSpan(ctx context.Context, sources int) (context.Context, trace.Span) {
	initMetrics()
	return tracer.Start(ctx, "protokb.Reload", trace.WithAttributes(
		attribute.Int("protokb.sources", sources),
	))
}

func recordFixPoints(ctx context.Context, n int) {
	initMetrics()
	if fixpointCounter != nil {
		fixpointCounter.Add(ctx, int64(n))
	}
}
