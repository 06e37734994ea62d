// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package remote provides a knowledge base backed by a prototype server.
//
// A Client can be used anywhere a knowledgebase.Base is expected, most
// usefully as the external base of a local knowledge base, so that
// prototypes not defined locally are fetched over HTTP.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/protokb/services/protokb/cache"
	"github.com/AleutianAI/protokb/services/protokb/codec"
	kb "github.com/AleutianAI/protokb/services/protokb/knowledgebase"
)

var (
	// ErrUnexpectedStatus is returned for responses other than 200, 304 and 404.
	ErrUnexpectedStatus = errors.New("unexpected response status")

	// ErrUnexpectedPrototype is returned when the server answers with a
	// prototype other than the one requested.
	ErrUnexpectedPrototype = errors.New("server returned a different prototype")
)

// Defaults for NewClient.
const (
	DefaultTimeout       = 30 * time.Second
	DefaultCacheCapacity = 10000
)

// Result is a fetched prototype together with the alternate locations the
// server advertised for it.
type Result struct {
	Prototype  *kb.Prototype
	Alternates []*url.URL
}

type cachedResult struct {
	result *Result
	etag   string
}

// Client fetches prototypes from a prototype server.
//
// Description:
//
//	Responses are cached by request URL. A response whose Cache-Control
//	max-age has not elapsed is served without I/O. A stale response that
//	carried an ETag is revalidated with If-None-Match. Concurrent requests
//	for the same URL share one round trip.
//
// Thread Safety: Safe for concurrent use.
type Client struct {
	endpoint *url.URL
	http     *http.Client
	codec    codec.Codec
	cache    *cache.LRU[string, cachedResult]
	group    singleflight.Group
	limiter  *rate.Limiter
	logger   *slog.Logger
	timeout  time.Duration
	tracer   trace.Tracer
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithCodec sets the preferred representation requested from the server.
func WithCodec(cd codec.Codec) Option {
	return func(c *Client) { c.codec = cd }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithCacheCapacity bounds the number of cached responses.
func WithCacheCapacity(n int) Option {
	return func(c *Client) { c.cache = cache.New[string, cachedResult](n) }
}

// WithRateLimit throttles outbound requests to rps per second with the
// given burst. A non-positive rps disables throttling.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
	}
}

// WithTimeout bounds each lookup made through IsDefined and ComputeFixPoint,
// and each round trip shared between concurrent callers. Zero means no
// bound beyond the callers' own contexts.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// NewClient creates a client for the prototypes endpoint of a server, for
// example "http://localhost:8080/v1/protokb/prototypes".
//
// Outputs:
//   - *Client: The client.
//   - error: Non-nil if endpoint is not an absolute http(s) URL.
func NewClient(endpoint string, opts ...Option) (*Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("endpoint %q: scheme must be http or https", endpoint)
	}

	c := &Client{
		endpoint: u,
		http:     &http.Client{},
		codec:    codec.JSON,
		cache:    cache.New[string, cachedResult](DefaultCacheCapacity),
		logger:   slog.Default(),
		timeout:  DefaultTimeout,
		tracer:   otel.Tracer("protokb.remote"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// IsDefined fetches id. Any failure, not only a 404, reports the
// prototype as not defined.
func (c *Client) IsDefined(id kb.ID) (*kb.Prototype, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	res, err := c.Fetch(ctx, id)
	if err != nil {
		if !errors.Is(err, kb.ErrNotDefined) {
			c.logger.Warn("remote lookup failed, treating prototype as undefined",
				slog.String("id", id.String()),
				slog.String("error", err.Error()))
		}
		return nil, false
	}
	return res.Prototype, true
}

// ComputeFixPoint asks the server for the fixpoint of id.
func (c *Client) ComputeFixPoint(id kb.ID) (*kb.Prototype, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	res, err := c.FetchFixPoint(ctx, id)
	if err != nil {
		return nil, err
	}
	return res.Prototype, nil
}

// Fetch retrieves the definition of id.
//
// Outputs:
//   - *Result: The prototype and its advertised alternates.
//   - error: Wraps knowledgebase.ErrNotDefined on 404, ErrUnexpectedStatus
//     on other non-success statuses, or a transport or decoding error.
func (c *Client) Fetch(ctx context.Context, id kb.ID) (*Result, error) {
	return c.fetch(ctx, id, false)
}

// FetchFixPoint retrieves the fixpoint of id.
func (c *Client) FetchFixPoint(ctx context.Context, id kb.ID) (*Result, error) {
	return c.fetch(ctx, id, true)
}

// CacheStats reports the response cache counters.
func (c *Client) CacheStats() cache.Stats {
	return c.cache.Stats()
}

// Close releases idle connections.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

func (c *Client) requestURL(id kb.ID, fixpoint bool) string {
	u := *c.endpoint
	q := u.Query()
	q.Set("p", id.String())
	if fixpoint {
		q.Set("fp", "true")
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func (c *Client) fetch(ctx context.Context, id kb.ID, fixpoint bool) (*Result, error) {
	target := c.requestURL(id, fixpoint)

	ctx, span := c.tracer.Start(ctx, "remote.Fetch", trace.WithAttributes(
		attribute.String("protokb.id", id.String()),
		attribute.Bool("protokb.fixpoint", fixpoint),
	))
	defer span.End()

	var stale *cachedResult
	if entry, fresh, ok := c.cache.Peek(target); ok {
		if fresh {
			span.SetAttributes(attribute.Bool("protokb.cache_hit", true))
			return entry.result, nil
		}
		stale = &entry
	}

	// The shared round trip must not inherit one caller's cancellation;
	// each caller stops waiting on its own context instead.
	flight := c.group.DoChan(target, func() (any, error) {
		fctx := context.WithoutCancel(ctx)
		if c.timeout > 0 {
			var cancel context.CancelFunc
			fctx, cancel = context.WithTimeout(fctx, c.timeout)
			defer cancel()
		}
		return c.roundTrip(fctx, target, stale)
	})

	var r singleflight.Result
	select {
	case <-ctx.Done():
		err := ctx.Err()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("fetch %s: %w", id, err)
	case r = <-flight:
	}
	span.SetAttributes(attribute.Bool("protokb.shared", r.Shared))
	if r.Err != nil {
		span.RecordError(r.Err)
		span.SetStatus(codes.Error, r.Err.Error())
		return nil, fmt.Errorf("fetch %s: %w", id, r.Err)
	}

	res := r.Val.(*Result)
	if res.Prototype.ID() != id {
		return nil, fmt.Errorf("fetch %s: %w: got %s", id, ErrUnexpectedPrototype, res.Prototype.ID())
	}
	return res, nil
}

func (c *Client) roundTrip(ctx context.Context, target string, stale *cachedResult) (*Result, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", c.codec.ContentType())
	if stale != nil && stale.etag != "" {
		req.Header.Set("If-None-Match", stale.etag)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	ttl := maxAge(resp.Header)
	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotModified:
		if stale == nil {
			return nil, fmt.Errorf("%w: 304 without a cached response", ErrUnexpectedStatus)
		}
		c.logger.Debug("remote prototype not modified", slog.String("url", target))
		refreshed := *stale
		if etag := resp.Header.Get("ETag"); etag != "" {
			refreshed.etag = etag
		}
		c.cache.SetWithTTL(target, refreshed, ttl)
		return refreshed.result, nil
	case http.StatusNotFound:
		c.cache.Delete(target)
		return nil, kb.ErrNotDefined
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status)
	}

	dec := c.codec
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		if byType, err := codec.ByContentType(ct); err == nil {
			dec = byType
		}
	}
	p, err := dec.DeserializeOne(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	res := &Result{Prototype: p, Alternates: c.alternates(resp.Header)}
	etag := resp.Header.Get("ETag")
	if etag != "" || ttl > 0 {
		c.cache.SetWithTTL(target, cachedResult{result: res, etag: etag}, ttl)
	}
	return res, nil
}

// alternates collects the alternate links of every Link header. Malformed
// headers are logged and skipped.
func (c *Client) alternates(h http.Header) []*url.URL {
	var out []*url.URL
	seen := make(map[string]struct{})
	for _, value := range h.Values("Link") {
		urls, err := ParseAlternates(value)
		if err != nil {
			c.logger.Info("ignoring unparsable Link header", slog.String("error", err.Error()))
			continue
		}
		for _, u := range urls {
			if _, dup := seen[u.String()]; dup {
				continue
			}
			seen[u.String()] = struct{}{}
			out = append(out, u)
		}
	}
	return out
}

// maxAge extracts the freshness lifetime from Cache-Control. no-cache and
// no-store yield zero.
func maxAge(h http.Header) time.Duration {
	var age time.Duration
	for _, directive := range strings.Split(h.Get("Cache-Control"), ",") {
		name, value, _ := strings.Cut(strings.TrimSpace(directive), "=")
		switch strings.ToLower(name) {
		case "no-cache", "no-store":
			return 0
		case "max-age":
			secs, err := strconv.ParseInt(strings.Trim(value, `"`), 10, 64)
			if err == nil && secs > 0 {
				age = time.Duration(secs) * time.Second
			}
		}
	}
	return age
}
