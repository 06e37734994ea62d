// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package protokb serves a prototype knowledge base over HTTP.
//
// The Service owns the served base: it loads prototypes from its sources,
// validates them as one knowledge base and publishes the result as an
// immutable snapshot. Readers never block reloads and never observe a
// half-built base. A failed reload keeps the previous snapshot.
//
// Handlers expose the snapshot under /v1/protokb with conditional GET
// support (ETag, Cache-Control) and Link headers naming alternate
// locations of a prototype.
package protokb

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/protokb/services/protokb/cache"
	kb "github.com/AleutianAI/protokb/services/protokb/knowledgebase"
	"github.com/AleutianAI/protokb/services/protokb/literal"
	"github.com/AleutianAI/protokb/services/protokb/telemetry"
)

// Defaults for ServiceConfig.
const (
	DefaultETagCapacity  = 10000
	DefaultWatchDebounce = 250 * time.Millisecond
)

// ServiceConfig configures a Service.
type ServiceConfig struct {
	// Sources are loaded in parallel; their prototypes form one base.
	Sources []Source

	// External is the base consulted for identifiers not defined by the
	// sources. Nil selects the predefined literal base.
	External kb.Base

	// DefaultMaxAge is how long clients may cache a definition. Zero
	// disables Cache-Control.
	DefaultMaxAge time.Duration

	// MaxAge overrides DefaultMaxAge per identifier.
	MaxAge map[kb.ID]time.Duration

	// Alternates lists other locations of a prototype, sent as Link headers.
	Alternates map[kb.ID][]string

	// ETagCapacity bounds the number of remembered entity tags.
	ETagCapacity int

	// WatchDebounce is the quiet period after a file change before Watch
	// reloads.
	WatchDebounce time.Duration

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// snapshot is one published knowledge base.
type snapshot struct {
	base       *kb.KnowledgeBase
	loadedAt   time.Time
	generation uint64
}

// LookupResult is the outcome of a successful Lookup.
type LookupResult struct {
	// Prototypes are in request order. For fixpoint lookups each is the
	// fixpoint of the requested identifier.
	Prototypes []*kb.Prototype

	// MaxAge is the minimum cache lifetime over the requested identifiers.
	// Always zero for fixpoint lookups.
	MaxAge time.Duration
}

// Service owns the served knowledge base.
//
// Thread Safety: Safe for concurrent use. Reloads are serialized.
type Service struct {
	cfg    ServiceConfig
	logger *slog.Logger

	current atomic.Pointer[snapshot]
	etags   *cache.LRU[string, *kb.Prototype]

	reloadMu     sync.Mutex
	generation   uint64 // guarded by reloadMu
	reloadErrors atomic.Int64
	lastError    atomic.Pointer[string]
}

// NewService creates a service. No base is served until Reload or SetBase
// succeeds.
func NewService(cfg ServiceConfig) *Service {
	if cfg.External == nil {
		cfg.External = literal.Default()
	}
	if cfg.ETagCapacity <= 0 {
		cfg.ETagCapacity = DefaultETagCapacity
	}
	if cfg.WatchDebounce <= 0 {
		cfg.WatchDebounce = DefaultWatchDebounce
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "protokb.service")),
		etags:  cache.New[string, *kb.Prototype](cfg.ETagCapacity),
	}
}

// Base returns the served knowledge base, or nil before the first load.
func (s *Service) Base() *kb.KnowledgeBase {
	if snap := s.current.Load(); snap != nil {
		return snap.base
	}
	return nil
}

// Generation returns the number of bases published so far.
func (s *Service) Generation() uint64 {
	if snap := s.current.Load(); snap != nil {
		return snap.generation
	}
	return 0
}

// SetBase publishes base as the served knowledge base.
func (s *Service) SetBase(base *kb.KnowledgeBase) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()
	s.publish(base)
}

// publish swaps in base. Caller must hold reloadMu.
func (s *Service) publish(base *kb.KnowledgeBase) {
	s.generation++
	s.current.Store(&snapshot{base: base, loadedAt: time.Now(), generation: s.generation})
	servedPrototypes.Set(float64(base.Len()))
}

// Reload loads every source and, if the result is a consistent knowledge
// base, publishes it.
//
// Description:
//
//	Sources are read concurrently. Their prototypes are added to one
//	builder over the external base in source order, so a prototype
//	defined by two sources is an error. On any failure the served base
//	is left untouched.
//
// Outputs:
//   - error: ErrNoSources, a source error, or the *ConsistencyError
//     from building.
func (s *Service) Reload(ctx context.Context) (err error) {
	if len(s.cfg.Sources) == 0 {
		return ErrNoSources
	}

	ctx, span := startReloadSpan(ctx, len(s.cfg.Sources))
	defer span.End()
	logger := telemetry.LoggerWithTrace(ctx, s.logger)
	start := time.Now()

	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	defer func() {
		if err != nil {
			telemetry.RecordError(span, err)
			reloadsTotal.WithLabelValues("failure").Inc()
			s.reloadErrors.Add(1)
			msg := err.Error()
			s.lastError.Store(&msg)
			logger.Error("reload failed, keeping previous knowledge base", slog.String("error", msg))
		}
	}()

	loaded := make([][]*kb.Prototype, len(s.cfg.Sources))
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range s.cfg.Sources {
		g.Go(func() error {
			ps, err := src.Load(gctx)
			if err != nil {
				return fmt.Errorf("load %s: %w", src.Name(), err)
			}
			loaded[i] = ps
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	b := kb.NewBuilder(s.cfg.External)
	for i, ps := range loaded {
		if err := b.AddAll(ps...); err != nil {
			return fmt.Errorf("source %s: %w", s.cfg.Sources[i].Name(), err)
		}
	}
	base, err := b.Build()
	if err != nil {
		return err
	}

	s.publish(base)
	s.lastError.Store(nil)
	reloadsTotal.WithLabelValues("success").Inc()
	logger.Info("knowledge base loaded",
		slog.Int("prototypes", base.Len()),
		slog.Int("sources", len(s.cfg.Sources)),
		slog.Uint64("generation", s.generation),
		slog.Duration("duration", time.Since(start)))
	return nil
}

// Lookup resolves ids against the served base.
//
// Inputs:
//   - ctx: Carries the request span.
//   - ids: Requested identifiers, at least one.
//   - fixpoint: Return fixpoints instead of definitions.
//
// Outputs:
//   - *LookupResult: The prototypes in request order.
//   - error: ErrNotReady, a wrapped knowledgebase.ErrNotDefined naming the
//     first unknown identifier, or a fixpoint failure.
func (s *Service) Lookup(ctx context.Context, ids []kb.ID, fixpoint bool) (*LookupResult, error) {
	ctx, span := startLookupSpan(ctx, len(ids), fixpoint)
	defer span.End()
	start := time.Now()
	defer func() { lookupDuration.Observe(time.Since(start).Seconds()) }()

	base := s.Base()
	if base == nil {
		return nil, ErrNotReady
	}

	res := &LookupResult{Prototypes: make([]*kb.Prototype, 0, len(ids))}
	minAge := time.Duration(math.MaxInt64)
	for _, id := range ids {
		p, ok := base.IsDefined(id)
		if !ok {
			err := fmt.Errorf("%w: %s", kb.ErrNotDefined, id)
			telemetry.RecordError(span, err)
			return nil, err
		}
		if fixpoint {
			fp, err := base.ComputeFixPoint(id)
			if err != nil {
				telemetry.RecordError(span, err)
				return nil, err
			}
			p = fp
		} else {
			minAge = min(minAge, s.MaxAge(id))
		}
		res.Prototypes = append(res.Prototypes, p)
	}

	if fixpoint {
		recordFixPoints(ctx, len(ids))
	} else {
		res.MaxAge = minAge
	}
	return res, nil
}

// MaxAge returns the cache lifetime configured for id.
func (s *Service) MaxAge(id kb.ID) time.Duration {
	if d, ok := s.cfg.MaxAge[id]; ok {
		return d
	}
	return s.cfg.DefaultMaxAge
}

// Alternates returns the alternate locations configured for id.
func (s *Service) Alternates(id kb.ID) []string {
	return s.cfg.Alternates[id]
}

// MintETag remembers p under a fresh entity tag and returns the tag.
func (s *Service) MintETag(p *kb.Prototype) string {
	token := uuid.NewString()
	s.etags.Set(token, p)
	return token
}

// Revalidate reports whether token was minted for a prototype equal to p.
func (s *Service) Revalidate(token string, p *kb.Prototype) bool {
	cached, ok := s.etags.Get(token)
	match := ok && cached.Equal(p)
	if match {
		etagChecks.WithLabelValues("match").Inc()
	} else {
		etagChecks.WithLabelValues("mismatch").Inc()
	}
	return match
}

// Stats reports the state of the service.
func (s *Service) Stats() StatsResponse {
	out := StatsResponse{
		ReloadErrors: s.reloadErrors.Load(),
		ETags:        s.etags.Stats(),
	}
	if snap := s.current.Load(); snap != nil {
		out.Prototypes = snap.base.Len()
		out.Generation = snap.generation
		loadedAt := snap.loadedAt
		out.LoadedAt = &loadedAt
	}
	if msg := s.lastError.Load(); msg != nil {
		out.LastError = *msg
	}
	return out
}
