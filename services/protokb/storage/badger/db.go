// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.


// Package badger persists prototype definitions in an embedded BadgerDB.
//
// A store is one of the sources a served knowledge base can be built
// from, next to text and JSON files. The CLI imports files into it and
// exports it back.
//
// License: BadgerDB is Apache 2.0 licensed (github.com/dgraph-io/badger).
package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Config describes how a prototype database is opened.
type Config struct {
	// Path is the database directory. Ignored when InMemory is true.
	Path string

	// InMemory keeps everything in RAM. Used by tests and benchmarks.
	InMemory bool

	// SyncWrites fsyncs every commit.
	SyncWrites bool

	// Logger receives BadgerDB's internal log lines. Nil silences them.
	Logger *slog.Logger

	// GCInterval is how often value log GC runs. Zero disables it.
	GCInterval time.Duration

	// GCDiscardRatio is the garbage ratio that makes a value log file
	// eligible for rewriting.
	GCDiscardRatio float64
}

// DefaultConfig returns the configuration used for on-disk stores.
func DefaultConfig() Config {
	return Config{
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns a configuration without disk I/O or GC.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// options translates cfg into badger options.
func (cfg Config) options() (badger.Options, error) {
	dir := ""
	if !cfg.InMemory {
		if cfg.Path == "" {
			return badger.Options{}, errors.New("path is required for a persistent store")
		}
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return badger.Options{}, fmt.Errorf("create store directory %s: %w", cfg.Path, err)
		}
		dir = cfg.Path
	}

	// Definitions are rewritten in place; older versions are never read.
	opts := badger.DefaultOptions(dir).
		WithInMemory(cfg.InMemory).
		WithSyncWrites(cfg.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(nil)
	if cfg.Logger != nil {
		opts = opts.WithLogger(badgerLog{cfg.Logger.With(slog.String("component", "badger"))})
	}
	return opts, nil
}

// badgerLog satisfies badger.Logger on top of slog.
type badgerLog struct{ l *slog.Logger }

func (b badgerLog) logf(level slog.Level, format string, args []any) {
	ctx := context.Background()
	if !b.l.Enabled(ctx, level) {
		return
	}
	b.l.Log(ctx, level, fmt.Sprintf(format, args...))
}

func (b badgerLog) Errorf(f string, a ...any) { b.logf(slog.LevelError, f, a) }
func (b badgerLog) Warningf(f string, a ...any) { b.logf(slog.LevelWarn, f, a) }
func (b badgerLog) Infof(f string, a ...any) { b.logf(slog.LevelInfo, f, a) }
func (b badgerLog) Debugf(f string, a ...any) { b.logf(slog.LevelDebug, f, a) }

// GCRunner reclaims value log space on a fixed interval until stopped.
//
// Thread Safety: Start and Stop may be called from any goroutine.
type GCRunner struct {
	db       *badger.DB
	interval time.Duration
	ratio    float64
	logger   *slog.Logger

	mu        sync.Mutex
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	reclaimed atomic.Int64
}

// NewGCRunner validates its inputs and returns a runner that is not yet
// started.
//
// Inputs:
//   - db: The database. Must not be nil.
//   - interval: Time between GC passes. Must be positive.
//   - ratio: Discard ratio in [0, 1].
//   - logger: Optional.
func NewGCRunner(db *badger.DB, interval time.Duration, ratio float64, logger *slog.Logger) (*GCRunner, error) {
	switch {
	case db == nil:
		return nil, errors.New("db must not be nil")
	case interval <= 0:
		return nil, errors.New("interval must be positive")
	case ratio < 0 || ratio > 1:
		return nil, errors.New("ratio must be between 0 and 1")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GCRunner{db: db, interval: interval, ratio: ratio, logger: logger}, nil
}

// Start runs GC passes in the background until ctx ends or Stop is
// called. A second Start while running is a no-op.
func (r *GCRunner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}
	ctx, r.cancel = context.WithCancel(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.pass()
			}
		}
	}()
}

// Stop cancels the background loop and waits for it. Safe to call more
// than once.
func (r *GCRunner) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	r.wg.Wait()
}

// Reclaimed returns how many value log files GC has rewritten.
func (r *GCRunner) Reclaimed() int64 { return r.reclaimed.Load() }

// pass rewrites value log files until badger reports nothing left.
func (r *GCRunner) pass() {
	for {
		err := r.db.RunValueLogGC(r.ratio)
		switch {
		case err == nil:
			r.reclaimed.Add(1)
			continue
		case errors.Is(err, badger.ErrNoRewrite), errors.Is(err, badger.ErrRejected),
			errors.Is(err, badger.ErrGCInMemoryMode):
		default:
			r.logger.Warn("value log GC failed", slog.String("error", err.Error()))
		}
		return
	}
}

// DB is an open prototype database, optionally with background GC.
//
// Thread Safety: Safe for concurrent use.
type DB struct {
	*badger.DB
	cfg Config
	gc  *GCRunner
}

// OpenDB opens a database. On-disk stores with a GC interval also start
// value log GC, which Close stops.
func OpenDB(cfg Config) (*DB, error) {
	opts, err := cfg.options()
	if err != nil {
		return nil, err
	}
	raw, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	db := &DB{DB: raw, cfg: cfg}
	if cfg.InMemory || cfg.GCInterval <= 0 {
		return db, nil
	}
	db.gc, err = NewGCRunner(raw, cfg.GCInterval, cfg.GCDiscardRatio, cfg.Logger)
	if err != nil {
		raw.Close()
		return nil, fmt.Errorf("create GC runner: %w", err)
	}
	db.gc.Start(context.Background())
	return db, nil
}

// OpenPath opens an on-disk database at path with DefaultConfig.
func OpenPath(path string, logger *slog.Logger) (*DB, error) {
	cfg := DefaultConfig()
	cfg.Path = path
	cfg.Logger = logger
	return OpenDB(cfg)
}

// OpenInMemory opens a database that lives only as long as the process.
func OpenInMemory() (*DB, error) {
	return OpenDB(InMemoryConfig())
}

// Close stops GC and closes the database.
func (d *DB) Close() error {
	if d.gc != nil {
		d.gc.Stop()
	}
	return d.DB.Close()
}

// Path returns the database directory, empty when in memory.
func (d *DB) Path() string {
	if d.cfg.InMemory {
		return ""
	}
	return d.cfg.Path
}

// InMemory reports whether the database keeps no files.
func (d *DB) InMemory() bool { return d.cfg.InMemory }

// Sync flushes pending writes to disk. It is a no-op in memory.
func (d *DB) Sync() error {
	if d.cfg.InMemory {
		return nil
	}
	return d.DB.Sync()
}

// WithTxn runs fn in a read-write transaction that commits when fn
// returns nil and is discarded otherwise.
func (d *DB) WithTxn(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	return d.DB.Update(fn)
}

// WithReadTxn runs fn in a read-only transaction.
func (d *DB) WithReadTxn(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	return d.DB.View(fn)
}
