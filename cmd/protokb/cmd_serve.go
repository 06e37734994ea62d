// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/protokb/services/protokb"
	"github.com/AleutianAI/protokb/services/protokb/dataset"
	kb "github.com/AleutianAI/protokb/services/protokb/knowledgebase"
	"github.com/AleutianAI/protokb/services/protokb/literal"
	"github.com/AleutianAI/protokb/services/protokb/storage/badger"
	"github.com/AleutianAI/protokb/services/protokb/telemetry"
)

// server is a configured but not yet listening prototype server.
type server struct {
	svc     *protokb.Service
	http    *http.Server
	closers []func()
}

func (s *server) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// newServer wires the sources, external bases and router described by
// the configuration, and performs the initial load.
func (a *app) newServer(ctx context.Context, extraFiles []string) (*server, error) {
	cfg := a.cfg
	s := &server{}

	cd, err := codecFlag(cfg.Source.Format)
	if err != nil {
		return nil, err
	}
	var sources []protokb.Source
	for _, path := range append(append([]string(nil), cfg.Source.Files...), extraFiles...) {
		sources = append(sources, protokb.FileSource{Path: path, Codec: cd})
	}
	if cfg.Source.StorePath != "" {
		db, err := badger.OpenPath(cfg.Source.StorePath, a.logger.Slog())
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func() { _ = db.Close() })
		sources = append(sources, protokb.StoreSource{Store: badger.NewStore(db, a.logger.Slog())})
	}
	if cfg.Source.Example {
		sources = append(sources, protokb.StaticSource{Label: "example", Prototypes: dataset.Example()})
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("%w: set source.files or source.store_path, or pass files", protokb.ErrNoSources)
	}

	externals := []kb.Base{literal.Default()}
	for _, endpoint := range cfg.Remote.Externals {
		client, err := a.newRemoteClient(endpoint)
		if err != nil {
			s.close()
			return nil, err
		}
		s.closers = append(s.closers, client.Close)
		externals = append(externals, client)
	}

	maxAge := make(map[kb.ID]time.Duration, len(cfg.Cache.MaxAgeOverrides))
	for raw, secs := range cfg.Cache.MaxAgeOverrides {
		maxAge[kb.MustID(raw)] = time.Duration(secs) * time.Second
	}
	alternates := make(map[kb.ID][]string, len(cfg.Alternates))
	for raw, urls := range cfg.Alternates {
		alternates[kb.MustID(raw)] = urls
	}

	s.svc = protokb.NewService(protokb.ServiceConfig{
		Sources:       sources,
		External:      kb.Chain(externals...),
		DefaultMaxAge: time.Duration(cfg.Cache.MaxAge) * time.Second,
		MaxAge:        maxAge,
		Alternates:    alternates,
		ETagCapacity:  cfg.Cache.ETagCapacity,
		WatchDebounce: cfg.Source.WatchDebounce,
		Logger:        a.logger.Slog(),
	})
	if err := s.svc.Reload(ctx); err != nil {
		s.close()
		return nil, err
	}

	gin.SetMode(cfg.Server.Mode)
	router := protokb.NewRouter(protokb.NewHandlers(s.svc), cfg.Server.BasePath)
	s.http = &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

func (a *app) serveCmd() *cobra.Command {
	var (
		port    int
		watch   bool
		example bool
	)
	cmd := &cobra.Command{
		Use:   "serve [FILE...]",
		Short: "Serve the configured knowledge base over HTTP",
		Long: `Serve loads source.files (plus any FILE arguments) and source.store_path into
one knowledge base and serves it under server.base_path. With --watch the
files are reloaded when they change; a reload that fails keeps the previous
base online.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("port") {
				a.cfg.Server.Port = port
			}
			if cmd.Flags().Changed("watch") {
				a.cfg.Source.Watch = watch
			}
			if example {
				a.cfg.Source.Example = true
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx, args)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "override server.port")
	cmd.Flags().BoolVar(&watch, "watch", false, "reload source files when they change")
	cmd.Flags().BoolVar(&example, "example", false, "also serve the built-in example base")
	return cmd
}

// serve runs until ctx is cancelled, then shuts down within
// server.shutdown_timeout.
func (a *app) serve(ctx context.Context, files []string) error {
	logger := a.logger.Slog()

	shutdownTelemetry, err := telemetry.Init(ctx, a.cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(sctx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}()

	s, err := a.newServer(ctx, files)
	if err != nil {
		return err
	}
	defer s.close()

	if a.cfg.Source.Watch {
		go func() {
			if err := s.svc.Watch(ctx); err != nil {
				logger.Warn("watch stopped", slog.String("error", err.Error()))
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("prototype server listening",
			slog.String("addr", s.http.Addr),
			slog.String("base_path", a.cfg.Server.BasePath),
			slog.Int("prototypes", s.svc.Base().Len()))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(sctx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
