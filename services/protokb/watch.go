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
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the knowledge base whenever one of the file sources
// changes, until ctx is cancelled.
//
// Description:
//
//	The directories containing the files are watched, so that editors
//	which replace a file by renaming are noticed. Events for other files
//	are ignored. Bursts of events are coalesced: a reload starts once no
//	event has arrived for WatchDebounce. Reload failures are logged and
//	the previous base keeps being served.
//
// Outputs:
//   - error: ErrNoSources when there is no file source, or a watcher setup
//     error. Nil after ctx is cancelled.
func (s *Service) Watch(ctx context.Context) error {
	files := make(map[string]struct{})
	dirs := make(map[string]struct{})
	for _, src := range s.cfg.Sources {
		if fs, ok := src.(FileSource); ok {
			path := fs.absPath()
			files[path] = struct{}{}
			dirs[filepath.Dir(path)] = struct{}{}
		}
	}
	if len(files) == 0 {
		return ErrNoSources
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	s.logger.Info("watching sources", slog.Int("files", len(files)))

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if _, watched := files[filepath.Clean(event.Name)]; !watched {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
				continue
			}
			s.logger.Debug("source changed", slog.String("file", event.Name), slog.String("op", event.Op.String()))
			if timer == nil {
				timer = time.NewTimer(s.cfg.WatchDebounce)
			} else {
				timer.Reset(s.cfg.WatchDebounce)
			}
			fire = timer.C

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("watcher error", slog.String("error", err.Error()))

		case <-fire:
			fire = nil
			// Reload logs and counts its own failures.
			_ = s.Reload(ctx)
		}
	}
}
