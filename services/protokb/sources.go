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
	"os"
	"path/filepath"

	"github.com/AleutianAI/protokb/services/protokb/codec"
	kb "github.com/AleutianAI/protokb/services/protokb/knowledgebase"
	"github.com/AleutianAI/protokb/services/protokb/storage/badger"
)

// Source supplies prototype definitions for the served knowledge base.
type Source interface {
	// Name identifies the source in logs and errors.
	Name() string

	// Load returns every prototype the source defines.
	Load(ctx context.Context) ([]*kb.Prototype, error)
}

// FileSource reads a text or JSON file.
type FileSource struct {
	// Path is the file to read.
	Path string

	// Codec decodes the file. Nil picks one from the extension.
	Codec codec.Codec
}

// Name implements Source.
func (f FileSource) Name() string { return f.Path }

// Load implements Source.
func (f FileSource) Load(ctx context.Context) ([]*kb.Prototype, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	file, err := os.Open(f.Path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	cd := f.Codec
	if cd == nil {
		cd = codec.ByPath(f.Path)
	}
	ps, err := cd.Deserialize(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.Path, err)
	}
	return ps, nil
}

// absPath is the cleaned absolute path, used to match watch events.
func (f FileSource) absPath() string {
	if abs, err := filepath.Abs(f.Path); err == nil {
		return abs
	}
	return filepath.Clean(f.Path)
}

// StoreSource reads every prototype in a Badger store.
type StoreSource struct {
	Store *badger.Store
}

// Name implements Source.
func (s StoreSource) Name() string {
	if p := s.Store.DB().Path(); p != "" {
		return "badger:" + p
	}
	return "badger:memory"
}

// Load implements Source.
func (s StoreSource) Load(ctx context.Context) ([]*kb.Prototype, error) {
	return s.Store.List(ctx)
}

// StaticSource serves a fixed list of prototypes, for example a generated
// dataset.
type StaticSource struct {
	Label      string
	Prototypes []*kb.Prototype
}

// Name implements Source.
func (s StaticSource) Name() string { return s.Label }

// Load implements Source.
func (s StaticSource) Load(context.Context) ([]*kb.Prototype, error) {
	return s.Prototypes, nil
}
