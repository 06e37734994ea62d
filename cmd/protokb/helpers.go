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
	"io"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/protokb/pkg/ux"
	"github.com/AleutianAI/protokb/services/protokb"
	"github.com/AleutianAI/protokb/services/protokb/codec"
	kb "github.com/AleutianAI/protokb/services/protokb/knowledgebase"
	"github.com/AleutianAI/protokb/services/protokb/literal"
)

// codecFlag resolves a --format value. "" and "auto" return nil, which
// lets file sources pick by extension.
func codecFlag(name string) (codec.Codec, error) {
	if name == "" || name == "auto" {
		return nil, nil
	}
	return codec.ByName(name)
}

// loadPrototypes reads every file in parallel and concatenates the
// results in argument order.
func loadPrototypes(ctx context.Context, paths []string, cd codec.Codec) ([]*kb.Prototype, error) {
	loaded := make([][]*kb.Prototype, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		g.Go(func() error {
			ps, err := protokb.FileSource{Path: path, Codec: cd}.Load(gctx)
			if err != nil {
				return err
			}
			loaded[i] = ps
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []*kb.Prototype
	for _, ps := range loaded {
		out = append(out, ps...)
	}
	return out, nil
}

// buildBase assembles ps over the predefined literals.
func buildBase(ps []*kb.Prototype) (*kb.KnowledgeBase, error) {
	b := kb.NewBuilder(literal.Default())
	if err := b.AddAll(ps...); err != nil {
		return nil, err
	}
	return b.Build()
}

// parseIDs converts --id flag values.
func parseIDs(raw []string) ([]kb.ID, error) {
	ids := make([]kb.ID, 0, len(raw))
	for _, s := range raw {
		id, err := kb.NewID(s)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// prototypeRows lays out a definition for ux.Printer.Record.
func prototypeRows(p *kb.Prototype) []ux.Row {
	rows := []ux.Row{{Key: "parent", Values: []string{p.Parent().String()}}}
	for _, prop := range p.Remove().RemoveAll() {
		rows = append(rows, ux.Row{Key: "- " + prop.String(), Values: []string{"*"}})
	}
	for _, pv := range p.Remove().EntrySet() {
		rows = append(rows, ux.Row{Key: "- " + pv.Property.String(), Values: idStrings(pv.Values)})
	}
	for _, pv := range p.Add().EntrySet() {
		rows = append(rows, ux.Row{Key: "+ " + pv.Property.String(), Values: idStrings(pv.Values)})
	}
	return rows
}

func idStrings(ids []kb.ID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

// writePrototypes serializes ps; nil cd means the line format.
func writePrototypes(w io.Writer, cd codec.Codec, ps []*kb.Prototype) error {
	if cd == nil {
		cd = codec.Text
	}
	if err := cd.Serialize(w, ps); err != nil {
		return fmt.Errorf("write prototypes: %w", err)
	}
	return nil
}

// describeError flattens a consistency error for the report.
func describeError(err error) []ux.Row {
	rows := []ux.Row{{Key: "error", Values: []string{err.Error()}}}
	var cerr *kb.ConsistencyError
	if errors.As(err, &cerr) {
		rows = append(rows, ux.Row{Key: "prototype", Values: []string{cerr.ID.String()}})
		if cerr.Detail != "" {
			rows = append(rows, ux.Row{Key: "related", Values: []string{cerr.Detail}})
		}
		rows = append(rows, ux.Row{Key: "violation", Values: []string{strings.TrimSpace(cerr.Err.Error())}})
	}
	return rows
}
