// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package literal provides knowledge bases for primitive values.
//
// Every integer and every string has a canonical prototype minted on
// demand under a reserved prefix:
//
//	http://example.com/integer/42
//	http://example.com/string/Galway
//
// The prototypes derive directly from P_0 and carry no properties; they
// exist so that other prototypes can use literal values.
package literal

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	kb "github.com/AleutianAI/protokb/services/protokb/knowledgebase"
)

// Part is an infinite knowledge base for values of type E.
//
// Description:
//
//	A Part is defined by a prefix unique to the value type and a bijection
//	between values and IRI fragments. Prototypes are created lazily and
//	memoized, so asking twice for the same value returns the same pointer,
//	also under concurrent use.
//
// Thread Safety: Safe for concurrent use.
type Part[E comparable] struct {
	prefix       string
	toFragment   func(E) string
	fromFragment func(string) (E, bool)
	cache        sync.Map // E -> *kb.Prototype
	logger       *slog.Logger
}

var _ kb.Base = (*Part[int64])(nil)

// NewPart creates a literal base.
//
// Inputs:
//
//	prefix - Absolute IRI prefix that all IDs of this part start with.
//	toFragment - Encodes a value as the IRI suffix.
//	fromFragment - Decodes a suffix; must invert toFragment and reject
//	               every suffix toFragment cannot produce.
//	logger - Receives decode warnings. Nil uses slog.Default().
//
// Outputs:
//
//	*Part[E] - The base.
//	error - kb.ErrInvalidIdentifier if prefix is not an absolute IRI.
func NewPart[E comparable](prefix string, toFragment func(E) string, fromFragment func(string) (E, bool), logger *slog.Logger) (*Part[E], error) {
	normalized, err := kb.NewID(prefix)
	if err != nil {
		return nil, fmt.Errorf("literal prefix: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Part[E]{
		prefix:       normalized.String(),
		toFragment:   toFragment,
		fromFragment: fromFragment,
		logger:       logger,
	}, nil
}

// Prefix returns the IRI prefix of the part.
func (p *Part[E]) Prefix() string {
	return p.prefix
}

// ID returns the identifier of value without creating its prototype.
func (p *Part[E]) ID(value E) (kb.ID, error) {
	return kb.NewID(p.prefix + p.toFragment(value))
}

// Define returns the canonical prototype for value.
//
// Outputs:
//
//	*kb.Prototype - The same pointer for every call with an equal value.
//	error - kb.ErrInvalidIdentifier if the encoded value is not a valid IRI.
func (p *Part[E]) Define(value E) (*kb.Prototype, error) {
	if cached, ok := p.cache.Load(value); ok {
		return cached.(*kb.Prototype), nil
	}
	id, err := p.ID(value)
	if err != nil {
		return nil, err
	}
	proto := kb.NewPrototypeBuilder(kb.GroundID).Build(id)
	actual, _ := p.cache.LoadOrStore(value, proto)
	return actual.(*kb.Prototype), nil
}

// MustDefine is like Define but panics on error.
func (p *Part[E]) MustDefine(value E) *kb.Prototype {
	proto, err := p.Define(value)
	if err != nil {
		panic(err)
	}
	return proto
}

// IsDefined implements kb.Base.
//
// IDs outside the prefix are not defined. IDs under the prefix whose
// suffix does not decode are logged and treated as not defined, since
// they may belong to an unrelated naming scheme.
func (p *Part[E]) IsDefined(id kb.ID) (*kb.Prototype, bool) {
	fragment, ok := strings.CutPrefix(id.String(), p.prefix)
	if !ok {
		return nil, false
	}
	value, ok := p.fromFragment(fragment)
	if !ok {
		p.logger.Warn("identifier under literal prefix does not decode",
			slog.String("id", id.String()),
			slog.String("prefix", p.prefix))
		return nil, false
	}
	proto, err := p.Define(value)
	if err != nil {
		p.logger.Warn("decoded literal does not encode to an identifier",
			slog.String("id", id.String()),
			slog.String("error", err.Error()))
		return nil, false
	}
	if proto.ID() != id {
		// Reachable only with a decoder that accepts non-canonical fragments.
		p.logger.Warn("identifier under literal prefix is not canonical",
			slog.String("id", id.String()),
			slog.String("canonical", proto.ID().String()))
		return nil, false
	}
	return proto, true
}
