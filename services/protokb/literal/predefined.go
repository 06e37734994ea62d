// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package literal

import (
	"log/slog"
	"net/url"
	"strconv"
	"sync"

	kb "github.com/AleutianAI/protokb/services/protokb/knowledgebase"
)

// Reserved prefixes of the built-in literal parts.
const (
	IntegerPrefix = "http://example.com/integer/"
	StringPrefix  = "http://example.com/string/"
)

// NewIntegers returns the part for 64-bit integers in canonical decimal form.
//
// "042" and "+42" are not canonical and therefore not defined.
func NewIntegers(logger *slog.Logger) *Part[int64] {
	p, err := NewPart(IntegerPrefix, encodeInt, decodeInt, logger)
	if err != nil {
		panic(err)
	}
	return p
}

func encodeInt(v int64) string {
	return strconv.FormatInt(v, 10)
}

func decodeInt(fragment string) (int64, bool) {
	v, err := strconv.ParseInt(fragment, 10, 64)
	if err != nil || strconv.FormatInt(v, 10) != fragment {
		return 0, false
	}
	return v, true
}

// NewStrings returns the part for strings, form-encoded into the IRI.
func NewStrings(logger *slog.Logger) *Part[string] {
	p, err := NewPart(StringPrefix, url.QueryEscape, decodeString, logger)
	if err != nil {
		panic(err)
	}
	return p
}

func decodeString(fragment string) (string, bool) {
	v, err := url.QueryUnescape(fragment)
	if err != nil || url.QueryEscape(v) != fragment {
		return "", false
	}
	return v, true
}

// Predefined is the composite base of P_0 and all literal parts.
//
// Description:
//
//	Lookups try P_0, then integers, then strings, then any extra parts
//	added with Extend. A Predefined is usually shared by reference as the
//	bottom of every external chain.
//
// Thread Safety: Safe for concurrent use.
type Predefined struct {
	Integers *Part[int64]
	Strings  *Part[string]
	extra    []kb.Base
}

var _ kb.Base = (*Predefined)(nil)

// New returns a predefined base with its own literal caches.
func New(logger *slog.Logger) *Predefined {
	return &Predefined{
		Integers: NewIntegers(logger),
		Strings:  NewStrings(logger),
	}
}

// Default returns the process-wide predefined base.
var Default = sync.OnceValue(func() *Predefined {
	return New(nil)
})

// Extend returns a base that also consults parts, after the built-in ones.
//
// The literal caches are shared with p.
func (p *Predefined) Extend(parts ...kb.Base) *Predefined {
	extra := make([]kb.Base, 0, len(p.extra)+len(parts))
	extra = append(extra, p.extra...)
	extra = append(extra, parts...)
	return &Predefined{Integers: p.Integers, Strings: p.Strings, extra: extra}
}

// IsDefined implements kb.Base.
func (p *Predefined) IsDefined(id kb.ID) (*kb.Prototype, bool) {
	if id == kb.GroundID {
		return kb.Ground(), true
	}
	if proto, ok := p.Integers.IsDefined(id); ok {
		return proto, true
	}
	if proto, ok := p.Strings.IsDefined(id); ok {
		return proto, true
	}
	for _, part := range p.extra {
		if proto, ok := part.IsDefined(id); ok {
			return proto, true
		}
	}
	return nil, false
}

// Int returns the canonical prototype of an integer.
func (p *Predefined) Int(v int64) *kb.Prototype {
	return p.Integers.MustDefine(v)
}

// Str returns the canonical prototype of a string.
func (p *Predefined) Str(s string) *kb.Prototype {
	return p.Strings.MustDefine(s)
}
