// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package knowledgebase

import (
	"fmt"
	"net/url"
	"strings"
)

// ID identifies a prototype by an absolute IRI.
//
// Description:
//
//	IDs are immutable values compared by their normalized string form.
//	The zero ID is not a valid identifier and is only used as the "no
//	value" return of lookups.
//
// Thread Safety: IDs are values and safe to share.
type ID struct {
	iri string
}

// Property identifies an edge label by an absolute IRI.
//
// Property has the same shape as ID but is a distinct type; the compiler
// keeps properties and identifiers from being substituted for each other.
type Property struct {
	iri string
}

// NewID parses s as an absolute IRI and returns the corresponding ID.
//
// Inputs:
//
//	s - The IRI. Surrounding whitespace is not trimmed.
//
// Outputs:
//
//	ID - The normalized identifier.
//	error - ErrInvalidIdentifier (wrapped) if s is not an absolute IRI.
func NewID(s string) (ID, error) {
	iri, err := normalize(s)
	if err != nil {
		return ID{}, err
	}
	return ID{iri: iri}, nil
}

// MustID is like NewID but panics on an invalid IRI.
//
// Intended for identifiers written in source code and tests.
func MustID(s string) ID {
	id, err := NewID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// String returns the normalized IRI.
func (id ID) String() string {
	return id.iri
}

// IsZero reports whether id is the zero value.
func (id ID) IsZero() bool {
	return id.iri == ""
}

// Compare orders identifiers by their IRI.
func (id ID) Compare(other ID) int {
	return strings.Compare(id.iri, other.iri)
}

// MarshalText implements encoding.TextMarshaler.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.iri), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(text []byte) error {
	parsed, err := NewID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// NewProperty parses s as an absolute IRI and returns the corresponding Property.
func NewProperty(s string) (Property, error) {
	iri, err := normalize(s)
	if err != nil {
		return Property{}, err
	}
	return Property{iri: iri}, nil
}

// MustProperty is like NewProperty but panics on an invalid IRI.
func MustProperty(s string) Property {
	p, err := NewProperty(s)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the normalized IRI.
func (p Property) String() string {
	return p.iri
}

// IsZero reports whether p is the zero value.
func (p Property) IsZero() bool {
	return p.iri == ""
}

// Compare orders properties by their IRI.
func (p Property) Compare(other Property) int {
	return strings.Compare(p.iri, other.iri)
}

// MarshalText implements encoding.TextMarshaler.
func (p Property) MarshalText() ([]byte, error) {
	return []byte(p.iri), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Property) UnmarshalText(text []byte) error {
	parsed, err := NewProperty(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// normalize validates an absolute IRI and returns its canonical form.
//
// The scheme is lower-cased and the remaining components are re-encoded
// by net/url, which keeps valid percent-encodings as written.
func normalize(s string) (string, error) {
	if s == "" || strings.ContainsAny(s, " \t\r\n") {
		return "", fmt.Errorf("%w: %q", ErrInvalidIdentifier, s)
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInvalidIdentifier, s, err)
	}
	if !u.IsAbs() {
		return "", fmt.Errorf("%w: %q has no scheme", ErrInvalidIdentifier, s)
	}
	if u.Opaque == "" && u.Host == "" && u.Path == "" && u.Fragment == "" {
		return "", fmt.Errorf("%w: %q has no scheme-specific part", ErrInvalidIdentifier, s)
	}
	return u.String(), nil
}
