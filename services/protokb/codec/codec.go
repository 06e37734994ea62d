// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package codec converts prototypes to and from their wire formats.
//
// Two formats are provided:
//
//   - Text: a line-oriented format, convenient for hand-written bases.
//   - JSON: one object per prototype, used by the HTTP server by default.
//
// Both round-trip the identifier, parent, removals (including wildcard
// removals) and additions without loss. Output is deterministic:
// properties and values are written in IRI order.
package codec

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	kb "github.com/AleutianAI/protokb/services/protokb/knowledgebase"
)

// Codec serializes and deserializes prototypes.
//
// Thread Safety: Implementations are stateless and safe for concurrent use.
type Codec interface {
	// Name is the short name used in configuration and flags.
	Name() string

	// ContentType is the media type of the format.
	ContentType() string

	// SerializeOne writes a single prototype.
	SerializeOne(w io.Writer, p *kb.Prototype) error

	// Serialize writes several prototypes.
	Serialize(w io.Writer, ps []*kb.Prototype) error

	// DeserializeOne reads exactly one prototype; anything else in r is an error.
	DeserializeOne(r io.Reader) (*kb.Prototype, error)

	// Deserialize reads every prototype in r.
	Deserialize(r io.Reader) ([]*kb.Prototype, error)
}

// Registered codecs.
var (
	Text Codec = textCodec{}
	JSON Codec = jsonCodec{}
)

var all = []Codec{JSON, Text}

// ErrUnsupportedFormat is returned for an unknown format name or media type.
var ErrUnsupportedFormat = errors.New("unsupported format")

// ErrMalformed is wrapped by every deserialization failure.
var ErrMalformed = errors.New("malformed prototype")

// ParseError locates a problem in line-oriented input.
type ParseError struct {
	// Line is the 1-based line number.
	Line int

	// Text is the offending line.
	Text string

	// Problem describes what is wrong with the line.
	Problem string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	msg := fmt.Sprintf("line %d: %q %s", e.Line, e.Text, e.Problem)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes ErrMalformed and the underlying cause.
func (e *ParseError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrMalformed}
	}
	return []error{ErrMalformed, e.Err}
}

// ByName returns the codec for a short name ("text", "simple", "json").
func ByName(name string) (Codec, error) {
	switch strings.ToLower(name) {
	case "text", "simple", "proto":
		return Text, nil
	case "json":
		return JSON, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
}

// ByContentType returns the codec for a media type; parameters are ignored.
func ByContentType(contentType string) (Codec, error) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrUnsupportedFormat, contentType, err)
	}
	for _, c := range all {
		if c.ContentType() == mediaType {
			return c, nil
		}
	}
	if mediaType == "text/plain" {
		return Text, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, contentType)
}

// ByPath picks a codec from a file extension: ".json" is JSON, anything
// else is the text format.
func ByPath(path string) Codec {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return JSON
	}
	return Text
}

// ContentTypes lists the media types of all codecs, JSON first.
func ContentTypes() []string {
	out := make([]string, len(all))
	for i, c := range all {
		out[i] = c.ContentType()
	}
	return out
}
