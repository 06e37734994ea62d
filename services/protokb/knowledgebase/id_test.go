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
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "http with fragment", input: "http://example.com/#hasName", want: "http://example.com/#hasName"},
		{name: "opaque", input: "proto:P_0", want: "proto:P_0"},
		{name: "scheme is lower-cased", input: "HTTP://example.com/a", want: "http://example.com/a"},
		{name: "percent encoding kept", input: "http://example.com/string/a%2Fb", want: "http://example.com/string/a%2Fb"},
		{name: "urn", input: "urn:isbn:0451450523", want: "urn:isbn:0451450523"},
		{name: "empty", input: "", wantErr: true},
		{name: "relative", input: "example/object", wantErr: true},
		{name: "relative with fragment", input: "#hasName", wantErr: true},
		{name: "contains space", input: "http://example.com/a b", wantErr: true},
		{name: "scheme only", input: "http:", wantErr: true},
		{name: "invalid escape", input: "http://example.com/%zz", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := NewID(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidIdentifier))
				assert.True(t, id.IsZero())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, id.String())
		})
	}
}

func TestID_Equality(t *testing.T) {
	a := MustID("HTTP://example.com/x")
	b := MustID("http://example.com/x")
	assert.Equal(t, a, b)
	assert.Equal(t, 0, a.Compare(b))

	set := map[ID]struct{}{a: {}}
	_, ok := set[b]
	assert.True(t, ok, "normalized IDs must hash equally")
}

func TestMustID_Panics(t *testing.T) {
	assert.Panics(t, func() { MustID("not an iri") })
	assert.Panics(t, func() { MustProperty("relative") })
}

func TestID_TextRoundTrip(t *testing.T) {
	type doc struct {
		ID       ID       `json:"id"`
		Property Property `json:"property"`
	}
	in := doc{ID: MustID("http://example.com/#Galway"), Property: MustProperty("http://example.com/#hasName")}

	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"http://example.com/#Galway","property":"http://example.com/#hasName"}`, string(data))

	var out doc
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)

	err = json.Unmarshal([]byte(`{"id":"relative"}`), &out)
	assert.ErrorIs(t, err, ErrInvalidIdentifier)
}
