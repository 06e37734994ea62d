// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package codec

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kb "github.com/AleutianAI/protokb/services/protokb/knowledgebase"
)

var (
	hasName = kb.MustProperty("http://example.com/#hasName")
	livesIn = kb.MustProperty("http://example.com/#livesIn")
)

func samplePrototypes() []*kb.Prototype {
	city := kb.NewPrototypeBuilder(kb.GroundID).Build(kb.MustID("http://example.com/#City"))
	galway := kb.NewPrototypeBuilder(city.ID()).
		Add(hasName, kb.MustID("http://example.com/string/Galway")).
		Build(kb.MustID("http://example.com/#Galway"))
	jyvaskyla := kb.NewPrototypeBuilder(galway.ID()).
		Remove(hasName, kb.MustID("http://example.com/string/Galway")).
		Add(hasName, kb.MustID("http://example.com/string/Jyv%C3%A4skyl%C3%A4")).
		Build(kb.MustID("http://example.com/#Jyvaskyla"))
	michael := kb.NewPrototypeBuilder(kb.GroundID).
		RemoveAll(livesIn).
		Remove(hasName, kb.MustID("http://example.com/string/Mike")).
		Add(hasName, kb.MustID("http://example.com/string/Michael")).
		Add(livesIn, jyvaskyla.ID()).
		Add(livesIn, galway.ID()).
		Build(kb.MustID("http://example.com/#Michael"))
	return []*kb.Prototype{city, galway, jyvaskyla, michael}
}

func TestCodecs_RoundTrip(t *testing.T) {
	for _, c := range []Codec{Text, JSON} {
		t.Run(c.Name(), func(t *testing.T) {
			t.Run("one", func(t *testing.T) {
				for _, p := range samplePrototypes() {
					var buf bytes.Buffer
					require.NoError(t, c.SerializeOne(&buf, p))

					got, err := c.DeserializeOne(strings.NewReader(buf.String()))
					require.NoError(t, err, buf.String())
					assert.True(t, p.Equal(got), "want %s\ngot  %s", p, got)
				}
			})

			t.Run("many", func(t *testing.T) {
				in := samplePrototypes()
				var buf bytes.Buffer
				require.NoError(t, c.Serialize(&buf, in))

				got, err := c.Deserialize(&buf)
				require.NoError(t, err)
				require.Len(t, got, len(in))
				for i := range in {
					assert.True(t, in[i].Equal(got[i]), "prototype %d", i)
				}
			})

			t.Run("empty list", func(t *testing.T) {
				var buf bytes.Buffer
				require.NoError(t, c.Serialize(&buf, nil))
				got, err := c.Deserialize(&buf)
				require.NoError(t, err)
				assert.Empty(t, got)
			})

			t.Run("deterministic", func(t *testing.T) {
				var a, b bytes.Buffer
				require.NoError(t, c.Serialize(&a, samplePrototypes()))
				require.NoError(t, c.Serialize(&b, samplePrototypes()))
				assert.Equal(t, a.String(), b.String())
			})
		})
	}
}

func TestCodecs_ManySmall(t *testing.T) {
	for _, c := range []Codec{Text, JSON} {
		t.Run(c.Name(), func(t *testing.T) {
			for i := 1; i < 200; i++ {
				b := kb.NewPrototypeBuilder(kb.MustID(fmt.Sprintf("http://example.com#soMany%d", i-1)))
				for j := 0; j < 10; j++ {
					b.Add(kb.MustProperty(fmt.Sprintf("http://example.com#prop%d", j%3)), kb.MustID(fmt.Sprintf("http://example.com#val%d", j)))
					b.Remove(kb.MustProperty(fmt.Sprintf("http://example.com#proprem%d", j%3)), kb.MustID(fmt.Sprintf("http://example.com#val%d", j)))
				}
				p := b.Build(kb.MustID(fmt.Sprintf("http://example.com#soMany%d", i)))

				var buf bytes.Buffer
				require.NoError(t, c.Serialize(&buf, []*kb.Prototype{p}))
				got, err := c.Deserialize(&buf)
				require.NoError(t, err)
				require.Len(t, got, 1)
				assert.True(t, p.Equal(got[0]))
			}
		})
	}
}

func TestText_Format(t *testing.T) {
	michael := samplePrototypes()[3]
	var buf bytes.Buffer
	require.NoError(t, Text.SerializeOne(&buf, michael))

	want := `http://example.com/#Michael
base proto:P_0
rem http://example.com/#livesIn *
rem http://example.com/#hasName http://example.com/string/Mike
add http://example.com/#hasName http://example.com/string/Michael
add http://example.com/#livesIn http://example.com/#Galway http://example.com/#Jyvaskyla
`
	assert.Equal(t, want, buf.String())
}

func TestText_Lenient(t *testing.T) {
	input := `
# a comment before the first prototype

   http://example.com/#A
base   proto:P_0
	add http://example.com/#p   http://example.com/#B


http://example.com/#B
# comments may appear inside a prototype
base proto:P_0
`
	got, err := Text.Deserialize(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "http://example.com/#A", got[0].ID().String())
	assert.Equal(t, 1, got[0].Add().Len())
	assert.Equal(t, "http://example.com/#B", got[1].ID().String())
}

func TestText_ParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		line    int
		problem string
	}{
		{name: "missing base", input: "http://example.com/#A\n", line: 1, problem: "base line"},
		{name: "bad identifier", input: "not-an-iri\nbase proto:P_0\n", line: 1, problem: "identifier line"},
		{name: "two identifiers", input: "http://a.example/ http://b.example/\nbase proto:P_0\n", line: 1, problem: "identifier line"},
		{name: "bad base keyword", input: "http://example.com/#A\nparent proto:P_0\n", line: 2, problem: "base line"},
		{name: "bad base value", input: "http://example.com/#A\nbase nope\n", line: 2, problem: "base line"},
		{name: "short remove", input: "http://example.com/#A\nbase proto:P_0\nrem http://example.com/#p\n", line: 3, problem: "remove line"},
		{name: "wildcard with values", input: "http://example.com/#A\nbase proto:P_0\nrem http://example.com/#p * http://example.com/#v\n", line: 3, problem: "removeAll line"},
		{name: "short add", input: "http://example.com/#A\nbase proto:P_0\nadd http://example.com/#p\n", line: 3, problem: "add line"},
		{name: "bad value", input: "http://example.com/#A\nbase proto:P_0\nadd http://example.com/#p value\n", line: 3, problem: "add line"},
		{name: "remove after add", input: "http://example.com/#A\nbase proto:P_0\nadd http://example.com/#p http://example.com/#v\nrem http://example.com/#p *\n", line: 4, problem: "after an add line"},
		{name: "unknown keyword", input: "http://example.com/#A\nbase proto:P_0\nset http://example.com/#p http://example.com/#v\n", line: 3, problem: "is not consumed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Text.Deserialize(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformed)

			var perr *ParseError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, tt.line, perr.Line)
			assert.Contains(t, perr.Error(), tt.problem)
		})
	}
}

func TestText_DeserializeOne_Strict(t *testing.T) {
	input := "http://example.com/#A\nbase proto:P_0\n\nhttp://example.com/#B\nbase proto:P_0\n"
	_, err := Text.DeserializeOne(strings.NewReader(input))
	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 4, perr.Line)

	_, err = Text.DeserializeOne(strings.NewReader("\n\n"))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestJSON_Format(t *testing.T) {
	michael := samplePrototypes()[3]
	var buf bytes.Buffer
	require.NoError(t, JSON.SerializeOne(&buf, michael))

	assert.JSONEq(t, `{
		"id": "http://example.com/#Michael",
		"base": "proto:P_0",
		"add": {
			"http://example.com/#hasName": ["http://example.com/string/Michael"],
			"http://example.com/#livesIn": ["http://example.com/#Galway", "http://example.com/#Jyvaskyla"]
		},
		"rem": {"http://example.com/#hasName": ["http://example.com/string/Mike"]},
		"remAll": ["http://example.com/#livesIn"]
	}`, buf.String())

	var empty bytes.Buffer
	require.NoError(t, JSON.SerializeOne(&empty, samplePrototypes()[0]))
	assert.JSONEq(t, `{"id":"http://example.com/#City","base":"proto:P_0"}`, empty.String())
}

func TestJSON_Errors(t *testing.T) {
	tests := map[string]string{
		"syntax":         `{"id": `,
		"missing base":   `{"id": "http://example.com/#A"}`,
		"bad id":         `{"id": "A", "base": "proto:P_0"}`,
		"bad value":      `{"id": "http://example.com/#A", "base": "proto:P_0", "add": {"http://example.com/#p": ["v"]}}`,
		"bad property":   `{"id": "http://example.com/#A", "base": "proto:P_0", "remAll": ["p"]}`,
		"unknown field":  `{"id": "http://example.com/#A", "base": "proto:P_0", "parent": "x"}`,
		"trailing value": `{"id": "http://example.com/#A", "base": "proto:P_0"} {"id": "http://example.com/#B", "base": "proto:P_0"}`,
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := JSON.DeserializeOne(strings.NewReader(input))
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}

	_, err := JSON.Deserialize(strings.NewReader(`[{"id": "http://example.com/#A"}]`))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestLookup(t *testing.T) {
	c, err := ByName("json")
	require.NoError(t, err)
	assert.Equal(t, JSON, c)

	c, err = ByName("simple")
	require.NoError(t, err)
	assert.Equal(t, Text, c)

	_, err = ByName("xml")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	c, err = ByContentType("application/json; charset=utf-8")
	require.NoError(t, err)
	assert.Equal(t, JSON, c)

	c, err = ByContentType("text/plain")
	require.NoError(t, err)
	assert.Equal(t, Text, c)

	_, err = ByContentType("image/png")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	assert.Equal(t, JSON, ByPath("base.JSON"))
	assert.Equal(t, Text, ByPath("base.proto"))
	assert.Equal(t, []string{"application/json", "text/x-prototype"}, ContentTypes())
}
