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
	"bytes"
	"log/slog"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kb "github.com/AleutianAI/protokb/services/protokb/knowledgebase"
)

func quietLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func TestIntegers(t *testing.T) {
	var logs bytes.Buffer
	ints := NewIntegers(quietLogger(&logs))

	tests := []struct {
		name    string
		id      string
		want    int64
		defined bool
	}{
		{name: "positive", id: "http://example.com/integer/42", want: 42, defined: true},
		{name: "zero", id: "http://example.com/integer/0", want: 0, defined: true},
		{name: "negative", id: "http://example.com/integer/-7", want: -7, defined: true},
		{name: "max", id: "http://example.com/integer/9223372036854775807", want: math.MaxInt64, defined: true},
		{name: "leading zero", id: "http://example.com/integer/042"},
		{name: "plus sign", id: "http://example.com/integer/+42"},
		{name: "not a number", id: "http://example.com/integer/forty-two"},
		{name: "overflow", id: "http://example.com/integer/9223372036854775808"},
		{name: "empty", id: "http://example.com/integer/"},
		{name: "other prefix", id: "http://example.com/string/42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := kb.MustID(tt.id)
			proto, ok := ints.IsDefined(id)
			if !tt.defined {
				assert.False(t, ok)
				assert.Nil(t, proto)
				return
			}
			require.True(t, ok)
			assert.Equal(t, id, proto.ID())
			assert.Same(t, ints.MustDefine(tt.want), proto)
			assert.Equal(t, kb.GroundID, proto.Parent())
			assert.True(t, proto.Add().IsEmpty())
		})
	}

	assert.Contains(t, logs.String(), "does not decode")
	assert.Contains(t, logs.String(), "forty-two")
}

func TestStrings(t *testing.T) {
	strs := NewStrings(quietLogger(&bytes.Buffer{}))

	values := []string{"Galway", "Jyväskylä", "a b", "a/b?c#d", "100%", "+", ""}
	for _, v := range values {
		t.Run(v, func(t *testing.T) {
			proto, err := strs.Define(v)
			require.NoError(t, err)

			again, ok := strs.IsDefined(proto.ID())
			require.True(t, ok, "id %s", proto.ID())
			assert.Same(t, proto, again)
		})
	}

	galway := strs.MustDefine("Galway")
	assert.Equal(t, "http://example.com/string/Galway", galway.ID().String())
	assert.Equal(t, "http://example.com/string/a+b", strs.MustDefine("a b").ID().String())

	_, ok := strs.IsDefined(kb.MustID("http://example.com/string/a%20b"))
	assert.False(t, ok, "non-canonical encoding is not defined")

	_, ok = strs.IsDefined(kb.MustID("http://example.com/integer/1"))
	assert.False(t, ok)
}

func TestPart_IdentityUnderConcurrency(t *testing.T) {
	ints := NewIntegers(nil)
	const workers = 32

	results := make([]*kb.Prototype, workers)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			if i%2 == 0 {
				results[i] = ints.MustDefine(42)
				return
			}
			p, _ := ints.IsDefined(kb.MustID("http://example.com/integer/42"))
			results[i] = p
		}(i)
	}
	close(start)
	wg.Wait()

	for i := 1; i < workers; i++ {
		assert.Same(t, results[0], results[i], "worker %d saw a different prototype", i)
	}
}

func TestNewPart_InvalidPrefix(t *testing.T) {
	_, err := NewPart("relative/", func(b bool) string { return "x" }, func(string) (bool, bool) { return false, false }, nil)
	assert.ErrorIs(t, err, kb.ErrInvalidIdentifier)
}

func TestPart_NonCanonicalFragment(t *testing.T) {
	var logs bytes.Buffer
	bools, err := NewPart("http://example.com/boolean/",
		func(b bool) string {
			if b {
				return "true"
			}
			return "false"
		},
		func(s string) (bool, bool) {
			switch strings.ToLower(s) {
			case "true", "yes":
				return true, true
			case "false", "no":
				return false, true
			}
			return false, false
		}, quietLogger(&logs))
	require.NoError(t, err)

	p, ok := bools.IsDefined(kb.MustID("http://example.com/boolean/true"))
	require.True(t, ok)
	assert.Same(t, bools.MustDefine(true), p)
	assert.Empty(t, logs.String())

	_, ok = bools.IsDefined(kb.MustID("http://example.com/boolean/YES"))
	assert.False(t, ok)
	assert.Contains(t, logs.String(), "not canonical")
	assert.Contains(t, logs.String(), "http://example.com/boolean/true")
}

func TestPredefined(t *testing.T) {
	pre := New(quietLogger(&bytes.Buffer{}))

	p, ok := pre.IsDefined(kb.GroundID)
	require.True(t, ok)
	assert.Same(t, kb.Ground(), p)

	p, ok = pre.IsDefined(kb.MustID("http://example.com/integer/7"))
	require.True(t, ok)
	assert.Same(t, pre.Int(7), p)

	p, ok = pre.IsDefined(kb.MustID("http://example.com/string/seven"))
	require.True(t, ok)
	assert.Same(t, pre.Str("seven"), p)

	_, ok = pre.IsDefined(kb.MustID("http://example.com/#seven"))
	assert.False(t, ok)
}

func TestPredefined_Extend(t *testing.T) {
	pre := New(nil)
	bools, err := NewPart("http://example.com/boolean/",
		func(b bool) string {
			if b {
				return "true"
			}
			return "false"
		},
		func(s string) (bool, bool) {
			switch s {
			case "true":
				return true, true
			case "false":
				return false, true
			}
			return false, false
		}, nil)
	require.NoError(t, err)

	ext := pre.Extend(bools)
	p, ok := ext.IsDefined(kb.MustID("http://example.com/boolean/true"))
	require.True(t, ok)
	assert.Same(t, bools.MustDefine(true), p)

	_, ok = pre.IsDefined(kb.MustID("http://example.com/boolean/true"))
	assert.False(t, ok, "extending returns a new base")
	assert.Same(t, pre.Int(1), ext.Int(1), "caches are shared")
}

func TestDefault_IsShared(t *testing.T) {
	assert.Same(t, Default(), Default())
	assert.Same(t, Default().Int(5), Default().Int(5))
}

func TestPredefined_AsExternalBase(t *testing.T) {
	pre := New(nil)
	hasName := kb.MustProperty("http://example.com/#hasName")
	galway := kb.NewPrototypeBuilder(kb.GroundID).
		Add(hasName, pre.Str("Galway").ID()).
		Build(kb.MustID("http://example.com/#Galway"))

	b := kb.NewBuilder(pre)
	require.NoError(t, b.Add(galway))
	base, err := b.Build()
	require.NoError(t, err)

	p, ok := base.IsDefined(kb.MustID("http://example.com/integer/3"))
	require.True(t, ok)
	assert.Same(t, pre.Int(3), p)

	err = kb.NewBuilder(base).Add(pre.Int(3))
	assert.ErrorIs(t, err, kb.ErrAlreadyDefined)
}
