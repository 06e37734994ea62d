// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kb "github.com/AleutianAI/protokb/services/protokb/knowledgebase"
	"github.com/AleutianAI/protokb/services/protokb/literal"
)

func str(s string) kb.ID { return literal.Default().Str(s).ID() }

func TestExampleBase_FixPoints(t *testing.T) {
	base := ExampleBase()
	assert.Equal(t, 7, base.Len())

	tests := []struct {
		id      kb.ID
		names   []kb.ID
		livesIn []kb.ID
	}{
		{id: City},
		{id: Galway, names: []kb.ID{str("Galway")}},
		{id: Jyvaskyla, names: []kb.ID{str("Jyväskylä")}},
		{id: Antwerp, names: []kb.ID{str("Antwerp")}},
		{id: Michael, names: []kb.ID{str("Michael")}, livesIn: []kb.ID{Antwerp, Jyvaskyla}},
		{id: Stefan, names: []kb.ID{str("Stefan")}, livesIn: []kb.ID{Aachen, Antwerp}},
	}
	for _, tt := range tests {
		t.Run(tt.id.String(), func(t *testing.T) {
			fp, err := base.ComputeFixPoint(tt.id)
			require.NoError(t, err)
			assert.True(t, fp.IsFixPoint())
			assert.ElementsMatch(t, tt.names, fp.Add().Apply(HasName))
			assert.ElementsMatch(t, tt.livesIn, fp.Add().Apply(LivesIn))
		})
	}
}

func TestIdealCase(t *testing.T) {
	ps, err := IdealCase(4)
	require.NoError(t, err)
	assert.Len(t, ps, 31)

	base, err := Build(ps)
	require.NoError(t, err)

	fp, err := base.ComputeFixPoint(LayerID(4, 13))
	require.NoError(t, err)
	assert.Equal(t, []kb.ID{literal.Default().Int(13).ID()}, fp.Add().Apply(Value))

	_, err = IdealCase(-1)
	assert.Error(t, err)
}

func TestBlocks(t *testing.T) {
	ps, err := Blocks(5, 40, 7)
	require.NoError(t, err)
	assert.Len(t, ps, 200)

	base, err := Build(ps)
	require.NoError(t, err)

	all, err := base.ComputeFixPoints()
	require.NoError(t, err)
	fp, ok := all.IsDefined(LayerID(4, 0))
	require.True(t, ok)
	// one Knows value per layer on the path to the root, with repeats merged
	values := fp.Add().Apply(Knows)
	assert.NotEmpty(t, values)
	assert.LessOrEqual(t, len(values), 5)

	_, err = Blocks(0, 1, 1)
	assert.Error(t, err)
}

func TestIncremental(t *testing.T) {
	ps, err := Incremental(500, 42)
	require.NoError(t, err)
	assert.Len(t, ps, 500)

	base, err := Build(ps)
	require.NoError(t, err)

	all, err := base.ComputeFixPoints()
	require.NoError(t, err)
	assert.Equal(t, 500, all.Len())

	_, err = Incremental(0, 1)
	assert.Error(t, err)
}

func TestGenerators_Deterministic(t *testing.T) {
	a, err := Incremental(100, 3)
	require.NoError(t, err)
	b, err := Incremental(100, 3)
	require.NoError(t, err)
	for i := range a {
		assert.True(t, a[i].Equal(b[i]))
	}

	c, err := Blocks(3, 10, 3)
	require.NoError(t, err)
	d, err := Blocks(3, 10, 3)
	require.NoError(t, err)
	for i := range c {
		assert.True(t, c[i].Equal(d[i]))
	}
}
