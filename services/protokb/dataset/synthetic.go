// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package dataset generates knowledge bases for benchmarks, demos and tests.
//
// The synthetic generators are deterministic for a given size and seed.
// They return prototypes in definition order; Build assembles them into
// a knowledge base over the predefined literal base.
package dataset

import (
	"fmt"
	"math/rand/v2"

	kb "github.com/AleutianAI/protokb/services/protokb/knowledgebase"
	"github.com/AleutianAI/protokb/services/protokb/literal"
)

// Generator properties.
var (
	Value = kb.MustProperty("http://www.example.com#value")
	Knows = kb.MustProperty("http://www.example.com#knows")
)

// knowsN is the property family used by Incremental.
func knowsN(i int) kb.Property {
	return kb.MustProperty(fmt.Sprintf("http://www.example.com#knows%d", i))
}

// LayerID names the index-th prototype of a layer.
func LayerID(layer, index int) kb.ID {
	return kb.MustID(fmt.Sprintf("http://www.example.com#object%d_%d", layer, index))
}

// ObjectID names the index-th prototype of a flat dataset.
func ObjectID(index int) kb.ID {
	return kb.MustID(fmt.Sprintf("http://www.example.com#object%d", index))
}

// Build adds ps to a builder over the predefined literal base and builds it.
func Build(ps []*kb.Prototype) (*kb.KnowledgeBase, error) {
	b := kb.NewBuilder(literal.Default())
	if err := b.AddAll(ps...); err != nil {
		return nil, err
	}
	return b.Build()
}

// IdealCase returns a complete binary tree of prototypes with depth+1
// layers. Layer i holds 2^i prototypes; prototype (i, j) derives from
// (i-1, j/2) and sets Value to the integer j.
//
// Inputs:
//   - depth: Number of layers below the root. Must be in [0, 30].
func IdealCase(depth int) ([]*kb.Prototype, error) {
	if depth < 0 || depth > 30 {
		return nil, fmt.Errorf("depth %d out of range [0, 30]", depth)
	}
	ints := literal.Default().Integers

	out := make([]*kb.Prototype, 0, 1<<(depth+1)-1)
	out = append(out, kb.NewPrototypeBuilder(kb.GroundID).
		Add(Value, ints.MustDefine(0).ID()).
		Build(LayerID(0, 0)))
	for i := 1; i <= depth; i++ {
		for j := 0; j < 1<<i; j++ {
			out = append(out, kb.NewPrototypeBuilder(LayerID(i-1, j>>1)).
				Replace(Value, ints.MustDefine(int64(j)).ID()).
				Build(LayerID(i, j)))
		}
	}
	return out, nil
}

// Blocks returns layers of width prototypes each. Layer 0 derives from
// P_0 and Knows (0, 0). Every prototype in a later layer derives from a
// random prototype of the previous layer and Knows another random one.
func Blocks(layers, width int, seed uint64) ([]*kb.Prototype, error) {
	if layers < 1 || width < 1 {
		return nil, fmt.Errorf("layers (%d) and width (%d) must be positive", layers, width)
	}
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	out := make([]*kb.Prototype, 0, layers*width)
	first := LayerID(0, 0)
	for j := 0; j < width; j++ {
		out = append(out, kb.NewPrototypeBuilder(kb.GroundID).Add(Knows, first).Build(LayerID(0, j)))
	}
	for i := 1; i < layers; i++ {
		for j := 0; j < width; j++ {
			parent := LayerID(i-1, r.IntN(width))
			value := LayerID(i-1, r.IntN(width))
			out = append(out, kb.NewPrototypeBuilder(parent).Add(Knows, value).Build(LayerID(i, j)))
		}
	}
	return out, nil
}

// Incremental returns count prototypes where prototype i > 0 derives from
// a random earlier one and adds up to four values, drawn from ten
// properties, referencing any generated prototype.
func Incremental(count int, seed uint64) ([]*kb.Prototype, error) {
	const (
		maxProperties      = 5
		distinctProperties = 10
	)
	if count < 1 {
		return nil, fmt.Errorf("count %d must be positive", count)
	}
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	props := make([]kb.Property, distinctProperties)
	for i := range props {
		props[i] = knowsN(i)
	}

	out := make([]*kb.Prototype, 0, count)
	out = append(out, kb.NewPrototypeBuilder(kb.GroundID).Build(ObjectID(0)))
	for i := 1; i < count; i++ {
		b := kb.NewPrototypeBuilder(ObjectID(r.IntN(i)))
		for n := r.IntN(maxProperties); n > 0; n-- {
			b.Add(props[r.IntN(distinctProperties)], ObjectID(r.IntN(count)))
		}
		out = append(out, b.Build(ObjectID(i)))
	}
	return out, nil
}
