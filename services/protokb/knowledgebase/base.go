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

// Base is anything that can resolve a prototype by ID.
//
// Description:
//
//	Implemented by KnowledgeBase, the literal bases and remote clients, so
//	that chains of external bases can mix local and remote sources.
//	A miss is an ordinary outcome and returns (nil, false).
//
// Thread Safety: Implementations must be safe for concurrent use.
type Base interface {
	IsDefined(id ID) (*Prototype, bool)
}

// FixPointer is a Base that can also resolve a prototype to its fixpoint.
type FixPointer interface {
	Base

	// ComputeFixPoint returns the fully resolved form of id.
	ComputeFixPoint(id ID) (*Prototype, error)
}

// EmptyBase defines nothing but P_0.
type EmptyBase struct{}

// IsDefined implements Base.
func (EmptyBase) IsDefined(id ID) (*Prototype, bool) {
	if id == GroundID {
		return ground, true
	}
	return nil, false
}

// chain tries each base in order.
type chain []Base

// Chain returns a Base that consults bases in order and returns the first hit.
//
// Nil entries are skipped. The bases are referenced, not copied.
func Chain(bases ...Base) Base {
	out := make(chain, 0, len(bases))
	for _, b := range bases {
		if b != nil {
			out = append(out, b)
		}
	}
	return out
}

// IsDefined implements Base.
func (c chain) IsDefined(id ID) (*Prototype, bool) {
	for _, b := range c {
		if p, ok := b.IsDefined(id); ok {
			return p, true
		}
	}
	return nil, false
}
