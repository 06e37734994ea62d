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
	"slices"
)

// KnowledgeBase is a validated, immutable set of prototype definitions
// chained to an external base.
//
// Description:
//
//	Created only by Builder.Build. Lookups consult the local entries,
//	then P_0, then the external base. The external base is referenced and
//	never modified; many knowledge bases may share one. The zero value is
//	an empty base over EmptyBase.
//
// Thread Safety: Immutable; safe for unlimited concurrent readers.
type KnowledgeBase struct {
	entries  map[ID]*Prototype
	external Base
}

var _ FixPointer = (*KnowledgeBase)(nil)

// Empty returns a knowledge base without local entries over external.
//
// A nil external is treated as EmptyBase.
func Empty(external Base) *KnowledgeBase {
	if external == nil {
		external = EmptyBase{}
	}
	return &KnowledgeBase{entries: map[ID]*Prototype{}, external: external}
}

// IsDefined returns the prototype for id.
//
// Description:
//
//	Checks the local entries, then P_0, then delegates to the external
//	base. Cost is proportional to the depth of the external chain.
//
// Outputs:
//
//	*Prototype - The prototype, nil on a miss.
//	bool - True if id is defined anywhere on the chain.
//
// Thread Safety: Safe for concurrent use.
func (kb *KnowledgeBase) IsDefined(id ID) (*Prototype, bool) {
	if p, ok := kb.entries[id]; ok {
		return p, true
	}
	if id == GroundID {
		return ground, true
	}
	return kb.ext().IsDefined(id)
}

// Get is IsDefined with a descriptive error on a miss.
func (kb *KnowledgeBase) Get(id ID) (*Prototype, error) {
	p, ok := kb.IsDefined(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotDefined, id)
	}
	return p, nil
}

// Contains reports whether id is a local entry.
func (kb *KnowledgeBase) Contains(id ID) bool {
	_, ok := kb.entries[id]
	return ok
}

// Len returns the number of local entries.
func (kb *KnowledgeBase) Len() int {
	return len(kb.entries)
}

// External returns the external base.
func (kb *KnowledgeBase) External() Base {
	return kb.ext()
}

// ext returns the external base; the zero KnowledgeBase chains to
// EmptyBase.
func (kb *KnowledgeBase) ext() Base {
	if kb.external == nil {
		return EmptyBase{}
	}
	return kb.external
}

// IDs returns the local identifiers in IRI order.
func (kb *KnowledgeBase) IDs() []ID {
	return sortedIDs(kb.entries)
}

// Prototypes returns the local prototypes in IRI order.
func (kb *KnowledgeBase) Prototypes() []*Prototype {
	ids := kb.IDs()
	out := make([]*Prototype, len(ids))
	for i, id := range ids {
		out[i] = kb.entries[id]
	}
	return out
}

// ToBuilder returns a builder seeded with a copy of the local entries and
// the same external base.
func (kb *KnowledgeBase) ToBuilder() *Builder {
	entries := make(map[ID]*Prototype, len(kb.entries))
	for id, p := range kb.entries {
		entries[id] = p
	}
	return &Builder{entries: entries, external: kb.ext()}
}

func sortedIDs(entries map[ID]*Prototype) []ID {
	ids := make([]ID, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, ID.Compare)
	return ids
}
