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
)

// Builder collects prototypes for a new KnowledgeBase.
//
// Description:
//
//	Add and Remove check what can be checked locally; Build validates the
//	complete set. A Builder is single-writer; the KnowledgeBase it builds
//	may be shared freely. The zero value is an empty builder over
//	EmptyBase.
//
// Thread Safety: Not safe for concurrent use.
type Builder struct {
	entries  map[ID]*Prototype
	external Base
}

// NewBuilder returns an empty builder chained to external.
//
// A nil external is treated as EmptyBase.
func NewBuilder(external Base) *Builder {
	if external == nil {
		external = EmptyBase{}
	}
	return &Builder{entries: make(map[ID]*Prototype), external: external}
}

// Add records p.
//
// Outputs:
//
//	error - ErrNilPrototype if p is nil, ErrGroundingKey if p is P_0,
//	        ErrAlreadyDefined if the ID is already a local entry or defined
//	        by the external base.
func (b *Builder) Add(p *Prototype) error {
	if p == nil {
		return fmt.Errorf("add: %w", ErrNilPrototype)
	}
	if p.id == GroundID {
		return fmt.Errorf("add %s: %w", p.id, ErrGroundingKey)
	}
	if _, ok := b.entries[p.id]; ok {
		return fmt.Errorf("add %s: %w", p.id, ErrAlreadyDefined)
	}
	if _, ok := b.ext().IsDefined(p.id); ok {
		return fmt.Errorf("add %s: %w: %w", p.id, ErrAlreadyDefined, ErrRedefinition)
	}
	if b.entries == nil {
		b.entries = make(map[ID]*Prototype)
	}
	b.entries[p.id] = p
	return nil
}

// AddAll records every prototype, stopping at the first error.
func (b *Builder) AddAll(ps ...*Prototype) error {
	for _, p := range ps {
		if err := b.Add(p); err != nil {
			return err
		}
	}
	return nil
}

// Remove drops the local entry id.
//
// Removing an ID that is not a local entry is a no-op, unless the
// external base defines it: external entries can never be removed.
func (b *Builder) Remove(id ID) error {
	if _, ok := b.entries[id]; ok {
		delete(b.entries, id)
		return nil
	}
	if _, ok := b.ext().IsDefined(id); ok {
		return fmt.Errorf("remove %s: %w", id, ErrExternallyDefined)
	}
	return nil
}

// ext returns the external base; the zero Builder chains to EmptyBase.
func (b *Builder) ext() Base {
	if b.external == nil {
		return EmptyBase{}
	}
	return b.external
}

// Contains reports whether id is a local entry of the builder.
func (b *Builder) Contains(id ID) bool {
	_, ok := b.entries[id]
	return ok
}

// Len returns the number of local entries.
func (b *Builder) Len() int {
	return len(b.entries)
}

// Build validates the entries and returns the knowledge base.
//
// Description:
//
//	Checks, in IRI order of the entries:
//	  - P_0 is not an entry
//	  - no entry is already defined by the external base
//	  - every parent and every added value resolves
//	  - P_0 is never an added value
//	  - every parent chain reaches P_0 without revisiting an ID
//
//	The first violation is returned as a *ConsistencyError. The builder
//	is unchanged either way and may keep being used.
//
// Outputs:
//
//	*KnowledgeBase - The validated base, nil on error.
//	error - *ConsistencyError wrapping the violated invariant.
func (b *Builder) Build() (*KnowledgeBase, error) {
	ids := sortedIDs(b.entries)
	if err := b.check(ids); err != nil {
		return nil, err
	}
	return b.buildUnchecked(), nil
}

// buildUnchecked snapshots the entries without validation. Only for
// results that are consistent by construction, such as fixpoint output.
func (b *Builder) buildUnchecked() *KnowledgeBase {
	entries := make(map[ID]*Prototype, len(b.entries))
	for id, p := range b.entries {
		entries[id] = p
	}
	return &KnowledgeBase{entries: entries, external: b.ext()}
}

func (b *Builder) isDefined(id ID) bool {
	if _, ok := b.entries[id]; ok {
		return true
	}
	if id == GroundID {
		return true
	}
	_, ok := b.ext().IsDefined(id)
	return ok
}

func (b *Builder) check(ids []ID) error {
	for _, id := range ids {
		if id == GroundID {
			return inconsistent(id, ErrGroundingKey, "")
		}
		if _, ok := b.ext().IsDefined(id); ok {
			return inconsistent(id, ErrRedefinition, "")
		}
	}

	for _, id := range ids {
		def := b.entries[id].def
		if !b.isDefined(def.parent) {
			return inconsistent(id, ErrUndefinedParent, def.parent.String())
		}
		for _, e := range def.add.Entries() {
			if e.Value == GroundID {
				return inconsistent(id, ErrGroundingValue, e.Property.String())
			}
			if !b.isDefined(e.Value) {
				return inconsistent(id, ErrUndefinedValue, e.Value.String())
			}
		}
	}

	return b.checkAcyclic(ids)
}

// checkAcyclic walks the parent links of every entry. A walk stops at an
// ID already known to reach P_0 or at an external ID, whose own base was
// validated when it was built. Every ID on a finished walk is grounded,
// so later walks stop early and the whole check stays near linear.
func (b *Builder) checkAcyclic(ids []ID) error {
	grounded := map[ID]struct{}{GroundID: {}}
	for _, id := range ids {
		if _, ok := grounded[id]; ok {
			continue
		}
		path := make(map[ID]struct{})
		current := id
		for {
			if _, ok := grounded[current]; ok {
				break
			}
			p, local := b.entries[current]
			if !local {
				break
			}
			if _, seen := path[current]; seen {
				return inconsistent(id, ErrCycle, current.String())
			}
			path[current] = struct{}{}
			current = p.def.parent
		}
		for walked := range path {
			grounded[walked] = struct{}{}
		}
	}
	return nil
}
