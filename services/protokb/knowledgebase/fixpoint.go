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

// ComputeFixPoint resolves id to its fully materialized form.
//
// Description:
//
//	Walks parent links from id up to P_0, then replays each delta root
//	first, removals before additions, into an empty accumulator. The
//	result has P_0 as parent, no removals and the accumulated additions.
//	Ancestors may live in the external base.
//
// Outputs:
//
//	*Prototype - The fixpoint, carrying the identity id.
//	error - ErrNotDefined if id or an ancestor does not resolve,
//	        ErrCycle if the chain loops (possible only through external
//	        bases that were not validated, such as remote ones).
//
// Thread Safety: Safe for concurrent use.
func (kb *KnowledgeBase) ComputeFixPoint(id ID) (*Prototype, error) {
	start, ok := kb.IsDefined(id)
	if !ok {
		return nil, fmt.Errorf("fixpoint %s: %w", id, ErrNotDefined)
	}
	if start.IsGround() {
		return ground, nil
	}

	var stack []*Prototype
	seen := make(map[ID]struct{})
	for current := start; !current.IsGround(); {
		if _, dup := seen[current.id]; dup {
			return nil, inconsistent(id, ErrCycle, current.id.String())
		}
		seen[current.id] = struct{}{}
		stack = append(stack, current)

		parent, ok := kb.IsDefined(current.def.parent)
		if !ok {
			return nil, fmt.Errorf("fixpoint %s: parent %s: %w", id, current.def.parent, ErrNotDefined)
		}
		current = parent
	}

	acc := NewMutableChangeSet()
	for i := len(stack) - 1; i >= 0; i-- {
		stack[i].def.remove.RemoveFrom(acc)
		stack[i].def.add.AddTo(acc)
	}
	return NewPrototype(id, NewDefinition(GroundID, RemoveChangeSet{}, AddChangeSet{m: acc.m})), nil
}

// ComputeFixPoints resolves every local entry and returns the flattened base.
//
// Description:
//
//	Memoized: each resolved add-set is remembered, so an ancestor shared
//	by many entries is replayed once. A parent is always resolved before
//	its children. The result holds only the local entries, each deriving
//	directly from P_0, over the same external base.
//
// Outputs:
//
//	*KnowledgeBase - The flattened base.
//	error - ErrNotDefined or ErrCycle, see ComputeFixPoint.
//
// Thread Safety: Safe for concurrent use.
func (kb *KnowledgeBase) ComputeFixPoints() (*KnowledgeBase, error) {
	return kb.computeFixPoints(nil)
}

// computeFixPoints calls resolved once for every prototype that is
// replayed, local or external.
func (kb *KnowledgeBase) computeFixPoints(resolved func(ID)) (*KnowledgeBase, error) {
	done := map[ID]AddChangeSet{GroundID: {}}
	b := &Builder{entries: make(map[ID]*Prototype, len(kb.entries)), external: kb.ext()}
	for _, id := range kb.IDs() {
		add, err := kb.resolve(id, done, resolved)
		if err != nil {
			return nil, err
		}
		b.entries[id] = NewPrototype(id, NewDefinition(GroundID, RemoveChangeSet{}, add))
	}
	return b.buildUnchecked(), nil
}

// resolve returns the fixpoint add-set of id, replaying only the part of
// its chain that is not in done yet.
func (kb *KnowledgeBase) resolve(id ID, done map[ID]AddChangeSet, resolved func(ID)) (AddChangeSet, error) {
	var stack []*Prototype
	onPath := make(map[ID]struct{})
	current := id
	for {
		if _, ok := done[current]; ok {
			break
		}
		if _, dup := onPath[current]; dup {
			return AddChangeSet{}, inconsistent(id, ErrCycle, current.String())
		}
		onPath[current] = struct{}{}

		p, ok := kb.IsDefined(current)
		if !ok {
			return AddChangeSet{}, fmt.Errorf("fixpoint %s: ancestor %s: %w", id, current, ErrNotDefined)
		}
		stack = append(stack, p)
		current = p.def.parent
	}

	add := done[current]
	for i := len(stack) - 1; i >= 0; i-- {
		p := stack[i]
		acc := add.Mutable()
		p.def.remove.RemoveFrom(acc)
		p.def.add.AddTo(acc)
		add = AddChangeSet{m: acc.m}
		done[p.id] = add
		if resolved != nil {
			resolved(p.id)
		}
	}
	return add, nil
}
