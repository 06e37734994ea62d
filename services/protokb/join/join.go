// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package join merges two deltas that describe the same logical prototype.
//
// Add-sets and remove-sets are combined by independent strategies, so a
// caller can, for example, keep every addition either side made (union)
// while only honoring removals both sides agree on (intersection):
//
//	s := join.Strategy{Add: join.UnionAdd{}, Remove: join.IntersectRemove{}}
//	merged, err := s.Join(local, remote)
package join

import (
	"errors"
	"fmt"

	kb "github.com/AleutianAI/protokb/services/protokb/knowledgebase"
)

// ErrJoinMismatch is returned when joining prototypes with different
// identifiers or different parents.
var ErrJoinMismatch = errors.New("prototypes cannot be joined")

// AddStrategy combines two add-sets.
type AddStrategy interface {
	JoinAdd(a, b kb.AddChangeSet) kb.AddChangeSet
}

// RemoveStrategy combines two remove-sets.
type RemoveStrategy interface {
	JoinRemove(a, b kb.RemoveChangeSet) kb.RemoveChangeSet
}

// UnionAdd keeps every pair added by either side.
type UnionAdd struct{}

// JoinAdd implements AddStrategy.
func (UnionAdd) JoinAdd(a, b kb.AddChangeSet) kb.AddChangeSet {
	out := kb.NewAddBuilder()
	for _, e := range a.Entries() {
		out.Add(e.Property, e.Value)
	}
	for _, e := range b.Entries() {
		out.Add(e.Property, e.Value)
	}
	return out.Build()
}

// IntersectAdd keeps only the pairs added by both sides.
type IntersectAdd struct{}

// JoinAdd implements AddStrategy.
func (IntersectAdd) JoinAdd(a, b kb.AddChangeSet) kb.AddChangeSet {
	out := kb.NewAddBuilder()
	for _, e := range a.Entries() {
		if b.Contains(e.Property, e.Value) {
			out.Add(e.Property, e.Value)
		}
	}
	return out.Build()
}

// UnionRemove removes whatever either side removes. A wildcard on either
// side dominates the explicit pairs of that property.
type UnionRemove struct{}

// JoinRemove implements RemoveStrategy.
func (UnionRemove) JoinRemove(a, b kb.RemoveChangeSet) kb.RemoveChangeSet {
	out := kb.NewRemoveBuilder()
	for _, p := range a.RemoveAll() {
		out.RemoveAll(p)
	}
	for _, p := range b.RemoveAll() {
		out.RemoveAll(p)
	}
	for _, e := range a.Entries() {
		out.Remove(e.Property, e.Value)
	}
	for _, e := range b.Entries() {
		out.Remove(e.Property, e.Value)
	}
	return out.Build()
}

// IntersectRemove removes only what both sides remove.
//
// Description:
//
//	A wildcard survives when both sides wildcard the property. An explicit
//	pair of one side survives when the other side removes the same pair
//	or wildcards its property, since that side removes the pair too.
//
// Example:
//
//	a = {all: P1 P2; P3->V3 P4->V4 P4->V5}
//	b = {all: P2 P3; P1->V1 P4->V5 P4->V6}
//	  -> {all: P2; P1->V1 P3->V3 P4->V5}
type IntersectRemove struct{}

// JoinRemove implements RemoveStrategy.
func (IntersectRemove) JoinRemove(a, b kb.RemoveChangeSet) kb.RemoveChangeSet {
	out := kb.NewRemoveBuilder()
	for _, p := range a.RemoveAll() {
		if b.RemovesAll(p) {
			out.RemoveAll(p)
		}
	}
	for _, e := range a.Entries() {
		if b.Contains(e.Property, e.Value) || b.RemovesAll(e.Property) {
			out.Remove(e.Property, e.Value)
		}
	}
	for _, e := range b.Entries() {
		if a.RemovesAll(e.Property) {
			out.Remove(e.Property, e.Value)
		}
	}
	return out.Build()
}

// Strategy joins whole prototypes.
type Strategy struct {
	Add    AddStrategy
	Remove RemoveStrategy
}

// Union returns the strategy that unions both change sets.
func Union() Strategy {
	return Strategy{Add: UnionAdd{}, Remove: UnionRemove{}}
}

// Intersect returns the strategy that intersects both change sets.
func Intersect() Strategy {
	return Strategy{Add: IntersectAdd{}, Remove: IntersectRemove{}}
}

// Join combines two prototypes sharing an identifier and a parent.
//
// Outputs:
//
//	*kb.Prototype - The joined prototype with the common id and parent.
//	error - ErrJoinMismatch if the identifiers or parents differ.
func (s Strategy) Join(a, b *kb.Prototype) (*kb.Prototype, error) {
	if a.ID() != b.ID() {
		return nil, fmt.Errorf("%w: identifiers %s and %s differ", ErrJoinMismatch, a.ID(), b.ID())
	}
	if a.Parent() != b.Parent() {
		return nil, fmt.Errorf("%w: %s has parents %s and %s", ErrJoinMismatch, a.ID(), a.Parent(), b.Parent())
	}
	def := kb.NewDefinition(
		a.Parent(),
		s.Remove.JoinRemove(a.Remove(), b.Remove()),
		s.Add.JoinAdd(a.Add(), b.Add()),
	)
	return kb.NewPrototype(a.ID(), def), nil
}
