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
	"slices"
	"strings"
)

// Entry is a single (property, value) edge.
type Entry struct {
	Property Property
	Value    ID
}

// PropertyValues groups the values of a change set under one property.
type PropertyValues struct {
	Property Property
	Values   []ID
}

// multimap maps a property to a set of values. Empty value sets are never
// stored, so len(m) is the number of affected properties.
type multimap map[Property]map[ID]struct{}

func (m multimap) put(p Property, v ID) {
	values, ok := m[p]
	if !ok {
		values = make(map[ID]struct{})
		m[p] = values
	}
	values[v] = struct{}{}
}

func (m multimap) remove(p Property, v ID) {
	values, ok := m[p]
	if !ok {
		return
	}
	delete(values, v)
	if len(values) == 0 {
		delete(m, p)
	}
}

func (m multimap) contains(p Property, v ID) bool {
	_, ok := m[p][v]
	return ok
}

func (m multimap) size() int {
	n := 0
	for _, values := range m {
		n += len(values)
	}
	return n
}

func (m multimap) clone() multimap {
	out := make(multimap, len(m))
	for p, values := range m {
		cp := make(map[ID]struct{}, len(values))
		for v := range values {
			cp[v] = struct{}{}
		}
		out[p] = cp
	}
	return out
}

func (m multimap) equal(other multimap) bool {
	if len(m) != len(other) {
		return false
	}
	for p, values := range m {
		otherValues, ok := other[p]
		if !ok || len(values) != len(otherValues) {
			return false
		}
		for v := range values {
			if _, ok := otherValues[v]; !ok {
				return false
			}
		}
	}
	return true
}

func (m multimap) values(p Property) []ID {
	values := m[p]
	out := make([]ID, 0, len(values))
	for v := range values {
		out = append(out, v)
	}
	slices.SortFunc(out, ID.Compare)
	return out
}

func (m multimap) properties() []Property {
	out := make([]Property, 0, len(m))
	for p := range m {
		out = append(out, p)
	}
	slices.SortFunc(out, Property.Compare)
	return out
}

func (m multimap) entries() []Entry {
	out := make([]Entry, 0, m.size())
	for _, p := range m.properties() {
		for _, v := range m.values(p) {
			out = append(out, Entry{Property: p, Value: v})
		}
	}
	return out
}

func (m multimap) entrySet() []PropertyValues {
	out := make([]PropertyValues, 0, len(m))
	for _, p := range m.properties() {
		out = append(out, PropertyValues{Property: p, Values: m.values(p)})
	}
	return out
}

func (m multimap) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, pv := range m.entrySet() {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(pv.Property.String())
		sb.WriteString(" -> [")
		for j, v := range pv.Values {
			if j > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(v.String())
		}
		sb.WriteByte(']')
	}
	sb.WriteByte('}')
	return sb.String()
}

// =============================================================================
// AddChangeSet
// =============================================================================

// AddChangeSet is an immutable set of (property, value) edges to add.
//
// Description:
//
//	For each property the values form a set; adding the same pair twice
//	has no effect. The zero value is the empty change set. Slices returned
//	by the accessors are fresh copies sorted by IRI.
//
// Thread Safety: Immutable; safe for concurrent use.
type AddChangeSet struct {
	m multimap
}

// Apply returns the values added for p.
func (a AddChangeSet) Apply(p Property) []ID {
	return a.m.values(p)
}

// Contains reports whether the pair (p, v) is added.
func (a AddChangeSet) Contains(p Property, v ID) bool {
	return a.m.contains(p, v)
}

// Entries returns every (property, value) pair.
func (a AddChangeSet) Entries() []Entry {
	return a.m.entries()
}

// EntrySet returns the values grouped by property.
func (a AddChangeSet) EntrySet() []PropertyValues {
	return a.m.entrySet()
}

// AffectsProperties returns the properties that have at least one value.
func (a AddChangeSet) AffectsProperties() []Property {
	return a.m.properties()
}

// IsEmpty reports whether the change set adds nothing.
func (a AddChangeSet) IsEmpty() bool {
	return len(a.m) == 0
}

// Len returns the number of (property, value) pairs.
func (a AddChangeSet) Len() int {
	return a.m.size()
}

// Equal reports whether both change sets contain the same pairs.
func (a AddChangeSet) Equal(other AddChangeSet) bool {
	return a.m.equal(other.m)
}

// AddTo inserts every pair into the accumulator.
func (a AddChangeSet) AddTo(acc *MutableChangeSet) {
	acc.init()
	for p, values := range a.m {
		for v := range values {
			acc.m.put(p, v)
		}
	}
}

// Mutable returns an accumulator seeded with the pairs of a.
func (a AddChangeSet) Mutable() *MutableChangeSet {
	return &MutableChangeSet{m: a.m.clone()}
}

// String renders the change set for logs and test failures.
func (a AddChangeSet) String() string {
	return a.m.String()
}

// AddBuilder accumulates pairs for a new AddChangeSet.
//
// Thread Safety: Not safe for concurrent use.
type AddBuilder struct {
	m multimap
}

// NewAddBuilder returns an empty builder.
func NewAddBuilder() *AddBuilder {
	return &AddBuilder{m: make(multimap)}
}

// Add records the pair (p, v).
func (b *AddBuilder) Add(p Property, v ID) *AddBuilder {
	b.m.put(p, v)
	return b
}

// AddAll records (p, v) for every v in values.
func (b *AddBuilder) AddAll(p Property, values ...ID) *AddBuilder {
	for _, v := range values {
		b.m.put(p, v)
	}
	return b
}

// Build returns the change set. The builder stays usable.
func (b *AddBuilder) Build() AddChangeSet {
	return AddChangeSet{m: b.m.clone()}
}

// =============================================================================
// RemoveChangeSet
// =============================================================================

// RemoveChangeSet is an immutable set of edges to remove plus a set of
// properties whose values are removed entirely.
//
// Description:
//
//	A wildcard removal dominates: a property marked "remove all" never
//	also carries explicit pairs. The zero value removes nothing.
//
// Thread Safety: Immutable; safe for concurrent use.
type RemoveChangeSet struct {
	m   multimap
	all map[Property]struct{}
}

// Apply returns the explicitly removed values for p.
func (r RemoveChangeSet) Apply(p Property) []ID {
	return r.m.values(p)
}

// Contains reports whether the explicit pair (p, v) is removed.
//
// A wildcard removal of p is not reported here; see RemovesAll.
func (r RemoveChangeSet) Contains(p Property, v ID) bool {
	return r.m.contains(p, v)
}

// RemovesAll reports whether every value of p is removed.
func (r RemoveChangeSet) RemovesAll(p Property) bool {
	_, ok := r.all[p]
	return ok
}

// RemoveAll returns the wildcard properties.
func (r RemoveChangeSet) RemoveAll() []Property {
	out := make([]Property, 0, len(r.all))
	for p := range r.all {
		out = append(out, p)
	}
	slices.SortFunc(out, Property.Compare)
	return out
}

// Entries returns every explicit (property, value) pair.
func (r RemoveChangeSet) Entries() []Entry {
	return r.m.entries()
}

// EntrySet returns the explicit values grouped by property.
func (r RemoveChangeSet) EntrySet() []PropertyValues {
	return r.m.entrySet()
}

// AffectsProperties returns the properties with explicit or wildcard removals.
func (r RemoveChangeSet) AffectsProperties() []Property {
	seen := make(map[Property]struct{}, len(r.m)+len(r.all))
	for p := range r.m {
		seen[p] = struct{}{}
	}
	for p := range r.all {
		seen[p] = struct{}{}
	}
	out := make([]Property, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	slices.SortFunc(out, Property.Compare)
	return out
}

// IsEmpty reports whether the change set removes nothing.
func (r RemoveChangeSet) IsEmpty() bool {
	return len(r.m) == 0 && len(r.all) == 0
}

// Len returns the number of explicit pairs.
func (r RemoveChangeSet) Len() int {
	return r.m.size()
}

// Equal reports whether both change sets remove the same pairs and properties.
func (r RemoveChangeSet) Equal(other RemoveChangeSet) bool {
	if len(r.all) != len(other.all) {
		return false
	}
	for p := range r.all {
		if _, ok := other.all[p]; !ok {
			return false
		}
	}
	return r.m.equal(other.m)
}

// RemoveFrom deletes the removed edges from the accumulator.
//
// Wildcard properties are cleared first, then the explicit pairs.
func (r RemoveChangeSet) RemoveFrom(acc *MutableChangeSet) {
	for p := range r.all {
		delete(acc.m, p)
	}
	for p, values := range r.m {
		for v := range values {
			acc.m.remove(p, v)
		}
	}
}

// String renders the change set for logs and test failures.
func (r RemoveChangeSet) String() string {
	var sb strings.Builder
	sb.WriteString("{all: [")
	for i, p := range r.RemoveAll() {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(p.String())
	}
	sb.WriteString("], ")
	sb.WriteString(r.m.String())
	sb.WriteByte('}')
	return sb.String()
}

// RemoveBuilder accumulates removals for a new RemoveChangeSet.
//
// Thread Safety: Not safe for concurrent use.
type RemoveBuilder struct {
	m   multimap
	all map[Property]struct{}
}

// NewRemoveBuilder returns an empty builder.
func NewRemoveBuilder() *RemoveBuilder {
	return &RemoveBuilder{m: make(multimap), all: make(map[Property]struct{})}
}

// Remove records the removal of (p, v). Ignored when p is already a wildcard.
func (b *RemoveBuilder) Remove(p Property, v ID) *RemoveBuilder {
	if _, ok := b.all[p]; ok {
		return b
	}
	b.m.put(p, v)
	return b
}

// RemoveAll marks p as a wildcard and drops its explicit pairs.
func (b *RemoveBuilder) RemoveAll(p Property) *RemoveBuilder {
	delete(b.m, p)
	b.all[p] = struct{}{}
	return b
}

// Build returns the change set. The builder stays usable.
func (b *RemoveBuilder) Build() RemoveChangeSet {
	all := make(map[Property]struct{}, len(b.all))
	for p := range b.all {
		all[p] = struct{}{}
	}
	return RemoveChangeSet{m: b.m.clone(), all: all}
}

// =============================================================================
// MutableChangeSet
// =============================================================================

// MutableChangeSet is the working set used while replaying deltas.
//
// The zero value is an empty accumulator ready for use.
//
// Thread Safety: Not safe for concurrent use.
type MutableChangeSet struct {
	m multimap
}

func (c *MutableChangeSet) init() {
	if c.m == nil {
		c.m = make(multimap)
	}
}

// NewMutableChangeSet returns an empty accumulator.
func NewMutableChangeSet() *MutableChangeSet {
	return &MutableChangeSet{m: make(multimap)}
}

// Put inserts the pair (p, v).
func (c *MutableChangeSet) Put(p Property, v ID) {
	c.init()
	c.m.put(p, v)
}

// Delete removes the pair (p, v) if present.
func (c *MutableChangeSet) Delete(p Property, v ID) {
	c.m.remove(p, v)
}

// DeleteAll removes every value of p.
func (c *MutableChangeSet) DeleteAll(p Property) {
	delete(c.m, p)
}

// Apply returns the current values of p.
func (c *MutableChangeSet) Apply(p Property) []ID {
	return c.m.values(p)
}

// Len returns the number of pairs.
func (c *MutableChangeSet) Len() int {
	return c.m.size()
}

// Freeze returns an immutable snapshot of the current pairs.
func (c *MutableChangeSet) Freeze() AddChangeSet {
	return AddChangeSet{m: c.m.clone()}
}
