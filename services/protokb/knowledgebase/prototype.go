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

import "fmt"

// GroundID identifies P_0, the empty prototype every chain ends at.
var GroundID = MustID("proto:P_0")

// ground is the P_0 sentinel. Its parent is itself and its change sets are empty.
var ground = &Prototype{id: GroundID, def: Definition{parent: GroundID}}

// Ground returns the P_0 sentinel.
//
// Every call returns the same pointer.
func Ground() *Prototype {
	return ground
}

// Definition is the delta of a prototype relative to its parent.
//
// Description:
//
//	A definition refers to its parent only by ID; whether the chain of
//	parents is acyclic is checked when a knowledge base is built.
//
// Thread Safety: Immutable; safe for concurrent use.
type Definition struct {
	parent ID
	remove RemoveChangeSet
	add    AddChangeSet
}

// NewDefinition assembles a definition from its parts.
func NewDefinition(parent ID, remove RemoveChangeSet, add AddChangeSet) Definition {
	return Definition{parent: parent, remove: remove, add: add}
}

// Parent returns the ID of the parent prototype.
func (d Definition) Parent() ID { return d.parent }

// Remove returns the edges removed from the parent.
func (d Definition) Remove() RemoveChangeSet { return d.remove }

// Add returns the edges added after the removals.
func (d Definition) Add() AddChangeSet { return d.add }

// Equal reports structural equality.
func (d Definition) Equal(other Definition) bool {
	return d.parent == other.parent && d.remove.Equal(other.remove) && d.add.Equal(other.add)
}

// Prototype is a definition paired with its own identity.
//
// Thread Safety: Immutable; safe for concurrent use.
type Prototype struct {
	id  ID
	def Definition
}

// NewPrototype returns the prototype id with definition def.
func NewPrototype(id ID, def Definition) *Prototype {
	return &Prototype{id: id, def: def}
}

// ID returns the identifier of the prototype.
func (p *Prototype) ID() ID { return p.id }

// Definition returns the delta of the prototype.
func (p *Prototype) Definition() Definition { return p.def }

// Parent is shorthand for p.Definition().Parent().
func (p *Prototype) Parent() ID { return p.def.parent }

// Add is shorthand for p.Definition().Add().
func (p *Prototype) Add() AddChangeSet { return p.def.add }

// Remove is shorthand for p.Definition().Remove().
func (p *Prototype) Remove() RemoveChangeSet { return p.def.remove }

// IsGround reports whether p is the P_0 sentinel.
func (p *Prototype) IsGround() bool { return p.id == GroundID }

// IsFixPoint reports whether p is already in fixpoint form: derived
// directly from P_0 and removing nothing.
func (p *Prototype) IsFixPoint() bool {
	return p.def.parent == GroundID && p.def.remove.IsEmpty()
}

// Equal reports whether p and other have the same id and definition.
//
// Two nil prototypes are equal; identical pointers short-circuit.
func (p *Prototype) Equal(other *Prototype) bool {
	if p == other {
		return true
	}
	if p == nil || other == nil {
		return false
	}
	return p.id == other.id && p.def.Equal(other.def)
}

// String renders the prototype for logs and test failures.
func (p *Prototype) String() string {
	return fmt.Sprintf("%s <- %s remove=%s add=%s", p.id, p.def.parent, p.def.remove, p.def.add)
}

// PrototypeBuilder assembles a prototype from individual edge changes.
//
// Description:
//
//	Removals and additions are recorded separately; on replay the
//	removals of a prototype are applied before its additions, so Replace
//	(remove every value, then add one) overrides an inherited property.
//
// Example:
//
//	galway := NewPrototypeBuilder(city.ID()).
//	    Add(hasName, MustID("http://example.com/string/Galway")).
//	    Build(MustID("http://example.com/#Galway"))
//
// Thread Safety: Not safe for concurrent use.
type PrototypeBuilder struct {
	parent ID
	add    *AddBuilder
	remove *RemoveBuilder
}

// NewPrototypeBuilder starts a prototype deriving from parent.
func NewPrototypeBuilder(parent ID) *PrototypeBuilder {
	return &PrototypeBuilder{
		parent: parent,
		add:    NewAddBuilder(),
		remove: NewRemoveBuilder(),
	}
}

// Add records the addition of (p, v).
func (b *PrototypeBuilder) Add(p Property, v ID) *PrototypeBuilder {
	b.add.Add(p, v)
	return b
}

// Remove records the removal of (p, v).
func (b *PrototypeBuilder) Remove(p Property, v ID) *PrototypeBuilder {
	b.remove.Remove(p, v)
	return b
}

// RemoveAll records the removal of every value of p.
func (b *PrototypeBuilder) RemoveAll(p Property) *PrototypeBuilder {
	b.remove.RemoveAll(p)
	return b
}

// Replace removes every inherited value of p and adds v.
func (b *PrototypeBuilder) Replace(p Property, v ID) *PrototypeBuilder {
	return b.RemoveAll(p).Add(p, v)
}

// Build returns the prototype with identity id.
func (b *PrototypeBuilder) Build(id ID) *Prototype {
	return NewPrototype(id, NewDefinition(b.parent, b.remove.Build(), b.add.Build()))
}
