// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package knowledgebase implements prototype-based knowledge representation.
//
// A prototype is defined as a delta relative to a parent prototype: a set of
// (property, value) edges removed and a set added. Following parent links
// from any prototype ends at the empty prototype P_0, which every knowledge
// base contains implicitly.
//
// # Model
//
//	P_0 ─┬─ City ──── Galway ──── Jyvaskyla
//	     └─ Person ── Michael
//
// Each arrow above is a PrototypeDefinition {parent, remove, add}. The
// fixpoint of a prototype is the add-set obtained by replaying every delta
// on its chain, root first, removals before additions.
//
// # Building a Base
//
// A KnowledgeBase is created only through a Builder. Build validates the
// whole set of definitions against the external base it is chained to:
//
//	b := knowledgebase.NewBuilder(literal.Default())
//	if err := b.Add(galway); err != nil {
//	    return err
//	}
//	kb, err := b.Build()
//	if err != nil {
//	    var cerr *knowledgebase.ConsistencyError
//	    if errors.As(err, &cerr) {
//	        log.Printf("prototype %s is invalid", cerr.ID)
//	    }
//	    return err
//	}
//
// # Lookups
//
// IsDefined consults the local entries, then P_0, then the external base.
// External bases may be literal bases, other knowledge bases or remote
// clients, so chains mix local and remote sources transparently.
//
// # Thread Safety
//
// A built KnowledgeBase is immutable and safe for any number of concurrent
// readers. Builder and MutableChangeSet are single-writer.
package knowledgebase
