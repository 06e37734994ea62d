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
	kb "github.com/AleutianAI/protokb/services/protokb/knowledgebase"
	"github.com/AleutianAI/protokb/services/protokb/literal"
)

// Properties of the example base.
var (
	HasName = kb.MustProperty("http://example.com/#hasName")
	LivesIn = kb.MustProperty("http://example.com/#livesIn")
)

// Identifiers of the example base.
var (
	City      = kb.MustID("http://example.com/#City")
	Galway    = kb.MustID("http://example.ie/#Galway")
	Jyvaskyla = kb.MustID("http://example.fi/#Jyvaskyla")
	Aachen    = kb.MustID("http://example.de/#Aachen")
	Antwerp   = kb.MustID("http://example.de/#Antwerp")
	Michael   = kb.MustID("http://example.org/#Michael")
	Stefan    = kb.MustID("http://example.org/#Stefan")
)

// Example returns the prototypes of a small base about people and the
// cities they live in:
//
//   - Galway is a City named "Galway".
//   - Jyvaskyla is Galway with its name replaced.
//   - Antwerp is Aachen with its name replaced.
//   - Michael lives in Jyvaskyla and Antwerp.
//   - Stefan is Michael, renamed, living in Aachen instead of Jyvaskyla.
func Example() []*kb.Prototype {
	str := func(s string) kb.ID { return literal.Default().Str(s).ID() }

	return []*kb.Prototype{
		kb.NewPrototypeBuilder(kb.GroundID).Build(City),
		kb.NewPrototypeBuilder(City).
			Add(HasName, str("Galway")).
			Build(Galway),
		kb.NewPrototypeBuilder(Galway).
			Remove(HasName, str("Galway")).
			Add(HasName, str("Jyväskylä")).
			Build(Jyvaskyla),
		kb.NewPrototypeBuilder(City).
			Add(HasName, str("Aachen")).
			Build(Aachen),
		kb.NewPrototypeBuilder(Aachen).
			Replace(HasName, str("Antwerp")).
			Build(Antwerp),
		kb.NewPrototypeBuilder(kb.GroundID).
			Add(HasName, str("Michael")).
			Add(LivesIn, Jyvaskyla).
			Add(LivesIn, Antwerp).
			Build(Michael),
		kb.NewPrototypeBuilder(Michael).
			Replace(HasName, str("Stefan")).
			Remove(LivesIn, Jyvaskyla).
			Add(LivesIn, Aachen).
			Build(Stefan),
	}
}

// ExampleBase builds Example over the predefined literal base.
func ExampleBase() *kb.KnowledgeBase {
	base, err := Build(Example())
	if err != nil {
		panic("example base is inconsistent: " + err.Error())
	}
	return base
}
