// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	kb "github.com/AleutianAI/protokb/services/protokb/knowledgebase"
)

// jsonPrototype is the wire form of a prototype:
//
//	{"id": "...", "base": "...", "add": {"p": ["v"]}, "rem": {"p": ["v"]}, "remAll": ["p"]}
type jsonPrototype struct {
	ID     string              `json:"id"`
	Base   string              `json:"base"`
	Add    map[string][]string `json:"add,omitempty"`
	Rem    map[string][]string `json:"rem,omitempty"`
	RemAll []string            `json:"remAll,omitempty"`
}

type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) ContentType() string { return "application/json" }

func (jsonCodec) SerializeOne(w io.Writer, p *kb.Prototype) error {
	if err := json.NewEncoder(w).Encode(toJSON(p)); err != nil {
		return fmt.Errorf("encode prototype %s: %w", p.ID(), err)
	}
	return nil
}

func (jsonCodec) Serialize(w io.Writer, ps []*kb.Prototype) error {
	out := make([]jsonPrototype, len(ps))
	for i, p := range ps {
		out[i] = toJSON(p)
	}
	if err := json.NewEncoder(w).Encode(out); err != nil {
		return fmt.Errorf("encode prototypes: %w", err)
	}
	return nil
}

func (jsonCodec) DeserializeOne(r io.Reader) (*kb.Prototype, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var in jsonPrototype
	if err := dec.Decode(&in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: unexpected data after the prototype", ErrMalformed)
	}
	return fromJSON(in)
}

func (jsonCodec) Deserialize(r io.Reader) ([]*kb.Prototype, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var in []jsonPrototype
	if err := dec.Decode(&in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	out := make([]*kb.Prototype, 0, len(in))
	for i, jp := range in {
		p, err := fromJSON(jp)
		if err != nil {
			return nil, fmt.Errorf("prototype %d: %w", i, err)
		}
		out = append(out, p)
	}
	return out, nil
}

func toJSON(p *kb.Prototype) jsonPrototype {
	out := jsonPrototype{
		ID:   p.ID().String(),
		Base: p.Parent().String(),
		Add:  valuesToJSON(p.Add().EntrySet()),
		Rem:  valuesToJSON(p.Remove().EntrySet()),
	}
	for _, prop := range p.Remove().RemoveAll() {
		out.RemAll = append(out.RemAll, prop.String())
	}
	return out
}

func valuesToJSON(set []kb.PropertyValues) map[string][]string {
	if len(set) == 0 {
		return nil
	}
	out := make(map[string][]string, len(set))
	for _, pv := range set {
		values := make([]string, len(pv.Values))
		for i, v := range pv.Values {
			values[i] = v.String()
		}
		out[pv.Property.String()] = values
	}
	return out
}

func fromJSON(in jsonPrototype) (*kb.Prototype, error) {
	if in.ID == "" || in.Base == "" {
		return nil, fmt.Errorf("%w: id and base are required", ErrMalformed)
	}
	id, err := kb.NewID(in.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: id: %w", ErrMalformed, err)
	}
	parent, err := kb.NewID(in.Base)
	if err != nil {
		return nil, fmt.Errorf("%w: base of %s: %w", ErrMalformed, id, err)
	}

	b := kb.NewPrototypeBuilder(parent)
	for _, raw := range in.RemAll {
		prop, err := kb.NewProperty(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: remAll of %s: %w", ErrMalformed, id, err)
		}
		b.RemoveAll(prop)
	}
	err = eachPair(in.Rem, func(p kb.Property, v kb.ID) { b.Remove(p, v) })
	if err != nil {
		return nil, fmt.Errorf("%w: rem of %s: %w", ErrMalformed, id, err)
	}
	err = eachPair(in.Add, func(p kb.Property, v kb.ID) { b.Add(p, v) })
	if err != nil {
		return nil, fmt.Errorf("%w: add of %s: %w", ErrMalformed, id, err)
	}
	return b.Build(id), nil
}

func eachPair(m map[string][]string, fn func(kb.Property, kb.ID)) error {
	for rawProp, rawValues := range m {
		prop, err := kb.NewProperty(rawProp)
		if err != nil {
			return err
		}
		for _, raw := range rawValues {
			v, err := kb.NewID(raw)
			if err != nil {
				return err
			}
			fn(prop, v)
		}
	}
	return nil
}
