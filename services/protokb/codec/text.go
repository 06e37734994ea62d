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
	"bufio"
	"fmt"
	"io"
	"strings"

	kb "github.com/AleutianAI/protokb/services/protokb/knowledgebase"
)

// textCodec reads and writes the line format:
//
//	<id>
//	base <parent>
//	rem <property> *
//	rem <property> <value> <value> ...
//	add <property> <value> <value> ...
//
// Removal lines come before addition lines. A blank line ends a
// prototype. Lines starting with '#' are comments.
type textCodec struct{}

const maxLineBytes = 4 << 20

func (textCodec) Name() string { return "text" }

func (textCodec) ContentType() string { return "text/x-prototype" }

func (c textCodec) SerializeOne(w io.Writer, p *kb.Prototype) error {
	bw := bufio.NewWriter(w)
	writeText(bw, p)
	return bw.Flush()
}

func (c textCodec) Serialize(w io.Writer, ps []*kb.Prototype) error {
	bw := bufio.NewWriter(w)
	for i, p := range ps {
		if i > 0 {
			bw.WriteByte('\n')
		}
		writeText(bw, p)
	}
	return bw.Flush()
}

func writeText(w *bufio.Writer, p *kb.Prototype) {
	w.WriteString(p.ID().String())
	w.WriteString("\nbase ")
	w.WriteString(p.Parent().String())
	w.WriteByte('\n')
	for _, prop := range p.Remove().RemoveAll() {
		fmt.Fprintf(w, "rem %s *\n", prop)
	}
	for _, pv := range p.Remove().EntrySet() {
		writeValues(w, "rem", pv)
	}
	for _, pv := range p.Add().EntrySet() {
		writeValues(w, "add", pv)
	}
}

func writeValues(w *bufio.Writer, keyword string, pv kb.PropertyValues) {
	w.WriteString(keyword)
	w.WriteByte(' ')
	w.WriteString(pv.Property.String())
	for _, v := range pv.Values {
		w.WriteByte(' ')
		w.WriteString(v.String())
	}
	w.WriteByte('\n')
}

type textLine struct {
	number int
	text   string
}

func (c textCodec) DeserializeOne(r io.Reader) (*kb.Prototype, error) {
	blocks, err := readBlocks(r)
	if err != nil {
		return nil, err
	}
	if len(blocks) == 0 {
		return nil, fmt.Errorf("%w: no prototype in input", ErrMalformed)
	}
	if len(blocks) > 1 {
		first := blocks[1][0]
		return nil, &ParseError{Line: first.number, Text: first.text, Problem: "came after the prototype definition"}
	}
	return parseBlock(blocks[0])
}

func (c textCodec) Deserialize(r io.Reader) ([]*kb.Prototype, error) {
	blocks, err := readBlocks(r)
	if err != nil {
		return nil, err
	}
	out := make([]*kb.Prototype, 0, len(blocks))
	for _, block := range blocks {
		p, err := parseBlock(block)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// readBlocks splits the input into groups of non-blank lines.
func readBlocks(r io.Reader) ([][]textLine, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var blocks [][]textLine
	var current []textLine
	number := 0
	for scanner.Scan() {
		number++
		text := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(text, "#"):
			continue
		case text == "":
			if len(current) > 0 {
				blocks = append(blocks, current)
				current = nil
			}
		default:
			current = append(current, textLine{number: number, text: text})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read prototypes: %w", err)
	}
	if len(current) > 0 {
		blocks = append(blocks, current)
	}
	return blocks, nil
}

func parseBlock(lines []textLine) (*kb.Prototype, error) {
	head := lines[0]
	if len(strings.Fields(head.text)) != 1 {
		return nil, &ParseError{Line: head.number, Text: head.text, Problem: "is not a proper identifier line"}
	}
	id, err := kb.NewID(head.text)
	if err != nil {
		return nil, &ParseError{Line: head.number, Text: head.text, Problem: "is not a proper identifier line", Err: err}
	}
	if len(lines) < 2 {
		return nil, &ParseError{Line: head.number, Text: head.text, Problem: "is not followed by a base line"}
	}

	baseLine := lines[1]
	fields := strings.Fields(baseLine.text)
	if len(fields) != 2 || fields[0] != "base" {
		return nil, &ParseError{Line: baseLine.number, Text: baseLine.text, Problem: "is not a proper base line"}
	}
	parent, err := kb.NewID(fields[1])
	if err != nil {
		return nil, &ParseError{Line: baseLine.number, Text: baseLine.text, Problem: "is not a proper base line", Err: err}
	}

	builder := kb.NewPrototypeBuilder(parent)
	adding := false
	for _, line := range lines[2:] {
		fields := strings.Fields(line.text)
		switch fields[0] {
		case "rem":
			if adding {
				return nil, &ParseError{Line: line.number, Text: line.text, Problem: "is a remove line after an add line"}
			}
			if err := parseRemove(builder, line, fields); err != nil {
				return nil, err
			}
		case "add":
			adding = true
			if err := parseAdd(builder, line, fields); err != nil {
				return nil, err
			}
		default:
			return nil, &ParseError{Line: line.number, Text: line.text, Problem: "is not consumed"}
		}
	}
	return builder.Build(id), nil
}

func parseRemove(b *kb.PrototypeBuilder, line textLine, fields []string) error {
	if len(fields) < 3 {
		return &ParseError{Line: line.number, Text: line.text, Problem: "is not a proper remove line"}
	}
	prop, err := kb.NewProperty(fields[1])
	if err != nil {
		return &ParseError{Line: line.number, Text: line.text, Problem: "is not a proper remove line", Err: err}
	}
	if fields[2] == "*" {
		if len(fields) != 3 {
			return &ParseError{Line: line.number, Text: line.text, Problem: "is not a proper removeAll line"}
		}
		b.RemoveAll(prop)
		return nil
	}
	for _, f := range fields[2:] {
		v, err := kb.NewID(f)
		if err != nil {
			return &ParseError{Line: line.number, Text: line.text, Problem: "is not a proper remove line", Err: err}
		}
		b.Remove(prop, v)
	}
	return nil
}

func parseAdd(b *kb.PrototypeBuilder, line textLine, fields []string) error {
	if len(fields) < 3 {
		return &ParseError{Line: line.number, Text: line.text, Problem: "is not a proper add line"}
	}
	prop, err := kb.NewProperty(fields[1])
	if err != nil {
		return &ParseError{Line: line.number, Text: line.text, Problem: "is not a proper add line", Err: err}
	}
	for _, f := range fields[2:] {
		v, err := kb.NewID(f)
		if err != nil {
			return &ParseError{Line: line.number, Text: line.text, Problem: "is not a proper add line", Err: err}
		}
		b.Add(prop, v)
	}
	return nil
}
