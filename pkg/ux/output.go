// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ux provides styled terminal output for the protokb CLI.
package ux

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Aleutian color palette
var (
	ColorTealBright  = lipgloss.Color("#2CD7C7")
	ColorTealPrimary = lipgloss.Color("#20B9B4")
	ColorTealDeep    = lipgloss.Color("#16858E")
	ColorSlate       = lipgloss.Color("#2C4A54")

	ColorSuccess = lipgloss.Color("#2CD7C7")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
)

// Styles provides pre-configured lipgloss styles
var Styles = struct {
	Title     lipgloss.Style
	Key       lipgloss.Style
	Muted     lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Highlight lipgloss.Style

	Box      lipgloss.Style
	ErrorBox lipgloss.Style
}{
	Title:     lipgloss.NewStyle().Bold(true).Foreground(ColorTealBright),
	Key:       lipgloss.NewStyle().Foreground(ColorTealPrimary),
	Muted:     lipgloss.NewStyle().Foreground(ColorSlate),
	Success:   lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning:   lipgloss.NewStyle().Foreground(ColorWarning),
	Error:     lipgloss.NewStyle().Foreground(ColorError),
	Highlight: lipgloss.NewStyle().Foreground(ColorTealBright).Bold(true),

	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorTealDeep).
		Padding(0, 1),
	ErrorBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorError).
		Padding(0, 1),
}

// Icon provides themed status icons
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconArrow   Icon = "→"
	IconBullet  Icon = "•"
)

// Render returns the icon with appropriate styling
func (i Icon) Render() string {
	switch i {
	case IconSuccess:
		return Styles.Success.Render(string(i))
	case IconWarning:
		return Styles.Warning.Render(string(i))
	case IconError:
		return Styles.Error.Render(string(i))
	default:
		return string(i)
	}
}

// Row is one labelled line of a Record.
type Row struct {
	Key    string
	Values []string
}

// Printer writes styled output at a personality level.
//
// Description:
//
//	Regular output goes to Out and diagnostics to Err. In machine mode
//	nothing is styled: records become tab separated lines and
//	decorations are dropped, so the output can be piped.
//
// Thread Safety: Not safe for concurrent use.
type Printer struct {
	Out   io.Writer
	Err   io.Writer
	Level PersonalityLevel
}

// NewPrinter returns a printer on stdout and stderr at the current
// personality level.
func NewPrinter() *Printer {
	return &Printer{Out: os.Stdout, Err: os.Stderr, Level: GetPersonality()}
}

func (p *Printer) machine() bool { return p.Level == PersonalityMachine }

// Title prints a heading; suppressed in machine mode.
func (p *Printer) Title(text string) {
	if p.machine() {
		return
	}
	fmt.Fprintln(p.Out, Styles.Title.Render(text))
}

// Success prints a success message with checkmark
func (p *Printer) Success(text string) {
	switch p.Level {
	case PersonalityMachine:
		fmt.Fprintf(p.Out, "OK: %s\n", text)
	case PersonalityMinimal:
		fmt.Fprintf(p.Out, "%s %s\n", IconSuccess, text)
	default:
		fmt.Fprintf(p.Out, "%s %s\n", IconSuccess.Render(), Styles.Success.Render(text))
	}
}

// Warning prints a warning message to Err.
func (p *Printer) Warning(text string) {
	switch p.Level {
	case PersonalityMachine:
		fmt.Fprintf(p.Err, "WARN: %s\n", text)
	case PersonalityMinimal:
		fmt.Fprintf(p.Err, "%s %s\n", IconWarning, text)
	default:
		fmt.Fprintf(p.Err, "%s %s\n", IconWarning.Render(), Styles.Warning.Render(text))
	}
}

// Error prints an error message to Err.
func (p *Printer) Error(text string) {
	switch p.Level {
	case PersonalityMachine:
		fmt.Fprintf(p.Err, "ERROR: %s\n", text)
	case PersonalityMinimal:
		fmt.Fprintf(p.Err, "%s %s\n", IconError, text)
	default:
		fmt.Fprintf(p.Err, "%s %s\n", IconError.Render(), Styles.Error.Render(text))
	}
}

// Info prints an informational line.
func (p *Printer) Info(text string) {
	if p.machine() {
		fmt.Fprintln(p.Out, text)
		return
	}
	fmt.Fprintf(p.Out, "%s %s\n", Styles.Muted.Render("│"), text)
}

// Record prints a titled block of rows. Rows with several values list
// one value per line. In machine mode each value is printed as
// "title<TAB>key<TAB>value".
func (p *Printer) Record(title string, rows []Row) {
	if p.machine() {
		for _, r := range rows {
			if len(r.Values) == 0 {
				fmt.Fprintf(p.Out, "%s\t%s\t\n", title, r.Key)
			}
			for _, v := range r.Values {
				fmt.Fprintf(p.Out, "%s\t%s\t%s\n", title, r.Key, v)
			}
		}
		return
	}

	width := 0
	for _, r := range rows {
		width = max(width, lipgloss.Width(r.Key))
	}
	var b strings.Builder
	b.WriteString(Styles.Title.Render(title))
	for _, r := range rows {
		key := Styles.Key.Render(r.Key + strings.Repeat(" ", width-lipgloss.Width(r.Key)))
		pad := strings.Repeat(" ", width)
		if len(r.Values) == 0 {
			b.WriteString("\n" + key + "  " + Styles.Muted.Render("(none)"))
		}
		for i, v := range r.Values {
			if i == 0 {
				b.WriteString("\n" + key + "  " + v)
			} else {
				b.WriteString("\n" + pad + "  " + v)
			}
		}
	}
	if p.Level == PersonalityMinimal {
		fmt.Fprintln(p.Out, b.String())
		return
	}
	fmt.Fprintln(p.Out, Styles.Box.Render(b.String()))
}

// Summary prints labelled counts on one line.
func (p *Printer) Summary(counts []Row) {
	if p.machine() {
		parts := make([]string, 0, len(counts))
		for _, c := range counts {
			parts = append(parts, c.Key+"="+strings.Join(c.Values, ","))
		}
		fmt.Fprintf(p.Out, "SUMMARY: %s\n", strings.Join(parts, " "))
		return
	}
	parts := make([]string, 0, len(counts))
	for _, c := range counts {
		parts = append(parts, Styles.Highlight.Render(strings.Join(c.Values, ","))+" "+Styles.Muted.Render(c.Key))
	}
	fmt.Fprintf(p.Out, "\n%s\n", strings.Join(parts, "  "))
}

// ProgressBar renders a simple progress bar
func (p *Printer) ProgressBar(current, total, width int) string {
	if p.machine() || total <= 0 {
		return fmt.Sprintf("%d/%d", current, total)
	}
	pct := float64(current) / float64(total)
	filled := min(int(pct*float64(width)), width)
	bar := Styles.Success.Render(strings.Repeat("█", filled)) +
		Styles.Muted.Render(strings.Repeat("░", width-filled))
	return fmt.Sprintf("%s %3.0f%%", bar, pct*100)
}
