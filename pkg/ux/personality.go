// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
)

// PersonalityLevel defines the richness of CLI output.
type PersonalityLevel string

const (
	// PersonalityFull enables colors, icons and boxes.
	PersonalityFull PersonalityLevel = "full"

	// PersonalityMinimal uses icons and plain text.
	PersonalityMinimal PersonalityLevel = "minimal"

	// PersonalityMachine prints tab separated text suitable for scripting.
	PersonalityMachine PersonalityLevel = "machine"
)

// EnvPersonality overrides terminal detection.
const EnvPersonality = "PROTOKB_OUTPUT"

var (
	currentLevel  = PersonalityFull
	personalityMu sync.RWMutex
)

// GetPersonality returns the current output level.
func GetPersonality() PersonalityLevel {
	personalityMu.RLock()
	defer personalityMu.RUnlock()
	return currentLevel
}

// SetPersonality changes the output level.
func SetPersonality(level PersonalityLevel) {
	personalityMu.Lock()
	defer personalityMu.Unlock()
	currentLevel = level
}

// ParsePersonalityLevel converts a flag or environment value. Unknown
// values select PersonalityFull.
func ParsePersonalityLevel(s string) PersonalityLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "minimal", "min", "m":
		return PersonalityMinimal
	case "machine", "quiet", "q", "plain":
		return PersonalityMachine
	default:
		return PersonalityFull
	}
}

// InitPersonality picks the level from PROTOKB_OUTPUT, falling back to
// machine output when stdout is not a terminal.
func InitPersonality() {
	SetPersonality(detectPersonality(os.Getenv(EnvPersonality), isTerminal(os.Stdout)))
}

func detectPersonality(env string, terminal bool) PersonalityLevel {
	if env != "" {
		return ParsePersonalityLevel(env)
	}
	if !terminal {
		return PersonalityMachine
	}
	return PersonalityFull
}

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
