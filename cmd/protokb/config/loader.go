// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	kb "github.com/AleutianAI/protokb/services/protokb/knowledgebase"
)

// DefaultFile is looked up in the working directory when --config is not
// given.
const DefaultFile = "protokb.yaml"

// ErrInvalid wraps validation failures.
var ErrInvalid = errors.New("invalid configuration")

// Load reads path over DefaultConfig and validates the result.
//
// Description:
//
//	Keys absent from the file keep their defaults. Unknown keys are an
//	error. A missing file is not an error: the defaults are returned and
//	found is false, so a bare `protokb serve` works without any setup.
//
// Outputs:
//   - Config: The merged configuration.
//   - bool: Whether the file existed.
//   - error: A read, parse, or ErrInvalid validation error.
func Load(path string) (Config, bool, error) {
	cfg := DefaultConfig()
	if path == "" {
		path = DefaultFile
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, false, cfg.Validate()
	}
	if err != nil {
		return cfg, false, fmt.Errorf("failed to read the config file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, true, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return cfg, true, cfg.Validate()
}

// WriteDefault writes DefaultConfig to path, creating its directory. An
// existing file is left alone and reported as fs.ErrExist.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s: %w", path, fs.ErrExist)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create the config directory: %w", err)
		}
	}
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks the struct tags, including the "iri" tag on map keys
// that name prototypes.
func (c Config) Validate() error {
	if err := newValidator().Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("iri", func(fl validator.FieldLevel) bool {
		_, err := kb.NewID(fl.Field().String())
		return err == nil
	})
	return v
}
