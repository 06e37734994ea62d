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
	"time"

	"github.com/AleutianAI/protokb/services/protokb"
	"github.com/AleutianAI/protokb/services/protokb/telemetry"
)

// Config is the protokb.yaml file.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Source SourceConfig `yaml:"source"`
	Cache  CacheConfig  `yaml:"cache"`

	// Alternates maps a prototype IRI to other locations of its definition,
	// advertised as Link headers.
	Alternates map[string][]string `yaml:"alternates,omitempty" validate:"dive,keys,iri,endkeys,dive,url"`

	Logging   LoggingConfig    `yaml:"logging"`
	Telemetry telemetry.Config `yaml:"telemetry"`
	Remote    RemoteConfig     `yaml:"remote"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"`                                     // e.g. 0.0.0.0
	Port            int           `yaml:"port" validate:"min=1,max=65535"`          // e.g. 12250
	Mode            string        `yaml:"mode" validate:"oneof=debug release test"` // gin mode
	BasePath        string        `yaml:"base_path" validate:"startswith=/"`        // route group
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gt=0"`
}

type SourceConfig struct {
	// Files are line-format or JSON files, by extension unless Format is set.
	Files  []string `yaml:"files" validate:"dive,required"`
	Format string   `yaml:"format,omitempty" validate:"omitempty,oneof=text json"`

	// StorePath is a Badger directory loaded after the files.
	StorePath string `yaml:"store_path,omitempty"`

	// Example adds the built-in cities and people base.
	Example bool `yaml:"example,omitempty"`

	Watch         bool          `yaml:"watch"`
	WatchDebounce time.Duration `yaml:"watch_debounce" validate:"min=0"`
}

type CacheConfig struct {
	// MaxAge is the default Cache-Control max-age in seconds; 0 disables it.
	MaxAge int `yaml:"max_age" validate:"min=0"`

	// MaxAgeOverrides sets max-age per prototype IRI.
	MaxAgeOverrides map[string]int `yaml:"max_age_overrides,omitempty" validate:"dive,keys,iri,endkeys,min=0"`

	ETagCapacity int `yaml:"etag_capacity" validate:"min=0"`
}

type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn warning error"`
	JSON  bool   `yaml:"json"`
	Dir   string `yaml:"dir,omitempty"`
}

type RemoteConfig struct {
	// Externals are prototype endpoints consulted, in order, for
	// identifiers the local sources do not define.
	Externals         []string      `yaml:"externals,omitempty" validate:"dive,url"`
	Timeout           time.Duration `yaml:"timeout" validate:"gt=0"`
	RequestsPerSecond float64       `yaml:"requests_per_second" validate:"min=0"`
	Burst             int           `yaml:"burst" validate:"min=0"`
	CacheCapacity     int           `yaml:"cache_capacity" validate:"min=0"`
}

// DefaultConfig returns the settings used when no file is present.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            12250,
			Mode:            "release",
			BasePath:        protokb.DefaultBasePath,
			ShutdownTimeout: 10 * time.Second,
		},
		Source: SourceConfig{
			WatchDebounce: protokb.DefaultWatchDebounce,
		},
		Cache: CacheConfig{
			MaxAge:       60,
			ETagCapacity: protokb.DefaultETagCapacity,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Telemetry: telemetry.DefaultConfig(),
		Remote: RemoteConfig{
			Timeout:       30 * time.Second,
			Burst:         1,
			CacheCapacity: 10000,
		},
	}
}
