// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/protokb/cmd/protokb/config"
	"github.com/AleutianAI/protokb/pkg/logging"
	"github.com/AleutianAI/protokb/pkg/ux"
)

// app carries the state shared by all commands of one invocation.
type app struct {
	// persistent flags
	configPath string
	logLevel   string
	logJSON    bool
	output     string

	cfg     config.Config
	logger  *logging.Logger
	printer *ux.Printer
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "protokb",
		Short: "Serve, inspect and benchmark prototype knowledge bases",
		Long: `protokb builds knowledge bases of prototypes: objects defined by a parent
and a change set of property values. It validates and resolves them, serves
them over HTTP and consumes them from remote servers.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(*cobra.Command, []string) { a.teardown() },
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "configuration file (default ./"+config.DefaultFile+" if present)")
	flags.StringVar(&a.logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")
	flags.BoolVar(&a.logJSON, "log-json", false, "always log JSON")
	flags.StringVar(&a.output, "output", "", "output style: full, minimal or machine (default: detect)")

	root.AddCommand(
		a.serveCmd(),
		a.validateCmd(),
		a.fixpointCmd(),
		a.fetchCmd(),
		a.joinCmd(),
		a.storeCmd(),
		a.benchCmd(),
		a.configCmd(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if a.output != "" {
		ux.SetPersonality(ux.ParsePersonalityLevel(a.output))
	} else {
		ux.InitPersonality()
	}
	a.printer = &ux.Printer{
		Out:   cmd.OutOrStdout(),
		Err:   cmd.ErrOrStderr(),
		Level: ux.GetPersonality(),
	}

	cfg, found, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.configPath != "" && !found {
		return fmt.Errorf("config file %s not found", a.configPath)
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if a.logJSON {
		cfg.Logging.JSON = true
	}
	a.cfg = cfg

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}
	format := logging.FormatAuto
	if cfg.Logging.JSON {
		format = logging.FormatJSON
	}
	a.logger = logging.New(logging.Config{
		Level:   level,
		Format:  format,
		LogDir:  cfg.Logging.Dir,
		Service: "protokb",
		Output:  cmd.ErrOrStderr(),
	})
	a.logger.SetDefault()
	a.logger.Debug("configuration loaded", "path", a.configPath, "from_file", found)
	return nil
}

func (a *app) teardown() {
	if a.logger != nil {
		_ = a.logger.Close()
	}
}
