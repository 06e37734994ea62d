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
	"strconv"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/protokb/pkg/ux"
	"github.com/AleutianAI/protokb/services/protokb/storage/badger"
)

func (a *app) storeCmd() *cobra.Command {
	var dbPath string
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Manage a Badger prototype store",
	}
	cmd.PersistentFlags().StringVar(&dbPath, "db", "", "store directory (default source.store_path)")

	open := func() (*badger.Store, func(), error) {
		path := dbPath
		if path == "" {
			path = a.cfg.Source.StorePath
		}
		if path == "" {
			return nil, nil, fmt.Errorf("no store: pass --db or set source.store_path")
		}
		db, err := badger.OpenPath(path, a.logger.Slog())
		if err != nil {
			return nil, nil, err
		}
		return badger.NewStore(db, a.logger.Slog()), func() { _ = db.Close() }, nil
	}

	var (
		inFormat string
		replace  bool
	)
	importCmd := &cobra.Command{
		Use:   "import FILE...",
		Short: "Validate files and write their prototypes to the store",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cd, err := codecFlag(inFormat)
			if err != nil {
				return err
			}
			ps, err := loadPrototypes(cmd.Context(), args, cd)
			if err != nil {
				return err
			}
			if _, err := buildBase(ps); err != nil {
				a.printer.Record("inconsistent", describeError(err))
				return err
			}

			store, closeStore, err := open()
			if err != nil {
				return err
			}
			defer closeStore()

			if replace {
				if err := store.Clear(cmd.Context()); err != nil {
					return err
				}
			}
			if err := store.Put(cmd.Context(), ps...); err != nil {
				return err
			}
			total, err := store.Count(cmd.Context())
			if err != nil {
				return err
			}
			a.printer.Success(fmt.Sprintf("imported %d prototypes, store holds %d", len(ps), total))
			return nil
		},
	}
	importCmd.Flags().StringVar(&inFormat, "format", "auto", "input format: auto, text or json")
	importCmd.Flags().BoolVar(&replace, "replace", false, "clear the store before importing")

	var outFormat string
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Write every stored prototype to stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cd, err := codecFlag(outFormat)
			if err != nil {
				return err
			}
			store, closeStore, err := open()
			if err != nil {
				return err
			}
			defer closeStore()

			ps, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			return writePrototypes(cmd.OutOrStdout(), cd, ps)
		},
	}
	exportCmd.Flags().StringVar(&outFormat, "format", "text", "output format: text or json")

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Count stored prototypes and check that they form a consistent base",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, closeStore, err := open()
			if err != nil {
				return err
			}
			defer closeStore()

			ps, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			status := "consistent"
			if _, err := buildBase(ps); err != nil {
				status = err.Error()
			}
			a.printer.Record(store.DB().Path(), []ux.Row{
				{Key: "prototypes", Values: []string{strconv.Itoa(len(ps))}},
				{Key: "status", Values: []string{status}},
			})
			return nil
		},
	}

	cmd.AddCommand(importCmd, exportCmd, statsCmd)
	return cmd
}
