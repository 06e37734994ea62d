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
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/protokb/pkg/ux"
	kb "github.com/AleutianAI/protokb/services/protokb/knowledgebase"
)

func (a *app) validateCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "validate FILE...",
		Short: "Parse and build knowledge base files, reporting the first inconsistency",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cd, err := codecFlag(format)
			if err != nil {
				return err
			}

			start := time.Now()
			ps, err := loadPrototypes(cmd.Context(), args, cd)
			if err != nil {
				a.printer.Record("parse failed", describeError(err))
				return err
			}
			base, err := buildBase(ps)
			if err != nil {
				a.printer.Record("inconsistent", describeError(err))
				return err
			}

			a.printer.Record("consistent", []ux.Row{
				{Key: "files", Values: args},
				{Key: "prototypes", Values: []string{strconv.Itoa(base.Len())}},
				{Key: "duration", Values: []string{time.Since(start).Round(time.Microsecond).String()}},
			})
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "auto", "input format: auto, text or json")
	return cmd
}

func (a *app) fixpointCmd() *cobra.Command {
	var (
		inFormat  string
		outFormat string
		ids       []string
	)
	cmd := &cobra.Command{
		Use:   "fixpoint FILE...",
		Short: "Print the fixpoints of all prototypes, or of those named with --id",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := codecFlag(inFormat)
			if err != nil {
				return err
			}
			out, err := codecFlag(outFormat)
			if err != nil {
				return err
			}
			wanted, err := parseIDs(ids)
			if err != nil {
				return err
			}

			ps, err := loadPrototypes(cmd.Context(), args, in)
			if err != nil {
				return err
			}
			base, err := buildBase(ps)
			if err != nil {
				return err
			}

			var fps []*kb.Prototype
			if len(wanted) == 0 {
				resolved, err := base.ComputeFixPoints()
				if err != nil {
					return err
				}
				fps = resolved.Prototypes()
			} else {
				for _, id := range wanted {
					fp, err := base.ComputeFixPoint(id)
					if err != nil {
						return fmt.Errorf("fixpoint of %s: %w", id, err)
					}
					fps = append(fps, fp)
				}
			}
			return writePrototypes(cmd.OutOrStdout(), out, fps)
		},
	}
	cmd.Flags().StringVar(&inFormat, "in-format", "auto", "input format: auto, text or json")
	cmd.Flags().StringVar(&outFormat, "format", "text", "output format: text or json")
	cmd.Flags().StringArrayVar(&ids, "id", nil, "prototype IRI to resolve (repeatable)")
	return cmd
}
