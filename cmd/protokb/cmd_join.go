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
	"slices"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/protokb/services/protokb/join"
	kb "github.com/AleutianAI/protokb/services/protokb/knowledgebase"
)

func addStrategy(name string) (join.AddStrategy, error) {
	switch name {
	case "union":
		return join.UnionAdd{}, nil
	case "intersect":
		return join.IntersectAdd{}, nil
	}
	return nil, fmt.Errorf("unknown add strategy %q (union or intersect)", name)
}

func removeStrategy(name string) (join.RemoveStrategy, error) {
	switch name {
	case "union":
		return join.UnionRemove{}, nil
	case "intersect":
		return join.IntersectRemove{}, nil
	}
	return nil, fmt.Errorf("unknown remove strategy %q (union or intersect)", name)
}

// joinAll joins the prototypes of left and right that share an identifier.
// Prototypes present on one side only are returned in unpaired.
func joinAll(s join.Strategy, left, right []*kb.Prototype) (joined []*kb.Prototype, unpaired []kb.ID, err error) {
	byID := make(map[kb.ID]*kb.Prototype, len(right))
	for _, p := range right {
		byID[p.ID()] = p
	}
	seen := make(map[kb.ID]struct{}, len(left))
	for _, p := range left {
		seen[p.ID()] = struct{}{}
		other, ok := byID[p.ID()]
		if !ok {
			unpaired = append(unpaired, p.ID())
			continue
		}
		j, err := s.Join(p, other)
		if err != nil {
			return nil, nil, err
		}
		joined = append(joined, j)
	}
	for _, p := range right {
		if _, ok := seen[p.ID()]; !ok {
			unpaired = append(unpaired, p.ID())
		}
	}
	slices.SortFunc(unpaired, kb.ID.Compare)
	return joined, unpaired, nil
}

func (a *app) joinCmd() *cobra.Command {
	var (
		addName    string
		removeName string
		inFormat   string
		outFormat  string
	)
	cmd := &cobra.Command{
		Use:   "join FILE_A FILE_B",
		Short: "Join the prototypes two files define under the same identifier",
		Long: `Join combines two definitions of the same prototype that share a parent.
Add and remove change sets are joined independently, each by union or by
intersection. Prototypes defined in only one file are reported and skipped.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			add, err := addStrategy(addName)
			if err != nil {
				return err
			}
			remove, err := removeStrategy(removeName)
			if err != nil {
				return err
			}
			in, err := codecFlag(inFormat)
			if err != nil {
				return err
			}
			out, err := codecFlag(outFormat)
			if err != nil {
				return err
			}

			left, err := loadPrototypes(cmd.Context(), args[:1], in)
			if err != nil {
				return err
			}
			right, err := loadPrototypes(cmd.Context(), args[1:], in)
			if err != nil {
				return err
			}

			joined, unpaired, err := joinAll(join.Strategy{Add: add, Remove: remove}, left, right)
			if err != nil {
				return err
			}
			for _, id := range unpaired {
				a.printer.Warning("not in both files: " + id.String())
			}
			return writePrototypes(cmd.OutOrStdout(), out, joined)
		},
	}
	cmd.Flags().StringVar(&addName, "add", "union", "add change set join: union or intersect")
	cmd.Flags().StringVar(&removeName, "remove", "union", "remove change set join: union or intersect")
	cmd.Flags().StringVar(&inFormat, "in-format", "auto", "input format: auto, text or json")
	cmd.Flags().StringVar(&outFormat, "format", "text", "output format: text or json")
	return cmd
}
