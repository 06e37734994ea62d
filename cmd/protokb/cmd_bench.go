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
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/protokb/pkg/ux"
	"github.com/AleutianAI/protokb/services/protokb/dataset"
	kb "github.com/AleutianAI/protokb/services/protokb/knowledgebase"
)

// benchOptions selects and sizes a generated base.
type benchOptions struct {
	kind    string
	size    int
	width   int
	seed    uint64
	readers int
	rounds  int
}

// benchResult holds the timings of one benchmark run.
type benchResult struct {
	prototypes int
	generate   time.Duration
	build      time.Duration
	fixpoints  time.Duration
	reads      time.Duration
	lookups    int64
}

func generate(opts benchOptions) ([]*kb.Prototype, error) {
	switch opts.kind {
	case "ideal":
		return dataset.IdealCase(opts.size)
	case "blocks":
		return dataset.Blocks(opts.size, opts.width, opts.seed)
	case "incremental":
		return dataset.Incremental(opts.size, opts.seed)
	}
	return nil, fmt.Errorf("unknown dataset %q (ideal, blocks or incremental)", opts.kind)
}

// runBench generates the base, builds and validates it, resolves every
// fixpoint, then looks up every identifier from opts.readers goroutines.
func runBench(ctx context.Context, opts benchOptions, progress func(step int, name string)) (*benchResult, error) {
	res := &benchResult{}

	progress(0, "generating")
	start := time.Now()
	ps, err := generate(opts)
	if err != nil {
		return nil, err
	}
	res.generate = time.Since(start)
	res.prototypes = len(ps)

	progress(1, "building")
	start = time.Now()
	base, err := dataset.Build(ps)
	if err != nil {
		return nil, err
	}
	res.build = time.Since(start)

	progress(2, "resolving fixpoints")
	start = time.Now()
	if _, err := base.ComputeFixPoints(); err != nil {
		return nil, err
	}
	res.fixpoints = time.Since(start)

	progress(3, "concurrent lookups")
	ids := base.IDs()
	var lookups atomic.Int64
	start = time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for r := 0; r < opts.readers; r++ {
		g.Go(func() error {
			for round := 0; round < opts.rounds; round++ {
				for _, id := range ids {
					if _, ok := base.IsDefined(id); !ok {
						return fmt.Errorf("%w: %s", kb.ErrNotDefined, id)
					}
				}
				lookups.Add(int64(len(ids)))
				if err := gctx.Err(); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	res.reads = time.Since(start)
	res.lookups = lookups.Load()
	progress(4, "done")
	return res, nil
}

func (a *app) benchCmd() *cobra.Command {
	opts := benchOptions{}
	cmd := &cobra.Command{
		Use:   "bench ideal|blocks|incremental",
		Short: "Generate a synthetic base and time build, fixpoint and concurrent lookups",
		Long: `Generate a synthetic knowledge base and time each phase.

  ideal        complete binary tree; --size is the depth (0..30)
  blocks       --size layers of --width prototypes with random parents
  incremental  --size prototypes, each deriving from a random earlier one`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"ideal", "blocks", "incremental"},
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.kind = args[0]
			if opts.readers < 1 || opts.rounds < 1 {
				return fmt.Errorf("--readers and --rounds must be positive")
			}

			const steps = 4
			res, err := runBench(cmd.Context(), opts, func(step int, name string) {
				a.printer.Info(a.printer.ProgressBar(step, steps, 20) + " " + name)
			})
			if err != nil {
				return err
			}

			perLookup := time.Duration(0)
			if res.lookups > 0 {
				perLookup = res.reads / time.Duration(res.lookups)
			}
			a.printer.Record("bench "+opts.kind, []ux.Row{
				{Key: "prototypes", Values: []string{strconv.Itoa(res.prototypes)}},
				{Key: "generate", Values: []string{res.generate.String()}},
				{Key: "build", Values: []string{res.build.String()}},
				{Key: "fixpoints", Values: []string{res.fixpoints.String()}},
				{Key: "lookups", Values: []string{res.reads.String()}},
			})
			a.printer.Summary([]ux.Row{
				{Key: "lookups", Values: []string{strconv.FormatInt(res.lookups, 10)}},
				{Key: "readers", Values: []string{strconv.Itoa(opts.readers)}},
				{Key: "per_lookup", Values: []string{perLookup.String()}},
			})
			return nil
		},
	}
	flags := cmd.Flags()
	flags.IntVar(&opts.size, "size", 10, "dataset size (depth, layers or count)")
	flags.IntVar(&opts.width, "width", 10, "prototypes per layer for blocks")
	flags.Uint64Var(&opts.seed, "seed", 1, "random seed for blocks and incremental")
	flags.IntVar(&opts.readers, "readers", runtime.GOMAXPROCS(0), "concurrent lookup goroutines")
	flags.IntVar(&opts.rounds, "rounds", 1, "lookups of every identifier per reader")
	return cmd
}
