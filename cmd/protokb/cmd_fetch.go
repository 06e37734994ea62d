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

	"github.com/spf13/cobra"

	"github.com/AleutianAI/protokb/pkg/ux"
	"github.com/AleutianAI/protokb/services/protokb/codec"
	kb "github.com/AleutianAI/protokb/services/protokb/knowledgebase"
	"github.com/AleutianAI/protokb/services/protokb/remote"
)

// newRemoteClient applies the remote section of the configuration.
func (a *app) newRemoteClient(endpoint string, opts ...remote.Option) (*remote.Client, error) {
	rc := a.cfg.Remote
	base := []remote.Option{
		remote.WithLogger(a.logger.Slog()),
		remote.WithTimeout(rc.Timeout),
		remote.WithCacheCapacity(rc.CacheCapacity),
	}
	if rc.RequestsPerSecond > 0 {
		base = append(base, remote.WithRateLimit(rc.RequestsPerSecond, rc.Burst))
	}
	return remote.NewClient(endpoint, append(base, opts...)...)
}

func (a *app) fetchCmd() *cobra.Command {
	var (
		fixpoint bool
		raw      string
	)
	cmd := &cobra.Command{
		Use:   "fetch ENDPOINT IRI",
		Short: "Fetch a prototype from a prototype server",
		Long: `Fetch a prototype from the prototypes endpoint of a server, for example
  protokb fetch http://localhost:12250/v1/protokb/prototypes http://example.org/#Michael`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := kb.NewID(args[1])
			if err != nil {
				return err
			}
			var opts []remote.Option
			if raw == "json" {
				opts = append(opts, remote.WithCodec(codec.JSON))
			}
			client, err := a.newRemoteClient(args[0], opts...)
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.Remote.Timeout)
			defer cancel()

			var res *remote.Result
			if fixpoint {
				res, err = client.FetchFixPoint(ctx, id)
			} else {
				res, err = client.Fetch(ctx, id)
			}
			if err != nil {
				return err
			}

			if raw != "" {
				cd, err := codec.ByName(raw)
				if err != nil {
					return err
				}
				return writePrototypes(cmd.OutOrStdout(), cd, []*kb.Prototype{res.Prototype})
			}

			rows := prototypeRows(res.Prototype)
			if len(res.Alternates) > 0 {
				alts := make([]string, len(res.Alternates))
				for i, u := range res.Alternates {
					alts[i] = u.String()
				}
				rows = append(rows, ux.Row{Key: "alternates", Values: alts})
			}
			a.printer.Record(res.Prototype.ID().String(), rows)
			return nil
		},
	}
	cmd.Flags().BoolVar(&fixpoint, "fp", false, "fetch the fixpoint instead of the definition")
	cmd.Flags().StringVar(&raw, "raw", "", "print the serialized prototype in this format (text or json)")
	return cmd
}
