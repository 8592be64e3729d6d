package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	rosterservice "facecards/internal/roster/service"
)

// sweepCommand runs one verification sweep outside the HTTP cron trigger,
// for schedulers that prefer a process over a request.
func sweepCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "sweep daily|weekly",
		Short:     "Run one verification sweep and print the summary",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(rosterservice.SweepDaily), string(rosterservice.SweepWeekly)},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := rosterservice.ParseSweepKind(args[0])
			if err != nil {
				return err
			}
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := build(ctx, cfg, log)
			defer func() { _ = a.close() }()
			if err != nil {
				log.Error("startup failed", "error", err)
				return err
			}

			res, err := a.verifier.Sweep(ctx, kind)
			if err != nil {
				log.Error("sweep failed", "kind", string(kind), "error", err)
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
}
