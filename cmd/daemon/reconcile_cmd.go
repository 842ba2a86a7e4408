// SPDX-License-Identifier: MIT

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ManuGH/threadwarden/internal/commands"
	"github.com/ManuGH/threadwarden/internal/daemon"
	"github.com/ManuGH/threadwarden/internal/gateway/discord"
)

func newReconcileCommand(opts *rootOptions) *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Log in, run one reconciliation now and print the summary",
		Long: `Runs a single reconciliation pass against the live thread and exits.

Exits non-zero when the run was aborted (change list unreadable, thread or
guild unresolved). Rows that failed individually are reported in the
summary but do not fail the command.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig(false)
			if err != nil {
				return err
			}
			configureLogging(cfg, cmd.ErrOrStderr())

			loc, err := cfg.Location()
			if err != nil {
				return withExitCode(2, err)
			}
			day, err := parseRunDate(date, loc)
			if err != nil {
				return withExitCode(2, err)
			}

			client, err := discord.New(cfg.Discord.Token)
			if err != nil {
				return withExitCode(1, err)
			}
			rt, err := daemon.NewRuntime(cfg, client)
			if err != nil {
				return withExitCode(1, err)
			}

			run, err := rt.ReconcileOnce(cmd.Context(), day)
			fmt.Fprintln(cmd.OutOrStdout(), commands.FormatRun(run, err))
			if err != nil {
				return withExitCode(1, err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "run as if today were this date (YYYY-MM-DD)")
	return cmd
}
