// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/ManuGH/threadwarden/internal/changelist"
	"github.com/ManuGH/threadwarden/internal/daemon"
	"github.com/ManuGH/threadwarden/internal/directive"
	"github.com/ManuGH/threadwarden/internal/reconcile"
)

func newValidateCommand(opts *rootOptions) *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "validate [change-list.csv]",
		Short: "Parse the change list offline and print what a run would do",
		Long: `Loads and validates the change list without connecting to Discord and
prints, row by row, what a reconciliation on --date (default: today in the
configured timezone) would do.

Exits 1 when the file contains invalid rows and 2 when it cannot be read.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(true)
			if err != nil {
				return err
			}
			configureLogging(cfg, cmd.ErrOrStderr())
			if len(args) == 1 {
				cfg.ChangeList.Path = args[0]
			}

			engineCfg, err := daemon.EngineConfig(cfg)
			if err != nil {
				return withExitCode(2, err)
			}
			engine := reconcile.NewEngine(engineCfg, changelist.NewFileSource(cfg.ChangeList.Path), nil)

			day := engine.Today()
			override, err := parseRunDate(date, engineCfg.Location)
			if err != nil {
				return withExitCode(2, err)
			}
			if override != nil {
				day = *override
			}

			plan, err := engine.PreviewOn(cmd.Context(), day)
			if err != nil {
				return withExitCode(2, err)
			}

			sum := directive.Summarize(plan)
			if err := printPlan(cmd.OutOrStdout(), cfg.ChangeList.Path, day, plan, sum); err != nil {
				return err
			}
			if sum.Invalid > 0 {
				return withExitCode(1, fmt.Errorf("%d invalid row(s) in %s", sum.Invalid, cfg.ChangeList.Path))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "evaluate the plan for this date (YYYY-MM-DD)")
	return cmd
}

func printPlan(w io.Writer, path string, day directive.Date, plan []directive.Planned, sum directive.PlanSummary) error {
	if _, err := fmt.Fprintf(w, "%s on %s\n", path, day); err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Line", "User", "Date", "Action", "Result"})
	for _, p := range plan {
		t.AppendRow(table.Row{p.Row.Line, p.Row.MemberID, p.Row.Date, p.Row.Action, planResult(p)})
	}
	t.AppendFooter(table.Row{"", "", "", "", fmt.Sprintf("%d due, %d invalid", sum.Due, sum.Invalid)})
	t.Render()

	_, err := fmt.Fprintf(w, "%d rows: %d due today (%d add, %d remove), %d invalid\n",
		sum.Total, sum.Due, sum.Adds, sum.Removes, sum.Invalid)
	return err
}

func planResult(p directive.Planned) string {
	switch {
	case p.Err != nil:
		return "invalid: " + p.Err.Error()
	case p.Due:
		return "apply " + string(p.Record.Action)
	default:
		return "not due"
	}
}
