// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Command threadwarden keeps a private Discord thread's roster in sync with a
// dated change list and runs the submission commands around it.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	_ "time/tzdata"

	"github.com/spf13/cobra"

	"github.com/ManuGH/threadwarden/internal/config"
	xglog "github.com/ManuGH/threadwarden/internal/log"
	"github.com/ManuGH/threadwarden/internal/version"
)

// rootOptions holds the flags shared by every subcommand.
type rootOptions struct {
	ConfigPath string
	EnvFile    string
}

// exitError carries a specific process exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func withExitCode(code int, err error) error {
	return &exitError{code: code, err: err}
}

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

// execute runs the CLI and maps the outcome to an exit code.
func execute(args []string, stdout, stderr io.Writer) int {
	cmd := newRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(context.Background())
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", ee.err)
		}
		return ee.code
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return 1
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "threadwarden",
		Short:         "Private thread membership reconciler",
		Long:          "threadwarden applies a dated add/remove change list to a private Discord thread every day and relays submissions into it.",
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDaemon(cmd, opts)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to config file (YAML); defaults to $THREADWARDEN_CONFIG")
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "dotenv file loaded before the environment is read")

	cmd.AddCommand(newRunCommand(opts))
	cmd.AddCommand(newReconcileCommand(opts))
	cmd.AddCommand(newValidateCommand(opts))
	cmd.AddCommand(newHealthcheckCommand())
	cmd.AddCommand(newConfigCommand(opts))
	cmd.AddCommand(newVersionCommand())

	return cmd
}

func (o *rootOptions) configPath() string {
	if p := strings.TrimSpace(o.ConfigPath); p != "" {
		return p
	}
	return strings.TrimSpace(config.ParseString("THREADWARDEN_CONFIG", ""))
}

// loadConfig resolves the configuration. Offline loads skip the Discord
// credential checks.
func (o *rootOptions) loadConfig(offline bool) (config.AppConfig, error) {
	loader := config.NewLoader(o.configPath(), o.EnvFile, version.Version)
	loader.Offline = offline
	cfg, err := loader.Load()
	if err != nil {
		return cfg, withExitCode(1, err)
	}
	return cfg, nil
}

// configureLogging re-initialises the global logger from cfg.
func configureLogging(cfg config.AppConfig, out io.Writer) {
	xglog.Configure(xglog.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Output:  out,
		Service: cfg.Log.Service,
		Version: cfg.Version,
	})
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "threadwarden %s\n", version.String())
			return err
		},
	}
}
