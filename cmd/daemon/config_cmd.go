// SPDX-License-Identifier: MIT

package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ManuGH/threadwarden/internal/config"
)

func newConfigCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}
	cmd.AddCommand(newConfigValidateCommand(opts), newConfigDumpCommand(opts))
	return cmd
}

func newConfigValidateCommand(opts *rootOptions) *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Load defaults, file and environment and report configuration errors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := opts.loadConfig(offline); err != nil {
				return err
			}
			source := opts.configPath()
			if source == "" {
				source = "environment and defaults"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "configuration from %s is valid\n", source)
			return nil
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "skip the Discord credential checks")
	return cmd
}

func newConfigDumpCommand(opts *rootOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Print the effective configuration with secrets redacted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig(true)
			if err != nil {
				return err
			}
			redactSecrets(&cfg)

			out := cmd.OutOrStdout()
			switch strings.ToLower(strings.TrimSpace(format)) {
			case "yaml", "yml":
				enc := yaml.NewEncoder(out)
				enc.SetIndent(2)
				if err := enc.Encode(cfg); err != nil {
					return fmt.Errorf("encode YAML: %w", err)
				}
				return enc.Close()
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(cfg)
			default:
				return withExitCode(2, fmt.Errorf("unsupported format: %s (use yaml or json)", format))
			}
		},
	}
	cmd.Flags().StringVar(&format, "format", "yaml", "output format: yaml or json")
	return cmd
}

func redactSecrets(cfg *config.AppConfig) {
	if cfg.Discord.Token != "" {
		cfg.Discord.Token = "***"
	}
}
