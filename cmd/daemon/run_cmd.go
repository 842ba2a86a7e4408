// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ManuGH/threadwarden/internal/config"
	"github.com/ManuGH/threadwarden/internal/daemon"
	"github.com/ManuGH/threadwarden/internal/gateway/discord"
	xglog "github.com/ManuGH/threadwarden/internal/log"
	"github.com/ManuGH/threadwarden/internal/resilience"
	"github.com/ManuGH/threadwarden/internal/telemetry"
)

func newRunCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the bot until interrupted (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDaemon(cmd, opts)
		},
	}
}

func runDaemon(cmd *cobra.Command, opts *rootOptions) error {
	// Safe defaults until the configuration is loaded.
	xglog.Configure(xglog.Config{Level: "info", Service: "threadwarden", Output: cmd.ErrOrStderr()})
	logger := xglog.WithComponent("main")

	cfg, err := opts.loadConfig(false)
	if err != nil {
		logger.Error().
			Err(err).
			Str(xglog.FieldEvent, "config.load_failed").
			Str("config_path", opts.configPath()).
			Msg("failed to load configuration")
		return err
	}
	configureLogging(cfg, cmd.ErrOrStderr())
	logger = xglog.WithComponent("main")
	logger.Info().
		Str(xglog.FieldEvent, "config.loaded").
		Interface("config", config.MaskSecrets(cfg)).
		Msg("configuration loaded")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	provider, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Tracing.Enabled,
		ServiceName:    cfg.Log.Service,
		ServiceVersion: cfg.Version,
		ExporterType:   cfg.Tracing.Exporter,
		Endpoint:       cfg.Tracing.Endpoint,
		SamplingRate:   cfg.Tracing.SampleRate,
	})
	if err != nil {
		return withExitCode(1, err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Str(xglog.FieldEvent, "telemetry.shutdown_failed").Msg("tracer shutdown failed")
		}
	}()

	client, err := discord.New(cfg.Discord.Token)
	if err != nil {
		return withExitCode(1, err)
	}
	rt, err := daemon.NewRuntime(cfg, client)
	if err != nil {
		return withExitCode(1, err)
	}

	err = rt.Run(ctx)
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		logger.Info().Str(xglog.FieldEvent, "daemon.exit").Msg("shut down cleanly")
		return nil
	case errors.Is(err, resilience.ErrReconnectExhausted):
		logger.Error().Err(err).Str(xglog.FieldEvent, "daemon.exit").Msg("gateway could not be re-established")
		return withExitCode(1, err)
	default:
		logger.Error().Err(err).Str(xglog.FieldEvent, "daemon.exit").Msg("daemon stopped with error")
		return withExitCode(1, err)
	}
}
