// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	xglog "github.com/ManuGH/threadwarden/internal/log"
)

// Component is a long-running subsystem owned by the App.
type Component struct {
	Name string
	Run  func(ctx context.Context) error
	// BestEffort components log their failure instead of stopping the daemon.
	BestEffort bool
}

// App owns the runtime lifecycle of the background subsystems and delegates
// server management to Manager.
type App struct {
	logger     zerolog.Logger
	manager    Manager
	components []Component
}

// NewApp creates a new App orchestrator.
func NewApp(logger zerolog.Logger, manager Manager, components ...Component) *App {
	return &App{
		logger:     logger,
		manager:    manager,
		components: components,
	}
}

// Run starts all owned subsystems and blocks until ctx is cancelled or a
// non best-effort component fails.
func (a *App) Run(ctx context.Context) error {
	if a.manager == nil {
		return ErrMissingManager
	}

	g, ctx := errgroup.WithContext(ctx)

	for _, c := range a.components {
		g.Go(func() error {
			err := c.Run(ctx)
			switch {
			case err == nil:
				return nil
			case c.BestEffort:
				a.logger.Warn().
					Err(err).
					Str(xglog.FieldEvent, "daemon.component_failed").
					Str(xglog.FieldComponent, c.Name).
					Msg("best-effort component stopped")
				return nil
			default:
				a.logger.Error().
					Err(err).
					Str(xglog.FieldEvent, "daemon.component_failed").
					Str(xglog.FieldComponent, c.Name).
					Msg("component failed, shutting down")
				return err
			}
		})
	}

	g.Go(func() error {
		err := a.manager.Start(ctx)
		if err != nil {
			_ = a.manager.Shutdown(context.WithoutCancel(ctx))
		}
		return err
	})

	return g.Wait()
}
