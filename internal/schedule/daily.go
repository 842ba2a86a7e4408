// SPDX-License-Identifier: MIT

// Package schedule fires the reconciliation run once a day at a fixed local
// wall-clock time and guarantees that at most one run is in flight.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/ManuGH/threadwarden/internal/clock"
	xglog "github.com/ManuGH/threadwarden/internal/log"
	"github.com/ManuGH/threadwarden/internal/metrics"
	"github.com/ManuGH/threadwarden/internal/reconcile"
)

// ErrRunInFlight rejects a trigger that would overlap a running pass.
var ErrRunInFlight = errors.New("reconciliation run already in flight")

// Defaults: one minute past midnight, Pacific time.
const (
	DefaultSpec     = "1 0 * * *"
	DefaultTimezone = "America/Los_Angeles"
)

// Runner is satisfied by *reconcile.Engine.
type Runner interface {
	Run(ctx context.Context) (*reconcile.Run, error)
}

// Config selects when the daily run fires.
type Config struct {
	Spec     string         // standard 5-field cron expression
	Location *time.Location // zone the expression is evaluated in
}

// Daily drives a Runner on a cron schedule.
type Daily struct {
	runner   Runner
	schedule cron.Schedule
	loc      *time.Location
	clock    clock.Clock
	logger   zerolog.Logger

	lease sync.Mutex // held for the duration of a run

	mu       sync.Mutex
	lastFire time.Time

	wg sync.WaitGroup
}

// ParseSpec validates a standard cron expression.
func ParseSpec(spec string) (cron.Schedule, error) {
	s, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return s, nil
}

// NewDaily builds a scheduler. A nil clock uses the wall clock.
func NewDaily(cfg Config, runner Runner, clk clock.Clock) (*Daily, error) {
	if cfg.Spec == "" {
		cfg.Spec = DefaultSpec
	}
	if cfg.Location == nil {
		loc, err := time.LoadLocation(DefaultTimezone)
		if err != nil {
			return nil, fmt.Errorf("load default timezone: %w", err)
		}
		cfg.Location = loc
	}
	sched, err := ParseSpec(cfg.Spec)
	if err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &Daily{
		runner:   runner,
		schedule: sched,
		loc:      cfg.Location,
		clock:    clk,
		logger:   xglog.WithComponent("scheduler"),
	}, nil
}

// Next returns the first fire time strictly after t, in the configured zone.
func (d *Daily) Next(t time.Time) time.Time {
	return d.schedule.Next(t.In(d.loc))
}

// LastFire is the time the timer last fired, zero if it has not.
func (d *Daily) LastFire() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastFire
}

// Run blocks until ctx is cancelled, dispatching a reconciliation at every
// fire time. Runs execute on their own goroutine so the timer keeps its
// cadence; Run waits for an in-flight run before returning.
func (d *Daily) Run(ctx context.Context) error {
	defer d.wg.Wait()

	next := d.Next(d.clock.Now())
	d.logger.Info().
		Str(xglog.FieldEvent, "scheduler.start").
		Time("next_fire", next).
		Str("timezone", d.loc.String()).
		Msg("reconciliation scheduler started")

	timer := d.clock.NewTimer(next.Sub(d.clock.Now()))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info().Str(xglog.FieldEvent, "scheduler.stop").Msg("reconciliation scheduler stopping")
			return nil
		case <-timer.C():
			d.mu.Lock()
			d.lastFire = next
			d.mu.Unlock()

			d.wg.Add(1)
			go func() {
				defer d.wg.Done()
				_, _ = d.Trigger(reconcile.WithTrigger(ctx, reconcile.TriggerSchedule))
			}()

			now := d.clock.Now()
			next = d.Next(now)
			d.logger.Debug().
				Str(xglog.FieldEvent, "scheduler.armed").
				Time("next_fire", next).
				Msg("next reconciliation scheduled")
			timer.Reset(next.Sub(now))
		}
	}
}

// Trigger runs a reconciliation now unless one is already in flight, in
// which case it returns ErrRunInFlight without running.
func (d *Daily) Trigger(ctx context.Context) (*reconcile.Run, error) {
	trigger := reconcile.TriggerFromContext(ctx)
	if !d.lease.TryLock() {
		d.logger.Warn().
			Str(xglog.FieldEvent, "scheduler.rejected").
			Str(xglog.FieldTrigger, trigger).
			Msg("reconciliation trigger rejected: run in flight")
		metrics.RecordReconcileRun("rejected_in_flight")
		return nil, ErrRunInFlight
	}
	defer d.lease.Unlock()

	return d.runner.Run(ctx)
}
