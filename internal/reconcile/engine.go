// SPDX-License-Identifier: MIT

// Package reconcile applies the dated directives of the change list to the
// restricted group, one row at a time, and reports a per-row outcome.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/ManuGH/threadwarden/internal/changelist"
	"github.com/ManuGH/threadwarden/internal/clock"
	"github.com/ManuGH/threadwarden/internal/directive"
	xglog "github.com/ManuGH/threadwarden/internal/log"
	"github.com/ManuGH/threadwarden/internal/metrics"
	"github.com/ManuGH/threadwarden/internal/telemetry"
)

var (
	// ErrPreconditionUnresolved aborts a run when the group or community
	// handle cannot be resolved.
	ErrPreconditionUnresolved = errors.New("precondition unresolved")
	// ErrMemberNotFound is returned by a Directory when an identity does not
	// resolve in the community.
	ErrMemberNotFound = errors.New("member not found")
)

// Member is a resolved community identity.
type Member struct {
	ID          string
	DisplayName string
	Bot         bool
}

// Directory is the external membership authority. AddToGroup and
// RemoveFromGroup must succeed when the member is already present or absent.
type Directory interface {
	ResolveGroup(ctx context.Context, groupID string) error
	ResolveCommunity(ctx context.Context, communityID string) error
	ResolveMember(ctx context.Context, communityID, memberID string) (Member, error)
	AddToGroup(ctx context.Context, groupID, memberID string) error
	RemoveFromGroup(ctx context.Context, groupID, memberID string) error
}

// Config controls an Engine.
type Config struct {
	GroupID     string
	CommunityID string
	DateLayout  string
	Location    *time.Location
	// Rate and Burst throttle Directory calls within a run. A zero Rate
	// disables throttling.
	Rate        rate.Limit
	Burst       int
	CallTimeout time.Duration
}

// Engine runs reconciliation passes. Callers serialise Run; the scheduler
// holds the in-flight lease.
type Engine struct {
	cfg    Config
	source changelist.Source
	dir    Directory
	clock  clock.Clock
	parser directive.Parser
	logger zerolog.Logger
	tracer trace.Tracer
	newID  func() string

	mu   sync.RWMutex
	last *Summary
}

// Option customises an Engine.
type Option func(*Engine)

// WithClock replaces the wall clock.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithIDGenerator replaces the run ID generator.
func WithIDGenerator(f func() string) Option {
	return func(e *Engine) { e.newID = f }
}

// NewEngine wires an engine to its source and directory.
func NewEngine(cfg Config, source changelist.Source, dir Directory, opts ...Option) *Engine {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	e := &Engine{
		cfg:    cfg,
		source: source,
		dir:    dir,
		clock:  clock.Real{},
		parser: directive.NewParser(cfg.DateLayout, cfg.Location),
		logger: xglog.WithComponent("reconcile"),
		tracer: telemetry.Tracer("threadwarden/reconcile"),
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Location is the timezone runs compute "today" in.
func (e *Engine) Location() *time.Location { return e.cfg.Location }

// Parser returns the directive parser the engine validates rows with.
func (e *Engine) Parser() directive.Parser { return e.parser }

// Today is the current calendar day in the configured timezone.
func (e *Engine) Today() directive.Date {
	return directive.DateOf(e.clock.Now(), e.cfg.Location)
}

// Last returns the summary of the most recent run, if any.
func (e *Engine) Last() (Summary, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.last == nil {
		return Summary{}, false
	}
	return *e.last, true
}

// Run reconciles the change list against today's date. The date is captured
// once at the start of the run.
func (e *Engine) Run(ctx context.Context) (*Run, error) {
	return e.RunOn(ctx, e.Today())
}

// RunOn reconciles the change list as if today were the given day. A non-nil
// error means the run was abandoned before any row was processed.
func (e *Engine) RunOn(ctx context.Context, today directive.Date) (*Run, error) {
	run := &Run{
		ID:        e.newID(),
		Trigger:   TriggerFromContext(ctx),
		RunDate:   today,
		StartedAt: e.clock.Now(),
	}

	ctx = xglog.ContextWithRunID(ctx, run.ID)
	ctx, span := e.tracer.Start(ctx, "reconcile.run",
		trace.WithAttributes(telemetry.RunAttributes(run.ID, today.String(), run.Trigger)...))
	defer span.End()

	logger := xglog.WithContext(ctx, e.logger).With().
		Str(xglog.FieldRunDate, today.String()).
		Str(xglog.FieldTrigger, run.Trigger).
		Logger()
	logger.Info().Str(xglog.FieldEvent, "reconcile.start").Msg("reconciliation run started")

	err := e.process(ctx, run, logger)
	run.FinishedAt = e.clock.Now()
	counts := run.Counts()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error().Err(err).
			Str(xglog.FieldEvent, "reconcile.aborted").
			Msg("reconciliation run aborted")
		metrics.RecordReconcileRun(abortResult(err))
	} else {
		span.SetAttributes(telemetry.RunResultAttributes(len(run.Outcomes),
			counts.Applied, counts.NotToday, counts.Invalid, counts.MemberNotFound, counts.Failed)...)
		logger.Info().
			Str(xglog.FieldEvent, "reconcile.summary").
			Int("rows", len(run.Outcomes)).
			Int("applied", counts.Applied).
			Int("skipped_not_today", counts.NotToday).
			Int("skipped_invalid", counts.Invalid).
			Int("skipped_member_not_found", counts.MemberNotFound).
			Int("failed", counts.Failed).
			Dur("duration", run.Duration()).
			Msg("reconciliation run finished")
		metrics.RecordReconcileRun("completed")
		metrics.ObserveReconcileDuration(run.Duration().Seconds(), float64(run.FinishedAt.Unix()))
	}

	e.mu.Lock()
	e.last = &Summary{
		RunID:      run.ID,
		Trigger:    run.Trigger,
		RunDate:    run.RunDate,
		FinishedAt: run.FinishedAt,
		Counts:     counts,
		Err:        err,
	}
	e.mu.Unlock()

	return run, err
}

func abortResult(err error) string {
	switch {
	case errors.Is(err, changelist.ErrSourceUnavailable):
		return "source_unavailable"
	case errors.Is(err, ErrPreconditionUnresolved):
		return "precondition_unresolved"
	default:
		return "aborted"
	}
}

func (e *Engine) process(ctx context.Context, run *Run, logger zerolog.Logger) error {
	rows, err := e.source.Load(ctx)
	if err != nil {
		return err
	}

	limiter := rate.NewLimiter(rate.Inf, e.cfg.Burst)
	if e.cfg.Rate > 0 {
		limiter = rate.NewLimiter(e.cfg.Rate, e.cfg.Burst)
	}

	if err := e.call(ctx, limiter, func(ctx context.Context) error {
		return e.dir.ResolveGroup(ctx, e.cfg.GroupID)
	}); err != nil {
		return fmt.Errorf("%w: group %s: %w", ErrPreconditionUnresolved, e.cfg.GroupID, err)
	}
	if err := e.call(ctx, limiter, func(ctx context.Context) error {
		return e.dir.ResolveCommunity(ctx, e.cfg.CommunityID)
	}); err != nil {
		return fmt.Errorf("%w: community %s: %w", ErrPreconditionUnresolved, e.cfg.CommunityID, err)
	}

	run.Outcomes = make([]Outcome, 0, len(rows))
	for _, row := range rows {
		outcome := e.reconcileRow(ctx, limiter, row, run.RunDate)
		run.Outcomes = append(run.Outcomes, outcome)
		logOutcome(logger, outcome)
		metrics.RecordReconcileOutcome(string(outcome.Status))
	}
	return nil
}

// reconcileRow never returns an error; everything that goes wrong with the
// row is folded into its Outcome.
func (e *Engine) reconcileRow(ctx context.Context, limiter *rate.Limiter, row changelist.Row, today directive.Date) (out Outcome) {
	out = Outcome{Row: row}

	rec, err := e.parser.Parse(row)
	if err != nil {
		out.Status = StatusSkippedInvalid
		out.Reason = err.Error()
		return out
	}
	out.Record = &rec

	if !directive.IsEffectiveOn(rec, today) {
		out.Status = StatusSkippedNotToday
		return out
	}

	defer func() {
		if r := recover(); r != nil {
			out.Status = StatusFailed
			out.Reason = fmt.Sprintf("panic: %v", r)
		}
	}()

	var member Member
	err = e.call(ctx, limiter, func(ctx context.Context) error {
		var rerr error
		member, rerr = e.dir.ResolveMember(ctx, e.cfg.CommunityID, rec.MemberID)
		return rerr
	})
	if err != nil {
		out.Status = StatusSkippedNotFound
		out.Reason = err.Error()
		return out
	}
	memberID := member.ID
	if memberID == "" {
		memberID = rec.MemberID
	}

	if err := e.apply(ctx, limiter, row, rec.Action, memberID); err != nil {
		out.Status = StatusFailed
		out.Reason = err.Error()
		return out
	}
	out.Status = StatusApplied
	return out
}

func (e *Engine) apply(ctx context.Context, limiter *rate.Limiter, row changelist.Row, action directive.Action, memberID string) error {
	ctx, span := e.tracer.Start(ctx, "reconcile.apply",
		trace.WithAttributes(telemetry.ApplyAttributes(e.cfg.GroupID, memberID, string(action), row.Line)...))
	defer span.End()

	err := e.call(ctx, limiter, func(ctx context.Context) error {
		switch action {
		case directive.ActionAdd:
			return e.dir.AddToGroup(ctx, e.cfg.GroupID, memberID)
		case directive.ActionRemove:
			return e.dir.RemoveFromGroup(ctx, e.cfg.GroupID, memberID)
		default:
			return fmt.Errorf("unsupported action %q", action)
		}
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(telemetry.ErrorAttributes(err, "apply_failed")...)
	}
	return err
}

// call waits for a token and bounds fn with the per-call timeout.
func (e *Engine) call(ctx context.Context, limiter *rate.Limiter, fn func(context.Context) error) error {
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("throttle: %w", err)
	}
	if e.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.CallTimeout)
		defer cancel()
	}
	return fn(ctx)
}

func logOutcome(logger zerolog.Logger, o Outcome) {
	var evt *zerolog.Event
	switch o.Status {
	case StatusFailed:
		evt = logger.Error()
	case StatusSkippedInvalid, StatusSkippedNotFound:
		evt = logger.Warn()
	default:
		evt = logger.Info()
	}
	evt = evt.
		Str(xglog.FieldEvent, "reconcile.outcome").
		Int(xglog.FieldLine, o.Row.Line).
		Str(xglog.FieldStatus, string(o.Status))
	if o.Record != nil {
		evt = evt.
			Str(xglog.FieldMemberID, o.Record.MemberID).
			Str(xglog.FieldAction, string(o.Record.Action))
	} else {
		evt = evt.Str(xglog.FieldMemberID, o.Row.MemberID)
	}
	if o.Reason != "" {
		evt = evt.Str(xglog.FieldReason, o.Reason)
	}
	evt.Msg("row reconciled")
}
