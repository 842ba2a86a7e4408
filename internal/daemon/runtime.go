// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package daemon wires the reconciliation engine, the scheduler, the gateway
// supervisor, the command router and the HTTP surface into one process and
// manages its lifecycle.
package daemon

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/ManuGH/threadwarden/internal/api"
	"github.com/ManuGH/threadwarden/internal/changelist"
	"github.com/ManuGH/threadwarden/internal/clock"
	"github.com/ManuGH/threadwarden/internal/commands"
	"github.com/ManuGH/threadwarden/internal/config"
	"github.com/ManuGH/threadwarden/internal/directive"
	"github.com/ManuGH/threadwarden/internal/gateway/discord"
	"github.com/ManuGH/threadwarden/internal/health"
	xglog "github.com/ManuGH/threadwarden/internal/log"
	"github.com/ManuGH/threadwarden/internal/reconcile"
	"github.com/ManuGH/threadwarden/internal/resilience"
	"github.com/ManuGH/threadwarden/internal/schedule"
)

// lastRunMaxAge flags a missed daily fire on the readiness report.
const lastRunMaxAge = 26 * time.Hour

// Gateway is the messaging transport the runtime drives.
type Gateway interface {
	reconcile.Directory
	commands.Chat
	Login(ctx context.Context) error
	Close() error
	Bind(ctx context.Context, h discord.Handlers)
}

// Runtime holds the wired components of a running daemon.
type Runtime struct {
	cfg     config.AppConfig
	gateway Gateway
	logger  zerolog.Logger

	Engine     *reconcile.Engine
	Scheduler  *schedule.Daily
	Supervisor *resilience.Supervisor
	Router     *commands.Router
	Health     *health.Manager
	Watcher    *changelist.Watcher
	Handler    http.Handler
}

type runtimeOptions struct {
	clock clock.Clock
	exit  func(code int)
}

// RuntimeOption customises NewRuntime.
type RuntimeOption func(*runtimeOptions)

// WithRuntimeClock replaces the wall clock for the engine, scheduler and
// supervisor.
func WithRuntimeClock(c clock.Clock) RuntimeOption {
	return func(o *runtimeOptions) { o.clock = c }
}

// WithSupervisorExit replaces the supervisor's exit hook. By default the
// supervisor does not exit the process itself; Run returns
// resilience.ErrReconnectExhausted and the caller exits after shutdown.
func WithSupervisorExit(f func(code int)) RuntimeOption {
	return func(o *runtimeOptions) { o.exit = f }
}

// EngineConfig maps the application config onto the engine's.
func EngineConfig(cfg config.AppConfig) (reconcile.Config, error) {
	loc, err := cfg.Location()
	if err != nil {
		return reconcile.Config{}, fmt.Errorf("timezone: %w", err)
	}
	return reconcile.Config{
		GroupID:     cfg.Discord.PrivateThreadID,
		CommunityID: cfg.Discord.GuildID,
		DateLayout:  cfg.ChangeList.DateLayout,
		Location:    loc,
		Rate:        rate.Limit(cfg.Reconcile.Rate),
		Burst:       cfg.Reconcile.Burst,
		CallTimeout: cfg.Reconcile.CallTimeout,
	}, nil
}

// NewRuntime wires every component from cfg around gw.
func NewRuntime(cfg config.AppConfig, gw Gateway, opts ...RuntimeOption) (*Runtime, error) {
	if gw == nil {
		return nil, ErrMissingGateway
	}
	o := runtimeOptions{clock: clock.Real{}, exit: func(int) {}}
	for _, opt := range opts {
		opt(&o)
	}

	engineCfg, err := EngineConfig(cfg)
	if err != nil {
		return nil, err
	}

	rt := &Runtime{
		cfg:     cfg,
		gateway: gw,
		logger:  xglog.WithComponent("daemon"),
	}

	rt.Engine = reconcile.NewEngine(engineCfg, changelist.NewFileSource(cfg.ChangeList.Path), gw,
		reconcile.WithClock(o.clock))

	rt.Scheduler, err = schedule.NewDaily(schedule.Config{
		Spec:     cfg.Reconcile.Schedule,
		Location: engineCfg.Location,
	}, rt.Engine, o.clock)
	if err != nil {
		return nil, fmt.Errorf("scheduler: %w", err)
	}

	rt.Supervisor = resilience.NewSupervisor(cfg.ReconnectPolicy(), gw.Login,
		resilience.WithClock(o.clock),
		resilience.WithExit(o.exit),
	)

	rt.Router = commands.NewRouter(commands.Config{
		SubmissionChannelID: cfg.Discord.SubmissionChannelID,
		ThreadID:            cfg.Discord.PrivateThreadID,
	}, gw, gw, rt.Scheduler)

	rt.Health = health.NewManager(cfg.Version)
	rt.Health.RegisterChecker(health.NewConnectionChecker(func() string {
		return string(rt.Supervisor.State())
	}))
	rt.Health.RegisterChecker(health.NewFileChecker("changelist", cfg.ChangeList.Path))
	rt.Health.RegisterChecker(health.NewLastRunChecker(func() (health.LastRun, bool) {
		s, ok := rt.Engine.Last()
		return health.LastRun{FinishedAt: s.FinishedAt, Err: s.Err}, ok
	}, lastRunMaxAge))

	rt.Handler = api.NewRouter(api.Config{
		ServiceName:        cfg.Log.Service,
		MetricsEnabled:     cfg.Metrics.Enabled,
		TracingEnabled:     cfg.Tracing.Enabled,
		RateLimitPerMinute: cfg.HTTP.RateLimit,
	}, rt.Health)

	if cfg.ChangeList.Watch {
		rt.Watcher = changelist.NewWatcher(cfg.ChangeList.Path, rt.validateChangeList)
	}
	return rt, nil
}

func (rt *Runtime) validateChangeList(ctx context.Context) {
	if _, err := rt.Engine.Preview(ctx); err != nil {
		rt.logger.Warn().
			Err(err).
			Str(xglog.FieldEvent, "changelist.validation_failed").
			Str(xglog.FieldPath, rt.cfg.ChangeList.Path).
			Msg("change list could not be validated")
	}
}

// Run logs in, then serves until ctx is cancelled or a component fails. A
// failed initial login is returned as a startup error.
func (rt *Runtime) Run(ctx context.Context) error {
	rt.Router.BindLifetime(ctx)
	rt.gateway.Bind(ctx, discord.Handlers{
		Connected:    rt.Supervisor.Connected,
		Disconnected: rt.Supervisor.Disconnected,
		Message:      rt.Router.Handle,
	})

	if err := rt.gateway.Login(ctx); err != nil {
		return fmt.Errorf("initial login: %w", err)
	}

	mgr, err := NewManager(DefaultServerConfig(rt.cfg.ListenAddr()), Deps{
		Logger:     rt.logger,
		APIHandler: rt.Handler,
	})
	if err != nil {
		_ = rt.gateway.Close()
		return err
	}
	mgr.RegisterShutdownHook("gateway", func(context.Context) error {
		return rt.gateway.Close()
	})

	components := []Component{
		{Name: "scheduler", Run: rt.Scheduler.Run},
		{Name: "supervisor", Run: rt.Supervisor.Run},
	}
	if rt.Watcher != nil {
		rt.validateChangeList(ctx)
		components = append(components, Component{Name: "changelist.watcher", Run: rt.Watcher.Run, BestEffort: true})
	}

	rt.logger.Info().
		Str(xglog.FieldEvent, "daemon.started").
		Str("listen", rt.cfg.ListenAddr()).
		Str("schedule", rt.cfg.Reconcile.Schedule).
		Str("timezone", rt.cfg.Reconcile.Timezone).
		Time("next_run", rt.Scheduler.Next(time.Now())).
		Msg("threadwarden running")

	return NewApp(rt.logger, mgr, components...).Run(ctx)
}

// ReconcileOnce logs in, runs a single reconciliation and disconnects. A nil
// day means today in the configured timezone.
func (rt *Runtime) ReconcileOnce(ctx context.Context, day *directive.Date) (*reconcile.Run, error) {
	if err := rt.gateway.Login(ctx); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	defer func() { _ = rt.gateway.Close() }()

	ctx = reconcile.WithTrigger(ctx, reconcile.TriggerCLI)
	if day != nil {
		return rt.Engine.RunOn(ctx, *day)
	}
	return rt.Scheduler.Trigger(ctx)
}
