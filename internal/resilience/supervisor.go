// SPDX-License-Identifier: MIT

// Package resilience keeps the gateway session alive: it reacts to
// disconnects with capped exponential backoff and fails the process once the
// attempt ceiling is reached.
package resilience

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/threadwarden/internal/clock"
	xglog "github.com/ManuGH/threadwarden/internal/log"
	"github.com/ManuGH/threadwarden/internal/metrics"
)

// ErrReconnectExhausted is returned by Run after the supervisor terminated.
var ErrReconnectExhausted = errors.New("reconnect attempts exhausted")

// ReasonLoginFailed is the disconnect reason fed back after a failed login.
const ReasonLoginFailed = "login_failed"

// State is the coarse connection state visible outside the supervisor.
type State string

const (
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateTerminated   State = "terminated"
)

// LoginFunc opens the transport session.
type LoginFunc func(ctx context.Context) error

// Transition describes one state change handled by the dispatcher.
type Transition struct {
	From    State
	To      State
	Attempt int           // attempt counter after the transition
	Delay   time.Duration // scheduled retry delay, zero unless reconnecting
	Code    int
	Reason  string
}

type eventKind int

const (
	eventConnected eventKind = iota
	eventDisconnected
	eventRetryDue
	eventLoginDone
)

type event struct {
	kind   eventKind
	code   int
	reason string
	err    error
}

// Supervisor owns the reconnect attempt counter. Connected and Disconnected
// only enqueue; a single dispatcher goroutine (Run) mutates state.
type Supervisor struct {
	policy   Policy
	login    LoginFunc
	clock    clock.Clock
	jitter   func() time.Duration
	exit     func(code int)
	observer func(Transition)
	logger   zerolog.Logger

	events chan event
	done   chan struct{}

	stateMu sync.RWMutex
	state   State

	// dispatcher-owned
	attempts  int
	pending   clock.Timer
	loggingIn bool
	logins    sync.WaitGroup

	// a disconnect reported while a login is in flight; replayed when the
	// login returns successfully.
	lostDuringLogin bool
	lostCode        int
	lostReason      string
}

// Option customises a Supervisor.
type Option func(*Supervisor)

// WithClock replaces the wall clock used for retry timers.
func WithClock(c clock.Clock) Option {
	return func(s *Supervisor) { s.clock = c }
}

// WithJitter replaces the random jitter source.
func WithJitter(f func() time.Duration) Option {
	return func(s *Supervisor) { s.jitter = f }
}

// WithExit replaces os.Exit on termination.
func WithExit(f func(code int)) Option {
	return func(s *Supervisor) { s.exit = f }
}

// WithObserver receives every transition from the dispatcher goroutine.
func WithObserver(f func(Transition)) Option {
	return func(s *Supervisor) { s.observer = f }
}

// NewSupervisor returns a supervisor in the connected state.
func NewSupervisor(policy Policy, login LoginFunc, opts ...Option) *Supervisor {
	s := &Supervisor{
		policy: policy,
		login:  login,
		clock:  clock.Real{},
		jitter: randomJitter,
		exit:   os.Exit,
		logger: xglog.WithComponent("supervisor"),
		events: make(chan event, 64),
		done:   make(chan struct{}),
		state:  StateConnected,
	}
	for _, opt := range opts {
		opt(s)
	}
	metrics.SetConnectionState(string(StateConnected))
	metrics.SetReconnectAttempts(0)
	return s
}

// Connected reports a successful session.
func (s *Supervisor) Connected() {
	s.enqueue(event{kind: eventConnected})
}

// Disconnected reports a lost session with the transport's close code.
func (s *Supervisor) Disconnected(code int, reason string) {
	s.enqueue(event{kind: eventDisconnected, code: code, reason: reason})
}

// State returns the current coarse state.
func (s *Supervisor) State() State {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

func (s *Supervisor) enqueue(ev event) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

// Run dispatches events until ctx ends or the supervisor terminates. Pending
// retry timers are stopped on return.
func (s *Supervisor) Run(ctx context.Context) error {
	defer func() {
		close(s.done)
		if s.pending != nil {
			s.pending.Stop()
		}
		s.logins.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-s.events:
			if s.handle(ctx, ev) {
				return ErrReconnectExhausted
			}
		}
	}
}

// handle returns true once the supervisor has terminated.
func (s *Supervisor) handle(ctx context.Context, ev event) bool {
	switch ev.kind {
	case eventConnected:
		s.onConnected()
	case eventDisconnected:
		return s.onDisconnected(ev.code, ev.reason)
	case eventRetryDue:
		s.pending = nil
		s.startLogin(ctx)
	case eventLoginDone:
		s.loggingIn = false
		lost, code, reason := s.lostDuringLogin, s.lostCode, s.lostReason
		s.lostDuringLogin = false
		if ev.err != nil {
			s.logger.Warn().Err(ev.err).
				Str(xglog.FieldEvent, "supervisor.login_failed").
				Int(xglog.FieldAttempt, s.attempts).
				Msg("gateway login failed")
			return s.onDisconnected(0, ReasonLoginFailed)
		}
		if lost {
			return s.onDisconnected(code, reason)
		}
		s.onConnected()
	}
	return false
}

func (s *Supervisor) onConnected() {
	from := s.State()
	if from == StateTerminated {
		return
	}
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
	s.lostDuringLogin = false
	prev := s.attempts
	s.attempts = 0
	s.setState(StateConnected)
	metrics.SetReconnectAttempts(0)

	if from != StateConnected || prev > 0 {
		s.logger.Info().
			Str(xglog.FieldEvent, "supervisor.connected").
			Str(xglog.FieldOldState, string(from)).
			Str(xglog.FieldNewState, string(StateConnected)).
			Int("previous_attempts", prev).
			Msg("gateway connected")
	}
	s.notify(Transition{From: from, To: StateConnected})
}

func (s *Supervisor) onDisconnected(code int, reason string) bool {
	from := s.State()
	if from == StateTerminated {
		return true
	}
	metrics.RecordDisconnect(reason)

	if s.pending != nil || s.loggingIn {
		if s.pending == nil {
			s.lostDuringLogin = true
			s.lostCode = code
			s.lostReason = reason
		}
		s.logger.Debug().
			Str(xglog.FieldEvent, "supervisor.disconnect_coalesced").
			Int(xglog.FieldCode, code).
			Str(xglog.FieldReason, reason).
			Int(xglog.FieldAttempt, s.attempts).
			Msg("disconnect while a reconnect is already pending")
		return false
	}

	if s.attempts >= s.policy.MaxAttempts {
		s.setState(StateTerminated)
		s.logger.WithLevel(zerolog.FatalLevel).
			Err(ErrReconnectExhausted).
			Str(xglog.FieldEvent, "supervisor.terminated").
			Str(xglog.FieldOldState, string(from)).
			Str(xglog.FieldNewState, string(StateTerminated)).
			Int(xglog.FieldAttempt, s.attempts).
			Int(xglog.FieldCode, code).
			Str(xglog.FieldReason, reason).
			Msg("reconnect attempts exhausted, exiting")
		s.notify(Transition{From: from, To: StateTerminated, Attempt: s.attempts, Code: code, Reason: reason})
		s.exit(1)
		return true
	}

	delay := Backoff(s.policy, s.attempts, s.jitter())
	s.attempts++
	s.setState(StateReconnecting)
	metrics.SetReconnectAttempts(s.attempts)
	s.pending = s.clock.AfterFunc(delay, func() {
		s.enqueue(event{kind: eventRetryDue})
	})

	s.logger.Warn().
		Str(xglog.FieldEvent, "supervisor.reconnect_scheduled").
		Str(xglog.FieldOldState, string(from)).
		Str(xglog.FieldNewState, string(StateReconnecting)).
		Int(xglog.FieldAttempt, s.attempts).
		Dur(xglog.FieldDelay, delay).
		Int(xglog.FieldCode, code).
		Str(xglog.FieldReason, reason).
		Msg("gateway disconnected, reconnect scheduled")
	s.notify(Transition{From: from, To: StateReconnecting, Attempt: s.attempts, Delay: delay, Code: code, Reason: reason})
	return false
}

func (s *Supervisor) startLogin(ctx context.Context) {
	s.loggingIn = true
	s.logins.Add(1)
	go func() {
		defer s.logins.Done()
		err := s.login(ctx)
		s.enqueue(event{kind: eventLoginDone, err: err})
	}()
}

func (s *Supervisor) setState(st State) {
	s.stateMu.Lock()
	s.state = st
	s.stateMu.Unlock()
	metrics.SetConnectionState(string(st))
}

func (s *Supervisor) notify(t Transition) {
	if s.observer != nil {
		s.observer(t)
	}
}
