// SPDX-License-Identifier: MIT

// Package audit records who changed the private thread's roster and who
// tried to. It follows the WHO/WHAT/WHEN pattern: every entry names an
// actor, an action on a resource and a result.
package audit

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/threadwarden/internal/log"
)

// EventType represents the type of audit event.
type EventType string

const (
	// Roster events
	EventMemberAdd    EventType = "member.add"
	EventMemberRemove EventType = "member.remove"

	// Command events
	EventCommandDenied      EventType = "command.denied"
	EventReconcileTriggered EventType = "reconcile.triggered"
	EventSubmissionRelayed  EventType = "submission.relayed"
)

// Results recorded on events.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultDenied  = "denied"
)

// Event represents a structured audit event.
type Event struct {
	Timestamp time.Time
	Type      EventType
	Actor     string // WHO: the chat user, or "system" for scheduled work
	Action    string // WHAT: human-readable action description
	Resource  string // the thread or channel affected
	Result    string
	RunID     string
	Details   map[string]string
}

// Logger provides audit logging functionality.
type Logger struct {
	logger zerolog.Logger
	now    func() time.Time
}

// NewLogger creates an audit logger with a dedicated "audit" component.
func NewLogger() *Logger {
	return newLogger(log.WithComponent("audit"))
}

func newLogger(base zerolog.Logger) *Logger {
	return &Logger{
		logger: base.With().Str("log_type", "audit").Logger(),
		now:    time.Now,
	}
}

// Log writes an audit event.
func (l *Logger) Log(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = l.now()
	}

	logEvent := l.logger.Info().
		Time("timestamp", event.Timestamp).
		Str(log.FieldEvent, "audit."+string(event.Type)).
		Str("event_type", string(event.Type)).
		Str("actor", event.Actor).
		Str("action", event.Action).
		Str("resource", event.Resource).
		Str("result", event.Result)

	if event.RunID != "" {
		logEvent.Str(log.FieldRunID, event.RunID)
	}
	for key, value := range event.Details {
		logEvent.Str(key, value)
	}

	logEvent.Msg("audit event")
}

// LogFromContext logs an event, filling the run ID from ctx when unset.
func (l *Logger) LogFromContext(ctx context.Context, event Event) {
	if event.RunID == "" {
		event.RunID = log.RunIDFromContext(ctx)
	}
	l.Log(event)
}

// MemberChange records an administrator adding or removing a member by hand.
func (l *Logger) MemberChange(ctx context.Context, typ EventType, actor, threadID, memberID string, err error) {
	action := "added member to private thread"
	if typ == EventMemberRemove {
		action = "removed member from private thread"
	}
	event := Event{
		Type:     typ,
		Actor:    actor,
		Action:   action,
		Resource: threadID,
		Result:   ResultSuccess,
		Details:  map[string]string{"member_id": memberID},
	}
	if err != nil {
		event.Result = ResultFailure
		event.Details["error"] = err.Error()
	}
	l.LogFromContext(ctx, event)
}

// CommandDenied records an administrator command from a non-administrator.
func (l *Logger) CommandDenied(ctx context.Context, actor, command, channelID string) {
	l.LogFromContext(ctx, Event{
		Type:     EventCommandDenied,
		Actor:    actor,
		Action:   "invoked " + command + " without permission",
		Resource: channelID,
		Result:   ResultDenied,
	})
}

// ReconcileTriggered records an on-demand reconciliation and its result.
func (l *Logger) ReconcileTriggered(ctx context.Context, actor, trigger, runID string, err error) {
	event := Event{
		Type:     EventReconcileTriggered,
		Actor:    actor,
		Action:   "triggered reconciliation",
		Resource: "changelist",
		Result:   ResultSuccess,
		RunID:    runID,
		Details:  map[string]string{"trigger": trigger},
	}
	if err != nil {
		event.Result = ResultFailure
		event.Details["error"] = err.Error()
	}
	l.LogFromContext(ctx, event)
}

// SubmissionRelayed records a submission forwarded into the private thread.
func (l *Logger) SubmissionRelayed(ctx context.Context, author, kind, threadID string) {
	l.LogFromContext(ctx, Event{
		Type:     EventSubmissionRelayed,
		Actor:    author,
		Action:   "relayed " + kind + " submission",
		Resource: threadID,
		Result:   ResultSuccess,
	})
}
