// SPDX-License-Identifier: MIT

// Package commands handles chat messages: the submission relay, poll
// helpers and the administrator commands that adjust the private thread.
package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/threadwarden/internal/audit"
	xglog "github.com/ManuGH/threadwarden/internal/log"
	"github.com/ManuGH/threadwarden/internal/metrics"
	"github.com/ManuGH/threadwarden/internal/reconcile"
)

// Attachment is a file carried by a chat message.
type Attachment struct {
	Name        string
	URL         string
	ContentType string
}

// Message is a chat message as delivered by the transport.
type Message struct {
	ID          string
	ChannelID   string
	AuthorID    string
	AuthorName  string
	AuthorBot   bool
	Content     string
	Attachments []Attachment
	Mentions    []reconcile.Member
}

// Poll describes a single-question poll.
type Poll struct {
	Question    string
	Answers     []string
	Duration    time.Duration
	Multiselect bool
}

// Chat is the messaging surface the router talks back through.
type Chat interface {
	Send(ctx context.Context, channelID, content string) (string, error)
	SendFiles(ctx context.Context, channelID, content string, files []Attachment) (string, error)
	SendPoll(ctx context.Context, channelID, replyTo, content string, poll Poll) error
	Reply(ctx context.Context, channelID, messageID, content string) error
	Delete(ctx context.Context, channelID, messageID string) error
	ThreadMembers(ctx context.Context, threadID string) ([]reconcile.Member, error)
	IsAdmin(ctx context.Context, channelID, userID string) (bool, error)
}

// Groups mutates the private thread roster.
type Groups interface {
	AddToGroup(ctx context.Context, groupID, memberID string) error
	RemoveFromGroup(ctx context.Context, groupID, memberID string) error
}

// Reconciler starts a reconciliation run on demand.
type Reconciler interface {
	Trigger(ctx context.Context) (*reconcile.Run, error)
}

// Config names the channels the router cares about.
type Config struct {
	SubmissionChannelID string
	ThreadID            string
}

// Router dispatches chat messages to command handlers.
type Router struct {
	cfg        Config
	chat       Chat
	groups     Groups
	reconciler Reconciler
	logger     zerolog.Logger
	audit      *audit.Logger
	lifetime   context.Context
}

// NewRouter creates a router. reconciler may be nil, in which case
// !reconcile is ignored.
func NewRouter(cfg Config, chat Chat, groups Groups, reconciler Reconciler) *Router {
	return &Router{
		cfg:        cfg,
		chat:       chat,
		groups:     groups,
		reconciler: reconciler,
		logger:     xglog.WithComponent("commands"),
		audit:      audit.NewLogger(),
		lifetime:   context.Background(),
	}
}

// BindLifetime sets the context that bounds on-demand reconciliation runs.
// A run outlives the message that started it but stops when ctx ends. Call
// it before any message is handled.
func (r *Router) BindLifetime(ctx context.Context) {
	r.lifetime = ctx
}

type handlerFunc func(ctx context.Context, msg Message) error

// adminCommands need the Administrator permission. Non-admin invocations
// are ignored silently.
var adminCommands = map[string]func(r *Router) handlerFunc{
	"!addmember":    func(r *Router) handlerFunc { return r.handleAddMember },
	"!removemember": func(r *Router) handlerFunc { return r.handleRemoveMember },
	"!reconcile":    func(r *Router) handlerFunc { return r.handleReconcile },
}

// Handle processes one message. Errors never escape; they are logged and,
// where the user can act on them, replied in the originating channel.
func (r *Router) Handle(ctx context.Context, msg Message) {
	if msg.AuthorBot {
		return
	}

	name, handler := r.route(ctx, msg)
	if handler == nil {
		return
	}

	logger := r.logger.With().
		Str("command", name).
		Str(xglog.FieldChannelID, msg.ChannelID).
		Str(xglog.FieldAuthor, msg.AuthorName).
		Logger()

	outcome := "ok"
	defer func() {
		if p := recover(); p != nil {
			outcome = "error"
			logger.Error().
				Str(xglog.FieldEvent, "command.panic").
				Interface("panic", p).
				Msg("command handler panicked")
		}
		metrics.RecordCommand(name, outcome)
	}()

	if err := handler(ctx, msg); err != nil {
		outcome = "error"
		logger.Error().
			Err(err).
			Str(xglog.FieldEvent, "command.failed").
			Msg("command failed")
		return
	}
	logger.Debug().
		Str(xglog.FieldEvent, "command.handled").
		Msg("command handled")
}

// route picks the handler for msg. Checks run in a fixed order: ping,
// submissions, test poll, then the administrator commands.
func (r *Router) route(ctx context.Context, msg Message) (string, handlerFunc) {
	content := msg.Content
	lower := strings.ToLower(strings.TrimSpace(content))

	if lower == "!ping" {
		return "ping", r.handlePing
	}

	if msg.ChannelID == r.cfg.SubmissionChannelID {
		if strings.HasPrefix(content, "!submit ") || content == "!submit" {
			return "submit", r.handleSubmit
		}
		if len(msg.Attachments) > 0 && content == "" {
			return "photo_submission", r.handlePhotoSubmission
		}
	}

	if lower == "!testpoll" {
		return "testpoll", r.handleTestPoll
	}

	cmd, _, _ := strings.Cut(strings.TrimSpace(content), " ")
	build, ok := adminCommands[strings.ToLower(cmd)]
	if !ok {
		return "", nil
	}
	name := strings.TrimPrefix(strings.ToLower(cmd), "!")

	admin, err := r.chat.IsAdmin(ctx, msg.ChannelID, msg.AuthorID)
	if err != nil {
		r.logger.Warn().
			Err(err).
			Str(xglog.FieldEvent, "command.permission_check_failed").
			Str("command", name).
			Str(xglog.FieldAuthor, msg.AuthorName).
			Msg("could not resolve author permissions")
		metrics.RecordCommand(name, "error")
		return "", nil
	}
	if !admin {
		r.logger.Info().
			Str(xglog.FieldEvent, "command.denied").
			Str("command", name).
			Str(xglog.FieldAuthor, msg.AuthorName).
			Msg("administrator command from non-administrator ignored")
		metrics.RecordCommand(name, "denied")
		r.audit.CommandDenied(ctx, msg.AuthorName, name, msg.ChannelID)
		return "", nil
	}
	return name, build(r)
}

func (r *Router) handlePing(ctx context.Context, msg Message) error {
	return r.chat.Reply(ctx, msg.ChannelID, msg.ID, "Pong!")
}

func (r *Router) handleSubmit(ctx context.Context, msg Message) error {
	text := strings.TrimSpace(strings.TrimPrefix(msg.Content, "!submit"))
	if text == "" {
		return r.chat.Reply(ctx, msg.ChannelID, msg.ID, "You must provide text after the `!submit` command.")
	}

	body := fmt.Sprintf("**New Submission from %s:**\n\n%s", msg.AuthorName, text)
	if _, err := r.chat.Send(ctx, r.cfg.ThreadID, body); err != nil {
		r.replyQuietly(ctx, msg, "Error: Could not find the private thread. Check IDs.")
		return fmt.Errorf("forward submission: %w", err)
	}
	r.audit.SubmissionRelayed(ctx, msg.AuthorName, "text", r.cfg.ThreadID)
	r.deleteOriginal(ctx, msg)
	return nil
}

// submissionPoll is attached to every photo submission.
var submissionPoll = Poll{
	Question: "Is this offer sus?",
	Answers:  []string{"Yes", "No"},
	Duration: 24 * time.Hour,
}

func (r *Router) handlePhotoSubmission(ctx context.Context, msg Message) error {
	header := fmt.Sprintf("**submission from %s:**", msg.AuthorName)
	sentID, err := r.chat.SendFiles(ctx, r.cfg.ThreadID, header, msg.Attachments)
	if err != nil {
		r.replyQuietly(ctx, msg, "Error: Could not find the private thread.")
		return fmt.Errorf("forward attachments: %w", err)
	}

	if err := r.chat.SendPoll(ctx, r.cfg.ThreadID, sentID, "--- Potential offer: ---", submissionPoll); err != nil {
		return fmt.Errorf("send submission poll: %w", err)
	}
	r.audit.SubmissionRelayed(ctx, msg.AuthorName, "photo", r.cfg.ThreadID)

	r.deleteOriginal(ctx, msg)

	members, err := r.chat.ThreadMembers(ctx, r.cfg.ThreadID)
	if err != nil {
		return fmt.Errorf("list thread members: %w", err)
	}
	mentions := make([]string, 0, len(members))
	for _, m := range members {
		if m.Bot {
			continue
		}
		mentions = append(mentions, "<@"+m.ID+">")
	}
	if len(mentions) == 0 {
		return nil
	}
	notice := fmt.Sprintf("Hey %s, vote on this submission in the council", strings.Join(mentions, ", "))
	if _, err := r.chat.Send(ctx, r.cfg.ThreadID, notice); err != nil {
		return fmt.Errorf("send vote reminder: %w", err)
	}
	return nil
}

var testPoll = Poll{
	Question: "Is this a working poll?",
	Answers:  []string{"Yes", "No"},
	Duration: 24 * time.Hour,
}

func (r *Router) handleTestPoll(ctx context.Context, msg Message) error {
	if err := r.chat.SendPoll(ctx, msg.ChannelID, "", "Poll initiated:", testPoll); err != nil {
		r.replyQuietly(ctx, msg, "Failed to send test poll. Check the logs for errors.")
		return fmt.Errorf("send test poll: %w", err)
	}
	return r.chat.Reply(ctx, msg.ChannelID, msg.ID, "Test poll command processed. Check channel for poll!")
}

const mentionRequired = "Error: Could not find the user or the private thread. Please mention a valid user."

func (r *Router) handleAddMember(ctx context.Context, msg Message) error {
	if len(msg.Mentions) == 0 {
		return r.chat.Reply(ctx, msg.ChannelID, msg.ID, mentionRequired)
	}
	target := msg.Mentions[0]
	err := r.groups.AddToGroup(ctx, r.cfg.ThreadID, target.ID)
	r.audit.MemberChange(ctx, audit.EventMemberAdd, msg.AuthorName, r.cfg.ThreadID, target.ID, err)
	if err != nil {
		r.replyQuietly(ctx, msg, "Could not add the member. Check the bot's permissions or the user's status.")
		return fmt.Errorf("add %s: %w", target.ID, err)
	}
	return r.chat.Reply(ctx, msg.ChannelID, msg.ID, target.DisplayName+" has been added to the private thread.")
}

func (r *Router) handleRemoveMember(ctx context.Context, msg Message) error {
	if len(msg.Mentions) == 0 {
		return r.chat.Reply(ctx, msg.ChannelID, msg.ID, mentionRequired)
	}
	target := msg.Mentions[0]
	err := r.groups.RemoveFromGroup(ctx, r.cfg.ThreadID, target.ID)
	r.audit.MemberChange(ctx, audit.EventMemberRemove, msg.AuthorName, r.cfg.ThreadID, target.ID, err)
	if err != nil {
		r.replyQuietly(ctx, msg, "Could not remove the member. Check the bot's permissions.")
		return fmt.Errorf("remove %s: %w", target.ID, err)
	}
	return r.chat.Reply(ctx, msg.ChannelID, msg.ID, target.DisplayName+" has been removed from the private thread.")
}

func (r *Router) handleReconcile(ctx context.Context, msg Message) error {
	if r.reconciler == nil {
		return r.chat.Reply(ctx, msg.ChannelID, msg.ID, "Reconciliation is not available.")
	}

	// Runs end with the daemon lifetime, never with the message deadline.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()
	stop := context.AfterFunc(r.lifetime, cancel)
	defer stop()

	run, err := r.reconciler.Trigger(reconcile.WithTrigger(runCtx, reconcile.TriggerCommand))
	var runID string
	if run != nil {
		runID = run.ID
	}
	r.audit.ReconcileTriggered(runCtx, msg.AuthorName, reconcile.TriggerCommand, runID, err)
	return r.chat.Reply(runCtx, msg.ChannelID, msg.ID, FormatRun(run, err))
}

// replyQuietly replies and only logs a failure to do so, for replies that
// accompany an error already being returned.
func (r *Router) replyQuietly(ctx context.Context, msg Message, content string) {
	if err := r.chat.Reply(ctx, msg.ChannelID, msg.ID, content); err != nil {
		r.logger.Warn().
			Err(err).
			Str(xglog.FieldEvent, "command.reply_failed").
			Str(xglog.FieldChannelID, msg.ChannelID).
			Msg("failed to reply")
	}
}

func (r *Router) deleteOriginal(ctx context.Context, msg Message) {
	if err := r.chat.Delete(ctx, msg.ChannelID, msg.ID); err != nil {
		r.logger.Warn().
			Err(err).
			Str(xglog.FieldEvent, "command.delete_failed").
			Str(xglog.FieldChannelID, msg.ChannelID).
			Msg("failed to delete original submission")
	}
}
