// SPDX-License-Identifier: MIT

// Package discord adapts a discordgo session to the membership directory,
// the chat surface and the connection lifecycle the daemon supervises.
package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/ManuGH/threadwarden/internal/commands"
	xglog "github.com/ManuGH/threadwarden/internal/log"
)

// Intents the bot needs: guild and message events, message content for
// commands, and guild members for identity resolution.
const Intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsMessageContent |
	discordgo.IntentsGuildMembers

// messageTimeout bounds the handling of a single inbound message.
const messageTimeout = 30 * time.Second

// api is the subset of *discordgo.Session the adapter uses.
type api interface {
	Open() error
	Close() error
	AddHandler(handler interface{}) func()
	Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	Guild(guildID string, options ...discordgo.RequestOption) (*discordgo.Guild, error)
	GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error)
	ThreadMemberAdd(threadID, memberID string, options ...discordgo.RequestOption) error
	ThreadMemberRemove(threadID, memberID string, options ...discordgo.RequestOption) error
	ThreadMembers(threadID string, limit int, withMember bool, afterID string, options ...discordgo.RequestOption) ([]*discordgo.ThreadMember, error)
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendReply(channelID, content string, reference *discordgo.MessageReference, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
	UserChannelPermissions(userID, channelID string, fetchOptions ...discordgo.RequestOption) (int64, error)
}

// Handlers receive gateway lifecycle events and inbound messages.
type Handlers struct {
	Connected    func()
	Disconnected func(code int, reason string)
	Message      func(ctx context.Context, msg commands.Message)
}

// Client is the Discord adapter. Reconnects are driven by the caller through
// Login; discordgo's own reconnect loop is disabled.
type Client struct {
	api    api
	http   *http.Client
	logger zerolog.Logger

	mu       sync.RWMutex
	ctx      context.Context
	handlers Handlers
}

// New creates a client for the bot token. It does not connect.
func New(token string) (*Client, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	s.Identify.Intents = Intents
	s.ShouldReconnectOnError = false
	s.StateEnabled = true
	return newClient(s), nil
}

func newClient(a api) *Client {
	c := &Client{
		api:    a,
		http:   &http.Client{Timeout: 60 * time.Second},
		logger: xglog.WithComponent("discord"),
		ctx:    context.Background(),
	}
	a.AddHandler(c.onReady)
	a.AddHandler(c.onDisconnect)
	a.AddHandler(c.onMessageCreate)
	return c
}

// Bind installs the event handlers. ctx is the parent of every inbound
// message's context; it should live as long as the daemon.
func (c *Client) Bind(ctx context.Context, h Handlers) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ctx = ctx
	c.handlers = h
}

func (c *Client) bound() (context.Context, Handlers) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ctx, c.handlers
}

// Login opens the gateway connection. An already open connection counts as
// success.
func (c *Client) Login(ctx context.Context) error {
	done := make(chan error, 1)
	go func() { done <- c.api.Open() }()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, discordgo.ErrWSAlreadyOpen) {
			return fmt.Errorf("open gateway: %w", err)
		}
		c.logger.Info().
			Str(xglog.FieldEvent, "discord.login").
			Msg("gateway session opened")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close closes the gateway connection.
func (c *Client) Close() error {
	return c.api.Close()
}

func (c *Client) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	evt := c.logger.Info().Str(xglog.FieldEvent, "discord.ready")
	if r != nil && r.User != nil {
		evt = evt.Str("user", r.User.Username).Str("user_id", r.User.ID)
	}
	evt.Msg("logged in")

	if _, h := c.bound(); h.Connected != nil {
		h.Connected()
	}
}

func (c *Client) onDisconnect(_ *discordgo.Session, _ *discordgo.Disconnect) {
	c.logger.Warn().
		Str(xglog.FieldEvent, "discord.disconnect").
		Msg("gateway connection lost")

	// discordgo does not surface the close code on this event.
	if _, h := c.bound(); h.Disconnected != nil {
		h.Disconnected(0, "gateway_closed")
	}
}

func (c *Client) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m == nil || m.Message == nil {
		return
	}
	parent, h := c.bound()
	if h.Message == nil {
		return
	}
	ctx, cancel := context.WithTimeout(parent, messageTimeout)
	defer cancel()
	h.Message(ctx, toMessage(m.Message))
}
