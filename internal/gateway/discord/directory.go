// SPDX-License-Identifier: MIT

package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"

	"github.com/ManuGH/threadwarden/internal/reconcile"
)

var _ reconcile.Directory = (*Client)(nil)

// ResolveGroup checks that the private thread exists and is visible.
func (c *Client) ResolveGroup(ctx context.Context, groupID string) error {
	ch, err := c.api.Channel(groupID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("fetch thread %s: %w", groupID, err)
	}
	if ch == nil || !ch.IsThread() {
		return fmt.Errorf("channel %s is not a thread", groupID)
	}
	return nil
}

// ResolveCommunity checks that the guild exists and is visible.
func (c *Client) ResolveCommunity(ctx context.Context, communityID string) error {
	if _, err := c.api.Guild(communityID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("fetch guild %s: %w", communityID, err)
	}
	return nil
}

// ResolveMember looks the member up in the guild.
func (c *Client) ResolveMember(ctx context.Context, communityID, memberID string) (reconcile.Member, error) {
	m, err := c.api.GuildMember(communityID, memberID, discordgo.WithContext(ctx))
	if err != nil {
		if isNotFound(err) {
			return reconcile.Member{}, fmt.Errorf("%w: %s", reconcile.ErrMemberNotFound, memberID)
		}
		return reconcile.Member{}, fmt.Errorf("fetch member %s: %w", memberID, err)
	}
	if m == nil || m.User == nil {
		return reconcile.Member{}, fmt.Errorf("%w: %s", reconcile.ErrMemberNotFound, memberID)
	}
	return toMember(m), nil
}

// AddToGroup adds memberID to the thread. Adding a present member is a
// no-op on Discord's side.
func (c *Client) AddToGroup(ctx context.Context, groupID, memberID string) error {
	if err := c.api.ThreadMemberAdd(groupID, memberID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("add %s to thread %s: %w", memberID, groupID, err)
	}
	return nil
}

// RemoveFromGroup removes memberID from the thread. Removing an absent
// member succeeds.
func (c *Client) RemoveFromGroup(ctx context.Context, groupID, memberID string) error {
	if err := c.api.ThreadMemberRemove(groupID, memberID, discordgo.WithContext(ctx)); err != nil {
		if isNotFound(err) {
			return nil
		}
		return fmt.Errorf("remove %s from thread %s: %w", memberID, groupID, err)
	}
	return nil
}

func isNotFound(err error) bool {
	var rerr *discordgo.RESTError
	if !errors.As(err, &rerr) {
		return false
	}
	if rerr.Message != nil {
		switch rerr.Message.Code {
		case discordgo.ErrCodeUnknownMember, discordgo.ErrCodeUnknownUser:
			return true
		}
	}
	return rerr.Response != nil && rerr.Response.StatusCode == http.StatusNotFound
}

func toMember(m *discordgo.Member) reconcile.Member {
	return reconcile.Member{
		ID:          m.User.ID,
		DisplayName: m.User.Username,
		Bot:         m.User.Bot,
	}
}
