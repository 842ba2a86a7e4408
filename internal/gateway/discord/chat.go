// SPDX-License-Identifier: MIT

package discord

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/bwmarrin/discordgo"

	"github.com/ManuGH/threadwarden/internal/commands"
	"github.com/ManuGH/threadwarden/internal/reconcile"
)

var _ commands.Chat = (*Client)(nil)

// maxAttachmentBytes is Discord's default upload limit.
const maxAttachmentBytes = 25 << 20

// threadMemberPage is the largest page the thread members endpoint returns.
const threadMemberPage = 100

// Send posts a plain message and returns its ID.
func (c *Client) Send(ctx context.Context, channelID, content string) (string, error) {
	m, err := c.api.ChannelMessageSend(channelID, content, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("send to %s: %w", channelID, err)
	}
	return m.ID, nil
}

// SendFiles downloads each attachment and re-uploads it to channelID under
// a header message.
func (c *Client) SendFiles(ctx context.Context, channelID, content string, files []commands.Attachment) (string, error) {
	data := &discordgo.MessageSend{Content: content}
	for _, f := range files {
		body, err := c.download(ctx, f.URL)
		if err != nil {
			return "", fmt.Errorf("download %s: %w", f.Name, err)
		}
		data.Files = append(data.Files, &discordgo.File{
			Name:        f.Name,
			ContentType: f.ContentType,
			Reader:      bytes.NewReader(body),
		})
	}

	m, err := c.api.ChannelMessageSendComplex(channelID, data, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("upload to %s: %w", channelID, err)
	}
	return m.ID, nil
}

func (c *Client) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAttachmentBytes+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxAttachmentBytes {
		return nil, fmt.Errorf("attachment exceeds %d bytes", maxAttachmentBytes)
	}
	return body, nil
}

// SendPoll posts a poll, optionally as a reply to replyTo.
func (c *Client) SendPoll(ctx context.Context, channelID, replyTo, content string, poll commands.Poll) error {
	data := &discordgo.MessageSend{
		Content: content,
		Poll:    toPoll(poll),
	}
	if replyTo != "" {
		data.Reference = &discordgo.MessageReference{MessageID: replyTo, ChannelID: channelID}
	}
	if _, err := c.api.ChannelMessageSendComplex(channelID, data, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("send poll to %s: %w", channelID, err)
	}
	return nil
}

// Reply answers messageID in channelID.
func (c *Client) Reply(ctx context.Context, channelID, messageID, content string) error {
	ref := &discordgo.MessageReference{MessageID: messageID, ChannelID: channelID}
	if _, err := c.api.ChannelMessageSendReply(channelID, content, ref, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("reply in %s: %w", channelID, err)
	}
	return nil
}

// Delete removes a message.
func (c *Client) Delete(ctx context.Context, channelID, messageID string) error {
	if err := c.api.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("delete %s/%s: %w", channelID, messageID, err)
	}
	return nil
}

// ThreadMembers lists every member of the thread, following pagination.
func (c *Client) ThreadMembers(ctx context.Context, threadID string) ([]reconcile.Member, error) {
	var (
		out   []reconcile.Member
		after string
	)
	for {
		page, err := c.api.ThreadMembers(threadID, threadMemberPage, true, after, discordgo.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("list members of %s: %w", threadID, err)
		}
		for _, tm := range page {
			if tm.Member != nil && tm.Member.User != nil {
				out = append(out, toMember(tm.Member))
				continue
			}
			out = append(out, reconcile.Member{ID: tm.UserID})
		}
		if len(page) < threadMemberPage {
			return out, nil
		}
		after = page[len(page)-1].UserID
	}
}

// IsAdmin reports whether userID holds the Administrator permission in
// channelID.
func (c *Client) IsAdmin(ctx context.Context, channelID, userID string) (bool, error) {
	perms, err := c.api.UserChannelPermissions(userID, channelID, discordgo.WithContext(ctx))
	if err != nil {
		return false, fmt.Errorf("permissions of %s in %s: %w", userID, channelID, err)
	}
	return perms&discordgo.PermissionAdministrator != 0, nil
}
