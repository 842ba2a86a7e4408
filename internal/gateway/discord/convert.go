// SPDX-License-Identifier: MIT

package discord

import (
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/ManuGH/threadwarden/internal/commands"
	"github.com/ManuGH/threadwarden/internal/reconcile"
)

func toMessage(m *discordgo.Message) commands.Message {
	msg := commands.Message{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		Content:   m.Content,
	}
	if m.Author != nil {
		msg.AuthorID = m.Author.ID
		msg.AuthorName = m.Author.Username
		msg.AuthorBot = m.Author.Bot
	}
	for _, a := range m.Attachments {
		if a == nil {
			continue
		}
		msg.Attachments = append(msg.Attachments, commands.Attachment{
			Name:        a.Filename,
			URL:         a.URL,
			ContentType: a.ContentType,
		})
	}
	for _, u := range m.Mentions {
		if u == nil {
			continue
		}
		msg.Mentions = append(msg.Mentions, reconcile.Member{ID: u.ID, DisplayName: u.Username, Bot: u.Bot})
	}
	return msg
}

func toPoll(p commands.Poll) *discordgo.Poll {
	answers := make([]discordgo.PollAnswer, 0, len(p.Answers))
	for _, a := range p.Answers {
		answers = append(answers, discordgo.PollAnswer{Media: &discordgo.PollMedia{Text: a}})
	}
	hours := int(p.Duration / time.Hour)
	if hours < 1 {
		hours = 1
	}
	return &discordgo.Poll{
		Question:         discordgo.PollMedia{Text: p.Question},
		Answers:          answers,
		AllowMultiselect: p.Multiselect,
		Duration:         hours,
	}
}
