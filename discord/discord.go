/*
Package discord adapts a discordgo session to bot.Platform.

PURPOSE:
  The bot package only knows the narrow Platform interface. This package
  supplies the production implementation on top of the Discord gateway and
  REST API, plus the plumbing that turns gateway events into calls on a
  bot.MessageHandler.

EVENTS:
  Ready          - sets the idle "watching" presence
  MessageCreate  - first offered to pending WaitForMessage calls, then
                   handed to the command handler

USAGE:
  client, err := discord.New(cfg.Token, cfg.Prefix, logger)
  if err != nil {
      return err
  }
  if err := client.Open(ctx, router); err != nil {
      return err
  }
  defer client.Close()
*/
package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/warp/birthday-engine/bot"
)

// Intents requested on the gateway.
const Intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsGuildMembers |
	discordgo.IntentsMessageContent

// Client implements bot.Platform over a discordgo session.
type Client struct {
	session *discordgo.Session
	prefix  string
	logger  *slog.Logger
	waiters *waiters
}

var _ bot.Platform = (*Client)(nil)

// New creates a client for a bot token. Nothing connects until Open.
func New(token, prefix string, logger *slog.Logger) (*Client, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	session.Identify.Intents = Intents

	return &Client{
		session: session,
		prefix:  prefix,
		logger:  logger.With("component", "discord"),
		waiters: newWaiters(),
	}, nil
}

// Open registers the event handlers and connects to the gateway. Each
// inbound message is handled with ctx.
func (c *Client) Open(ctx context.Context, handler bot.MessageHandler) error {
	c.session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		c.logger.Info("ready", "user", r.User.String(), "guilds", len(r.Guilds))

		err := s.UpdateStatusComplex(discordgo.UpdateStatusData{
			Status: string(discordgo.StatusIdle),
			Activities: []*discordgo.Activity{{
				Name: fmt.Sprintf("when your birthday is due 🎉🎂 (Prefix: %s)", c.prefix),
				Type: discordgo.ActivityTypeWatching,
			}},
		})
		if err != nil {
			c.logger.Warn("failed to set presence", "error", err)
		}
	})

	c.session.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Author == nil {
			return
		}
		msg := fromDiscord(m.Message)
		c.waiters.deliver(msg)
		handler.Handle(ctx, msg)
	})

	if err := c.session.Open(); err != nil {
		return fmt.Errorf("failed to open gateway: %w", err)
	}
	return nil
}

// Close disconnects from the gateway.
func (c *Client) Close() error {
	return c.session.Close()
}

// Send implements bot.Platform.
func (c *Client) Send(ctx context.Context, channelID, content string) (*bot.Message, error) {
	m, err := c.session.ChannelMessageSend(channelID, content, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}
	return fromDiscord(m), nil
}

// Edit implements bot.Platform.
func (c *Client) Edit(ctx context.Context, channelID, messageID, content string) (*bot.Message, error) {
	m, err := c.session.ChannelMessageEdit(channelID, messageID, content, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to edit message: %w", err)
	}
	return fromDiscord(m), nil
}

// WaitForMessage implements bot.Platform.
func (c *Client) WaitForMessage(ctx context.Context, channelID, authorID string, match func(*bot.Message) bool, timeout time.Duration) (*bot.Message, error) {
	return c.waiters.wait(ctx, channelID, authorID, match, timeout)
}

// Member implements bot.Platform.
func (c *Client) Member(ctx context.Context, guildID, userID string) (*bot.Member, error) {
	m, err := c.session.GuildMember(guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		if isUnknownMember(err) {
			return nil, bot.ErrMemberNotFound
		}
		return nil, fmt.Errorf("failed to fetch member %s: %w", userID, err)
	}
	return &bot.Member{User: fromUser(m.User), Nick: m.Nick}, nil
}

// SearchMembers implements bot.Platform.
func (c *Client) SearchMembers(ctx context.Context, guildID, query string, limit int) ([]bot.Member, error) {
	found, err := c.session.GuildMembersSearch(guildID, query, limit, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to search members for %q: %w", query, err)
	}

	members := make([]bot.Member, 0, len(found))
	for _, m := range found {
		members = append(members, bot.Member{User: fromUser(m.User), Nick: m.Nick})
	}
	return members, nil
}

// AddRole implements bot.Platform.
func (c *Client) AddRole(ctx context.Context, guildID, userID, roleID, reason string) error {
	err := c.session.GuildMemberRoleAdd(guildID, userID, roleID,
		discordgo.WithContext(ctx), discordgo.WithAuditLogReason(reason))
	if err != nil {
		return fmt.Errorf("failed to add role %s to %s: %w", roleID, userID, err)
	}
	return nil
}

// RemoveRole implements bot.Platform.
func (c *Client) RemoveRole(ctx context.Context, guildID, userID, roleID, reason string) error {
	err := c.session.GuildMemberRoleRemove(guildID, userID, roleID,
		discordgo.WithContext(ctx), discordgo.WithAuditLogReason(reason))
	if err != nil {
		return fmt.Errorf("failed to remove role %s from %s: %w", roleID, userID, err)
	}
	return nil
}

// Self implements bot.Platform. It is empty until the gateway is ready.
func (c *Client) Self() bot.User {
	if c.session.State == nil || c.session.State.User == nil {
		return bot.User{}
	}
	return fromUser(c.session.State.User)
}

// Latency implements bot.Platform.
func (c *Client) Latency() time.Duration {
	return c.session.HeartbeatLatency()
}

func fromDiscord(m *discordgo.Message) *bot.Message {
	msg := &bot.Message{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		Content:   m.Content,
	}
	if m.Author != nil {
		msg.AuthorID = m.Author.ID
		msg.AuthorName = m.Author.Username
		msg.AuthorBot = m.Author.Bot
	}
	return msg
}

func fromUser(u *discordgo.User) bot.User {
	if u == nil {
		return bot.User{}
	}
	return bot.User{ID: u.ID, Username: u.Username, Bot: u.Bot}
}

func isUnknownMember(err error) bool {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return false
	}
	if restErr.Message != nil && restErr.Message.Code == discordgo.ErrCodeUnknownMember {
		return true
	}
	return restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound
}
