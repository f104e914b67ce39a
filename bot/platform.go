/*
Package bot implements the chat-facing side of the birthday service: the
command router, the birthday commands and the reconciliation scheduler.

PURPOSE:
  Everything here talks to the chat platform only through Platform, the
  narrow capability surface the service needs. The discord package
  provides the production implementation; tests use an in-memory fake.

DEPENDENCIES:
  All collaborators (store, platform, logger, metrics) are passed in at
  construction time. There are no package-level singletons.

SEE ALSO:
  - router.go: prefix parsing, checks, error kinds
  - commands.go: ping, time, source, birthday, owner commands
  - set.go: the two-step registration protocol
  - scheduler.go: role grant/revoke loop
*/
package bot

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrWaitTimeout is returned by WaitForMessage when no matching message
	// arrived in time.
	ErrWaitTimeout = errors.New("timed out waiting for message")

	// ErrMemberNotFound is returned when a user is not in the community.
	ErrMemberNotFound = errors.New("member not found")
)

// User is a platform account.
type User struct {
	ID       string
	Username string
	Bot      bool
}

// Mention renders the platform mention markup for the user.
func (u User) Mention() string { return "<@" + u.ID + ">" }

// Member is a user resolved inside the community.
type Member struct {
	User
	Nick string
}

// DisplayName prefers the community nickname.
func (m Member) DisplayName() string {
	if m.Nick != "" {
		return m.Nick
	}
	return m.Username
}

// Message is an inbound or sent chat message.
type Message struct {
	ID         string
	ChannelID  string
	AuthorID   string
	AuthorName string
	AuthorBot  bool
	Content    string
}

// MessageHandler consumes inbound messages.
type MessageHandler interface {
	Handle(ctx context.Context, msg *Message)
}

// Platform is the capability surface required from the chat client.
type Platform interface {
	// Send posts content to a channel.
	Send(ctx context.Context, channelID, content string) (*Message, error)
	// Edit replaces the content of a previously sent message.
	Edit(ctx context.Context, channelID, messageID, content string) (*Message, error)
	// WaitForMessage blocks until authorID posts a message in channelID that
	// satisfies match, or returns ErrWaitTimeout after timeout.
	WaitForMessage(ctx context.Context, channelID, authorID string, match func(*Message) bool, timeout time.Duration) (*Message, error)
	// Member resolves a user inside a community.
	Member(ctx context.Context, guildID, userID string) (*Member, error)
	// SearchMembers lists up to limit members whose username or nickname
	// starts with query.
	SearchMembers(ctx context.Context, guildID, query string, limit int) ([]Member, error)
	// AddRole grants a role to a member.
	AddRole(ctx context.Context, guildID, userID, roleID, reason string) error
	// RemoveRole revokes a role from a member.
	RemoveRole(ctx context.Context, guildID, userID, roleID, reason string) error
	// Self is the bot's own account.
	Self() User
	// Latency is the last measured gateway heartbeat latency.
	Latency() time.Duration
}
