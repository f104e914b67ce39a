package bot_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/warp/birthday-engine/birthday"
	"github.com/warp/birthday-engine/bot"
	"github.com/warp/birthday-engine/schema"
	"github.com/warp/birthday-engine/store/sqlite"
)

// =============================================================================
// FAKE PLATFORM
// =============================================================================

const (
	ownerID    = "100000000000000001"
	aliceID    = "200000000000000002"
	bobID      = "300000000000000003"
	botID      = "900000000000000009"
	guildID    = "700000000000000007"
	roleID     = "800000000000000008"
	channelID  = "40"
	announceID = "41"
)

type roleCall struct {
	UserID string
	RoleID string
	Reason string
}

// fakePlatform records every outbound call and serves queued replies to
// WaitForMessage.
type fakePlatform struct {
	mu sync.Mutex

	self    bot.User
	members map[string]bot.Member
	replies []string

	// block, when set, makes an empty-queue wait park until it is closed.
	block   chan struct{}
	entered chan struct{}

	failAdd map[string]bool
	failGet map[string]bool

	nextID  int
	sent    []bot.Message
	edits   []bot.Message
	added   []roleCall
	removed []roleCall
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		self: bot.User{ID: botID, Username: "BirthdayBot", Bot: true},
		members: map[string]bot.Member{
			ownerID: {User: bot.User{ID: ownerID, Username: "owner"}},
			aliceID: {User: bot.User{ID: aliceID, Username: "alice"}, Nick: "Ali"},
			bobID:   {User: bot.User{ID: bobID, Username: "bob"}},
			botID:   {User: bot.User{ID: botID, Username: "BirthdayBot", Bot: true}},
		},
		failAdd: map[string]bool{},
		failGet: map[string]bool{},
	}
}

func (p *fakePlatform) Send(_ context.Context, channelID, content string) (*bot.Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.nextID++
	msg := bot.Message{
		ID:         strconv.Itoa(p.nextID),
		ChannelID:  channelID,
		AuthorID:   p.self.ID,
		AuthorName: p.self.Username,
		AuthorBot:  true,
		Content:    content,
	}
	p.sent = append(p.sent, msg)
	return &msg, nil
}

func (p *fakePlatform) Edit(_ context.Context, channelID, messageID, content string) (*bot.Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	msg := bot.Message{ID: messageID, ChannelID: channelID, AuthorID: p.self.ID, Content: content}
	p.edits = append(p.edits, msg)
	return &msg, nil
}

func (p *fakePlatform) WaitForMessage(ctx context.Context, channelID, authorID string, match func(*bot.Message) bool, _ time.Duration) (*bot.Message, error) {
	p.mu.Lock()
	for len(p.replies) > 0 {
		content := p.replies[0]
		p.replies = p.replies[1:]

		msg := &bot.Message{ID: "reply", ChannelID: channelID, AuthorID: authorID, Content: content}
		if match(msg) {
			p.mu.Unlock()
			return msg, nil
		}
	}
	block, entered := p.block, p.entered
	p.mu.Unlock()

	if block != nil {
		if entered != nil {
			entered <- struct{}{}
		}
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, bot.ErrWaitTimeout
}

func (p *fakePlatform) Member(_ context.Context, _ string, userID string) (*bot.Member, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failGet[userID] {
		return nil, errors.New("gateway unavailable")
	}
	m, ok := p.members[userID]
	if !ok {
		return nil, bot.ErrMemberNotFound
	}
	return &m, nil
}

func (p *fakePlatform) SearchMembers(_ context.Context, _ string, query string, limit int) ([]bot.Member, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ids := make([]string, 0, len(p.members))
	for id := range p.members {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var found []bot.Member
	for _, id := range ids {
		m := p.members[id]
		if strings.HasPrefix(m.Username, query) || strings.HasPrefix(m.Nick, query) {
			found = append(found, m)
		}
		if len(found) == limit {
			break
		}
	}
	return found, nil
}

func (p *fakePlatform) AddRole(_ context.Context, _ string, userID, roleID, reason string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failAdd[userID] {
		return errors.New("missing permissions")
	}
	p.added = append(p.added, roleCall{UserID: userID, RoleID: roleID, Reason: reason})
	return nil
}

func (p *fakePlatform) RemoveRole(_ context.Context, _ string, userID, roleID, reason string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.removed = append(p.removed, roleCall{UserID: userID, RoleID: roleID, Reason: reason})
	return nil
}

func (p *fakePlatform) Self() bot.User { return p.self }

func (p *fakePlatform) Latency() time.Duration { return 42 * time.Millisecond }

func (p *fakePlatform) queue(replies ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replies = append(p.replies, replies...)
}

func (p *fakePlatform) sentContents() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]string, 0, len(p.sent))
	for _, m := range p.sent {
		out = append(out, m.Content)
	}
	return out
}

func (p *fakePlatform) lastSent() string {
	contents := p.sentContents()
	if len(contents) == 0 {
		return ""
	}
	return contents[len(contents)-1]
}

func (p *fakePlatform) editContents() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]string, 0, len(p.edits))
	for _, m := range p.edits {
		out = append(out, m.Content)
	}
	return out
}

func (p *fakePlatform) roleCalls() (added, removed []roleCall) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]roleCall(nil), p.added...), append([]roleCall(nil), p.removed...)
}

// =============================================================================
// TEST ENVIRONMENT
// =============================================================================

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

type env struct {
	platform  *fakePlatform
	store     *birthday.Store
	handlers  *bot.Handlers
	router    *bot.Router
	scheduler *bot.ReconciliationScheduler
	clock     *clock
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newEnv(t *testing.T, at time.Time) *env {
	t.Helper()

	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.True(t, schema.CreateAll(context.Background(), db, false, discardLogger()))

	c := &clock{t: at}
	store := birthday.NewStore(db, birthday.WithClock(c.Now))
	platform := newFakePlatform()

	handlers := bot.NewHandlers(store, guildID, discardLogger())
	handlers.Now = c.Now
	handlers.Code = func() int { return 12345 }

	router := bot.NewRouter("b!", []string{ownerID}, platform, discardLogger())
	router.Register(handlers.Commands()...)

	scheduler := bot.NewReconciliationScheduler(store, platform, bot.Target{
		GuildID:           guildID,
		RoleID:            roleID,
		AnnounceChannelID: announceID,
	}, discardLogger())

	return &env{
		platform:  platform,
		store:     store,
		handlers:  handlers,
		router:    router,
		scheduler: scheduler,
		clock:     c,
	}
}

func message(authorID, content string) *bot.Message {
	names := map[string]string{ownerID: "owner", aliceID: "alice", bobID: "bob"}
	return &bot.Message{
		ID:         "m-" + authorID,
		ChannelID:  channelID,
		AuthorID:   authorID,
		AuthorName: names[authorID],
		Content:    content,
	}
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func mustID(t *testing.T, id string) int64 {
	t.Helper()
	n, err := strconv.ParseInt(id, 10, 64)
	require.NoError(t, err)
	return n
}
