package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/warp/birthday-engine/birthday"
)

const (
	// DefaultConfirmTimeout bounds each wait of the registration protocol.
	DefaultConfirmTimeout = 30 * time.Second

	// DefaultSourceURL is where the source command points.
	DefaultSourceURL = "https://github.com/AlexFlipnote/birthday.py"

	pingCooldown = 5 * time.Second

	dayMonthLayout     = "02 January"
	dayMonthYearLayout = "02 January 2006"
	clockLayout        = "02 January 2006, 15:04"
)

// Handlers implements the chat commands over a birthday store.
type Handlers struct {
	Store          *birthday.Store
	GuildID        string
	SourceURL      string
	ConfirmTimeout time.Duration
	// Now is the application clock, used for ages and the time command.
	Now func() time.Time
	// Code returns the confirmation code the registration protocol asks for.
	Code   func() int
	Logger *slog.Logger
}

// NewHandlers returns command handlers with production defaults.
func NewHandlers(store *birthday.Store, guildID string, logger *slog.Logger) *Handlers {
	return &Handlers{
		Store:          store,
		GuildID:        guildID,
		SourceURL:      DefaultSourceURL,
		ConfirmTimeout: DefaultConfirmTimeout,
		Now:            func() time.Time { return time.Now().UTC() },
		Code:           func() int { return 10000 + rand.IntN(90000) },
		Logger:         logger.With("component", "commands"),
	}
}

// Commands returns every command the bot answers to.
func (h *Handlers) Commands() []*Command {
	return []*Command{
		{Name: "ping", Help: "Pong!", Cooldown: pingCooldown, Run: h.ping},
		{Name: "time", Help: "Check what the time is for me (the bot)", Run: h.time},
		{Name: "source", Help: "Check out my source code <3", Run: h.source},
		{
			Name:    "birthday",
			Aliases: []string{"b", "bd", "birth", "day"},
			Usage:   "birthday [user]",
			Help:    "Check your birthday or other people",
			Run:     h.birthday,
		},
		{Name: "set", Help: "Set your birthday :)", MaxConcurrency: true, Run: h.set},
		{Name: "forceset", Usage: "forceset <user> <DD/MM/YYYY>", OwnerOnly: true, Run: h.forceset},
		{Name: "db", Usage: "db <query>", OwnerOnly: true, Run: h.db},
		{Name: "dropall", OwnerOnly: true, Run: h.dropall},
		{Name: "dropuser", Usage: "dropuser <user>", OwnerOnly: true, Run: h.dropuser},
	}
}

// =============================================================================
// PUBLIC COMMANDS
// =============================================================================

func (h *Handlers) ping(ctx context.Context, c *Context) error {
	ws := c.Platform.Latency().Milliseconds()

	before := time.Now()
	msg, err := c.Reply(ctx, "Loading...")
	if err != nil {
		return err
	}
	rest := time.Since(before).Milliseconds()

	_, err = c.Platform.Edit(ctx, msg.ChannelID, msg.ID, fmt.Sprintf("🏓 WS: %dms  |  REST: %dms", ws, rest))
	return err
}

func (h *Handlers) time(ctx context.Context, c *Context) error {
	_, err := c.Reply(ctx, fmt.Sprintf("Currently the time for me is **%s**", h.Now().UTC().Format(clockLayout)))
	return err
}

func (h *Handlers) source(ctx context.Context, c *Context) error {
	_, err := c.Reply(ctx, fmt.Sprintf("**%s** is powered by this source code:\n%s", c.Platform.Self().Username, h.SourceURL))
	return err
}

func (h *Handlers) birthday(ctx context.Context, c *Context) error {
	userID, name := c.Message.AuthorID, c.Message.AuthorName
	if c.Args != "" {
		member, err := h.resolveMember(ctx, c, c.Args)
		if err != nil {
			return err
		}
		userID, name = member.ID, member.DisplayName()
	}

	if userID == c.Platform.Self().ID {
		_, err := c.Reply(ctx, "I have birthday **06 February**, thank you for asking ❤")
		return err
	}

	rec, err := h.find(ctx, userID)
	if err != nil {
		return err
	}
	if rec == nil {
		_, err := c.Reply(ctx, fmt.Sprintf("**%s** has not saved their birthday :(", name))
		return err
	}

	date := rec.Birthday.Format(dayMonthLayout)
	age := birthday.Age(rec.Birthday, h.Now())

	var reply string
	if userID == c.Message.AuthorID {
		reply = fmt.Sprintf("**You** have birthday **%s** and you're currently **%d** years old.", date, age)
	} else {
		reply = fmt.Sprintf("**%s** has birthday on **%s** and is currently **%d** years old.", name, date, age)
	}
	_, err = c.Reply(ctx, reply)
	return err
}

// =============================================================================
// OWNER COMMANDS
// =============================================================================

func (h *Handlers) forceset(ctx context.Context, c *Context) error {
	target, date, _ := strings.Cut(c.Args, " ")
	date = strings.TrimSpace(date)
	if target == "" || date == "" {
		return BadArgument("missing user or date")
	}

	member, err := h.resolveMember(ctx, c, target)
	if err != nil {
		return err
	}
	born, err := birthday.ParseDate(date)
	if err != nil {
		return BadArgument("%v", err)
	}
	id, err := parseSnowflake(member.ID)
	if err != nil {
		return err
	}

	result := h.Store.SetBirthday(ctx, id, born)
	h.Logger.InfoContext(ctx, "birthday overridden",
		"user_id", member.ID, "birthday", born.Format(time.DateOnly), "result", result.String())

	_, err = c.Reply(ctx, result.String())
	return err
}

func (h *Handlers) db(ctx context.Context, c *Context) error {
	if c.Args == "" {
		return BadArgument("missing query")
	}
	result := h.Store.DB().Execute(ctx, c.Args)
	_, err := c.Reply(ctx, result.String())
	return err
}

func (h *Handlers) dropall(ctx context.Context, c *Context) error {
	result := h.Store.DeleteAll(ctx)
	h.Logger.WarnContext(ctx, "all birthdays dropped", "by", c.Message.AuthorID, "result", result.String())

	_, err := c.Reply(ctx, "DEBUG: "+result.String())
	return err
}

// dropuser takes a raw id or mention without resolving membership, so records
// of members who already left can be removed.
func (h *Handlers) dropuser(ctx context.Context, c *Context) error {
	userID, ok := parseUserRef(c.Args)
	if !ok {
		return BadArgument("%q is not a user", c.Args)
	}
	id, err := parseSnowflake(userID)
	if err != nil {
		return err
	}

	result := h.Store.Delete(ctx, id)
	h.Logger.InfoContext(ctx, "birthday dropped", "user_id", userID, "by", c.Message.AuthorID, "result", result.String())

	_, err = c.Reply(ctx, "DEBUG: "+result.String())
	return err
}

// =============================================================================
// HELPERS
// =============================================================================

var mentionPattern = regexp.MustCompile(`^<@!?([0-9]{15,21})>$`)

// parseUserRef extracts a user id from a mention or a raw id.
func parseUserRef(arg string) (string, bool) {
	arg = strings.TrimSpace(arg)
	if m := mentionPattern.FindStringSubmatch(arg); m != nil {
		return m[1], true
	}
	if _, err := strconv.ParseUint(arg, 10, 64); err == nil && arg != "" {
		return arg, true
	}
	return "", false
}

func parseSnowflake(id string) (int64, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid user id %q: %w", id, err)
	}
	return n, nil
}

// memberSearchLimit caps the name lookup. An exact match past it is missed.
const memberSearchLimit = 100

// resolveMember turns a user argument into a member of the configured guild.
// Mentions and raw ids are looked up directly, anything else is matched
// exactly against usernames, then nicknames.
func (h *Handlers) resolveMember(ctx context.Context, c *Context, arg string) (*Member, error) {
	userID, ok := parseUserRef(arg)
	if !ok {
		return h.memberByName(ctx, c, strings.TrimSpace(arg))
	}

	member, err := c.Platform.Member(ctx, h.GuildID, userID)
	if errors.Is(err, ErrMemberNotFound) {
		return nil, BadArgument("Member %q not found.", arg)
	}
	if err != nil {
		return nil, err
	}
	return member, nil
}

func (h *Handlers) memberByName(ctx context.Context, c *Context, name string) (*Member, error) {
	if name == "" {
		return nil, BadArgument("Member %q not found.", name)
	}

	members, err := c.Platform.SearchMembers(ctx, h.GuildID, name, memberSearchLimit)
	if err != nil {
		return nil, err
	}
	for i := range members {
		if members[i].Username == name {
			return &members[i], nil
		}
	}
	for i := range members {
		if members[i].Nick == name {
			return &members[i], nil
		}
	}
	return nil, BadArgument("Member %q not found.", name)
}

func (h *Handlers) find(ctx context.Context, userID string) (*birthday.Record, error) {
	id, err := parseSnowflake(userID)
	if err != nil {
		return nil, err
	}
	return h.Store.Find(ctx, id)
}
