package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// HandlerFunc runs one command invocation.
type HandlerFunc func(ctx context.Context, c *Context) error

// Command is one prefix command.
type Command struct {
	Name    string
	Aliases []string
	// Usage is the argument synopsis shown on bad input, e.g. "forceset <user> <DD/MM/YYYY>".
	Usage string
	Help  string
	// OwnerOnly restricts the command to configured owners.
	OwnerOnly bool
	// MaxConcurrency allows one in-flight invocation per user.
	MaxConcurrency bool
	// Cooldown allows one invocation per user per period. Zero disables it.
	Cooldown time.Duration
	Run      HandlerFunc
}

// Context carries one invocation.
type Context struct {
	Message  *Message
	Command  *Command
	Args     string
	Prefix   string
	Platform Platform
}

// Reply sends content to the invoking channel.
func (c *Context) Reply(ctx context.Context, content string) (*Message, error) {
	return c.Platform.Send(ctx, c.Message.ChannelID, content)
}

// Router dispatches prefixed messages to commands.
type Router struct {
	prefix   string
	owners   map[string]struct{}
	platform Platform
	logger   *slog.Logger

	commands map[string]*Command

	mu       sync.Mutex
	inFlight map[string]struct{}
	limiters map[string]*rate.Limiter
}

// NewRouter returns a router for prefix. owners may use owner-only commands.
func NewRouter(prefix string, owners []string, platform Platform, logger *slog.Logger) *Router {
	r := &Router{
		prefix:   prefix,
		owners:   make(map[string]struct{}, len(owners)),
		platform: platform,
		logger:   logger.With("component", "router"),
		commands: make(map[string]*Command),
		inFlight: make(map[string]struct{}),
		limiters: make(map[string]*rate.Limiter),
	}
	for _, id := range owners {
		r.owners[id] = struct{}{}
	}
	return r
}

// Register adds commands under their names and aliases.
func (r *Router) Register(cmds ...*Command) {
	for _, cmd := range cmds {
		r.commands[cmd.Name] = cmd
		for _, alias := range cmd.Aliases {
			r.commands[alias] = cmd
		}
	}
}

// IsOwner reports whether userID is a configured owner.
func (r *Router) IsOwner(userID string) bool {
	_, ok := r.owners[userID]
	return ok
}

// Handle implements MessageHandler. Failures are reported to the invoker and
// never escape.
func (r *Router) Handle(ctx context.Context, msg *Message) {
	c, err := r.Dispatch(ctx, msg)
	if err != nil {
		r.handleError(ctx, c, err)
	}
}

// Dispatch parses and runs msg. It returns the invocation context (nil if
// msg was not a command) and the failure, if any.
func (r *Router) Dispatch(ctx context.Context, msg *Message) (*Context, *CommandError) {
	if msg.AuthorBot || !strings.HasPrefix(msg.Content, r.prefix) {
		return nil, nil
	}

	name, args, _ := strings.Cut(strings.TrimSpace(msg.Content[len(r.prefix):]), " ")
	if name == "" {
		return nil, nil
	}
	c := &Context{
		Message:  msg,
		Args:     strings.TrimSpace(args),
		Prefix:   r.prefix,
		Platform: r.platform,
	}

	cmd, ok := r.commands[name]
	if !ok {
		return c, &CommandError{Kind: KindUnknownCommand, Command: name}
	}
	c.Command = cmd

	if cmd.OwnerOnly && !r.IsOwner(msg.AuthorID) {
		return c, &CommandError{Kind: KindCheckFailure, Command: cmd.Name, Err: fmt.Errorf("user %s is not an owner", msg.AuthorID)}
	}

	if cmd.Cooldown > 0 {
		if wait := r.reserve(cmd, msg.AuthorID); wait > 0 {
			return c, &CommandError{Kind: KindCooldown, Command: cmd.Name, RetryAfter: wait}
		}
	}

	if cmd.MaxConcurrency {
		release, ok := r.acquire(cmd, msg.AuthorID)
		if !ok {
			return c, &CommandError{Kind: KindMaxConcurrency, Command: cmd.Name}
		}
		defer release()
	}

	if err := r.run(ctx, cmd, c); err != nil {
		return c, asCommandError(cmd.Name, err)
	}
	return c, nil
}

func (r *Router) run(ctx context.Context, cmd *Command, c *Context) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return cmd.Run(ctx, c)
}

// reserve takes a cooldown token and returns how long the caller must wait
// if none was available.
func (r *Router) reserve(cmd *Command, userID string) time.Duration {
	key := cmd.Name + "|" + userID

	r.mu.Lock()
	lim, ok := r.limiters[key]
	if !ok {
		lim = rate.NewLimiter(rate.Every(cmd.Cooldown), 1)
		r.limiters[key] = lim
	}
	r.mu.Unlock()

	res := lim.Reserve()
	if wait := res.Delay(); wait > 0 {
		res.Cancel()
		return wait
	}
	return 0
}

func (r *Router) acquire(cmd *Command, userID string) (func(), bool) {
	key := cmd.Name + "|" + userID

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, busy := r.inFlight[key]; busy {
		return nil, false
	}
	r.inFlight[key] = struct{}{}

	return func() {
		r.mu.Lock()
		delete(r.inFlight, key)
		r.mu.Unlock()
	}, true
}

// handleError reports a failed invocation to the invoker.
func (r *Router) handleError(ctx context.Context, c *Context, err *CommandError) {
	logger := r.logger.With("command", err.Command, "kind", err.Kind.String())
	if c != nil {
		logger = logger.With("user_id", c.Message.AuthorID, "channel_id", c.Message.ChannelID)
	}

	var reply string
	switch err.Kind {
	case KindBadArgument:
		reply = r.usage(c.Command)
		if err.Err != nil {
			reply = fmt.Sprintf("%v\n%s", err.Err, reply)
		}
	case KindInvocationFailed:
		logger.ErrorContext(ctx, "command failed", "error", err.Err)
		reply = fmt.Sprintf("There was an error processing the command ;-;\n```\n%T: %v\n```", err.Err, err.Err)
	case KindMaxConcurrency:
		reply = "You've reached max capacity of command usage at once, please finish the previous one..."
	case KindCooldown:
		reply = fmt.Sprintf("This command is on cooldown... try again in %.2f seconds.", err.RetryAfter.Seconds())
	case KindCheckFailure, KindUnknownCommand:
		logger.DebugContext(ctx, "ignored command")
		return
	default:
		logger.WarnContext(ctx, "unhandled command error", "error", err)
		return
	}

	if c == nil {
		return
	}
	if _, sendErr := c.Reply(ctx, reply); sendErr != nil {
		logger.WarnContext(ctx, "failed to report command error", "error", sendErr)
	}
}

func (r *Router) usage(cmd *Command) string {
	if cmd == nil {
		return ""
	}
	usage := cmd.Usage
	if usage == "" {
		usage = cmd.Name
	}
	return fmt.Sprintf("```\n%s%s\n\n%s\n```", r.prefix, usage, cmd.Help)
}
