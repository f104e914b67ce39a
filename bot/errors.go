package bot

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies a failed command invocation.
type ErrorKind int

const (
	KindBadArgument ErrorKind = iota + 1
	KindCooldown
	KindMaxConcurrency
	KindInvocationFailed
	KindUnknownCommand
	KindCheckFailure
)

func (k ErrorKind) String() string {
	switch k {
	case KindBadArgument:
		return "bad_argument"
	case KindCooldown:
		return "cooldown"
	case KindMaxConcurrency:
		return "max_concurrency"
	case KindInvocationFailed:
		return "invocation_failed"
	case KindUnknownCommand:
		return "unknown_command"
	case KindCheckFailure:
		return "check_failure"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// CommandError is the single error type the router reports.
type CommandError struct {
	Kind    ErrorKind
	Command string
	// RetryAfter is set for KindCooldown.
	RetryAfter time.Duration
	Err        error
}

func (e *CommandError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Command, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Command, e.Kind, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }

// BadArgument wraps err as a bad or missing argument. Command handlers
// return it so the router answers with usage help.
func BadArgument(format string, args ...any) error {
	return &CommandError{Kind: KindBadArgument, Err: fmt.Errorf(format, args...)}
}

// asCommandError converts anything a handler returned into a CommandError.
func asCommandError(name string, err error) *CommandError {
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		if cmdErr.Command == "" {
			cmdErr.Command = name
		}
		return cmdErr
	}
	return &CommandError{Kind: KindInvocationFailed, Command: name, Err: err}
}
