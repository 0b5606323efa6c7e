package stack

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCommandFailed is the sentinel matched by every runtime invocation
// failure. Use errors.Is(err, ErrCommandFailed) to detect the class and
// errors.As with *CommandError for the details.
var ErrCommandFailed = errors.New("stack: runtime command failed")

// CommandError reports a runtime control-surface invocation that returned
// non-zero or did not respond within its timeout.
type CommandError struct {
	// Verb is the controller operation, e.g. "up" or "status".
	Verb string

	// Stderr is the runtime's captured error output, trimmed.
	Stderr string

	// ExitCode is the process exit status, -1 when it never ran or timed out.
	ExitCode int

	// Err is the underlying execution error.
	Err error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("stack: %s failed (exit %d)", e.Verb, e.ExitCode)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// Is reports a match against ErrCommandFailed.
func (e *CommandError) Is(target error) bool {
	return target == ErrCommandFailed
}
