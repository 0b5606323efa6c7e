package envconfig

import (
	"errors"
	"fmt"
)

// Domain-specific errors for the configuration store.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrConfigCorrupt is returned when the backing file exists but cannot
	// be decoded. The file is never deleted or rewritten automatically;
	// the user has to decide what to do with it.
	ErrConfigCorrupt = errors.New("envconfig: configuration file corrupt")

	// ErrUnknownField is returned by SetField for a field name outside the
	// managed key set.
	ErrUnknownField = errors.New("envconfig: unknown field")

	// ErrApply is returned when writing or renaming a configuration file
	// fails (disk full, permission denied). Callers must not retry
	// silently.
	ErrApply = errors.New("envconfig: apply failed")

	// ErrLocked is returned when the configuration lock is held by another
	// live process.
	ErrLocked = errors.New("envconfig: configuration locked by another process")
)

// ApplyError carries the file and operation that failed so a presentation
// layer can render an actionable message.
type ApplyError struct {
	Path string
	Op   string
	Err  error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("envconfig: apply failed: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *ApplyError) Unwrap() error { return e.Err }

// Is reports ErrApply so errors.Is(err, ErrApply) matches.
func (e *ApplyError) Is(target error) bool { return target == ErrApply }
