package invocation

import (
	"errors"
	"fmt"
)

// ErrMalformedInvocation is returned when the dispatch verb or namespace token
// cannot be located in an invocation.
var ErrMalformedInvocation = errors.New("malformed invocation")

// MalformedError describes why an invocation could not be rewritten.
type MalformedError struct {
	Invocation Invocation
	Reason     string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed invocation %q: %s", e.Invocation.String(), e.Reason)
}

// Is reports whether target is ErrMalformedInvocation.
func (e *MalformedError) Is(target error) bool {
	return target == ErrMalformedInvocation
}

func malformed(inv Invocation, format string, args ...any) error {
	return &MalformedError{Invocation: inv, Reason: fmt.Sprintf(format, args...)}
}
