package host

import (
	"errors"
	"fmt"
)

// ErrNotInitialized is a programming-sequence error: Initialize or
// ProcessUserMessage was called before DiscoverAgents. It is distinct from
// the runtime Failure kinds and never retried.
var ErrNotInitialized = errors.New("host: not initialized, call DiscoverAgents first")

// FailureKind enumerates the runtime failure taxonomy surfaced to callers.
type FailureKind string

const (
	// FailureUnreachable means no routed specialist could be reached after
	// the retry (and the alternate, when one existed).
	FailureUnreachable FailureKind = "specialist_unreachable"
	// FailureApplication means the specialist processed and refused the
	// request; the remote message is surfaced, not retried.
	FailureApplication FailureKind = "specialist_error"
	// FailureTimeout means the caller's deadline expired while the turn was
	// in flight.
	FailureTimeout FailureKind = "timeout"
)

// Failure is a typed runtime failure. Message is safe to show to the end
// user; the host never surfaces an opaque error.
type Failure struct {
	Kind    FailureKind
	Message string
}

func (f *Failure) Error() string {
	return fmt.Sprintf("host: %s: %s", f.Kind, f.Message)
}

// AsFailure unwraps a typed failure from an error chain.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}
