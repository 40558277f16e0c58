// Package session manages per-conversation state for the routing host:
// loading prior turns before dispatch, appending the new exchange, and
// persisting the result. History lives in an external store; the host only
// ever holds a transient copy for the duration of one message.
package session

import (
	"context"
	"errors"
)

// Turn roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one entry of a conversation. Conversation state is an ordered,
// append-only sequence of turns keyed by session id.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ErrNotFound indicates no state exists for the session. Callers treat it
// as an empty conversation, not a failure.
var ErrNotFound = errors.New("session: not found")

// ErrStoreUnavailable indicates the backing store could not be reached.
// Conversation continuity is best-effort: loads degrade to empty state.
var ErrStoreUnavailable = errors.New("session: store unavailable")

// Store is the external session store collaborator. Implementations must
// tolerate concurrent calls for different sessions; same-session calls are
// serialized by the Manager, so stores need no cross-call transaction.
type Store interface {
	// Load returns the conversation for the session, ErrNotFound when the
	// session has no history yet.
	Load(ctx context.Context, sessionID, userID string) ([]Turn, error)

	// Save persists the full conversation, replacing what was stored.
	Save(ctx context.Context, sessionID string, turns []Turn) error
}

// cloneTurns copies a turn slice so callers can append without aliasing
// store-owned state.
func cloneTurns(turns []Turn) []Turn {
	if turns == nil {
		return nil
	}
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}
