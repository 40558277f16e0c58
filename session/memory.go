package session

import (
	"context"
	"sync"
)

// InMemoryStore is a volatile Store keeping conversations in a process
// local map. Safe for concurrent access; every load returns a clone so
// callers never mutate store-owned state. Best suited for tests and
// single-instance deployments without durability needs.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]Turn
}

// NewInMemoryStore constructs an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string][]Turn)}
}

// Load implements Store.
func (s *InMemoryStore) Load(_ context.Context, sessionID, _ string) ([]Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	turns, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneTurns(turns), nil
}

// Save implements Store.
func (s *InMemoryStore) Save(_ context.Context, sessionID string, turns []Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = cloneTurns(turns)
	return nil
}

// Compile-time interface check.
var _ Store = (*InMemoryStore)(nil)
