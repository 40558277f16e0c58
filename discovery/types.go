// Package discovery maintains the agent registry for the routing host: it
// fetches capability cards from independently deployed specialist agents,
// fans discovery out concurrently under a global budget, and serves atomic
// registry snapshots to the router.
package discovery

import (
	"time"

	"github.com/a2ahost/a2ahost/protocol/a2a"
)

// HealthStatus tracks what the host knows about a specialist's reachability.
type HealthStatus string

const (
	// HealthUnknown indicates the agent has not been probed since discovery.
	HealthUnknown HealthStatus = "unknown"
	// HealthHealthy indicates the last probe succeeded.
	HealthHealthy HealthStatus = "healthy"
	// HealthUnreachable indicates the last probe failed.
	HealthUnreachable HealthStatus = "unreachable"
)

// Entry is one registered specialist. Entries are owned exclusively by the
// Registry and mutated only through discovery and health-check operations;
// everything handed out to readers is a copy.
type Entry struct {
	// Card is the agent's capability card, replaced wholesale on re-fetch.
	Card a2a.CapabilityCard

	// Health is the agent's last known health status.
	Health HealthStatus

	// LastHealthCheck is when Health was last updated.
	LastHealthCheck time.Time

	// Order is the discovery sequence number, kept stable across upserts.
	// The router uses it as the deterministic tie-break.
	Order int
}

// Snapshot is an immutable view of the registry taken at a point in time.
// A refresh running concurrently never mutates a handed-out snapshot.
type Snapshot struct {
	entries []Entry
	byID    map[string]int
}

// Entries returns all entries in discovery order.
func (s *Snapshot) Entries() []Entry {
	return s.entries
}

// Get looks up an entry by agent id.
func (s *Snapshot) Get(agentID string) (Entry, bool) {
	idx, ok := s.byID[agentID]
	if !ok {
		return Entry{}, false
	}
	return s.entries[idx], true
}

// Len returns the number of registered agents.
func (s *Snapshot) Len() int {
	return len(s.entries)
}

// Report summarizes one discovery pass.
type Report struct {
	// Discovered lists agent ids whose cards were fetched successfully.
	Discovered []string

	// Failed maps endpoints that could not be discovered to the reason.
	Failed map[string]error
}
