package discovery

import (
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/a2ahost/a2ahost/protocol/a2a"
)

// ErrAgentNotFound indicates a lookup for an agent id that is not registered.
var ErrAgentNotFound = errors.New("discovery: agent not found")

// Registry is the in-memory agent registry. It is read-mostly shared state:
// readers take copy-on-write snapshots and never block behind a discovery
// refresh for longer than the map copy.
type Registry struct {
	mu sync.RWMutex

	// entries stores registered agents by id.
	entries map[string]*Entry

	// failed tracks endpoints whose last discovery attempt failed, for the
	// one-shot re-probe during initialization. Failed endpoints get no
	// registry entry; partial registries are valid and expected.
	failed map[string]time.Time

	// nextOrder is the discovery sequence counter.
	nextOrder int

	logger *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		entries: make(map[string]*Entry),
		failed:  make(map[string]time.Time),
		logger:  logger.With(zap.String("component", "agent_registry")),
	}
}

// Upsert inserts or replaces the entry for the card's agent id. A replaced
// entry keeps its original discovery order so re-discovery is idempotent
// with respect to tie-breaking. The agent becomes Healthy: a card fetch is
// itself a successful probe.
func (r *Registry) Upsert(card a2a.CapabilityCard) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if existing, ok := r.entries[card.AgentID]; ok {
		existing.Card = card
		existing.Health = HealthHealthy
		existing.LastHealthCheck = now
	} else {
		r.entries[card.AgentID] = &Entry{
			Card:            card,
			Health:          HealthHealthy,
			LastHealthCheck: now,
			Order:           r.nextOrder,
		}
		r.nextOrder++
	}
	delete(r.failed, card.Endpoint)

	r.logger.Info("agent registered",
		zap.String("agent_id", card.AgentID),
		zap.String("endpoint", card.Endpoint),
		zap.Strings("keywords", card.Keywords),
	)
}

// RecordFailure notes an endpoint that answered discovery with a timeout,
// a non-2xx status, or a malformed card. If the endpoint belongs to an
// already-registered agent its entry is marked Unreachable; otherwise the
// endpoint is only remembered for the initialization re-probe.
func (r *Registry) RecordFailure(endpoint string, cause error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	for _, e := range r.entries {
		if e.Card.Endpoint == endpoint {
			e.Health = HealthUnreachable
			e.LastHealthCheck = now
			break
		}
	}
	r.failed[endpoint] = now

	r.logger.Warn("agent endpoint unreachable",
		zap.String("endpoint", endpoint),
		zap.Error(cause),
	)
}

// SetHealth updates the health status for a registered agent. Used by
// dispatch feedback and health probes.
func (r *Registry) SetHealth(agentID string, status HealthStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[agentID]
	if !ok {
		return ErrAgentNotFound
	}
	e.Health = status
	e.LastHealthCheck = time.Now()
	return nil
}

// FailedEndpoints returns the endpoints whose last discovery attempt failed.
func (r *Registry) FailedEndpoints() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.failed))
	for ep := range r.failed {
		out = append(out, ep)
	}
	sort.Strings(out)
	return out
}

// Snapshot returns an immutable copy of the registry in discovery order.
func (r *Registry) Snapshot() *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, *e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Order < entries[j].Order })

	byID := make(map[string]int, len(entries))
	for i, e := range entries {
		byID[e.Card.AgentID] = i
	}
	return &Snapshot{entries: entries, byID: byID}
}

// Len returns the number of registered agents.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
