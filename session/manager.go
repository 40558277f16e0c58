package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/a2ahost/a2ahost/internal/metrics"
)

// Manager wraps a Store with the host's session discipline: graceful
// degradation on load failures, bounded store timeouts, and a per-session
// mutex so concurrent turns of the same conversation serialize their
// load-update-save sequence. Turns of different sessions share no locks.
type Manager struct {
	store     Store
	logger    *zap.Logger
	collector *metrics.Collector

	loadTimeout time.Duration
	saveTimeout time.Duration

	locks sync.Map // session id -> *sync.Mutex
}

// NewManager creates a session manager. The collector may be nil.
func NewManager(store Store, collector *metrics.Collector, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:       store,
		logger:      logger.With(zap.String("component", "session_manager")),
		collector:   collector,
		loadTimeout: 5 * time.Second,
		saveTimeout: 5 * time.Second,
	}
}

// LockSession serializes same-session turns. It blocks until the session
// lock is free and returns the unlock function.
func (m *Manager) LockSession(sessionID string) func() {
	v, _ := m.locks.LoadOrStore(sessionID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Load fetches prior conversation state. A store outage degrades to an
// empty conversation with a warning: continuity is best-effort, never a
// reason to fail the request.
func (m *Manager) Load(ctx context.Context, sessionID, userID string) []Turn {
	ctx, cancel := context.WithTimeout(ctx, m.loadTimeout)
	defer cancel()

	turns, err := m.store.Load(ctx, sessionID, userID)
	switch {
	case err == nil:
		m.record("load", "ok")
		return turns
	case errors.Is(err, ErrNotFound):
		m.record("load", "empty")
		return nil
	default:
		m.logger.Warn("session load failed, continuing with empty history",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
		m.record("load", "degraded")
		return nil
	}
}

// Save persists the updated conversation. Unlike Load it reports failure to
// the caller: the host logs it as a degraded turn but still answers the
// user.
func (m *Manager) Save(ctx context.Context, sessionID string, turns []Turn) error {
	ctx, cancel := context.WithTimeout(ctx, m.saveTimeout)
	defer cancel()

	if err := m.store.Save(ctx, sessionID, turns); err != nil {
		m.record("save", "failed")
		return err
	}
	m.record("save", "ok")
	return nil
}

func (m *Manager) record(op, outcome string) {
	if m.collector == nil {
		return
	}
	switch op {
	case "load":
		m.collector.RecordSessionLoad(outcome)
	case "save":
		m.collector.RecordSessionSave(outcome)
	}
}
