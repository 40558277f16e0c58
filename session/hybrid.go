package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// HybridStore pairs a hot store (Redis) with a durable cold store. Reads
// hit the hot store first and backfill it from the cold store on a miss.
// Writes go to the hot store synchronously and are queued for the cold
// store on an in-process persist worker, so Save returns once the turn is
// durably queued rather than blocking on the slow path.
type HybridStore struct {
	hot    Store
	cold   Store
	logger *zap.Logger

	persistCh chan persistJob
	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

type persistJob struct {
	sessionID string
	turns     []Turn
}

// NewHybridStore creates the hybrid store. Call Start before use and Close
// during shutdown to drain the persist queue.
func NewHybridStore(hot, cold Store, logger *zap.Logger) *HybridStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HybridStore{
		hot:       hot,
		cold:      cold,
		logger:    logger.With(zap.String("component", "hybrid_session_store")),
		persistCh: make(chan persistJob, 256),
		done:      make(chan struct{}),
	}
}

// Start launches the cold-store persist worker.
func (h *HybridStore) Start() {
	h.startOnce.Do(func() {
		h.wg.Add(1)
		go h.persistWorker()
	})
}

func (h *HybridStore) persistWorker() {
	defer h.wg.Done()
	for {
		select {
		case job := <-h.persistCh:
			h.persist(job)
		case <-h.done:
			// Drain what is already queued before exiting.
			for {
				select {
				case job := <-h.persistCh:
					h.persist(job)
				default:
					return
				}
			}
		}
	}
}

func (h *HybridStore) persist(job persistJob) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := h.cold.Save(ctx, job.sessionID, job.turns); err != nil {
		h.logger.Error("cold-store persist failed",
			zap.String("session_id", job.sessionID),
			zap.Error(err),
		)
		return
	}
	h.logger.Debug("session archived", zap.String("session_id", job.sessionID))
}

// Load implements Store: hot first, cold on miss, backfilling the hot store
// so the next turn stays on the fast path.
func (h *HybridStore) Load(ctx context.Context, sessionID, userID string) ([]Turn, error) {
	turns, err := h.hot.Load(ctx, sessionID, userID)
	if err == nil {
		return turns, nil
	}
	if !errors.Is(err, ErrNotFound) {
		h.logger.Warn("hot store load failed, falling back to archive", zap.Error(err))
	}

	turns, err = h.cold.Load(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if backfillErr := h.hot.Save(ctx, sessionID, turns); backfillErr != nil {
		h.logger.Warn("hot store backfill failed", zap.Error(backfillErr))
	}
	return turns, nil
}

// Save implements Store. The hot write is synchronous; the cold write is
// queued. A full queue falls back to a synchronous cold write rather than
// dropping history.
func (h *HybridStore) Save(ctx context.Context, sessionID string, turns []Turn) error {
	if err := h.hot.Save(ctx, sessionID, turns); err != nil {
		return err
	}
	select {
	case h.persistCh <- persistJob{sessionID: sessionID, turns: cloneTurns(turns)}:
	default:
		h.logger.Warn("persist queue full, archiving synchronously", zap.String("session_id", sessionID))
		if err := h.cold.Save(ctx, sessionID, turns); err != nil {
			return err
		}
	}
	return nil
}

// Close stops the persist worker after draining queued writes.
func (h *HybridStore) Close() {
	h.stopOnce.Do(func() {
		close(h.done)
	})
	h.wg.Wait()
}

// Compile-time interface check.
var _ Store = (*HybridStore)(nil)
