package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// redisRecord is the stored value. UserID rides along for auditability;
// lookups key on session id alone.
type redisRecord struct {
	UserID    string    `json:"user_id,omitempty"`
	Turns     []Turn    `json:"turns"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RedisStore keeps conversations in Redis as JSON values with a TTL. It is
// the hot store: fast, shared across host instances, expiring idle
// sessions on its own.
type RedisStore struct {
	rdb       *redis.Client
	keyPrefix string
	ttl       time.Duration
	logger    *zap.Logger
}

// NewRedisStore creates a Redis-backed session store.
func NewRedisStore(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStore{
		rdb:       rdb,
		keyPrefix: "a2ahost:session:",
		ttl:       ttl,
		logger:    logger.With(zap.String("component", "redis_session_store")),
	}
}

func (s *RedisStore) key(sessionID string) string {
	return s.keyPrefix + sessionID
}

// Load implements Store.
func (s *RedisStore) Load(ctx context.Context, sessionID, _ string) ([]Turn, error) {
	data, err := s.rdb.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: redis get: %v", ErrStoreUnavailable, err)
	}

	var rec redisRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		// A corrupt record is unrecoverable; treat as absent rather than
		// poisoning every subsequent turn of the session.
		s.logger.Warn("dropping corrupt session record", zap.String("session_id", sessionID), zap.Error(err))
		return nil, ErrNotFound
	}
	return rec.Turns, nil
}

// Save implements Store. The Manager serializes same-session writers, so a
// plain SET is race-free here.
func (s *RedisStore) Save(ctx context.Context, sessionID string, turns []Turn) error {
	data, err := json.Marshal(redisRecord{Turns: turns, UpdatedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.rdb.Set(ctx, s.key(sessionID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: redis set: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Delete removes a session.
func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.rdb.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("%w: redis del: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Compile-time interface check.
var _ Store = (*RedisStore)(nil)
