package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func turns(pairs ...string) []Turn {
	out := make([]Turn, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, Turn{Role: pairs[i], Content: pairs[i+1]})
	}
	return out
}

func TestInMemoryStore_RoundTrip(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	_, err := store.Load(ctx, "s1", "u1")
	assert.ErrorIs(t, err, ErrNotFound)

	state := turns(RoleUser, "hi", RoleAssistant, "hello")
	require.NoError(t, store.Save(ctx, "s1", state))

	got, err := store.Load(ctx, "s1", "u1")
	require.NoError(t, err)
	assert.Equal(t, state, got)

	// Mutating the loaded copy must not touch store-owned state.
	got[0].Content = "tampered"
	again, err := store.Load(ctx, "s1", "u1")
	require.NoError(t, err)
	assert.Equal(t, "hi", again[0].Content)
}

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisStore(rdb, time.Hour, zap.NewNop()), mr
}

func TestRedisStore_RoundTrip(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	_, err := store.Load(ctx, "s1", "u1")
	assert.ErrorIs(t, err, ErrNotFound)

	state := turns(RoleUser, "sum 1 2", RoleAssistant, "3")
	require.NoError(t, store.Save(ctx, "s1", state))

	got, err := store.Load(ctx, "s1", "u1")
	require.NoError(t, err)
	assert.Equal(t, state, got)

	ttl := mr.TTL("a2ahost:session:s1")
	assert.Greater(t, ttl, time.Duration(0), "session keys must expire")
}

func TestRedisStore_CorruptRecordTreatedAsEmpty(t *testing.T) {
	store, mr := newRedisStore(t)
	require.NoError(t, mr.Set("a2ahost:session:bad", "{{{"))

	_, err := store.Load(context.Background(), "bad", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_Unavailable(t *testing.T) {
	store, mr := newRedisStore(t)
	mr.Close()

	_, err := store.Load(context.Background(), "s1", "")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.ErrorIs(t, store.Save(context.Background(), "s1", turns(RoleUser, "x")), ErrStoreUnavailable)
}

func newArchiveStore(t *testing.T) *ArchiveStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	store, err := NewArchiveStore(db)
	require.NoError(t, err)
	return store
}

func TestArchiveStore_RoundTrip(t *testing.T) {
	store := newArchiveStore(t)
	ctx := context.Background()

	_, err := store.Load(ctx, "s1", "u1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.SaveForUser(ctx, "s1", "u1", turns(RoleUser, "hi")))
	require.NoError(t, store.SaveForUser(ctx, "s1", "u1", turns(RoleUser, "hi", RoleAssistant, "hello")))

	got, err := store.Load(ctx, "s1", "u1")
	require.NoError(t, err)
	require.Len(t, got, 2, "save replaces, not appends rows")
	assert.Equal(t, RoleAssistant, got[1].Role)
}

func TestHybridStore_BackfillsHotFromCold(t *testing.T) {
	hot := NewInMemoryStore()
	cold := NewInMemoryStore()
	h := NewHybridStore(hot, cold, zap.NewNop())
	h.Start()
	t.Cleanup(h.Close)

	ctx := context.Background()
	state := turns(RoleUser, "old", RoleAssistant, "history")
	require.NoError(t, cold.Save(ctx, "s1", state))

	got, err := h.Load(ctx, "s1", "u1")
	require.NoError(t, err)
	assert.Equal(t, state, got)

	// Next load stays on the hot path.
	fromHot, err := hot.Load(ctx, "s1", "u1")
	require.NoError(t, err)
	assert.Equal(t, state, fromHot)
}

func TestHybridStore_SaveReachesColdStore(t *testing.T) {
	hot := NewInMemoryStore()
	cold := NewInMemoryStore()
	h := NewHybridStore(hot, cold, zap.NewNop())
	h.Start()

	ctx := context.Background()
	state := turns(RoleUser, "q", RoleAssistant, "a")
	require.NoError(t, h.Save(ctx, "s1", state))

	// Close drains the persist queue.
	h.Close()

	got, err := cold.Load(ctx, "s1", "")
	require.NoError(t, err)
	assert.Equal(t, state, got)
}
