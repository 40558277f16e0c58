package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Record is the archive table row. Turns are stored as a JSON blob; the
// archive is a document store with SQL durability, not a queryable log.
type Record struct {
	SessionID string `gorm:"primaryKey;size:128"`
	UserID    string `gorm:"size:128;index"`
	Turns     []byte
	UpdatedAt time.Time
}

// TableName keeps the table name stable regardless of gorm pluralization.
func (Record) TableName() string { return "conversation_sessions" }

// ArchiveStore is the durable cold store backed by a relational database
// through gorm. It survives restarts and Redis evictions; the hybrid store
// backfills from it on hot-store misses.
type ArchiveStore struct {
	db *gorm.DB
}

// NewArchiveStore migrates the session table and returns the store.
func NewArchiveStore(db *gorm.DB) (*ArchiveStore, error) {
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("migrate session archive: %w", err)
	}
	return &ArchiveStore{db: db}, nil
}

// Load implements Store.
func (s *ArchiveStore) Load(ctx context.Context, sessionID, _ string) ([]Turn, error) {
	var rec Record
	err := s.db.WithContext(ctx).First(&rec, "session_id = ?", sessionID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: archive select: %v", ErrStoreUnavailable, err)
	}

	var turns []Turn
	if err := json.Unmarshal(rec.Turns, &turns); err != nil {
		return nil, fmt.Errorf("%w: corrupt archive row: %v", ErrStoreUnavailable, err)
	}
	return turns, nil
}

// Save implements Store.
func (s *ArchiveStore) Save(ctx context.Context, sessionID string, turns []Turn) error {
	return s.SaveForUser(ctx, sessionID, "", turns)
}

// SaveForUser persists the conversation with its owning user id.
func (s *ArchiveStore) SaveForUser(ctx context.Context, sessionID, userID string, turns []Turn) error {
	blob, err := json.Marshal(turns)
	if err != nil {
		return fmt.Errorf("marshal turns: %w", err)
	}
	rec := Record{SessionID: sessionID, UserID: userID, Turns: blob, UpdatedAt: time.Now().UTC()}
	err = s.db.WithContext(ctx).Save(&rec).Error
	if err != nil {
		return fmt.Errorf("%w: archive save: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Compile-time interface check.
var _ Store = (*ArchiveStore)(nil)
