// Package cache implements the local cache store: TTL-tagged, user-scoped
// key/value persistence backed by SQLite. Expiry is advisory — Get reports
// staleness but still returns the data, so callers can paint stale state
// immediately and revalidate in the background. Entries are only removed by
// an explicit Remove or a full scope teardown on logout.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bbBOZ/jellyspace-sync/internal/domain"
)

// DefaultTTL is the advisory expiry applied when none is configured.
const DefaultTTL = 5 * time.Minute

// Well-known cache keys. Scoped per user id unless noted.
const (
	KeyConversations = "conversations"
	KeyMessages      = "messages"
	KeyProfile       = "profile"
)

// Store is a TTL-tagged key/value store scoped per user.
type Store struct {
	db  *gorm.DB
	ttl time.Duration

	// now is a test seam for expiry checks.
	now func() time.Time
}

// NewStore returns a cache store over db. A non-positive ttl selects
// DefaultTTL.
func NewStore(db *gorm.DB, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{db: db, ttl: ttl, now: time.Now}
}

// Set stores v under (key, scope), overwriting any previous entry and
// resetting its timestamp. Every successful backend read writes through
// here.
func (s *Store) Set(ctx context.Context, key, scope string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	entry := domain.CacheEntry{
		Key:       key,
		Scope:     scope,
		Payload:   payload,
		Timestamp: s.now().UTC(),
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}, {Name: "scope"}},
			UpdateAll: true,
		}).
		Create(&entry).Error
}

// Get unmarshals the entry under (key, scope) into out and reports whether
// the entry has outlived the TTL. Stale entries are still returned — expiry
// never hard-fails a read. ok is false only when no entry exists.
func (s *Store) Get(ctx context.Context, key, scope string, out any) (isExpired, ok bool, err error) {
	var entry domain.CacheEntry
	if err := s.db.WithContext(ctx).
		Where("key = ? AND scope = ?", key, scope).
		First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, false, nil
		}
		return false, false, err
	}
	if err := json.Unmarshal(entry.Payload, out); err != nil {
		return false, false, err
	}
	return s.now().UTC().Sub(entry.Timestamp) > s.ttl, true, nil
}

// Has reports whether any entry exists under (key, scope), expired or not.
// The cold-load path uses this to decide between cache-first paint and a
// blocking backend fetch.
func (s *Store) Has(ctx context.Context, key, scope string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).
		Model(&domain.CacheEntry{}).
		Where("key = ? AND scope = ?", key, scope).
		Count(&n).Error
	return n > 0, err
}

// Remove deletes the entry under (key, scope).
func (s *Store) Remove(ctx context.Context, key, scope string) error {
	return s.db.WithContext(ctx).
		Where("key = ? AND scope = ?", key, scope).
		Delete(&domain.CacheEntry{}).Error
}

// ClearScope deletes every entry belonging to scope. Called on logout as
// the only bulk-deletion path.
func (s *Store) ClearScope(ctx context.Context, scope string) error {
	return s.db.WithContext(ctx).
		Where("scope = ?", scope).
		Delete(&domain.CacheEntry{}).Error
}
