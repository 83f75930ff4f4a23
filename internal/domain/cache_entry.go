package domain

import "time"

// CacheEntry is one row of the local cache store: a user-scoped key mapped
// to a JSON payload plus the write timestamp. Expiry is advisory — readers
// decide what to do with stale data, the store never deletes on read.
//
// (Key, Scope) is the natural primary key; Scope is the owning user id, or
// empty for data shared across users.
type CacheEntry struct {
	Key       string    `json:"key"       gorm:"type:varchar(128);primaryKey"`
	Scope     string    `json:"scope"     gorm:"type:varchar(64);primaryKey"`
	Payload   []byte    `json:"payload"   gorm:"type:blob;not null"`
	Timestamp time.Time `json:"timestamp" gorm:"not null"`
}

// TableName returns the database table name for CacheEntry.
func (CacheEntry) TableName() string { return "cache_entries" }
