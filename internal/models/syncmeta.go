package models

import "time"

// SyncMeta is the single-row record of the cache's sync state. The pending
// count is not stored here; it is derived live from the entity tables.
type SyncMeta struct {
	ID         uint       `gorm:"primaryKey" json:"-"`
	LastSyncAt *time.Time `json:"lastSyncAt"`
	DocumentID string     `json:"documentId"`
}
