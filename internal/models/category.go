package models

import "time"

// Category groups transactions of a matching type. Inactive categories are
// soft-deleted: they stay available for historical transactions but are
// excluded from new-entry pickers.
type Category struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	Type      EntryType `gorm:"not null" json:"type"`
	Active    bool      `gorm:"not null;default:true" json:"active"`
	UpdatedAt time.Time `gorm:"autoUpdateTime:false" json:"updatedAt"`

	RemoteUpdatedAt *time.Time `json:"-"`
	Tombstone       bool       `gorm:"index" json:"-"`
}

// Pending reports whether the local copy carries an edit the remote store
// has not confirmed yet.
func (c *Category) Pending() bool {
	return c.Tombstone || c.RemoteUpdatedAt == nil || c.UpdatedAt.After(*c.RemoteUpdatedAt)
}
