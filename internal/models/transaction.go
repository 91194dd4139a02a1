package models

import "time"

// EntryType classifies a transaction or category as income or expense.
type EntryType string

const (
	EntryTypeIncome  EntryType = "income"
	EntryTypeExpense EntryType = "expense"
)

// Valid reports whether t is one of the two known entry types.
func (t EntryType) Valid() bool {
	return t == EntryTypeIncome || t == EntryTypeExpense
}

// Transaction is a single ledger entry. Amount is in minor currency units.
// Month is derived from Date on every write and never trusted from input.
//
// RemoteUpdatedAt and Tombstone are sync bookkeeping owned by the local
// cache: RemoteUpdatedAt is the timestamp last observed on the remote row
// (nil when the entity has never been seen remotely), and Tombstone marks an
// entity to be deleted remotely on the next sync cycle.
type Transaction struct {
	ID         string    `gorm:"primaryKey" json:"id"`
	Date       string    `gorm:"not null;index" json:"date"`
	Month      string    `gorm:"not null;index" json:"month"`
	Type       EntryType `gorm:"not null" json:"type"`
	Amount     int64     `gorm:"type:bigint;not null" json:"amount"`
	CategoryID string    `gorm:"not null;index" json:"categoryId"`
	Notes      string    `json:"notes,omitempty"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime:false" json:"updatedAt"`

	RemoteUpdatedAt *time.Time `json:"-"`
	Tombstone       bool       `gorm:"index" json:"-"`
}

// RecomputeMonth derives Month from Date. Unparseable dates leave Month
// empty; validation rejects them before any write.
func (t *Transaction) RecomputeMonth() {
	month, err := MonthOf(t.Date)
	if err != nil {
		t.Month = ""
		return
	}
	t.Month = month
}

// Pending reports whether the local copy carries an edit the remote store
// has not confirmed yet.
func (t *Transaction) Pending() bool {
	return t.Tombstone || t.RemoteUpdatedAt == nil || t.UpdatedAt.After(*t.RemoteUpdatedAt)
}
