package testutil

import (
	"testing"
	"time"

	"moneta/internal/cache"
	"moneta/internal/models"
)

// Timestamps used by fixtures; T1 is older than T2.
var (
	T1 = time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	T2 = time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)
)

// NewTransaction returns a valid expense transaction fixture.
func NewTransaction(id string) *models.Transaction {
	return &models.Transaction{
		ID:         id,
		Date:       "2024-03-05",
		Type:       models.EntryTypeExpense,
		Amount:     15000,
		CategoryID: "c1",
	}
}

// NewCategory returns a valid active expense category fixture.
func NewCategory(id, name string) *models.Category {
	return &models.Category{
		ID:     id,
		Name:   name,
		Type:   models.EntryTypeExpense,
		Active: true,
	}
}

// SaveTransaction saves a transaction fixture, failing the test on error.
func SaveTransaction(t *testing.T, c *cache.Cache, tx *models.Transaction) {
	t.Helper()
	if err := c.SaveTransaction(tx); err != nil {
		t.Fatalf("failed to save transaction fixture: %v", err)
	}
}

// SaveCategory saves a category fixture, failing the test on error.
func SaveCategory(t *testing.T, c *cache.Cache, cat *models.Category) {
	t.Helper()
	if err := c.SaveCategory(cat); err != nil {
		t.Fatalf("failed to save category fixture: %v", err)
	}
}

// SyncedTransaction saves a transaction and marks it synced as of its own
// timestamp, so it is no longer pending.
func SyncedTransaction(t *testing.T, c *cache.Cache, tx *models.Transaction) {
	t.Helper()
	SaveTransaction(t, c, tx)
	saved, err := c.GetTransaction(tx.ID)
	if err != nil {
		t.Fatalf("failed to reload transaction fixture: %v", err)
	}
	if err := c.MarkTransactionSynced(tx.ID, saved.UpdatedAt); err != nil {
		t.Fatalf("failed to mark transaction synced: %v", err)
	}
}

// SyncedCategory saves a category and marks it synced.
func SyncedCategory(t *testing.T, c *cache.Cache, cat *models.Category) {
	t.Helper()
	SaveCategory(t, c, cat)
	saved, err := c.GetCategory(cat.ID)
	if err != nil {
		t.Fatalf("failed to reload category fixture: %v", err)
	}
	if err := c.MarkCategorySynced(cat.ID, saved.UpdatedAt); err != nil {
		t.Fatalf("failed to mark category synced: %v", err)
	}
}
