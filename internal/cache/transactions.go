package cache

import (
	"errors"
	"time"

	"gorm.io/gorm"

	apperrors "moneta/internal/errors"
	"moneta/internal/models"
)

// ListTransactions returns all live (non-tombstoned) transactions, newest
// date first. Empty filter values match everything.
func (c *Cache) ListTransactions(entryType models.EntryType, month string) ([]models.Transaction, error) {
	q := c.db.Where("tombstone = 0").Order("date DESC, id")
	if entryType != "" {
		q = q.Where("type = ?", entryType)
	}
	if month != "" {
		q = q.Where("month = ?", month)
	}

	transactions := make([]models.Transaction, 0)
	if err := q.Find(&transactions).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}
	return transactions, nil
}

// GetTransaction returns the live transaction with the given id. Tombstoned
// entities are reported as not found.
func (c *Cache) GetTransaction(id string) (*models.Transaction, error) {
	var t models.Transaction
	if err := c.db.Where("id = ? AND tombstone = 0", id).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}
	return &t, nil
}

// getTransactionAny loads a transaction regardless of tombstone state.
func (c *Cache) getTransactionAny(id string) (*models.Transaction, error) {
	var t models.Transaction
	if err := c.db.Where("id = ?", id).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}
	return &t, nil
}

// SaveTransaction upserts a locally edited transaction. The month is
// recomputed from the date, a missing timestamp is stamped with the current
// time, and the entity becomes pending until a sync cycle confirms it. An
// incoming value older than the stored one is discarded (last-write-wins);
// the discard is logged, not an error.
func (c *Cache) SaveTransaction(t *models.Transaction) error {
	t.RecomputeMonth()
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = now()
	}
	t.UpdatedAt = t.UpdatedAt.UTC()

	stored, err := c.getTransactionAny(t.ID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			return err
		}
		t.RemoteUpdatedAt = nil
		if err := c.db.Create(t).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternal, err)
		}
		return nil
	}

	if t.UpdatedAt.Before(stored.UpdatedAt) {
		c.log.Infow("conflict observed: discarding stale local write",
			"entity", "transaction", "id", t.ID,
			"incoming", t.UpdatedAt, "stored", stored.UpdatedAt)
		return nil
	}

	t.RemoteUpdatedAt = stored.RemoteUpdatedAt
	t.Tombstone = false
	if err := c.db.Save(t).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternal, err)
	}
	return nil
}

// ApplyRemoteTransaction merges a transaction observed on the remote store
// into the cache. The remote value wins unless the local copy is strictly
// newer; a timestamp tie favors the incoming remote value. Either way the
// observed remote timestamp is recorded, so a strictly newer local edit
// stays pending and is pushed on the next cycle. Returns whether the remote
// value replaced the local one.
func (c *Cache) ApplyRemoteTransaction(incoming *models.Transaction) (bool, error) {
	incoming.RecomputeMonth()
	remoteTS := incoming.UpdatedAt.UTC()
	incoming.UpdatedAt = remoteTS
	incoming.RemoteUpdatedAt = &remoteTS
	incoming.Tombstone = false

	stored, err := c.getTransactionAny(incoming.ID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			return false, err
		}
		if err := c.db.Create(incoming).Error; err != nil {
			return false, apperrors.Wrap(apperrors.ErrInternal, err)
		}
		return true, nil
	}

	if stored.UpdatedAt.After(remoteTS) {
		// Local copy is newer: keep it, but remember what the remote holds
		// so the merge phase sees this as a true local-only edit.
		if err := c.db.Model(stored).Update("remote_updated_at", &remoteTS).Error; err != nil {
			return false, apperrors.Wrap(apperrors.ErrInternal, err)
		}
		c.log.Infow("conflict observed: keeping newer local transaction",
			"id", incoming.ID, "local", stored.UpdatedAt, "remote", remoteTS)
		return false, nil
	}

	if stored.Pending() && !stored.UpdatedAt.Equal(remoteTS) {
		c.log.Infow("conflict observed: remote transaction supersedes pending local edit",
			"id", incoming.ID, "local", stored.UpdatedAt, "remote", remoteTS)
	}

	if err := c.db.Save(incoming).Error; err != nil {
		return false, apperrors.Wrap(apperrors.ErrInternal, err)
	}
	return true, nil
}

// RemoveTransaction deletes a transaction. An entity that was never
// confirmed synced is erased outright (the remote store has nothing to
// delete); a synced one is tombstoned so the delete intent survives a
// restart until the next sync cycle confirms it remotely.
func (c *Cache) RemoveTransaction(id string) error {
	stored, err := c.getTransactionAny(id)
	if err != nil {
		return err
	}

	if stored.RemoteUpdatedAt == nil {
		return c.PurgeTransaction(id)
	}

	stored.Tombstone = true
	stored.UpdatedAt = now()
	if err := c.db.Save(stored).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternal, err)
	}
	return nil
}

// PurgeTransaction physically erases a transaction, tombstoned or not.
func (c *Cache) PurgeTransaction(id string) error {
	if err := c.db.Unscoped().Delete(&models.Transaction{}, "id = ?", id).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternal, err)
	}
	return nil
}

// MarkTransactionSynced records that the remote store acknowledged the local
// copy as of ts, clearing the pending state.
func (c *Cache) MarkTransactionSynced(id string, ts time.Time) error {
	ts = ts.UTC()
	if err := c.db.Model(&models.Transaction{}).Where("id = ?", id).
		Update("remote_updated_at", &ts).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternal, err)
	}
	return nil
}

// PendingTransactions returns every transaction carrying an unconfirmed
// local edit, tombstones included.
func (c *Cache) PendingTransactions() ([]models.Transaction, error) {
	transactions := make([]models.Transaction, 0)
	if err := c.db.Where(pendingWhere).Order("updated_at").Find(&transactions).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}
	return transactions, nil
}
