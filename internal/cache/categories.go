package cache

import (
	"errors"
	"time"

	"gorm.io/gorm"

	apperrors "moneta/internal/errors"
	"moneta/internal/models"
)

// ListCategories returns all live categories ordered by name. Empty filter
// values match everything; activeOnly excludes soft-deleted categories the
// way a new-entry picker should.
func (c *Cache) ListCategories(entryType models.EntryType, activeOnly bool) ([]models.Category, error) {
	q := c.db.Where("tombstone = 0").Order("name, id")
	if entryType != "" {
		q = q.Where("type = ?", entryType)
	}
	if activeOnly {
		q = q.Where("active = 1")
	}

	categories := make([]models.Category, 0)
	if err := q.Find(&categories).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}
	return categories, nil
}

// GetCategory returns the live category with the given id.
func (c *Cache) GetCategory(id string) (*models.Category, error) {
	var cat models.Category
	if err := c.db.Where("id = ? AND tombstone = 0", id).First(&cat).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}
	return &cat, nil
}

func (c *Cache) getCategoryAny(id string) (*models.Category, error) {
	var cat models.Category
	if err := c.db.Where("id = ?", id).First(&cat).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}
	return &cat, nil
}

// SaveCategory upserts a locally edited category under the same
// last-write-wins rule as SaveTransaction.
func (c *Cache) SaveCategory(cat *models.Category) error {
	if cat.UpdatedAt.IsZero() {
		cat.UpdatedAt = now()
	}
	cat.UpdatedAt = cat.UpdatedAt.UTC()

	stored, err := c.getCategoryAny(cat.ID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			return err
		}
		cat.RemoteUpdatedAt = nil
		if err := c.db.Create(cat).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternal, err)
		}
		return nil
	}

	if cat.UpdatedAt.Before(stored.UpdatedAt) {
		c.log.Infow("conflict observed: discarding stale local write",
			"entity", "category", "id", cat.ID,
			"incoming", cat.UpdatedAt, "stored", stored.UpdatedAt)
		return nil
	}

	cat.RemoteUpdatedAt = stored.RemoteUpdatedAt
	cat.Tombstone = false
	if err := c.db.Save(cat).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternal, err)
	}
	return nil
}

// ApplyRemoteCategory merges a category observed on the remote store into
// the cache under the same rules as ApplyRemoteTransaction.
func (c *Cache) ApplyRemoteCategory(incoming *models.Category) (bool, error) {
	remoteTS := incoming.UpdatedAt.UTC()
	incoming.UpdatedAt = remoteTS
	incoming.RemoteUpdatedAt = &remoteTS
	incoming.Tombstone = false

	stored, err := c.getCategoryAny(incoming.ID)
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
		if err := c.db.Model(stored).Update("remote_updated_at", &remoteTS).Error; err != nil {
			return false, apperrors.Wrap(apperrors.ErrInternal, err)
		}
		c.log.Infow("conflict observed: keeping newer local category",
			"id", incoming.ID, "local", stored.UpdatedAt, "remote", remoteTS)
		return false, nil
	}

	if err := c.db.Save(incoming).Error; err != nil {
		return false, apperrors.Wrap(apperrors.ErrInternal, err)
	}
	return true, nil
}

// RemoveCategory deletes a category: physically when it was never synced,
// via tombstone otherwise.
func (c *Cache) RemoveCategory(id string) error {
	stored, err := c.getCategoryAny(id)
	if err != nil {
		return err
	}

	if stored.RemoteUpdatedAt == nil {
		return c.PurgeCategory(id)
	}

	stored.Tombstone = true
	stored.UpdatedAt = now()
	if err := c.db.Save(stored).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternal, err)
	}
	return nil
}

// PurgeCategory physically erases a category, tombstoned or not.
func (c *Cache) PurgeCategory(id string) error {
	if err := c.db.Unscoped().Delete(&models.Category{}, "id = ?", id).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternal, err)
	}
	return nil
}

// MarkCategorySynced records that the remote store acknowledged the local
// copy as of ts.
func (c *Cache) MarkCategorySynced(id string, ts time.Time) error {
	ts = ts.UTC()
	if err := c.db.Model(&models.Category{}).Where("id = ?", id).
		Update("remote_updated_at", &ts).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternal, err)
	}
	return nil
}

// PendingCategories returns every category carrying an unconfirmed local
// edit, tombstones included.
func (c *Cache) PendingCategories() ([]models.Category, error) {
	categories := make([]models.Category, 0)
	if err := c.db.Where(pendingWhere).Order("updated_at").Find(&categories).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}
	return categories, nil
}
