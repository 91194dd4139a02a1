// Package cache is the durable client-side store of ledger entities and sync
// metadata, backed by an embedded SQLite database. Every mutation commits
// synchronously, so the cache survives a process restart with no work lost.
//
// The cache applies last-write-wins by modification timestamp: an incoming
// value only overwrites a stored one when its timestamp is not older, and a
// tie favors the incoming value. Entities whose local timestamp is newer than
// the last value observed remotely (or that have no remote counterpart yet)
// are pending; tombstoned entities are pending deletes.
package cache

import (
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	apperrors "moneta/internal/errors"
	"moneta/internal/logger"
	"moneta/internal/models"
)

// pendingWhere selects entities carrying unconfirmed local edits. All
// timestamps are stored in UTC, so the column comparison is well defined.
const pendingWhere = "tombstone = 1 OR remote_updated_at IS NULL OR updated_at > remote_updated_at"

// Cache is a handle to the local store.
type Cache struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

// Open opens (creating if necessary) the SQLite database at path and
// migrates the schema. Use "file::memory:?cache=shared" for an in-memory
// cache in tests.
func Open(path string) (*Cache, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}

	if err := db.AutoMigrate(&models.Transaction{}, &models.Category{}, &models.SyncMeta{}); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}

	return &Cache{db: db, log: logger.Get()}, nil
}

// Close closes the underlying database connection.
func (c *Cache) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternal, err)
	}
	return sqlDB.Close()
}

// PendingCount returns the number of entities whose edits have not been
// confirmed by the remote store. This is the user-visible indicator of
// unsynced work.
func (c *Cache) PendingCount() (int64, error) {
	var transactions, categories int64
	if err := c.db.Model(&models.Transaction{}).Where(pendingWhere).Count(&transactions).Error; err != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternal, err)
	}
	if err := c.db.Model(&models.Category{}).Where(pendingWhere).Count(&categories).Error; err != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternal, err)
	}
	return transactions + categories, nil
}

// SyncMeta returns the stored sync metadata, creating the row on first use.
func (c *Cache) SyncMeta() (*models.SyncMeta, error) {
	var meta models.SyncMeta
	if err := c.db.FirstOrCreate(&meta, models.SyncMeta{ID: 1}).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}
	return &meta, nil
}

// SetLastSyncAt records the completion time of the last successful sync cycle.
func (c *Cache) SetLastSyncAt(ts time.Time) error {
	meta, err := c.SyncMeta()
	if err != nil {
		return err
	}
	ts = ts.UTC()
	meta.LastSyncAt = &ts
	if err := c.db.Save(meta).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternal, err)
	}
	return nil
}

// SetDocumentID records the identifier of the remote document the cache is
// bound to.
func (c *Cache) SetDocumentID(id string) error {
	meta, err := c.SyncMeta()
	if err != nil {
		return err
	}
	meta.DocumentID = id
	if err := c.db.Save(meta).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternal, err)
	}
	return nil
}

// now returns the current UTC time. All timestamps are stored in UTC so that
// the pending predicate can compare columns directly.
func now() time.Time {
	return time.Now().UTC()
}
