package engine

import (
	"context"
	"time"

	apperrors "moneta/internal/errors"
	"moneta/internal/models"
	"moneta/internal/remote"
)

// push writes every pending local edit to the remote store: deletes for
// tombstones, chunked batch inserts for entities the remote has never seen,
// per-entity updates for the rest. A failing entity or chunk stays pending
// for the next cycle; there is no global rollback. Only a permanent remote
// error aborts the cycle.
func (e *Engine) push(ctx context.Context, result *Result) error {
	if err := e.pushCategories(ctx, result); err != nil {
		return err
	}
	return e.pushTransactions(ctx, result)
}

func (e *Engine) pushCategories(ctx context.Context, result *Result) error {
	pending, err := e.cache.PendingCategories()
	if err != nil {
		return err
	}

	var inserts []models.Category
	updatedAt := make(map[string]time.Time, len(pending))
	for i := range pending {
		cat := &pending[i]
		if err := ctx.Err(); err != nil {
			return err
		}
		updatedAt[cat.ID] = cat.UpdatedAt

		switch {
		case cat.Tombstone:
			if err := e.gw.DeleteCategory(ctx, cat.ID); err != nil {
				if apperrors.IsPermanentRemote(err) {
					return err
				}
				e.pushFailure(result, "category", cat.ID, err)
				continue
			}
			if err := e.cache.PurgeCategory(cat.ID); err != nil {
				return err
			}
			result.Deleted++

		case cat.RemoteUpdatedAt == nil:
			inserts = append(inserts, *cat)

		default:
			if err := e.gw.UpdateCategory(ctx, cat); err != nil {
				if apperrors.IsPermanentRemote(err) {
					return err
				}
				e.pushFailure(result, "category", cat.ID, err)
				continue
			}
			if err := e.cache.MarkCategorySynced(cat.ID, cat.UpdatedAt); err != nil {
				return err
			}
			result.Pushed++
		}
	}

	markSynced := func(id string, ts time.Time) error { return e.cache.MarkCategorySynced(id, ts) }
	return e.applyBatch(e.gw.InsertCategoriesBatch(ctx, inserts), updatedAt, markSynced, result)
}

func (e *Engine) pushTransactions(ctx context.Context, result *Result) error {
	pending, err := e.cache.PendingTransactions()
	if err != nil {
		return err
	}

	var inserts []models.Transaction
	updatedAt := make(map[string]time.Time, len(pending))
	for i := range pending {
		t := &pending[i]
		if err := ctx.Err(); err != nil {
			return err
		}
		updatedAt[t.ID] = t.UpdatedAt

		switch {
		case t.Tombstone:
			if err := e.gw.DeleteTransaction(ctx, t.ID); err != nil {
				if apperrors.IsPermanentRemote(err) {
					return err
				}
				e.pushFailure(result, "transaction", t.ID, err)
				continue
			}
			if err := e.cache.PurgeTransaction(t.ID); err != nil {
				return err
			}
			result.Deleted++

		case t.RemoteUpdatedAt == nil:
			inserts = append(inserts, *t)

		default:
			if err := e.gw.UpdateTransaction(ctx, t); err != nil {
				if apperrors.IsPermanentRemote(err) {
					return err
				}
				e.pushFailure(result, "transaction", t.ID, err)
				continue
			}
			if err := e.cache.MarkTransactionSynced(t.ID, t.UpdatedAt); err != nil {
				return err
			}
			result.Pushed++
		}
	}

	markSynced := func(id string, ts time.Time) error { return e.cache.MarkTransactionSynced(id, ts) }
	return e.applyBatch(e.gw.InsertTransactionsBatch(ctx, inserts), updatedAt, markSynced, result)
}

// applyBatch records the outcome of a chunked batch insert: entities in
// committed chunks are marked synced, entities in failed chunks stay pending.
func (e *Engine) applyBatch(results []remote.BatchResult, updatedAt map[string]time.Time, markSynced func(string, time.Time) error, result *Result) error {
	for _, chunk := range results {
		if chunk.Err != nil {
			if apperrors.IsPermanentRemote(chunk.Err) {
				return chunk.Err
			}
			e.log.Warnw("push chunk failed; entities stay pending",
				"ids", chunk.IDs, "error", chunk.Err)
			result.PushFailures += len(chunk.IDs)
			continue
		}
		for _, id := range chunk.IDs {
			if err := markSynced(id, updatedAt[id]); err != nil {
				return err
			}
			result.Pushed++
		}
	}
	return nil
}

func (e *Engine) pushFailure(result *Result, entity, id string, err error) {
	e.log.Warnw("push failed; entity stays pending", "entity", entity, "id", id, "error", err)
	result.PushFailures++
}
