// Package engine orchestrates the pull, merge, and push phases that keep the
// local cache and the remote store reconciled. At most one cycle runs at a
// time; a trigger that arrives while one is in flight is coalesced into a
// no-op. Each entity write commits independently, so an aborted cycle always
// leaves both stores in a consistent, re-syncable state.
package engine

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"moneta/internal/cache"
	apperrors "moneta/internal/errors"
	"moneta/internal/logger"
	"moneta/internal/models"
	"moneta/internal/remote"
)

// State is the observable phase of the engine.
type State int32

const (
	StateIdle State = iota
	StatePulling
	StateMerging
	StatePushing
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePulling:
		return "pulling"
	case StateMerging:
		return "merging"
	case StatePushing:
		return "pushing"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Gateway is the remote-store surface the engine needs. *remote.Client
// satisfies it; tests substitute a fake.
type Gateway interface {
	FetchCategories(ctx context.Context) ([]models.Category, []remote.RowError, error)
	FetchTransactions(ctx context.Context) ([]models.Transaction, []remote.RowError, error)

	InsertCategory(ctx context.Context, cat *models.Category) error
	UpdateCategory(ctx context.Context, cat *models.Category) error
	DeleteCategory(ctx context.Context, id string) error
	InsertCategoriesBatch(ctx context.Context, categories []models.Category) []remote.BatchResult

	InsertTransaction(ctx context.Context, t *models.Transaction) error
	UpdateTransaction(ctx context.Context, t *models.Transaction) error
	DeleteTransaction(ctx context.Context, id string) error
	InsertTransactionsBatch(ctx context.Context, transactions []models.Transaction) []remote.BatchResult

	ReadMeta(ctx context.Context, key string) (string, error)
	WriteMeta(ctx context.Context, key, value string) error
}

// metaLastSyncKey is the meta-region key recording the last full sync.
const metaLastSyncKey = "lastSyncAt"

// Result summarizes one sync cycle.
type Result struct {
	Pulled       int           `json:"pulled"`
	Conflicts    int           `json:"conflicts"`
	RowErrors    int           `json:"rowErrors"`
	Pushed       int           `json:"pushed"`
	Deleted      int           `json:"deleted"`
	PushFailures int           `json:"pushFailures"`
	PendingAfter int64         `json:"pendingAfter"`
	Duration     time.Duration `json:"-"`
}

// Engine runs sync cycles between the local cache and the remote gateway.
type Engine struct {
	cache *cache.Cache
	gw    Gateway
	log   *zap.SugaredLogger

	running atomic.Bool
	state   atomic.Int32
}

// New creates an engine over the given cache and gateway.
func New(c *cache.Cache, gw Gateway) *Engine {
	return &Engine{cache: c, gw: gw, log: logger.Get()}
}

// State returns the engine's current phase.
func (e *Engine) State() State {
	return State(e.state.Load())
}

func (e *Engine) setState(s State) {
	e.state.Store(int32(s))
}

// Sync runs one full pull-merge-push cycle. A second trigger while a cycle
// is in flight returns ErrSyncInFlight without starting anything. The engine
// always settles back to Idle, even after a failure.
func (e *Engine) Sync(ctx context.Context) (*Result, error) {
	if !e.running.CompareAndSwap(false, true) {
		return nil, apperrors.ErrSyncInFlight
	}
	defer e.running.Store(false)
	defer e.setState(StateIdle)

	start := time.Now()
	result := &Result{}

	e.setState(StatePulling)
	if err := e.pull(ctx, result); err != nil {
		return e.fail("pull", err)
	}

	e.setState(StateMerging)
	if err := e.merge(result); err != nil {
		return e.fail("merge", err)
	}

	e.setState(StatePushing)
	if err := e.push(ctx, result); err != nil {
		return e.fail("push", err)
	}

	now := time.Now().UTC()
	// The remote meta write is best effort: a local record of the sync is
	// enough to keep the cycle's guarantees.
	if err := e.gw.WriteMeta(ctx, metaLastSyncKey, now.Format(time.RFC3339)); err != nil {
		e.log.Warnw("failed to record sync time remotely", "error", err)
	}
	if err := e.cache.SetLastSyncAt(now); err != nil {
		return e.fail("meta", err)
	}

	pending, err := e.cache.PendingCount()
	if err != nil {
		return e.fail("meta", err)
	}
	result.PendingAfter = pending
	result.Duration = time.Since(start)

	e.log.Infow("sync cycle completed",
		"pulled", result.Pulled,
		"pushed", result.Pushed,
		"deleted", result.Deleted,
		"conflicts", result.Conflicts,
		"row_errors", result.RowErrors,
		"push_failures", result.PushFailures,
		"pending_after", result.PendingAfter,
		"duration", result.Duration.String(),
	)
	return result, nil
}

// fail surfaces a cycle-aborting error. The cache stays fully usable: every
// entity write before the failure has already committed.
func (e *Engine) fail(phase string, err error) (*Result, error) {
	e.setState(StateFailed)
	e.log.Errorw("sync cycle failed", "phase", phase, "error", err)
	return nil, err
}

// pull fetches the full remote state and merges it into the cache under
// last-write-wins. Categories come first since transactions reference them.
// Undecodable rows are logged and skipped; a failed fetch aborts the cycle.
func (e *Engine) pull(ctx context.Context, result *Result) error {
	categories, rowErrs, err := e.gw.FetchCategories(ctx)
	if err != nil {
		return err
	}
	e.reportRowErrors(rowErrs, result)
	for i := range categories {
		if err := ctx.Err(); err != nil {
			return err
		}
		applied, err := e.cache.ApplyRemoteCategory(&categories[i])
		if err != nil {
			return err
		}
		if applied {
			result.Pulled++
		} else {
			result.Conflicts++
		}
	}

	transactions, rowErrs, err := e.gw.FetchTransactions(ctx)
	if err != nil {
		return err
	}
	e.reportRowErrors(rowErrs, result)
	for i := range transactions {
		if err := ctx.Err(); err != nil {
			return err
		}
		applied, err := e.cache.ApplyRemoteTransaction(&transactions[i])
		if err != nil {
			return err
		}
		if applied {
			result.Pulled++
		} else {
			result.Conflicts++
		}
	}

	return nil
}

func (e *Engine) reportRowErrors(rowErrs []remote.RowError, result *Result) {
	for _, rowErr := range rowErrs {
		e.log.Warnw("skipping malformed remote row",
			"region", rowErr.Region, "index", rowErr.Index, "error", rowErr.Err)
	}
	result.RowErrors += len(rowErrs)
}

// merge recomputes the pending set (now that pull recorded what the remote
// holds, pending is exactly the true local-only edits) and reports soft
// invariant violations: transactions whose category is missing or of the
// opposite type are logged, never rejected.
func (e *Engine) merge(result *Result) error {
	pending, err := e.cache.PendingCount()
	if err != nil {
		return err
	}
	result.PendingAfter = pending

	categories, err := e.cache.ListCategories("", false)
	if err != nil {
		return err
	}
	byID := make(map[string]models.Category, len(categories))
	for _, cat := range categories {
		byID[cat.ID] = cat
	}

	transactions, err := e.cache.ListTransactions("", "")
	if err != nil {
		return err
	}
	for _, t := range transactions {
		cat, ok := byID[t.CategoryID]
		switch {
		case !ok:
			e.log.Warnw("transaction references unknown category",
				"transaction", t.ID, "category", t.CategoryID)
		case cat.Type != t.Type:
			e.log.Warnw("transaction type does not match its category",
				"transaction", t.ID, "category", t.CategoryID,
				"transaction_type", t.Type, "category_type", cat.Type)
		}
	}

	return nil
}
