package testutil

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"moneta/internal/models"
	"moneta/internal/remote"
)

// FakeGateway is an in-memory stand-in for the remote store. It satisfies
// the sync engine's Gateway interface and lets tests inject per-entity
// failures, fetch failures, and a fetch that blocks until released.
type FakeGateway struct {
	mu           sync.Mutex
	Categories   map[string]models.Category
	Transactions map[string]models.Transaction
	Meta         map[string]string

	FetchCategoriesErr   error
	FetchTransactionsErr error
	CategoryErrs         map[string]error
	TransactionErrs      map[string]error

	FetchCalls  atomic.Int32
	DeleteCalls atomic.Int32

	// BlockFetch, when non-nil, makes FetchCategories wait until the
	// channel is closed (or the context is cancelled).
	BlockFetch chan struct{}
}

// NewFakeGateway returns an empty fake remote store.
func NewFakeGateway() *FakeGateway {
	return &FakeGateway{
		Categories:      make(map[string]models.Category),
		Transactions:    make(map[string]models.Transaction),
		Meta:            make(map[string]string),
		CategoryErrs:    make(map[string]error),
		TransactionErrs: make(map[string]error),
	}
}

func (g *FakeGateway) FetchCategories(ctx context.Context) ([]models.Category, []remote.RowError, error) {
	g.FetchCalls.Add(1)
	if g.BlockFetch != nil {
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-g.BlockFetch:
		}
	}
	if g.FetchCategoriesErr != nil {
		return nil, nil, g.FetchCategoriesErr
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]models.Category, 0, len(g.Categories))
	for _, cat := range g.Categories {
		out = append(out, cat)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil, nil
}

func (g *FakeGateway) FetchTransactions(ctx context.Context) ([]models.Transaction, []remote.RowError, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if g.FetchTransactionsErr != nil {
		return nil, nil, g.FetchTransactionsErr
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]models.Transaction, 0, len(g.Transactions))
	for _, tx := range g.Transactions {
		out = append(out, tx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil, nil
}

func (g *FakeGateway) InsertCategory(_ context.Context, cat *models.Category) error {
	if err := g.CategoryErrs[cat.ID]; err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Categories[cat.ID] = *cat
	return nil
}

func (g *FakeGateway) UpdateCategory(ctx context.Context, cat *models.Category) error {
	return g.InsertCategory(ctx, cat)
}

func (g *FakeGateway) DeleteCategory(_ context.Context, id string) error {
	g.DeleteCalls.Add(1)
	if err := g.CategoryErrs[id]; err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.Categories, id)
	return nil
}

func (g *FakeGateway) InsertCategoriesBatch(ctx context.Context, categories []models.Category) []remote.BatchResult {
	results := make([]remote.BatchResult, 0, len(categories))
	for i := range categories {
		results = append(results, remote.BatchResult{
			IDs: []string{categories[i].ID},
			Err: g.InsertCategory(ctx, &categories[i]),
		})
	}
	return results
}

func (g *FakeGateway) InsertTransaction(_ context.Context, tx *models.Transaction) error {
	if err := g.TransactionErrs[tx.ID]; err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Transactions[tx.ID] = *tx
	return nil
}

func (g *FakeGateway) UpdateTransaction(ctx context.Context, tx *models.Transaction) error {
	return g.InsertTransaction(ctx, tx)
}

func (g *FakeGateway) DeleteTransaction(_ context.Context, id string) error {
	g.DeleteCalls.Add(1)
	if err := g.TransactionErrs[id]; err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.Transactions, id)
	return nil
}

func (g *FakeGateway) InsertTransactionsBatch(ctx context.Context, transactions []models.Transaction) []remote.BatchResult {
	results := make([]remote.BatchResult, 0, len(transactions))
	for i := range transactions {
		results = append(results, remote.BatchResult{
			IDs: []string{transactions[i].ID},
			Err: g.InsertTransaction(ctx, &transactions[i]),
		})
	}
	return results
}

func (g *FakeGateway) ReadMeta(_ context.Context, key string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.Meta[key], nil
}

func (g *FakeGateway) WriteMeta(_ context.Context, key, value string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Meta[key] = value
	return nil
}
