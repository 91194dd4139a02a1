package remote

import (
	"context"

	"moneta/internal/models"
)

// FetchTransactions retrieves every transaction row. Rows that fail to
// decode are returned as RowErrors alongside the good entities.
func (c *Client) FetchTransactions(ctx context.Context) ([]models.Transaction, []RowError, error) {
	rows, err := c.fetchRows(ctx, regionTransactions)
	if err != nil {
		return nil, nil, err
	}

	transactions := make([]models.Transaction, 0, len(rows))
	var rowErrs []RowError
	for i, row := range rows {
		t, err := decodeTransactionRow(row)
		if err != nil {
			rowErrs = append(rowErrs, RowError{Region: regionTransactions, Index: i, Err: err})
			continue
		}
		transactions = append(transactions, *t)
	}
	return transactions, rowErrs, nil
}

// FetchCategories retrieves every category row, reporting undecodable rows
// as RowErrors.
func (c *Client) FetchCategories(ctx context.Context) ([]models.Category, []RowError, error) {
	rows, err := c.fetchRows(ctx, regionCategories)
	if err != nil {
		return nil, nil, err
	}

	categories := make([]models.Category, 0, len(rows))
	var rowErrs []RowError
	for i, row := range rows {
		cat, err := decodeCategoryRow(row)
		if err != nil {
			rowErrs = append(rowErrs, RowError{Region: regionCategories, Index: i, Err: err})
			continue
		}
		categories = append(categories, *cat)
	}
	return categories, rowErrs, nil
}

// InsertTransaction appends a transaction row. Inserting an id that already
// exists falls back to an update, so the call is idempotent.
func (c *Client) InsertTransaction(ctx context.Context, t *models.Transaction) error {
	err := c.appendRows(ctx, regionTransactions, [][]string{transactionRow(t)})
	if err == errRowExists {
		return c.UpdateTransaction(ctx, t)
	}
	return err
}

// UpdateTransaction upserts a transaction row by id.
func (c *Client) UpdateTransaction(ctx context.Context, t *models.Transaction) error {
	return c.putRow(ctx, regionTransactions, t.ID, transactionRow(t))
}

// DeleteTransaction removes a transaction row. Deleting an absent row is
// success.
func (c *Client) DeleteTransaction(ctx context.Context, id string) error {
	return c.deleteRow(ctx, regionTransactions, id)
}

// InsertTransactionsBatch appends transactions in fixed-size chunks,
// reporting success or failure per chunk so the caller can retry only the
// failed subset.
func (c *Client) InsertTransactionsBatch(ctx context.Context, transactions []models.Transaction) []BatchResult {
	rows := make([][]string, len(transactions))
	for i := range transactions {
		rows[i] = transactionRow(&transactions[i])
	}
	return c.appendChunked(ctx, regionTransactions, rows)
}

// InsertCategory appends a category row, falling back to an update when the
// id already exists.
func (c *Client) InsertCategory(ctx context.Context, cat *models.Category) error {
	err := c.appendRows(ctx, regionCategories, [][]string{categoryRow(cat)})
	if err == errRowExists {
		return c.UpdateCategory(ctx, cat)
	}
	return err
}

// UpdateCategory upserts a category row by id.
func (c *Client) UpdateCategory(ctx context.Context, cat *models.Category) error {
	return c.putRow(ctx, regionCategories, cat.ID, categoryRow(cat))
}

// DeleteCategory removes a category row. Deleting an absent row is success.
func (c *Client) DeleteCategory(ctx context.Context, id string) error {
	return c.deleteRow(ctx, regionCategories, id)
}

// InsertCategoriesBatch appends categories in fixed-size chunks with
// per-chunk results.
func (c *Client) InsertCategoriesBatch(ctx context.Context, categories []models.Category) []BatchResult {
	rows := make([][]string, len(categories))
	for i := range categories {
		rows[i] = categoryRow(&categories[i])
	}
	return c.appendChunked(ctx, regionCategories, rows)
}
