package remote

import (
	"fmt"
	"strconv"
	"time"

	"moneta/internal/models"
)

// Region layouts. Column 0 is always the row key.
//
//	transactions: id, date, month, type, amount, categoryId, notes, updatedAt
//	categories:   id, name, type, active, updatedAt
//	meta:         key, value
const (
	transactionColumns = 8
	categoryColumns    = 5
)

const rowTimeLayout = time.RFC3339Nano

func transactionRow(t *models.Transaction) []string {
	return []string{
		t.ID,
		t.Date,
		t.Month,
		string(t.Type),
		strconv.FormatInt(t.Amount, 10),
		t.CategoryID,
		t.Notes,
		t.UpdatedAt.UTC().Format(rowTimeLayout),
	}
}

func decodeTransactionRow(row []string) (*models.Transaction, error) {
	if len(row) != transactionColumns {
		return nil, fmt.Errorf("expected %d columns, got %d", transactionColumns, len(row))
	}
	if row[0] == "" {
		return nil, fmt.Errorf("empty id")
	}

	amount, err := strconv.ParseInt(row[4], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", row[4], err)
	}
	updatedAt, err := time.Parse(rowTimeLayout, row[7])
	if err != nil {
		return nil, fmt.Errorf("invalid updatedAt %q: %w", row[7], err)
	}

	t := &models.Transaction{
		ID:         row[0],
		Date:       row[1],
		Type:       models.EntryType(row[3]),
		Amount:     amount,
		CategoryID: row[5],
		Notes:      row[6],
		UpdatedAt:  updatedAt.UTC(),
	}
	// The month column is never trusted; it is re-derived from the date.
	t.RecomputeMonth()

	if err := models.ValidateTransaction(t); err != nil {
		return nil, err
	}
	return t, nil
}

func categoryRow(c *models.Category) []string {
	return []string{
		c.ID,
		c.Name,
		string(c.Type),
		strconv.FormatBool(c.Active),
		c.UpdatedAt.UTC().Format(rowTimeLayout),
	}
}

func decodeCategoryRow(row []string) (*models.Category, error) {
	if len(row) != categoryColumns {
		return nil, fmt.Errorf("expected %d columns, got %d", categoryColumns, len(row))
	}
	if row[0] == "" {
		return nil, fmt.Errorf("empty id")
	}

	active, err := strconv.ParseBool(row[3])
	if err != nil {
		return nil, fmt.Errorf("invalid active %q: %w", row[3], err)
	}
	updatedAt, err := time.Parse(rowTimeLayout, row[4])
	if err != nil {
		return nil, fmt.Errorf("invalid updatedAt %q: %w", row[4], err)
	}

	c := &models.Category{
		ID:        row[0],
		Name:      row[1],
		Type:      models.EntryType(row[2]),
		Active:    active,
		UpdatedAt: updatedAt.UTC(),
	}
	if err := models.ValidateCategory(c); err != nil {
		return nil, err
	}
	return c, nil
}
