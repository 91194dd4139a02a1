package models

import (
	"fmt"
	"time"

	apperrors "moneta/internal/errors"
)

// dateLayout is the calendar-day format used throughout: YYYY-MM-DD.
const dateLayout = "2006-01-02"

// MonthOf derives the YYYY-MM month from an ISO calendar day.
func MonthOf(date string) (string, error) {
	if _, err := time.Parse(dateLayout, date); err != nil {
		return "", fmt.Errorf("invalid date %q: %w", date, err)
	}
	return date[:7], nil
}

// ValidateTransaction checks a transaction and returns a ValidationError
// listing every violated field, or nil when the transaction is valid. The
// category reference being resolvable is a soft invariant checked elsewhere;
// here only its presence is required.
func ValidateTransaction(t *Transaction) error {
	var v apperrors.ValidationError

	if _, err := time.Parse(dateLayout, t.Date); err != nil {
		v.Add("date", "must be a calendar day in YYYY-MM-DD format")
	}
	if !t.Type.Valid() {
		v.Add("type", `must be "income" or "expense"`)
	}
	if t.Amount <= 0 {
		v.Add("amount", "must be a positive integer of minor currency units")
	}
	if t.CategoryID == "" {
		v.Add("categoryId", "is required")
	}

	return v.OrNil()
}

// ValidateCategory checks a category and returns a ValidationError listing
// every violated field, or nil when the category is valid.
func ValidateCategory(c *Category) error {
	var v apperrors.ValidationError

	if c.Name == "" {
		v.Add("name", "is required")
	}
	if !c.Type.Valid() {
		v.Add("type", `must be "income" or "expense"`)
	}

	return v.OrNil()
}
