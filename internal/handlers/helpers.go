package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"moneta/internal/cache"
	apperrors "moneta/internal/errors"
	"moneta/internal/logger"
	"moneta/internal/models"
)

// newID generates a time-ordered UUIDv7 identifier, falling back to UUIDv4
// if the system entropy source fails.
func newID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}

// bindError maps a Gin binding failure onto the error taxonomy: validation
// errors pass through (the error middleware lists the fields), everything
// else becomes a generic invalid-input error.
func bindError(err error) error {
	var bindErrs validator.ValidationErrors
	if errors.As(err, &bindErrs) {
		return err
	}
	return apperrors.WithMessage(apperrors.ErrInvalidInput, "request body is malformed: "+err.Error())
}

// checkCategoryRef reports violations of the soft invariant that a
// transaction's category exists and matches its type. Violations are logged,
// never rejected.
func checkCategoryRef(c *cache.Cache, t *models.Transaction) {
	cat, err := c.GetCategory(t.CategoryID)
	if err != nil {
		logger.Get().Warnw("transaction references unknown category",
			"transaction", t.ID, "category", t.CategoryID)
		return
	}
	if cat.Type != t.Type {
		logger.Get().Warnw("transaction type does not match its category",
			"transaction", t.ID, "category", t.CategoryID,
			"transaction_type", t.Type, "category_type", cat.Type)
	}
}

// ok writes the success envelope with a data payload.
func ok(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}
