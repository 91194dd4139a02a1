package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"moneta/internal/cache"
	apperrors "moneta/internal/errors"
	"moneta/internal/models"
)

// TransactionHandler serves the transaction CRUD surface. All reads and
// writes go to the local cache synchronously; writes become pending and are
// reconciled by a later sync cycle.
type TransactionHandler struct {
	cache *cache.Cache
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(c *cache.Cache) *TransactionHandler {
	return &TransactionHandler{cache: c}
}

// TransactionRequest is the create/update payload. Date, type, amount, and
// categoryId are required; month is always derived server-side.
type TransactionRequest struct {
	ID         string           `json:"id"`
	Date       string           `json:"date" binding:"required,iso_date"`
	Type       models.EntryType `json:"type" binding:"required,entry_type"`
	Amount     int64            `json:"amount" binding:"required,gt=0"`
	CategoryID string           `json:"categoryId" binding:"required"`
	Notes      string           `json:"notes"`
	UpdatedAt  time.Time        `json:"updatedAt"`
}

func (r *TransactionRequest) model() *models.Transaction {
	return &models.Transaction{
		ID:         r.ID,
		Date:       r.Date,
		Type:       r.Type,
		Amount:     r.Amount,
		CategoryID: r.CategoryID,
		Notes:      r.Notes,
		UpdatedAt:  r.UpdatedAt,
	}
}

// List returns all live transactions, optionally filtered by ?type= and
// ?month=.
func (h *TransactionHandler) List(c *gin.Context) {
	transactions, err := h.cache.ListTransactions(
		models.EntryType(c.Query("type")), c.Query("month"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	ok(c, http.StatusOK, transactions)
}

// Create stores a new transaction in the local cache and marks it pending.
func (h *TransactionHandler) Create(c *gin.Context) {
	var req TransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(bindError(err))
		return
	}

	t := req.model()
	if t.ID == "" {
		t.ID = newID()
	}
	t.UpdatedAt = time.Time{} // always stamped fresh on create

	checkCategoryRef(h.cache, t)
	if err := h.cache.SaveTransaction(t); err != nil {
		_ = c.Error(err)
		return
	}
	ok(c, http.StatusCreated, t)
}

// Update upserts the transaction at the path id. A body id that disagrees
// with the path is rejected.
func (h *TransactionHandler) Update(c *gin.Context) {
	id := c.Param("id")

	var req TransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(bindError(err))
		return
	}
	if req.ID != "" && req.ID != id {
		_ = c.Error(apperrors.WithMessage(apperrors.ErrInvalidInput, "body id does not match path id"))
		return
	}

	t := req.model()
	t.ID = id
	t.UpdatedAt = time.Time{}

	checkCategoryRef(h.cache, t)
	if err := h.cache.SaveTransaction(t); err != nil {
		_ = c.Error(err)
		return
	}
	ok(c, http.StatusOK, t)
}

// Delete removes the transaction at the path id: a never-synced entity is
// erased outright, a synced one is tombstoned until the next sync cycle
// confirms the remote delete.
func (h *TransactionHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.cache.RemoveTransaction(id); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "deletedId": id})
}
