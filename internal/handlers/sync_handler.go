package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"moneta/internal/cache"
	apperrors "moneta/internal/errors"
	"moneta/internal/lifecycle"
	"moneta/internal/models"
)

// SyncHandler serves the sync surface: full state export, bulk import, and
// manual refresh.
type SyncHandler struct {
	cache       *cache.Cache
	coordinator *lifecycle.Coordinator
}

// NewSyncHandler creates a new SyncHandler.
func NewSyncHandler(c *cache.Cache, coord *lifecycle.Coordinator) *SyncHandler {
	return &SyncHandler{cache: c, coordinator: coord}
}

// Export returns the full cached state plus the last sync time.
func (h *SyncHandler) Export(c *gin.Context) {
	transactions, err := h.cache.ListTransactions("", "")
	if err != nil {
		_ = c.Error(err)
		return
	}
	categories, err := h.cache.ListCategories("", false)
	if err != nil {
		_ = c.Error(err)
		return
	}
	meta, err := h.cache.SyncMeta()
	if err != nil {
		_ = c.Error(err)
		return
	}

	ok(c, http.StatusOK, gin.H{
		"transactions": transactions,
		"categories":   categories,
		"lastSyncAt":   meta.LastSyncAt,
	})
}

type importRequest struct {
	Transactions []models.Transaction `json:"transactions"`
	Categories   []models.Category    `json:"categories"`
}

// Import bulk-loads entities into the local cache and runs one sync cycle.
// The payload is accepted whole or rejected whole: every entity is validated
// first and a single 400 lists all violations. Entities are durably cached
// (and pending) before the cycle runs, so a failing remote loses nothing.
func (h *SyncHandler) Import(c *gin.Context) {
	var req importRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.WithMessage(apperrors.ErrInvalidInput,
			"payload must contain transactions and categories arrays: "+err.Error()))
		return
	}

	var combined apperrors.ValidationError
	for i := range req.Categories {
		collectViolations(&combined, fmt.Sprintf("categories[%d]", i),
			models.ValidateCategory(&req.Categories[i]))
	}
	for i := range req.Transactions {
		collectViolations(&combined, fmt.Sprintf("transactions[%d]", i),
			models.ValidateTransaction(&req.Transactions[i]))
	}
	if err := combined.OrNil(); err != nil {
		_ = c.Error(err)
		return
	}

	for i := range req.Categories {
		if err := h.cache.SaveCategory(&req.Categories[i]); err != nil {
			_ = c.Error(err)
			return
		}
	}
	for i := range req.Transactions {
		checkCategoryRef(h.cache, &req.Transactions[i])
		if err := h.cache.SaveTransaction(&req.Transactions[i]); err != nil {
			_ = c.Error(err)
			return
		}
	}

	if _, err := h.coordinator.Refresh(c.Request.Context()); err != nil && !errors.Is(err, apperrors.ErrSyncInFlight) {
		_ = c.Error(apperrors.Wrap(apperrors.ErrSyncFailed, err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "syncedAt": time.Now().UTC()})
}

// Status reports the engine state, pending count, last sync time, and
// whether the first sync of the session has settled.
func (h *SyncHandler) Status(c *gin.Context) {
	pending, err := h.cache.PendingCount()
	if err != nil {
		_ = c.Error(err)
		return
	}
	meta, err := h.cache.SyncMeta()
	if err != nil {
		_ = c.Error(err)
		return
	}

	ok(c, http.StatusOK, gin.H{
		"state":        h.coordinator.State().String(),
		"pendingCount": pending,
		"lastSyncAt":   meta.LastSyncAt,
		"initialized":  h.coordinator.Initialized(),
	})
}

// Refresh triggers a manual sync cycle. A trigger while a cycle is in
// flight is coalesced and answered with 202.
func (h *SyncHandler) Refresh(c *gin.Context) {
	result, err := h.coordinator.Refresh(c.Request.Context())
	if err != nil {
		if errors.Is(err, apperrors.ErrSyncInFlight) {
			c.JSON(http.StatusAccepted, gin.H{"success": true, "message": apperrors.ErrSyncInFlight.Message})
			return
		}
		_ = c.Error(apperrors.Wrap(apperrors.ErrSyncFailed, err))
		return
	}
	ok(c, http.StatusOK, result)
}

// collectViolations merges a ValidationError into combined, prefixing each
// field with the entity's position in the payload.
func collectViolations(combined *apperrors.ValidationError, prefix string, err error) {
	if err == nil {
		return
	}
	var valErr *apperrors.ValidationError
	if errors.As(err, &valErr) {
		for _, v := range valErr.Violations {
			combined.Add(prefix+"."+v.Field, v.Reason)
		}
		return
	}
	combined.Add(prefix, err.Error())
}
