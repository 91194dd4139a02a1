package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"moneta/internal/cache"
	apperrors "moneta/internal/errors"
	"moneta/internal/models"
)

// CategoryHandler serves the category CRUD surface against the local cache.
type CategoryHandler struct {
	cache *cache.Cache
}

// NewCategoryHandler creates a new CategoryHandler.
func NewCategoryHandler(c *cache.Cache) *CategoryHandler {
	return &CategoryHandler{cache: c}
}

// CategoryRequest is the create/update payload. Active defaults to true;
// setting it false soft-deletes the category from new-entry pickers while
// keeping it for historical transactions.
type CategoryRequest struct {
	ID        string           `json:"id"`
	Name      string           `json:"name" binding:"required"`
	Type      models.EntryType `json:"type" binding:"required,entry_type"`
	Active    *bool            `json:"active"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

func (r *CategoryRequest) model() *models.Category {
	active := true
	if r.Active != nil {
		active = *r.Active
	}
	return &models.Category{
		ID:        r.ID,
		Name:      r.Name,
		Type:      r.Type,
		Active:    active,
		UpdatedAt: r.UpdatedAt,
	}
}

// List returns all live categories, optionally filtered by ?type= and
// ?active=true.
func (h *CategoryHandler) List(c *gin.Context) {
	categories, err := h.cache.ListCategories(
		models.EntryType(c.Query("type")), c.Query("active") == "true")
	if err != nil {
		_ = c.Error(err)
		return
	}
	ok(c, http.StatusOK, categories)
}

// Create stores a new category in the local cache and marks it pending.
func (h *CategoryHandler) Create(c *gin.Context) {
	var req CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(bindError(err))
		return
	}

	cat := req.model()
	if cat.ID == "" {
		cat.ID = newID()
	}
	cat.UpdatedAt = time.Time{}

	if err := h.cache.SaveCategory(cat); err != nil {
		_ = c.Error(err)
		return
	}
	ok(c, http.StatusCreated, cat)
}

// Update upserts the category at the path id.
func (h *CategoryHandler) Update(c *gin.Context) {
	id := c.Param("id")

	var req CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(bindError(err))
		return
	}
	if req.ID != "" && req.ID != id {
		_ = c.Error(apperrors.WithMessage(apperrors.ErrInvalidInput, "body id does not match path id"))
		return
	}

	cat := req.model()
	cat.ID = id
	cat.UpdatedAt = time.Time{}

	if err := h.cache.SaveCategory(cat); err != nil {
		_ = c.Error(err)
		return
	}
	ok(c, http.StatusOK, cat)
}

// Delete removes the category at the path id under the same never-synced /
// tombstone rules as transactions.
func (h *CategoryHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.cache.RemoveCategory(id); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "deletedId": id})
}
