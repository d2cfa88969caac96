// Package categories manages the categories that group software entries.
package categories

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/linkshelf/pkg/linkshelf/errx"
	"github.com/mikepea/linkshelf/pkg/linkshelf/httpx"
	"github.com/mikepea/linkshelf/pkg/linkshelf/models"
	"github.com/mikepea/linkshelf/pkg/linkshelf/store"
	"gorm.io/gorm"
)

// Handler handles category requests
type Handler struct {
	db         *gorm.DB
	categories *store.Store[models.Category]
}

// NewHandler creates a new categories handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db, categories: store.New[models.Category](db, "Category")}
}

// CategoryRequest is the body for create and update
type CategoryRequest struct {
	Name string `json:"name" binding:"required,max=100"`
}

// CategoryResponse represents a category in API responses
type CategoryResponse struct {
	ID            uint   `json:"id"`
	Name          string `json:"name"`
	SoftwareCount int64  `json:"software_count"`
}

// List returns all categories with the number of software entries in each
func (h *Handler) List(c *gin.Context) {
	results := []CategoryResponse{}
	err := h.db.WithContext(c.Request.Context()).
		Table("categories").
		Select("categories.id, categories.name, COUNT(software.id) AS software_count").
		Joins("LEFT JOIN software ON software.category_id = categories.id").
		Group("categories.id, categories.name").
		Order("categories.name ASC").
		Scan(&results).Error
	if err != nil {
		httpx.Error(c, store.Translate("categories.List", "Category", err))
		return
	}
	c.JSON(http.StatusOK, results)
}

// Create adds a category
func (h *Handler) Create(c *gin.Context) {
	var req CategoryRequest
	if err := httpx.BindJSON(c, &req); err != nil {
		httpx.Error(c, err)
		return
	}

	category := models.Category{Name: strings.TrimSpace(req.Name)}
	if category.Name == "" {
		httpx.Error(c, httpx.FieldError("categories.Create", "name", "is required"))
		return
	}
	if err := h.categories.Create(c.Request.Context(), &category); err != nil {
		httpx.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, CategoryResponse{ID: category.ID, Name: category.Name})
}

// Update renames a category
func (h *Handler) Update(c *gin.Context) {
	id, err := httpx.UintParam(c, "id")
	if err != nil {
		httpx.Error(c, err)
		return
	}

	var req CategoryRequest
	if err := httpx.BindJSON(c, &req); err != nil {
		httpx.Error(c, err)
		return
	}

	category, err := h.categories.Update(c.Request.Context(), id, map[string]any{"name": strings.TrimSpace(req.Name)})
	if err != nil {
		httpx.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, CategoryResponse{ID: category.ID, Name: category.Name})
}

// Delete removes a category that no software entry references
func (h *Handler) Delete(c *gin.Context) {
	id, err := httpx.UintParam(c, "id")
	if err != nil {
		httpx.Error(c, err)
		return
	}

	ctx := c.Request.Context()
	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var refs int64
		if err := tx.Model(&models.Software{}).Where("category_id = ?", id).Count(&refs).Error; err != nil {
			return err
		}
		if refs > 0 {
			return errx.Errorf("categories.Delete", errx.Conflict, "Category is still referenced by %d software entries", refs)
		}
		return h.categories.WithTx(tx).Delete(ctx, id)
	})
	if err != nil {
		httpx.Error(c, store.Translate("categories.Delete", "Category", err))
		return
	}
	httpx.OK(c, http.StatusOK, "Category deleted", nil)
}

// RegisterRoutes registers the read-only category route
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/categories", h.List)
}

// RegisterAdminRoutes registers category mutations
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.POST("/categories", h.Create)
	rg.PUT("/categories/:id", h.Update)
	rg.DELETE("/categories/:id", h.Delete)
}
