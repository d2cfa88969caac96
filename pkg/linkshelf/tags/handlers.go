// Package tags exposes the shared tag vocabulary used by bookmarks and
// software entries.
package tags

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/linkshelf/pkg/linkshelf/httpx"
	"github.com/mikepea/linkshelf/pkg/linkshelf/models"
	"github.com/mikepea/linkshelf/pkg/linkshelf/store"
	"gorm.io/gorm"
)

// Handler handles tag-related requests
type Handler struct {
	db   *gorm.DB
	tags *store.Store[models.Tag]
}

// NewHandler creates a new tags handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db, tags: store.New[models.Tag](db, "Tag")}
}

// TagResponse represents a tag in API responses
type TagResponse struct {
	ID            uint   `json:"id"`
	Name          string `json:"name"`
	URLCount      int64  `json:"url_count"`
	SoftwareCount int64  `json:"software_count"`
}

// CreateTagRequest represents the request to create a tag
type CreateTagRequest struct {
	Name string `json:"name" binding:"required,max=50"`
}

// List returns every tag with how often it is used
func (h *Handler) List(c *gin.Context) {
	results := []TagResponse{}
	err := h.db.WithContext(c.Request.Context()).
		Table("tags").
		Select(`tags.id, tags.name,
			(SELECT COUNT(*) FROM url_tags WHERE url_tags.tag_id = tags.id) AS url_count,
			(SELECT COUNT(*) FROM software_tags WHERE software_tags.tag_id = tags.id) AS software_count`).
		Order("tags.name ASC").
		Scan(&results).Error
	if err != nil {
		httpx.Error(c, store.Translate("tags.List", "Tag", err))
		return
	}
	c.JSON(http.StatusOK, results)
}

// Create adds a tag. Names are stored lowercased.
func (h *Handler) Create(c *gin.Context) {
	var req CreateTagRequest
	if err := httpx.BindJSON(c, &req); err != nil {
		httpx.Error(c, err)
		return
	}

	tag := models.Tag{Name: strings.ToLower(strings.TrimSpace(req.Name))}
	if tag.Name == "" {
		httpx.Error(c, httpx.FieldError("tags.Create", "name", "is required"))
		return
	}
	if err := h.tags.Create(c.Request.Context(), &tag); err != nil {
		httpx.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, TagResponse{ID: tag.ID, Name: tag.Name})
}

// Delete removes a tag from every bookmark and software entry, then the tag
func (h *Handler) Delete(c *gin.Context) {
	id, err := httpx.UintParam(c, "id")
	if err != nil {
		httpx.Error(c, err)
		return
	}

	ctx := c.Request.Context()
	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM url_tags WHERE tag_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM software_tags WHERE tag_id = ?", id).Error; err != nil {
			return err
		}
		return h.tags.WithTx(tx).Delete(ctx, id)
	})
	if err != nil {
		httpx.Error(c, store.Translate("tags.Delete", "Tag", err))
		return
	}
	httpx.OK(c, http.StatusOK, "Tag deleted", nil)
}

// RegisterRoutes registers the read-only tag route
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/tags", h.List)
}

// RegisterAdminRoutes registers tag mutations
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.POST("/tags", h.Create)
	rg.DELETE("/tags/:id", h.Delete)
}
