package management

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/linkshelf/pkg/linkshelf/httpx"
	"github.com/mikepea/linkshelf/pkg/linkshelf/store"
)

// Handler handles software catalog requests
type Handler struct {
	svc *Service
}

// NewHandler creates a new management handler
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// List returns a page of software, filtered by ?category and ?tags
func (h *Handler) List(c *gin.Context) {
	page, pageSize, err := httpx.PageQuery(c)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	category, err := httpx.UintQuery(c, "category")
	if err != nil {
		httpx.Error(c, err)
		return
	}
	tagIDs, err := httpx.IDList(c, "tags")
	if err != nil {
		httpx.Error(c, err)
		return
	}

	items, total, err := h.svc.List(c.Request.Context(),
		Filter{CategoryID: category, TagIDs: tagIDs},
		store.Page{Number: page, Size: pageSize},
	)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, httpx.Page[SoftwareView]{Data: items, Total: total})
}

// Get returns one software entry
func (h *Handler) Get(c *gin.Context) {
	id, err := httpx.UintParam(c, "id")
	if err != nil {
		httpx.Error(c, err)
		return
	}

	item, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// Create adds a software entry
func (h *Handler) Create(c *gin.Context) {
	var req SoftwareRequest
	if err := httpx.BindJSON(c, &req); err != nil {
		httpx.Error(c, err)
		return
	}

	item, err := h.svc.Create(c.Request.Context(), req)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

// Update replaces a software entry
func (h *Handler) Update(c *gin.Context) {
	id, err := httpx.UintParam(c, "id")
	if err != nil {
		httpx.Error(c, err)
		return
	}

	var req SoftwareRequest
	if err := httpx.BindJSON(c, &req); err != nil {
		httpx.Error(c, err)
		return
	}

	item, err := h.svc.Update(c.Request.Context(), id, req)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// Delete removes the software entry named by ?id
func (h *Handler) Delete(c *gin.Context) {
	id, err := httpx.UintQuery(c, "id")
	if err != nil {
		httpx.Error(c, err)
		return
	}
	if id == 0 {
		httpx.Error(c, httpx.FieldError("management.Delete", "id", "is required"))
		return
	}

	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.OK(c, http.StatusOK, "Software deleted", nil)
}

// RegisterRoutes registers management routes. Callers guard the group with
// the admin middleware.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/management", h.List)
	rg.POST("/management", h.Create)
	rg.DELETE("/management", h.Delete)
	rg.GET("/management/:id", h.Get)
	rg.PUT("/management/:id", h.Update)
}
