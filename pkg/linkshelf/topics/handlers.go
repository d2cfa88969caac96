package topics

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/linkshelf/pkg/linkshelf/auth"
	"github.com/mikepea/linkshelf/pkg/linkshelf/httpx"
	"github.com/mikepea/linkshelf/pkg/linkshelf/store"
)

// Handler handles topic requests
type Handler struct {
	svc *Service
}

// NewHandler creates a new topics handler
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// List returns the caller's topics, newest first
func (h *Handler) List(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	page, pageSize, err := httpx.PageQuery(c)
	if err != nil {
		httpx.Error(c, err)
		return
	}

	items, total, err := h.svc.List(c.Request.Context(), userID, store.Page{Number: page, Size: pageSize})
	if err != nil {
		httpx.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, httpx.Page[TopicSummary]{Data: items, Total: total})
}

// Get returns a topic with its bookmarks
func (h *Handler) Get(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	topic, err := h.svc.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		httpx.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, topic)
}

// Save creates a topic, or updates it when the body carries an id
func (h *Handler) Save(c *gin.Context) {
	var req TopicRequest
	if err := httpx.BindJSON(c, &req); err != nil {
		httpx.Error(c, err)
		return
	}
	h.upsert(c, req)
}

// Update replaces the topic named in the path with the body
func (h *Handler) Update(c *gin.Context) {
	var req TopicRequest
	if err := httpx.BindJSON(c, &req); err != nil {
		httpx.Error(c, err)
		return
	}
	req.ID = c.Param("id")
	h.upsert(c, req)
}

func (h *Handler) upsert(c *gin.Context, req TopicRequest) {
	userID, _ := auth.GetUserID(c)
	created := req.ID == ""

	result, err := h.svc.Upsert(c.Request.Context(), userID, req)
	if err != nil {
		httpx.Error(c, err)
		return
	}

	if created {
		httpx.OK(c, http.StatusCreated, "Topic created", result)
		return
	}
	httpx.OK(c, http.StatusOK, "Topic updated", result)
}

// Batch creates a topic from a newline separated URL list
func (h *Handler) Batch(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var req BatchRequest
	if err := httpx.BindJSON(c, &req); err != nil {
		httpx.Error(c, err)
		return
	}

	result, err := h.svc.Batch(c.Request.Context(), userID, req)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.OK(c, http.StatusCreated, "Topic created", result)
}

// Delete removes a topic and its bookmarks
func (h *Handler) Delete(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	if err := h.svc.Delete(c.Request.Context(), userID, c.Param("id")); err != nil {
		httpx.Error(c, err)
		return
	}
	httpx.OK(c, http.StatusOK, "Topic deleted", nil)
}

// RegisterRoutes registers topic routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/topics", h.List)
	rg.POST("/topics", h.Save)
	rg.POST("/topics/batch", h.Batch)
	rg.GET("/topics/:id", h.Get)
	rg.PUT("/topics/:id", h.Update)
	rg.DELETE("/topics/:id", h.Delete)
}
