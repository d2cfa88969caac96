// Package importexport moves bookmarks in and out of topics using the
// Pinboard JSON format, and exports topics as YAML documents that the CLI
// can apply again.
package importexport

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/linkshelf/pkg/linkshelf/auth"
	"github.com/mikepea/linkshelf/pkg/linkshelf/errx"
	"github.com/mikepea/linkshelf/pkg/linkshelf/httpx"
	"github.com/mikepea/linkshelf/pkg/linkshelf/models"
	"github.com/mikepea/linkshelf/pkg/linkshelf/resolve"
	"github.com/mikepea/linkshelf/pkg/linkshelf/store"
	"github.com/mikepea/linkshelf/pkg/linkshelf/topics"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

// Handler handles import/export requests
type Handler struct {
	db     *gorm.DB
	topics *topics.Service
}

// NewHandler creates a new import/export handler
func NewHandler(db *gorm.DB, svc *topics.Service) *Handler {
	return &Handler{db: db, topics: svc}
}

// PinboardBookmark represents a bookmark in Pinboard JSON format
type PinboardBookmark struct {
	Href        string `json:"href"`
	Description string `json:"description"`
	Extended    string `json:"extended"`
	Tags        string `json:"tags"`
	Time        string `json:"time"`
	Shared      string `json:"shared"`
	ToRead      string `json:"toread"`
	Meta        string `json:"meta,omitempty"`
	Hash        string `json:"hash,omitempty"`
}

// ImportRequest adds bookmarks to the topic named by TopicID, or to a new
// topic called Name when TopicID is empty.
type ImportRequest struct {
	TopicID   string             `json:"topic_id"`
	Name      string             `json:"name"`
	Bookmarks []PinboardBookmark `json:"bookmarks" binding:"required"`
}

// ImportResult represents the result of an import operation
type ImportResult struct {
	TopicID  string   `json:"topic_id"`
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

// ExportBookmark represents a bookmark for export
type ExportBookmark struct {
	Href        string `json:"href"`
	Description string `json:"description"`
	Extended    string `json:"extended"`
	Tags        string `json:"tags"`
	Time        string `json:"time"`
	Shared      string `json:"shared"`
	ToRead      string `json:"toread"`
}

// Import imports bookmarks from Pinboard JSON format
func (h *Handler) Import(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	ctx := c.Request.Context()

	var req ImportRequest
	if err := httpx.BindJSON(c, &req); err != nil {
		httpx.Error(c, err)
		return
	}
	if req.TopicID == "" && strings.TrimSpace(req.Name) == "" {
		httpx.Error(c, httpx.FieldError("importexport.Import", "name", "is required when topic_id is empty"))
		return
	}

	target := topics.TopicRequest{ID: req.TopicID, Name: req.Name}
	present := map[string]bool{}
	if req.TopicID != "" {
		existing, err := h.topics.Get(ctx, userID, req.TopicID)
		if err != nil {
			httpx.Error(c, err)
			return
		}
		target.Name = existing.Name
		target.Description = existing.Description
		for _, u := range existing.URLs {
			id := u.ID
			target.URLs = append(target.URLs, topics.URLDraft{
				ID:          &id,
				URL:         u.URL,
				Title:       u.Title,
				Icon:        u.Icon,
				Description: u.Description,
				Tags:        u.Tags,
			})
			present[u.URL] = true
		}
	}

	result := ImportResult{Errors: []string{}}
	for i, b := range req.Bookmarks {
		draft, err := toDraft(b)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("bookmark %d: %s", i, errx.Message(err)))
			result.Skipped++
			continue
		}
		if present[draft.URL] {
			result.Skipped++
			continue
		}
		present[draft.URL] = true
		target.URLs = append(target.URLs, draft)
		result.Imported++
	}

	saved, err := h.topics.Upsert(ctx, userID, target)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	result.TopicID = saved.ID

	c.JSON(http.StatusOK, result)
}

func toDraft(b PinboardBookmark) (topics.URLDraft, error) {
	u, err := resolve.ParseURL(b.Href)
	if err != nil {
		return topics.URLDraft{}, err
	}
	if b.Time != "" {
		if _, err := time.Parse(time.RFC3339, b.Time); err != nil {
			return topics.URLDraft{}, errx.Errorf("importexport.toDraft", errx.Invalid, "invalid time format")
		}
	}

	title := strings.TrimSpace(b.Description)
	if title == "" {
		title = u.Host
	}
	return topics.URLDraft{
		URL:         u.String(),
		Title:       title,
		Description: strings.TrimSpace(b.Extended),
		Tags:        strings.Fields(b.Tags),
	}, nil
}

// Export writes the caller's bookmarks, optionally limited to ?topic_id.
// ?format=yaml returns topic documents instead of Pinboard JSON.
func (h *Handler) Export(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	q := h.db.WithContext(c.Request.Context()).
		Where("user_id = ?", userID).
		Preload("URLs", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC, id ASC") }).
		Preload("URLs.Tags", func(db *gorm.DB) *gorm.DB { return db.Order("name ASC") }).
		Order("created_at ASC, id ASC")
	if topicID := c.Query("topic_id"); topicID != "" {
		q = q.Where("id = ?", topicID)
	}

	var rows []models.Topic
	if err := q.Find(&rows).Error; err != nil {
		httpx.Error(c, store.Translate("importexport.Export", "Topic", err))
		return
	}
	if c.Query("topic_id") != "" && len(rows) == 0 {
		httpx.Error(c, errx.Errorf("importexport.Export", errx.NotFound, "Topic not found"))
		return
	}

	switch c.DefaultQuery("format", "json") {
	case "yaml":
		h.exportYAML(c, rows)
	case "json":
		h.exportPinboard(c, rows)
	default:
		httpx.Error(c, httpx.FieldError("importexport.Export", "format", "must be one of: json yaml"))
	}
}

func (h *Handler) exportPinboard(c *gin.Context, rows []models.Topic) {
	bookmarks := []ExportBookmark{}
	for _, t := range rows {
		for _, u := range t.URLs {
			if u.URL == "" {
				continue
			}
			bookmarks = append(bookmarks, ExportBookmark{
				Href:        u.URL,
				Description: u.Title,
				Extended:    u.Description,
				Tags:        strings.Join(u.TagNames(), " "),
				Time:        u.CreatedAt.UTC().Format(time.RFC3339),
				Shared:      "no",
				ToRead:      "no",
			})
		}
	}

	if c.Query("download") == "true" {
		c.Header("Content-Disposition", "attachment; filename=linkshelf-export.json")
	}
	c.JSON(http.StatusOK, bookmarks)
}

// TopicDocuments converts stored topics into requests that recreate them.
func TopicDocuments(rows []models.Topic) []topics.TopicRequest {
	docs := make([]topics.TopicRequest, len(rows))
	for i, t := range rows {
		doc := topics.TopicRequest{ID: t.ID, Name: t.Name, Description: t.Description, URLs: []topics.URLDraft{}}
		for _, u := range t.URLs {
			id := u.ID
			doc.URLs = append(doc.URLs, topics.URLDraft{
				ID:          &id,
				URL:         u.URL,
				Title:       u.Title,
				Icon:        u.Icon,
				Description: u.Description,
				Tags:        u.TagNames(),
			})
		}
		docs[i] = doc
	}
	return docs
}

func (h *Handler) exportYAML(c *gin.Context, rows []models.Topic) {
	out, err := yaml.Marshal(TopicDocuments(rows))
	if err != nil {
		httpx.Error(c, errx.E("importexport.exportYAML", errx.Internal, err))
		return
	}

	if c.Query("download") == "true" {
		c.Header("Content-Disposition", "attachment; filename=linkshelf-export.yaml")
	}
	c.Data(http.StatusOK, "application/yaml; charset=utf-8", out)
}

// RegisterRoutes registers import/export routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/import", h.Import)
	rg.GET("/export", h.Export)
}
