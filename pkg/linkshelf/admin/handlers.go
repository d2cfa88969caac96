// Package admin exposes user management and catalog statistics to
// administrators.
package admin

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/linkshelf/pkg/linkshelf/auth"
	"github.com/mikepea/linkshelf/pkg/linkshelf/errx"
	"github.com/mikepea/linkshelf/pkg/linkshelf/httpx"
	"github.com/mikepea/linkshelf/pkg/linkshelf/models"
	"github.com/mikepea/linkshelf/pkg/linkshelf/store"
	"github.com/mikepea/linkshelf/pkg/linkshelf/topics"
	"gorm.io/gorm"
)

// Handler handles admin requests
type Handler struct {
	db    *gorm.DB
	users *store.Store[models.User]
}

// NewHandler creates a new admin handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db, users: store.New[models.User](db, "User")}
}

// UserResponse represents user data in admin responses
type UserResponse struct {
	ID          uint      `json:"id"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	SystemRole  string    `json:"system_role"`
	CreatedAt   time.Time `json:"created_at"`
	TopicCount  int64     `json:"topic_count"`
	APIKeyCount int64     `json:"api_key_count"`
}

// UpdateUserRequest represents the request to update a user
type UpdateUserRequest struct {
	Name       *string `json:"name" binding:"omitempty,min=1,max=100"`
	SystemRole *string `json:"system_role" binding:"omitempty,oneof=admin user"`
}

// StatsResponse represents system statistics
type StatsResponse struct {
	TotalUsers      int64 `json:"total_users"`
	TotalTopics     int64 `json:"total_topics"`
	TotalURLs       int64 `json:"total_urls"`
	TotalSoftware   int64 `json:"total_software"`
	TotalCategories int64 `json:"total_categories"`
	TotalTags       int64 `json:"total_tags"`
	AdminUsers      int64 `json:"admin_users"`
	ActiveAPIKeys   int64 `json:"active_api_keys"`
}

// userRows selects users together with their topic and key counts.
func (h *Handler) userRows(db *gorm.DB) *gorm.DB {
	return db.Model(&models.User{}).Select(`users.id, users.email, users.name, users.system_role, users.created_at,
		(SELECT COUNT(*) FROM topics WHERE topics.user_id = users.id) AS topic_count,
		(SELECT COUNT(*) FROM api_keys WHERE api_keys.user_id = users.id) AS api_key_count`)
}

// ListUsers returns all users, optionally filtered by ?q and ?role
func (h *Handler) ListUsers(c *gin.Context) {
	query := h.userRows(h.db.WithContext(c.Request.Context())).Order("users.created_at DESC, users.id DESC")

	if search := c.Query("q"); search != "" {
		query = query.Where("users.email LIKE ? OR users.name LIKE ?", "%"+search+"%", "%"+search+"%")
	}
	if role := c.Query("role"); role != "" {
		query = query.Where("users.system_role = ?", role)
	}

	users := []UserResponse{}
	if err := query.Scan(&users).Error; err != nil {
		httpx.Error(c, store.Translate("admin.ListUsers", "User", err))
		return
	}
	c.JSON(http.StatusOK, users)
}

func (h *Handler) loadUser(c *gin.Context, id uint) (*UserResponse, error) {
	var rows []UserResponse
	err := h.userRows(h.db.WithContext(c.Request.Context())).Where("users.id = ?", id).Scan(&rows).Error
	if err != nil {
		return nil, store.Translate("admin.loadUser", "User", err)
	}
	if len(rows) == 0 {
		return nil, errx.Errorf("admin.loadUser", errx.NotFound, "User not found")
	}
	return &rows[0], nil
}

// GetUser returns a single user by ID
func (h *Handler) GetUser(c *gin.Context) {
	id, err := httpx.UintParam(c, "id")
	if err != nil {
		httpx.Error(c, err)
		return
	}

	user, err := h.loadUser(c, id)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// UpdateUser updates a user's name or role
func (h *Handler) UpdateUser(c *gin.Context) {
	id, err := httpx.UintParam(c, "id")
	if err != nil {
		httpx.Error(c, err)
		return
	}

	var req UpdateUserRequest
	if err := httpx.BindJSON(c, &req); err != nil {
		httpx.Error(c, err)
		return
	}

	// Prevent admin from demoting themselves
	currentUserID, _ := auth.GetUserID(c)
	if id == currentUserID && req.SystemRole != nil && *req.SystemRole != string(models.SystemRoleAdmin) {
		httpx.Fail(c, http.StatusBadRequest, "Cannot demote yourself")
		return
	}

	updates := map[string]any{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.SystemRole != nil {
		updates["system_role"] = *req.SystemRole
	}

	if _, err := h.users.Update(c.Request.Context(), id, updates); err != nil {
		httpx.Error(c, err)
		return
	}

	user, err := h.loadUser(c, id)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// DeleteUser removes a user with their topics and API keys
func (h *Handler) DeleteUser(c *gin.Context) {
	id, err := httpx.UintParam(c, "id")
	if err != nil {
		httpx.Error(c, err)
		return
	}

	// Prevent admin from deleting themselves
	currentUserID, _ := auth.GetUserID(c)
	if id == currentUserID {
		httpx.Fail(c, http.StatusBadRequest, "Cannot delete yourself")
		return
	}

	ctx := c.Request.Context()
	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		users := h.users.WithTx(tx)
		if _, err := users.Get(ctx, id); err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.APIKey{}).Error; err != nil {
			return err
		}
		if err := topics.DeleteAllOwnedBy(tx, id); err != nil {
			return err
		}
		return users.Delete(ctx, id)
	})
	if err != nil {
		httpx.Error(c, store.Translate("admin.DeleteUser", "User", err))
		return
	}

	httpx.OK(c, http.StatusOK, "User deleted", nil)
}

// GetStats returns system-wide statistics
func (h *Handler) GetStats(c *gin.Context) {
	db := h.db.WithContext(c.Request.Context())
	var stats StatsResponse

	counts := []struct {
		dst   *int64
		model any
		where []any
	}{
		{&stats.TotalUsers, &models.User{}, nil},
		{&stats.TotalTopics, &models.Topic{}, nil},
		{&stats.TotalURLs, &models.URL{}, nil},
		{&stats.TotalSoftware, &models.Software{}, nil},
		{&stats.TotalCategories, &models.Category{}, nil},
		{&stats.TotalTags, &models.Tag{}, nil},
		{&stats.ActiveAPIKeys, &models.APIKey{}, nil},
		{&stats.AdminUsers, &models.User{}, []any{"system_role = ?", models.SystemRoleAdmin}},
	}
	for _, n := range counts {
		q := db.Model(n.model)
		if n.where != nil {
			q = q.Where(n.where[0], n.where[1:]...)
		}
		if err := q.Count(n.dst).Error; err != nil {
			httpx.Error(c, store.Translate("admin.GetStats", "Stats", err))
			return
		}
	}

	c.JSON(http.StatusOK, stats)
}

// RegisterRoutes registers admin routes on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/stats", h.GetStats)
	rg.GET("/users", h.ListUsers)
	rg.GET("/users/:id", h.GetUser)
	rg.PUT("/users/:id", h.UpdateUser)
	rg.DELETE("/users/:id", h.DeleteUser)
}
