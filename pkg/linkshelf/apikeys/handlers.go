// Package apikeys manages long-lived API keys and the middleware that
// accepts either a key or a session token.
package apikeys

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/linkshelf/pkg/linkshelf/auth"
	"github.com/mikepea/linkshelf/pkg/linkshelf/errx"
	"github.com/mikepea/linkshelf/pkg/linkshelf/httpx"
	"github.com/mikepea/linkshelf/pkg/linkshelf/models"
	"github.com/mikepea/linkshelf/pkg/linkshelf/store"
	"gorm.io/gorm"
)

const (
	// KeyLength is the length of the generated API key in bytes (32 bytes = 64 hex chars)
	KeyLength = 32
	// KeyPrefixLength is the number of characters kept in clear for identification
	KeyPrefixLength = 8
)

// Handler handles API key requests
type Handler struct {
	keys *store.Store[models.APIKey]
}

// NewHandler creates a new API keys handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{keys: store.New[models.APIKey](db, "API key")}
}

// APIKeyResponse represents an API key in responses
type APIKeyResponse struct {
	ID          uint       `json:"id"`
	KeyPrefix   string     `json:"key_prefix"`
	Description string     `json:"description"`
	LastUsedAt  *time.Time `json:"last_used_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

// CreateAPIKeyRequest represents a request to create an API key
type CreateAPIKeyRequest struct {
	Description string `json:"description" binding:"max=200"`
}

// CreateAPIKeyResponse includes the full key, which is only shown once
type CreateAPIKeyResponse struct {
	APIKeyResponse
	Key string `json:"key"`
}

func generateAPIKey() (string, error) {
	b := make([]byte, KeyLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func hashAPIKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}

func newResponse(k *models.APIKey) APIKeyResponse {
	return APIKeyResponse{
		ID:          k.ID,
		KeyPrefix:   k.KeyPrefix,
		Description: k.Description,
		LastUsedAt:  k.LastUsedAt,
		CreatedAt:   k.CreatedAt,
	}
}

func ownedBy(userID uint) store.Scope {
	return func(db *gorm.DB) *gorm.DB { return db.Where("user_id = ?", userID) }
}

// Create creates a new API key for the authenticated user
func (h *Handler) Create(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var req CreateAPIKeyRequest
	if c.Request.ContentLength != 0 {
		if err := httpx.BindJSON(c, &req); err != nil {
			httpx.Error(c, err)
			return
		}
	}

	key, err := generateAPIKey()
	if err != nil {
		httpx.Error(c, errx.E("apikeys.Create", errx.Internal, err))
		return
	}

	apiKey := models.APIKey{
		UserID:      userID,
		KeyHash:     hashAPIKey(key),
		KeyPrefix:   key[:KeyPrefixLength],
		Description: strings.TrimSpace(req.Description),
	}
	if err := h.keys.Create(c.Request.Context(), &apiKey); err != nil {
		httpx.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, CreateAPIKeyResponse{APIKeyResponse: newResponse(&apiKey), Key: key})
}

// List returns all API keys for the authenticated user
func (h *Handler) List(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	keys, _, err := h.keys.List(c.Request.Context(), store.ListOptions{
		Scopes: []store.Scope{ownedBy(userID)},
		Order:  "created_at DESC, id DESC",
	})
	if err != nil {
		httpx.Error(c, err)
		return
	}

	responses := make([]APIKeyResponse, len(keys))
	for i := range keys {
		responses[i] = newResponse(&keys[i])
	}
	c.JSON(http.StatusOK, responses)
}

// Delete revokes one of the caller's API keys
func (h *Handler) Delete(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	keyID, err := httpx.UintParam(c, "id")
	if err != nil {
		httpx.Error(c, err)
		return
	}

	ctx := c.Request.Context()
	key, err := h.keys.Find(ctx, ownedBy(userID), func(db *gorm.DB) *gorm.DB { return db.Where("id = ?", keyID) })
	if err != nil {
		httpx.Error(c, err)
		return
	}
	if err := h.keys.Delete(ctx, key.ID); err != nil {
		httpx.Error(c, err)
		return
	}

	httpx.OK(c, http.StatusOK, "API key deleted", nil)
}

// ValidateAPIKey looks up the key by its hash and records its use.
func ValidateAPIKey(ctx context.Context, db *gorm.DB, key string) (*models.APIKey, error) {
	var apiKey models.APIKey
	if err := db.WithContext(ctx).Where("key_hash = ?", hashAPIKey(key)).First(&apiKey).Error; err != nil {
		return nil, store.Translate("apikeys.Validate", "API key", err)
	}

	now := time.Now()
	if err := db.WithContext(ctx).Model(&apiKey).Update("last_used_at", now).Error; err != nil {
		slog.WarnContext(ctx, "failed to record api key use", "key_id", apiKey.ID, "error", err)
	} else {
		apiKey.LastUsedAt = &now
	}
	return &apiKey, nil
}

// CombinedAuthMiddleware authenticates via JWT or API key. Both arrive as
// "Authorization: Bearer <token>"; JWTs contain dots, API keys are plain hex.
func CombinedAuthMiddleware(db *gorm.DB, tokens *auth.TokenManager) gin.HandlerFunc {
	jwtOnly := auth.AuthMiddleware(tokens)

	return func(c *gin.Context) {
		token, ok := auth.BearerToken(c)
		if !ok || strings.Contains(token, ".") {
			jwtOnly(c)
			return
		}

		ctx := c.Request.Context()
		apiKey, err := ValidateAPIKey(ctx, db, token)
		if err != nil {
			httpx.AbortFail(c, http.StatusUnauthorized, "Invalid API key")
			return
		}

		var user models.User
		if err := db.WithContext(ctx).First(&user, apiKey.UserID).Error; err != nil {
			httpx.AbortFail(c, http.StatusUnauthorized, "User not found")
			return
		}

		auth.SetIdentity(c, user.ID, user.Email, string(user.SystemRole))
		c.Next()
	}
}

// RegisterRoutes registers API key routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/api-keys", h.Create)
	rg.GET("/api-keys", h.List)
	rg.DELETE("/api-keys/:id", h.Delete)
}
