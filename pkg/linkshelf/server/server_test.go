package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/linkshelf/pkg/linkshelf/auth"
	"github.com/mikepea/linkshelf/pkg/linkshelf/config"
	"github.com/mikepea/linkshelf/pkg/linkshelf/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Port:            "0",
			ReadTimeout:     time.Second,
			WriteTimeout:    time.Second,
			ShutdownTimeout: time.Second,
		},
		Auth: config.AuthConfig{
			JWTSecret: "test-secret-at-least-16-chars",
			TokenTTL:  time.Hour,
		},
		Resolver: config.ResolverConfig{
			Timeout:     time.Second,
			Concurrency: 2,
			UserAgent:   "linkshelf-test",
		},
	}
}

func setupTestRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	gin.SetMode(gin.TestMode)
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, models.AutoMigrate(db))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRouter(testConfig(), db, logger), db
}

func do(t *testing.T, r *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func login(t *testing.T, r *gin.Engine, email, password string) string {
	w := do(t, r, "POST", "/api/auth/login", "", map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp auth.AuthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Token
}

func TestHealth(t *testing.T) {
	r, _ := setupTestRouter(t)

	for _, path := range []string{"/health", "/api/health"} {
		w := do(t, r, "GET", path, "", nil)
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.JSONEq(t, `{"status":"ok","service":"linkshelf"}`, w.Body.String())
	}
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	r, _ := setupTestRouter(t)

	for _, path := range []string{"/api/topics", "/api/resolveUrl", "/api/export", "/api/api-keys", "/api/categories", "/api/tags", "/api/management", "/api/admin/stats"} {
		w := do(t, r, "GET", path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestUserFlow(t *testing.T) {
	r, _ := setupTestRouter(t)

	w := do(t, r, "POST", "/api/auth/register", "", map[string]string{
		"email": "user@example.com", "password": "password123", "name": "User",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	token := login(t, r, "user@example.com", "password123")

	w = do(t, r, "POST", "/api/topics", token, map[string]any{
		"name": "Go",
		"urls": []map[string]any{{"url": "https://go.dev", "title": "Go", "tags": []string{"golang"}}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(t, r, "GET", "/api/topics", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page struct {
		Data  []map[string]any `json:"data"`
		Total int64            `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, int64(1), page.Total)

	w = do(t, r, "GET", "/api/tags", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "golang")

	// Catalog management needs the admin role
	w = do(t, r, "GET", "/api/management", token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = do(t, r, "POST", "/api/categories", token, map[string]string{"name": "Editors"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAdminFlowWithAPIKey(t *testing.T) {
	r, db := setupTestRouter(t)

	hash, err := auth.HashPassword("changeme")
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.User{
		Email: "admin@example.com", PasswordHash: hash, Name: "Admin", SystemRole: models.SystemRoleAdmin,
	}).Error)
	token := login(t, r, "admin@example.com", "changeme")

	w := do(t, r, "POST", "/api/api-keys", token, map[string]string{"description": "cli"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var key struct {
		Key string `json:"key"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &key))
	require.NotEmpty(t, key.Key)

	w = do(t, r, "POST", "/api/categories", key.Key, map[string]string{"name": "Editors"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var category struct {
		ID uint `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &category))

	w = do(t, r, "POST", "/api/management", key.Key, map[string]any{
		"name": "Neovim", "website": "https://neovim.io", "category_id": category.ID,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(t, r, "GET", "/api/management?category=999", key.Key, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":[],"total":0}`, w.Body.String())

	w = do(t, r, "GET", "/api/admin/stats", key.Key, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total_software":1`)

	w = do(t, r, "GET", "/api/auth/me", key.Key, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "admin@example.com")
}

func TestRunShutsDownOnCancel(t *testing.T) {
	cfg := testConfig()
	srv := NewHTTPServer(cfg.Server, http.NotFoundHandler())
	assert.Equal(t, ":0", srv.Addr)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, srv, cfg.Server.ShutdownTimeout, slog.New(slog.NewTextHandler(io.Discard, nil)))
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}
}
