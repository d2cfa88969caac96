package importexport

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/linkshelf/pkg/linkshelf/auth"
	"github.com/mikepea/linkshelf/pkg/linkshelf/models"
	"github.com/mikepea/linkshelf/pkg/linkshelf/topics"
	"gopkg.in/yaml.v3"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var tokens = auth.NewTokenManager("test-secret-at-least-16-chars", time.Hour)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate failed: %v", err)
	}
	return db
}

func createTestUser(t *testing.T, db *gorm.DB, email string) models.User {
	hash, _ := auth.HashPassword("password123")
	user := models.User{
		Email:        email,
		PasswordHash: hash,
		Name:         "Test User",
		SystemRole:   models.SystemRoleUser,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return user
}

func createTestTopic(t *testing.T, db *gorm.DB, userID uint, name string, drafts ...topics.URLDraft) string {
	res, err := topics.NewService(db, nil).Upsert(context.Background(), userID, topics.TopicRequest{Name: name, URLs: drafts})
	if err != nil {
		t.Fatalf("Failed to create test topic: %v", err)
	}
	return res.ID
}

func setupTestRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := NewHandler(db, topics.NewService(db, nil))

	api := r.Group("/api")
	api.Use(auth.AuthMiddleware(tokens))
	handler.RegisterRoutes(api)

	return r
}

func getAuthHeader(user models.User) string {
	token, _ := tokens.GenerateToken(user.ID, user.Email, string(user.SystemRole))
	return "Bearer " + token
}

func postImport(router *gin.Engine, user models.User, req ImportRequest) *httptest.ResponseRecorder {
	jsonBody, _ := json.Marshal(req)
	httpReq, _ := http.NewRequest("POST", "/api/import", bytes.NewBuffer(jsonBody))
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", getAuthHeader(user))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httpReq)
	return resp
}

func TestImportIntoNewTopic(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	user := createTestUser(t, db, "test@example.com")

	resp := postImport(router, user, ImportRequest{
		Name: "Pinboard",
		Bookmarks: []PinboardBookmark{
			{
				Href:        "https://example.com",
				Description: "Example Site",
				Extended:    "This is an example",
				Tags:        "test example",
				Time:        "2024-01-15T10:30:00Z",
			},
			{
				Href:        "https://golang.org",
				Description: "Go Programming",
				Tags:        "golang programming",
			},
			{Href: "javascript:alert(1)", Description: "nope"},
			{Href: "https://bad-time.example", Time: "yesterday"},
		},
	})

	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var result ImportResult
	json.Unmarshal(resp.Body.Bytes(), &result)

	if result.Imported != 2 || result.Skipped != 2 || len(result.Errors) != 2 {
		t.Errorf("Unexpected result: %+v", result)
	}

	var count int64
	db.Model(&models.URL{}).Where("topic_id = ?", result.TopicID).Count(&count)
	if count != 2 {
		t.Errorf("Expected 2 urls in topic, got %d", count)
	}

	var tagCount int64
	db.Model(&models.Tag{}).Count(&tagCount)
	if tagCount != 4 {
		t.Errorf("Expected 4 tags, got %d", tagCount)
	}
}

func TestImportAppendsToExistingTopic(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	user := createTestUser(t, db, "test@example.com")
	topicID := createTestTopic(t, db, user.ID, "Existing",
		topics.URLDraft{URL: "https://example.com", Title: "Already here", Tags: []string{"keep"}},
	)

	resp := postImport(router, user, ImportRequest{
		TopicID: topicID,
		Bookmarks: []PinboardBookmark{
			{Href: "https://example.com", Description: "Duplicate"},
			{Href: "https://go.dev"},
		},
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	got, err := topics.NewService(db, nil).Get(context.Background(), user.ID, topicID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(got.URLs) != 2 {
		t.Fatalf("Expected 2 urls, got %d", len(got.URLs))
	}
	if got.URLs[0].Title != "Already here" || len(got.URLs[0].Tags) != 1 {
		t.Errorf("Existing url changed: %+v", got.URLs[0])
	}
	if got.URLs[1].Title != "go.dev" {
		t.Errorf("Expected host as fallback title, got %q", got.URLs[1].Title)
	}
}

func TestImportIntoOtherUsersTopic(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	user := createTestUser(t, db, "test@example.com")
	other := createTestUser(t, db, "other@example.com")
	topicID := createTestTopic(t, db, other.ID, "Not yours")

	resp := postImport(router, user, ImportRequest{
		TopicID:   topicID,
		Bookmarks: []PinboardBookmark{{Href: "https://example.com", Description: "Example"}},
	})

	if resp.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", resp.Code)
	}
}

func TestImportRequiresName(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	user := createTestUser(t, db, "test@example.com")

	resp := postImport(router, user, ImportRequest{Bookmarks: []PinboardBookmark{{Href: "https://example.com"}}})
	if resp.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", resp.Code)
	}
}

func TestExportBookmarks(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	user := createTestUser(t, db, "test@example.com")
	first := createTestTopic(t, db, user.ID, "One",
		topics.URLDraft{URL: "https://example.com", Title: "Example", Tags: []string{"test"}},
		topics.URLDraft{Title: "No link"},
	)
	createTestTopic(t, db, user.ID, "Two", topics.URLDraft{URL: "https://golang.org", Title: "Go", Tags: []string{"golang"}})

	httpReq, _ := http.NewRequest("GET", "/api/export", nil)
	httpReq.Header.Set("Authorization", getAuthHeader(user))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httpReq)

	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var bookmarks []ExportBookmark
	json.Unmarshal(resp.Body.Bytes(), &bookmarks)
	if len(bookmarks) != 2 {
		t.Fatalf("Expected 2 bookmarks, got %d", len(bookmarks))
	}
	byHref := map[string]ExportBookmark{}
	for _, b := range bookmarks {
		byHref[b.Href] = b
	}
	if b := byHref["https://example.com"]; b.Description != "Example" || b.Tags != "test" {
		t.Errorf("Unexpected bookmark: %+v", b)
	}
	if b := byHref["https://golang.org"]; b.Tags != "golang" || b.Time == "" {
		t.Errorf("Unexpected bookmark: %+v", b)
	}

	httpReq, _ = http.NewRequest("GET", "/api/export?topic_id="+first, nil)
	httpReq.Header.Set("Authorization", getAuthHeader(user))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, httpReq)
	json.Unmarshal(resp.Body.Bytes(), &bookmarks)
	if len(bookmarks) != 1 {
		t.Errorf("Expected 1 bookmark for topic, got %d", len(bookmarks))
	}

	httpReq, _ = http.NewRequest("GET", "/api/export?topic_id=missing", nil)
	httpReq.Header.Set("Authorization", getAuthHeader(user))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, httpReq)
	if resp.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", resp.Code)
	}
}

func TestExportYAML(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	user := createTestUser(t, db, "test@example.com")
	topicID := createTestTopic(t, db, user.ID, "Docs",
		topics.URLDraft{URL: "https://go.dev/doc", Title: "Documentation", Tags: []string{"golang"}},
	)

	httpReq, _ := http.NewRequest("GET", "/api/export?format=yaml&topic_id="+topicID, nil)
	httpReq.Header.Set("Authorization", getAuthHeader(user))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httpReq)

	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var docs []topics.TopicRequest
	if err := yaml.Unmarshal(resp.Body.Bytes(), &docs); err != nil {
		t.Fatalf("Invalid YAML: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != topicID || docs[0].Name != "Docs" {
		t.Fatalf("Unexpected documents: %+v", docs)
	}
	if len(docs[0].URLs) != 1 || docs[0].URLs[0].ID == nil || docs[0].URLs[0].Tags[0] != "golang" {
		t.Errorf("Unexpected urls: %+v", docs[0].URLs)
	}

	httpReq, _ = http.NewRequest("GET", "/api/export?format=xml", nil)
	httpReq.Header.Set("Authorization", getAuthHeader(user))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, httpReq)
	if resp.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for unknown format, got %d", resp.Code)
	}
}
