package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/linkshelf/pkg/linkshelf/auth"
	"github.com/mikepea/linkshelf/pkg/linkshelf/config"
	"github.com/mikepea/linkshelf/pkg/linkshelf/database"
	"github.com/mikepea/linkshelf/pkg/linkshelf/errx"
	"github.com/mikepea/linkshelf/pkg/linkshelf/httpclient"
	"github.com/mikepea/linkshelf/pkg/linkshelf/models"
	"github.com/mikepea/linkshelf/pkg/linkshelf/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupTestServer(t *testing.T) (*httptest.Server, *gorm.DB) {
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Database: config.DatabaseConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "cli.db")},
		Auth:     config.AuthConfig{JWTSecret: "test-secret-at-least-16-chars", TokenTTL: time.Hour},
		Resolver: config.ResolverConfig{Timeout: 2 * time.Second, Concurrency: 2, UserAgent: "linkshelf-test", AllowPrivate: true},
	}
	db, err := database.Open(cfg.Database, nil)
	require.NoError(t, err)
	require.NoError(t, models.AutoMigrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	hash, err := auth.HashPassword("changeme")
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.User{
		Email: "admin@example.com", PasswordHash: hash, Name: "Admin", SystemRole: models.SystemRoleAdmin,
	}).Error)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := httptest.NewServer(server.NewRouter(cfg, db, logger))
	t.Cleanup(srv.Close)
	return srv, db
}

// run executes the CLI and returns stdout, stderr and the error.
func run(t *testing.T, srv *httptest.Server, token string, args ...string) (string, string, error) {
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs(append([]string{"--server", srv.URL, "--token", token}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func loginToken(t *testing.T, srv *httptest.Server) string {
	out, _, err := run(t, srv, "", "login", "--email", "admin@example.com", "--password", "changeme")
	require.NoError(t, err)
	token := strings.TrimSpace(out)
	require.NotEmpty(t, token)
	return token
}

func writeFile(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "topics.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoginWithWrongPassword(t *testing.T) {
	srv, _ := setupTestServer(t)

	_, errOut, err := run(t, srv, "", "login", "--email", "admin@example.com", "--password", "nope")
	require.Error(t, err)
	assert.Equal(t, "Invalid email or password", httpclient.ServerMessage(err))
	assert.Contains(t, errOut, "HTTP error! status: 401")
}

func TestTopicsApplyListGetDelete(t *testing.T) {
	srv, db := setupTestServer(t)
	token := loginToken(t, srv)

	file := writeFile(t, `
- name: Go
  description: Language links
  urls:
    - url: https://go.dev
      title: Go
      tags: [golang]
    - title: Notes without a link
- name: Rust
  urls: []
`)
	out, _, err := run(t, srv, token, "topics", "apply", "-f", file)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "Topic created"))

	out, _, err = run(t, srv, token, "topics", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Go")
	assert.Contains(t, out, "Rust")
	assert.Contains(t, out, "2 of 2 topics")

	var goTopic models.Topic
	require.NoError(t, db.Where("name = ?", "Go").First(&goTopic).Error)

	out, _, err = run(t, srv, token, "topics", "get", goTopic.ID)
	require.NoError(t, err)
	docs, err := readDocuments(strings.NewReader(out))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Len(t, docs[0].URLs, 2)
	assert.Equal(t, goTopic.ID, docs[0].ID)

	// Round trip: rename the second bookmark and apply the edited document.
	edited := strings.Replace(out, "Notes without a link", "Renamed notes", 1)
	out, _, err = run(t, srv, token, "topics", "apply", "-f", writeFile(t, edited))
	require.NoError(t, err)
	assert.Contains(t, out, "Topic updated")

	var titles []string
	db.Model(&models.URL{}).Where("topic_id = ?", goTopic.ID).Order("position").Pluck("title", &titles)
	assert.Equal(t, []string{"Go", "Renamed notes"}, titles)

	out, _, err = run(t, srv, token, "topics", "delete", goTopic.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "Topic deleted")

	_, errOut, err := run(t, srv, token, "topics", "get", goTopic.ID)
	require.Error(t, err)
	assert.Equal(t, "Topic not found", httpclient.ServerMessage(err))
	assert.Contains(t, errOut, "HTTP error! status: 404")
}

func TestSoftwareList(t *testing.T) {
	srv, db := setupTestServer(t)
	token := loginToken(t, srv)

	editors := models.Category{Name: "Editors"}
	require.NoError(t, db.Create(&editors).Error)
	oss := models.Tag{Name: "open-source"}
	require.NoError(t, db.Create(&oss).Error)
	require.NoError(t, db.Create(&models.Software{
		Name: "Neovim", Website: "https://neovim.io", CategoryID: editors.ID, Tags: []models.Tag{oss},
	}).Error)
	require.NoError(t, db.Create(&models.Software{
		Name: "Sublime Text", Website: "https://sublimetext.com", CategoryID: editors.ID,
	}).Error)

	out, _, err := run(t, srv, token, "software", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Neovim")
	assert.Contains(t, out, "Sublime Text")
	assert.Contains(t, out, "2 of 2 entries")

	out, _, err = run(t, srv, token, "software", "list", "--tags", fmt.Sprint(oss.ID))
	require.NoError(t, err)
	assert.Contains(t, out, "Neovim")
	assert.NotContains(t, out, "Sublime Text")
}

func TestResolve(t *testing.T) {
	srv, _ := setupTestServer(t)
	token := loginToken(t, srv)

	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, `<html><head><title>Home Page</title></head></html>`)
	}))
	defer site.Close()

	out, _, err := run(t, srv, token, "resolve", site.URL+"/", site.URL+"/gone")
	require.NoError(t, err)
	assert.Contains(t, out, "Home Page")
	assert.Contains(t, out, "error: HTTP error! status: 404")
}

func TestRequiresToken(t *testing.T) {
	srv, _ := setupTestServer(t)

	_, _, err := run(t, srv, "", "topics", "list")
	require.Error(t, err)
	assert.Equal(t, errx.Transport, errx.KindOf(err))
	assert.Equal(t, http.StatusUnauthorized, httpclient.StatusCode(err))
}

func TestReadDocuments(t *testing.T) {
	docs, err := readDocuments(strings.NewReader(`
name: One
urls:
  - title: First
---
- name: Two
- name: Three
`))
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "One", docs[0].Name)
	assert.Equal(t, "First", docs[0].URLs[0].Title)
	assert.Equal(t, "Three", docs[2].Name)

	_, err = readDocuments(strings.NewReader("just a string"))
	assert.Error(t, err)

	_, err = readDocuments(strings.NewReader(""))
	assert.Error(t, err)
}
