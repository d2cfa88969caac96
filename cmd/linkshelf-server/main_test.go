package main

import (
	"io"
	"log/slog"
	"testing"

	"github.com/mikepea/linkshelf/pkg/linkshelf/auth"
	"github.com/mikepea/linkshelf/pkg/linkshelf/config"
	"github.com/mikepea/linkshelf/pkg/linkshelf/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestEnsureAdminExists(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}

	cfg := config.AuthConfig{AdminEmail: "root@example.com", AdminPassword: "s3cret-pass"}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	for i := 0; i < 2; i++ {
		if err := ensureAdminExists(db, cfg, logger); err != nil {
			t.Fatalf("ensureAdminExists failed: %v", err)
		}
	}

	var admins []models.User
	db.Where("system_role = ?", models.SystemRoleAdmin).Find(&admins)
	if len(admins) != 1 {
		t.Fatalf("Expected exactly 1 admin, got %d", len(admins))
	}
	if admins[0].Email != "root@example.com" {
		t.Errorf("Expected admin email root@example.com, got %s", admins[0].Email)
	}
	if !auth.CheckPassword("s3cret-pass", admins[0].PasswordHash) {
		t.Error("Expected admin password to match the configured one")
	}
}
