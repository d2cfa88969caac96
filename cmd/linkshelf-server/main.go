package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/linkshelf/pkg/linkshelf/auth"
	"github.com/mikepea/linkshelf/pkg/linkshelf/config"
	"github.com/mikepea/linkshelf/pkg/linkshelf/database"
	"github.com/mikepea/linkshelf/pkg/linkshelf/logging"
	"github.com/mikepea/linkshelf/pkg/linkshelf/models"
	"github.com/mikepea/linkshelf/pkg/linkshelf/server"
	"gorm.io/gorm"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	level := logging.ParseLevel(cfg.Log.Level)
	logger := logging.New(logging.ParseFormat(cfg.Log.Format), level, os.Stderr)
	slog.SetDefault(logger)
	if level > slog.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Open(cfg.Database, logging.GormLogger(logger, level))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := models.AutoMigrate(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	logger.Info("database migrations completed", "driver", cfg.Database.Driver)

	// Create default admin user if no admin exists
	if err := ensureAdminExists(db, cfg.Auth, logger); err != nil {
		return fmt.Errorf("failed to ensure admin user exists: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.NewHTTPServer(cfg.Server, server.NewRouter(cfg, db, logger))
	return server.Run(ctx, srv, cfg.Server.ShutdownTimeout, logger)
}

// ensureAdminExists creates the configured admin user if no admin exists in
// the database.
func ensureAdminExists(db *gorm.DB, cfg config.AuthConfig, logger *slog.Logger) error {
	var count int64
	if err := db.Model(&models.User{}).Where("system_role = ?", models.SystemRoleAdmin).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hashedPassword, err := auth.HashPassword(cfg.AdminPassword)
	if err != nil {
		return err
	}

	adminUser := models.User{
		Email:        cfg.AdminEmail,
		Name:         "Admin",
		PasswordHash: hashedPassword,
		SystemRole:   models.SystemRoleAdmin,
	}
	if err := db.Create(&adminUser).Error; err != nil {
		return err
	}

	logger.Warn("created default admin user, change its password", "email", adminUser.Email)
	return nil
}
