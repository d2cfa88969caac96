// Package server assembles the gin engine and the HTTP server around it.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/linkshelf/pkg/linkshelf/admin"
	"github.com/mikepea/linkshelf/pkg/linkshelf/apikeys"
	"github.com/mikepea/linkshelf/pkg/linkshelf/auth"
	"github.com/mikepea/linkshelf/pkg/linkshelf/categories"
	"github.com/mikepea/linkshelf/pkg/linkshelf/config"
	"github.com/mikepea/linkshelf/pkg/linkshelf/importexport"
	"github.com/mikepea/linkshelf/pkg/linkshelf/logging"
	"github.com/mikepea/linkshelf/pkg/linkshelf/management"
	"github.com/mikepea/linkshelf/pkg/linkshelf/resolve"
	"github.com/mikepea/linkshelf/pkg/linkshelf/tags"
	"github.com/mikepea/linkshelf/pkg/linkshelf/topics"
	"gorm.io/gorm"
)

// NewRouter wires every handler onto a fresh engine.
func NewRouter(cfg *config.Config, db *gorm.DB, logger *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(logging.Middleware(logger), gin.Recovery())

	health := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "linkshelf"})
	}
	r.GET("/health", health)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	resolver := resolve.New(cfg.Resolver)
	topicService := topics.NewService(db, resolver)

	api := r.Group("/api")
	{
		api.GET("/health", health)

		// Auth routes (public, /me accepts JWT or API key)
		combinedAuth := apikeys.CombinedAuthMiddleware(db, tokens)
		auth.NewHandler(db, tokens).RegisterRoutes(api.Group("/auth"), combinedAuth)

		// Protected routes (JWT or API key)
		protected := api.Group("", combinedAuth)
		topics.NewHandler(topicService).RegisterRoutes(protected)
		resolve.NewHandler(resolver).RegisterRoutes(protected)
		importexport.NewHandler(db, topicService).RegisterRoutes(protected)
		apikeys.NewHandler(db).RegisterRoutes(protected)

		categoriesHandler := categories.NewHandler(db)
		categoriesHandler.RegisterRoutes(protected)
		tagsHandler := tags.NewHandler(db)
		tagsHandler.RegisterRoutes(protected)

		// Catalog management (admin role required)
		managed := api.Group("", combinedAuth, auth.RequireAdmin())
		management.NewHandler(management.NewService(db)).RegisterRoutes(managed)
		categoriesHandler.RegisterAdminRoutes(managed)
		tagsHandler.RegisterAdminRoutes(managed)

		adminGroup := api.Group("/admin", combinedAuth, auth.RequireAdmin())
		admin.NewHandler(db).RegisterRoutes(adminGroup)
	}

	return r
}

// NewHTTPServer wraps handler with the configured address and timeouts.
func NewHTTPServer(cfg config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, srv *http.Server, shutdownTimeout time.Duration, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
