// Package server wires handlers, middleware, and routes, and owns the
// HTTP server lifecycle. It is the composition root: every dependency
// chain (repository, service, handler) is assembled in New, so main.go
// stays minimal and the whole stack can be built in tests.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/nabil/devstash/internal/auth"
	"github.com/nabil/devstash/internal/blob"
	"github.com/nabil/devstash/internal/config"
	"github.com/nabil/devstash/internal/handler"
	"github.com/nabil/devstash/internal/middleware"
	"github.com/nabil/devstash/internal/query"
	sqliteRepo "github.com/nabil/devstash/internal/repository/sqlite"
	"github.com/nabil/devstash/internal/service"
)

// Server holds the router and the resources it must release on
// shutdown: the database connection and the rate limiter's cleanup
// goroutine.
type Server struct {
	router  *chi.Mux
	cfg     *config.Config
	logger  *slog.Logger
	db      *sqliteRepo.DB
	limiter *middleware.RateLimiter
}

// New assembles the full dependency chain and returns a server ready
// to start. Each layer receives only what it needs: services get
// repository interfaces, handlers get services.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router:  chi.NewRouter(),
		cfg:     cfg,
		logger:  logger,
		db:      db,
		limiter: middleware.NewRateLimiter(cfg.RateLimit, cfg.RateBurst),
	}

	if err := s.setupRoutes(); err != nil {
		s.limiter.Stop()
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() error {
	// Global middleware, in order: request ID for tracing, RealIP so
	// the rate limiter keys on the real client behind a proxy, panic
	// recovery, request logging, then rate limiting. The limiter sits
	// before authentication so unauthenticated abuse is throttled too.
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(s.limiter.Middleware(s.logger))

	tokens, err := auth.NewTokenService(s.cfg.JWTSecret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	passwords := auth.NewPasswordService()

	store, fsStore, err := s.newBlobStore()
	if err != nil {
		return err
	}

	itemRepo := sqliteRepo.NewItemRepo(s.db)
	projectRepo := sqliteRepo.NewProjectRepo(s.db)
	userRepo := sqliteRepo.NewUserRepo(s.db)
	backupRepo := sqliteRepo.NewBackupRepo(s.db)

	itemCache := service.NewItemCache()
	lister := query.NewFallbackLister(itemRepo, s.logger)

	itemService := service.NewItemService(itemRepo, lister, itemCache, s.logger)
	projectService := service.NewProjectService(projectRepo, itemCache, s.logger)
	authService := service.NewAuthService(userRepo, passwords, tokens, s.logger)
	userService := service.NewUserService(userRepo, store, s.logger)
	backupService := service.NewBackupService(itemRepo, projectRepo, userRepo, backupRepo, store, itemCache, s.logger)

	var github *auth.GitHubProvider
	if s.cfg.GitHubEnabled() {
		github = auth.NewGitHubProvider(s.cfg.GitHubClientID, s.cfg.GitHubClientSecret, s.cfg.GitHubCallbackURL)
	}

	itemHandler := handler.NewItemHandler(itemService, s.logger)
	projectHandler := handler.NewProjectHandler(projectService, s.logger)
	authHandler := handler.NewAuthHandler(authService, github, s.logger)
	profileHandler := handler.NewProfileHandler(userService, s.logger)
	adminHandler := handler.NewAdminHandler(userService, s.logger)
	backupHandler := handler.NewBackupHandler(backupService, s.logger)

	s.router.Route("/api/auth", func(r chi.Router) {
		r.Post("/signup", authHandler.HandleSignUp)
		r.Post("/signin", authHandler.HandleSignIn)
		r.Post("/signout", authHandler.HandleSignOut)
		r.Post("/reset-request", authHandler.HandleResetRequest)
		r.Post("/reset", authHandler.HandleReset)
	})

	if github != nil {
		s.router.Get("/auth/github/login", authHandler.HandleGitHubLogin)
		s.router.Get("/auth/github/callback", authHandler.HandleGitHubCallback)
	} else {
		s.logger.Warn("GitHub OAuth not configured, login routes disabled")
	}

	s.router.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(tokens))

		r.Route("/api/{collection:snippets|notes|checklists}", func(r chi.Router) {
			r.Get("/", itemHandler.HandleList)
			r.Post("/", itemHandler.HandleCreate)
			r.Get("/{id}", itemHandler.HandleGet)
			r.Put("/{id}", itemHandler.HandleUpdate)
			r.Delete("/{id}", itemHandler.HandleDelete)
		})
		r.Get("/api/tags/{tag}", itemHandler.HandleListByTag)

		r.Route("/api/projects", func(r chi.Router) {
			r.Get("/", projectHandler.HandleList)
			r.Post("/", projectHandler.HandleCreate)
			r.Get("/{id}", projectHandler.HandleGet)
			r.Put("/{id}", projectHandler.HandleUpdate)
			r.Delete("/{id}", projectHandler.HandleDelete)
		})

		r.Route("/api/profile", func(r chi.Router) {
			r.Get("/", profileHandler.HandleGet)
			r.Put("/", profileHandler.HandleUpdate)
			r.Post("/picture", profileHandler.HandlePicture)
		})

		r.Route("/api/backups", func(r chi.Router) {
			r.Get("/", backupHandler.HandleList)
			r.Post("/", backupHandler.HandleExport)
			r.Post("/import", backupHandler.HandleImport)
		})

		r.Route("/api/admin/users", func(r chi.Router) {
			r.Use(adminHandler.RequireAdmin)
			r.Get("/", adminHandler.HandleList)
			r.Get("/{id}", adminHandler.HandleGet)
			r.Put("/{id}/role", adminHandler.HandleSetRole)
			r.Put("/{id}/premium", adminHandler.HandleGrantPremium)
			r.Delete("/{id}", adminHandler.HandleDelete)
		})

		// Uploaded files are only served directly when stored on the
		// local filesystem; S3 objects are reached through presigned
		// URLs. The route stays inside the authenticated group because
		// backup archives hold a user's entire dataset.
		if fsStore != nil {
			filesHandler := handler.NewFilesHandler(fsStore)
			r.Get("/files/*", filesHandler.HandleGet)
		}
	})

	return nil
}

// newBlobStore builds the configured blob store. The second return is
// non-nil only for local storage, where the /files routes are mounted.
func (s *Server) newBlobStore() (blob.Store, *blob.FS, error) {
	switch s.cfg.Storage {
	case config.StorageS3:
		store, err := blob.NewS3(context.Background(), blob.S3Config{
			Region:       s.cfg.S3Region,
			Bucket:       s.cfg.S3Bucket,
			AccessKey:    s.cfg.S3AccessKey,
			SecretKey:    s.cfg.S3SecretKey,
			BaseEndpoint: s.cfg.S3BaseEndpoint,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("creating S3 store: %w", err)
		}
		return store, nil, nil
	default:
		store, err := blob.NewFS(s.cfg.FilesDir, "/files")
		if err != nil {
			return nil, nil, fmt.Errorf("creating file store: %w", err)
		}
		return store, store, nil
	}
}

// Start runs the HTTP server until SIGINT or SIGTERM, then drains
// in-flight requests, stops the rate limiter, and closes the database.
func (s *Server) Start() error {
	defer s.db.Close()
	defer s.limiter.Stop()

	srv := &http.Server{
		Addr:         s.cfg.Address(),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.cfg.Port),
			slog.String("database", s.cfg.DatabasePath),
			slog.String("storage", s.cfg.Storage),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
