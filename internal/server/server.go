// Package server sets up the HTTP server, router, and all route definitions.
//
// This is the composition root: every dependency is constructed and wired
// here, in one place. main.go only loads config and calls New/Start.
//
// DEPENDENCY CHAIN:
//
//	sqlite.DB → implements repository.UserRepository
//	AuthService receives the repository interface plus the token and
//	password services
//	Handlers receive the AuthService and the OAuth providers
//
// Handlers never touch the database; the service never touches HTTP.
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
	"github.com/go-chi/cors"

	"github.com/sakif/influmatch/internal/auth"
	"github.com/sakif/influmatch/internal/config"
	"github.com/sakif/influmatch/internal/handler"
	"github.com/sakif/influmatch/internal/middleware"
	sqliteRepo "github.com/sakif/influmatch/internal/repository/sqlite"
	"github.com/sakif/influmatch/internal/service"
)

// Server owns the router, the database connection, and their lifecycle.
// The database is closed during graceful shutdown so the WAL is flushed
// and the file lock released.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New assembles the full dependency chain and registers all routes.
//
// The context is used for Google's OIDC discovery, which fetches the
// provider metadata document over the network once at startup.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET    /                                → health check
//	POST   /auth/register                   → create local account
//	POST   /auth/login                      → local login
//	GET    /auth/google                     → start Google sign-in
//	GET    /auth/google/callback            → finish Google sign-in
//	GET    /api/me                          → current user          (auth)
//	GET    /api/connect/youtube             → start YouTube connect  (auth)
//	GET    /api/connect/youtube/callback    → finish YouTube connect
//	GET    /api/connect/instagram           → start Instagram connect (auth)
//	GET    /api/connect/instagram/callback  → finish Instagram connect
//	DELETE /api/connect/{provider}          → remove a provider link (auth)
//
// The connect callbacks are not behind RequireAuth: the browser arrives
// there from the provider's redirect, so the initiating user is carried by
// the signed state cookie instead of a bearer token.
func (s *Server) setupRoutes(ctx context.Context) error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.RequestLogger(s.logger))

	// The SPA runs on its own origin in every deployment, so CORS is
	// unconditional. Credentials are allowed for the state cookie.
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{s.config.FrontendURL},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	tokens, err := auth.NewTokenService(s.config.JWTSecret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	states, err := auth.NewFlowStateService(s.config.JWTSecret)
	if err != nil {
		return fmt.Errorf("creating flow state service: %w", err)
	}
	passwords := auth.NewPasswordService(s.config.BcryptCost)

	google, err := auth.NewGoogleProvider(ctx,
		s.config.Google.ClientID,
		s.config.Google.ClientSecret,
		s.config.Google.CallbackURL,
	)
	if err != nil {
		return fmt.Errorf("creating google provider: %w", err)
	}
	youtube := auth.NewYouTubeProvider(
		s.config.Google.ClientID,
		s.config.Google.ClientSecret,
		s.config.YouTubeCallbackURL,
	)
	instagram := auth.NewInstagramProvider(
		s.config.Instagram.ClientID,
		s.config.Instagram.ClientSecret,
		s.config.Instagram.CallbackURL,
	)

	authService := service.NewAuthService(s.db, tokens, passwords, s.logger)
	authHandler := handler.NewAuthHandler(authService, s.logger)
	oauthHandler := handler.NewOAuthHandler(
		google, youtube, instagram,
		states, authService,
		s.config.FrontendURL,
		s.config.SecureCookies,
		s.logger,
	)

	s.router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintln(w, "Influmatch API is running")
	})

	s.router.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.HandleRegister)
		r.Post("/login", authHandler.HandleLogin)
		r.Get("/google", oauthHandler.HandleGoogleSignIn)
		r.Get("/google/callback", oauthHandler.HandleGoogleCallback)
	})

	s.router.Route("/api", func(r chi.Router) {
		// Provider callbacks: state cookie carries the user.
		r.Get("/connect/youtube/callback", oauthHandler.HandleYouTubeCallback)
		r.Get("/connect/instagram/callback", oauthHandler.HandleInstagramCallback)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))
			r.Get("/me", authHandler.HandleMe)
			r.Get("/connect/youtube", oauthHandler.HandleYouTubeConnect)
			r.Get("/connect/instagram", oauthHandler.HandleInstagramConnect)
			r.Delete("/connect/{provider}", oauthHandler.HandleDisconnect)
		})
	})

	return nil
}

// Start runs the HTTP server until SIGINT/SIGTERM, then shuts down
// gracefully: stop accepting connections, give in-flight requests 30
// seconds, close the database.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         ":" + s.config.Port,
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
			slog.String("port", s.config.Port),
			slog.String("database", s.config.DBPath),
			slog.String("frontend", s.config.FrontendURL),
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

// Router exposes the configured router for tests.
func (s *Server) Router() http.Handler {
	return s.router
}
