// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer — it connects handlers, middleware,
// and routes. It is the composition root: every dependency is constructed
// here (or in main.go) and injected downwards:
//
//	sqlite.DB → repositories → services → handlers → routes
//
// WHY SEPARATE FROM main.go?
// Keeping server setup in its own package makes it testable (a test server
// without running main) and keeps main.go minimal.
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

	"github.com/mahir/carmarket/internal/auth"
	"github.com/mahir/carmarket/internal/config"
	"github.com/mahir/carmarket/internal/handler"
	"github.com/mahir/carmarket/internal/media"
	"github.com/mahir/carmarket/internal/middleware"
	sqliteRepo "github.com/mahir/carmarket/internal/repository/sqlite"
	"github.com/mahir/carmarket/internal/service"
	"github.com/mahir/carmarket/internal/upload"
)

// The services must satisfy the handler-side interfaces.
var (
	_ handler.AuthProvider     = (*service.AuthService)(nil)
	_ handler.CarProvider      = (*service.CarService)(nil)
	_ handler.IDTokenVerifier  = (*auth.GoogleVerifier)(nil)
	_ handler.CodeFlowProvider = (*auth.GoogleProvider)(nil)
)

// Server holds the HTTP server and the resources it owns.
//
// RESOURCE MANAGEMENT:
// The Server owns the database connection and the rate limiter's cleanup
// goroutine; both are released during graceful shutdown in Start.
type Server struct {
	router  *chi.Mux
	config  *config.Config
	logger  *slog.Logger
	db      *sqliteRepo.DB
	limiter *middleware.RateLimiter
}

// New assembles the full dependency graph and the route table.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		logger:  logger,
		db:      db,
		limiter: middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig()),
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		s.limiter.Stop()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// setupRoutes wires middleware, dependencies, and the /api/v1 surface.
//
// ROUTE STRUCTURE:
//
//	GET    /health                          → liveness
//	POST   /api/v1/auth/signup              → local account          [rate limited]
//	POST   /api/v1/auth/signin              → local sign-in          [rate limited]
//	POST   /api/v1/auth/google              → Google ID-token path   [rate limited]
//	GET    /api/v1/auth/google/login        → browser OAuth start    [rate limited]
//	GET    /api/v1/auth/google/callback     → browser OAuth finish   [rate limited]
//	POST   /api/v1/auth/logout              → clear the session
//	POST   /api/v1/users/is-exists          → pre-signup email check
//	GET    /api/v1/users/info               → own profile            [auth]
//	GET    /api/v1/users/cars               → own listings           [auth]
//	POST   /api/v1/cars/create              → create listing         [auth]
//	GET    /api/v1/cars/query/search        → keyword search         [auth]
//	GET    /api/v1/cars/{id}                → fetch one listing      [auth]
//	PUT    /api/v1/cars/{id}                → partial update         [auth]
//	DELETE /api/v1/cars/{id}                → delete listing         [auth]
//
// MIDDLEWARE ORDER MATTERS:
// RequestID and RealIP run first so the logger and the rate limiter see
// them; Recoverer turns panics into 500s before the logger records the
// status; CORS wraps everything so even error responses carry the headers.
func (s *Server) setupRoutes() error {
	handler.SetEnvironment(s.config.Environment)

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(middleware.CORS(s.config.ClientOrigin))

	// === SHARED SERVICES ===
	tokens, err := auth.NewTokenService(s.config.JWTSecret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	passwords := auth.NewPasswordService()

	uploader, err := media.NewCloudinaryUploader(
		s.config.CloudinaryCloudName,
		s.config.CloudinaryAPIKey,
		s.config.CloudinaryAPISecret,
		s.config.CloudinaryFolder,
	)
	if err != nil {
		return fmt.Errorf("creating media uploader: %w", err)
	}

	staging, err := upload.NewStaging(s.config.UploadDir, s.logger)
	if err != nil {
		return fmt.Errorf("creating upload staging: %w", err)
	}

	verifier := auth.NewGoogleVerifier(s.config.GoogleClientID)
	google := auth.NewGoogleProvider(
		s.config.GoogleClientID,
		s.config.GoogleClientSecret,
		s.config.GoogleCallbackURL,
	)

	authService := service.NewAuthService(s.db.Users(), tokens, passwords, s.logger)
	carService := service.NewCarService(s.db.Cars(), uploader, s.logger)

	authHandler := handler.NewAuthHandler(authService, verifier, google, s.config.ClientOrigin, s.logger)
	carHandler := handler.NewCarHandler(carService, staging, s.logger)
	userHandler := handler.NewUserHandler(authService, carService)

	// === ROUTES ===
	s.router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	requireAuth := auth.RequireAuth(tokens)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			// Credential endpoints are the brute-force surface.
			r.Group(func(r chi.Router) {
				r.Use(s.limiter.Middleware())
				r.Post("/signup", authHandler.HandleSignup)
				r.Post("/signin", authHandler.HandleSignin)
				r.Post("/google", authHandler.HandleGoogleToken)
				r.Get("/google/login", authHandler.HandleGoogleLogin)
				r.Get("/google/callback", authHandler.HandleGoogleCallback)
			})
			r.Post("/logout", authHandler.HandleLogout)
		})

		r.Route("/users", func(r chi.Router) {
			r.Post("/is-exists", userHandler.HandleIsExists)
			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Get("/info", userHandler.HandleGetInfo)
				r.Get("/cars", userHandler.HandleGetCars)
			})
		})

		r.Route("/cars", func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/create", carHandler.HandleCreate)
			r.Get("/query/search", carHandler.HandleSearch)
			r.Get("/{id}", carHandler.HandleGet)
			r.Put("/{id}", carHandler.HandleUpdate)
			r.Delete("/{id}", carHandler.HandleDelete)
		})
	})

	return nil
}

// Start runs the server until SIGINT/SIGTERM, then shuts down gracefully:
// stop accepting connections, drain in-flight requests (30s), stop the
// rate limiter, close the database (flushes WAL, releases the file lock).
func (s *Server) Start() error {
	defer s.db.Close()
	defer s.limiter.Stop()

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
			slog.String("environment", s.config.Environment),
			slog.String("database", s.config.DBPath),
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
