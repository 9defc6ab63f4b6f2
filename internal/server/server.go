// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the wiring layer. It connects handlers, middleware and
// routes, and decides:
//   - which URL patterns map to which handler functions
//   - which middleware runs on which route group
//   - how the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
//
//	config.Config → sqlite.DB ─┬→ session.Store ─────────────→ auth.LoadUser
//	                           ├→ Todo/Category/AdminService → handlers
//	http.Client (timeout) → GitHub/Auth0 providers → auth.Gateway
//
// This is the "composition root" pattern: all dependencies are built in New,
// rather than scattered across the codebase.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/securecookie"

	"github.com/sakif/todo-app/internal/auth"
	"github.com/sakif/todo-app/internal/config"
	"github.com/sakif/todo-app/internal/handler"
	"github.com/sakif/todo-app/internal/middleware"
	sqliteRepo "github.com/sakif/todo-app/internal/repository/sqlite"
	"github.com/sakif/todo-app/internal/service"
	"github.com/sakif/todo-app/internal/session"
	"github.com/sakif/todo-app/web"
)

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database connection. Start closes it after the HTTP
// server has drained; callers that never Start must call Close.
type Server struct {
	router *chi.Mux
	config config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// Option customizes New.
type Option func(*options)

type options struct {
	env       auth.EnvironmentSource
	providers []auth.LoginProvider
	replace   bool
}

// WithEnvironment replaces the per-request deployment environment source.
func WithEnvironment(env auth.EnvironmentSource) Option {
	return func(o *options) { o.env = env }
}

// WithProviders registers exactly these login providers instead of the ones
// built from the configuration.
func WithProviders(providers ...auth.LoginProvider) Option {
	return func(o *options) {
		o.providers = providers
		o.replace = true
	}
}

// New opens the database and wires every component.
//
// Each layer only receives what it needs:
//   - services get repository interfaces (not the concrete sqlite.DB)
//   - handlers get services (not repositories)
//   - the session store gets the SessionRepository half of the DB
//
// IMPORT ALIAS:
// repository/sqlite is imported as sqliteRepo so it never reads like the
// modernc.org/sqlite driver.
func New(cfg config.Config, logger *slog.Logger, opts ...Option) (*Server, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	// === DATABASE ===
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
	if err := s.setupRoutes(o); err != nil {
		db.Close() // Clean up DB if route setup fails
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database.
func (s *Server) Close() error {
	return s.db.Close()
}

// setupRoutes builds the component graph and registers routes.
//
// ROUTE STRUCTURE:
//
//	GET  /login, /logout                 → pick provider by environment
//	GET  /login/{github,auth0}           → start OAuth flow
//	GET  /login/github/authorized        → GitHub callback
//	GET  /callback                       → Auth0 callback
//	GET  /logout/{github,auth0}          → wipe session, provider logout
//	GET  /                               → todo list (or login page)
//	POST /add                            → create todo
//	GET  /toggle/{id}, /delete/{id}      → silent per-todo actions
//	GET  /api/                           → OpenAPI description
//	     /api/...                        → JSON API (rate limited)
//	     /admin/...                      → admin panel (login required)
//
// MIDDLEWARE ORDER MATTERS:
// Middleware executes in the order it is added:
//  1. RequestID: assigns a unique id to each request (for tracing)
//  2. RealIP: extracts the client IP from proxy headers (TRUST_PROXY_HEADERS only)
//  3. Logger: logs each request with timing info and the request id
//  4. Recoverer: catches panics and returns 500 instead of crashing
//  5. LoadUser: resolves session and current user once per request
func (s *Server) setupRoutes(o options) error {
	cfg := s.config

	// === SESSIONS ===
	secret := []byte(cfg.SessionSecret)
	if len(secret) == 0 {
		// Sessions will not survive a restart.
		s.logger.Warn("APP_SECRET_KEY not set; using a random session secret")
		secret = securecookie.GenerateRandomKey(32)
	}
	store, err := session.NewStore(s.db, secret, session.Options{
		MaxAge: cfg.SessionMaxAge,
		Secure: cfg.SecureCookies,
	})
	if err != nil {
		return fmt.Errorf("creating session store: %w", err)
	}
	if n, err := s.db.PurgeExpiredSessions(context.Background()); err != nil {
		s.logger.Warn("purging expired sessions", slog.String("error", err.Error()))
	} else if n > 0 {
		s.logger.Info("purged expired sessions", slog.Int64("count", n))
	}

	// === AUTH ===
	providers := o.providers
	if !o.replace {
		providers = configuredProviders(cfg, s.logger)
	}
	gw := auth.NewGateway(o.env, s.logger, providers...)

	var tokens *auth.TokenService
	if cfg.JWTSecret != "" {
		tokens, err = auth.NewTokenService(cfg.JWTSecret, cfg.JWTTTL)
		if err != nil {
			return fmt.Errorf("creating token service: %w", err)
		}
	}

	// === SERVICES ===
	todoService := service.NewTodoService(s.db, s.db, s.logger)
	categoryService := service.NewCategoryService(s.db, s.logger)
	adminService := service.NewAdminService(s.db, s.db, s.logger)

	// A fresh database gets Urgent and Non-urgent before the first request.
	if _, err := categoryService.SeedDefaults(context.Background()); err != nil {
		return fmt.Errorf("seeding categories: %w", err)
	}

	// === HANDLERS ===
	renderer, err := handler.NewRenderer(web.Templates, handler.Site{
		Name:              cfg.SiteName,
		ControllerName:    cfg.SiteControllerName,
		ControllerAddress: cfg.SiteControllerAddress,
		ControllerURL:     cfg.SiteControllerURL,
	}, gw, s.logger)
	if err != nil {
		return err
	}
	authHandler := handler.NewAuthHandler(gw, tokens, renderer, s.logger)
	webHandler := handler.NewWebHandler(todoService, categoryService, renderer, s.logger)
	apiHandler := handler.NewAPIHandler(todoService, categoryService, s.logger)
	adminHandler := handler.NewAdminHandler(adminService, categoryService, renderer, s.logger)

	// === Global Middleware ===
	s.router.Use(chimiddleware.RequestID)
	if cfg.TrustProxyHeaders {
		s.router.Use(chimiddleware.RealIP)
	}
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(auth.LoadUser(store, gw, s.logger))

	// === Auth Routes ===
	s.router.Get("/login", authHandler.HandleLogin)
	s.router.Get("/logout", authHandler.HandleLogout)
	for _, p := range gw.Providers() {
		s.router.Get("/login/"+p.Name(), authHandler.ProviderLogin(p))
		s.router.Get("/logout/"+p.Name(), authHandler.ProviderLogout(p))
		s.router.Get(callbackPath(p.Name()), authHandler.ProviderCallback(p))
	}

	// === Page Routes ===
	s.router.Get("/", webHandler.HandleHome)
	s.router.Post("/add", webHandler.HandleAdd)
	s.router.Get("/toggle/{id:[0-9]+}", webHandler.HandleToggle)
	s.router.Get("/delete/{id:[0-9]+}", webHandler.HandleDelete)

	// === API Routes ===
	limiter := middleware.NewRateLimiter(cfg.APIRateLimit, cfg.APIRateBurst, s.logger)
	s.router.Route("/api", func(r chi.Router) {
		r.Use(limiter.Middleware)

		r.Get("/", handler.OpenAPIDocument(web.OpenAPI))
		r.Get("/categories", apiHandler.HandleListCategories)
		if tokens != nil {
			r.Post("/token", authHandler.HandleToken)
		}

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAPIUser(tokens))
			r.Get("/todos", apiHandler.HandleListTodos)
			r.Post("/todos", apiHandler.HandleCreateTodo)
			r.Get("/todos/{id:[0-9]+}", apiHandler.HandleGetTodo)
			r.Put("/todos/{id:[0-9]+}", apiHandler.HandleUpdateTodo)
			r.Delete("/todos/{id:[0-9]+}", apiHandler.HandleDeleteTodo)
		})
	})

	// === Admin Routes ===
	s.router.Route("/admin", func(r chi.Router) {
		r.Use(auth.RequireUser)

		r.Get("/", adminHandler.HandleIndex)

		r.Get("/todos", adminHandler.HandleListTodos)
		r.Get("/todos/new", adminHandler.HandleNewTodo)
		r.Post("/todos", adminHandler.HandleCreateTodo)
		r.Get("/todos/{id:[0-9]+}/edit", adminHandler.HandleEditTodo)
		r.Post("/todos/{id:[0-9]+}", adminHandler.HandleUpdateTodo)
		r.Post("/todos/{id:[0-9]+}/delete", adminHandler.HandleDeleteTodo)

		r.Get("/categories", adminHandler.HandleListCategories)
		r.Get("/categories/new", adminHandler.HandleNewCategory)
		r.Post("/categories", adminHandler.HandleCreateCategory)
		r.Get("/categories/{id:[0-9]+}/edit", adminHandler.HandleEditCategory)
		r.Post("/categories/{id:[0-9]+}", adminHandler.HandleUpdateCategory)
		r.Post("/categories/{id:[0-9]+}/delete", adminHandler.HandleDeleteCategory)
	})

	return nil
}

// configuredProviders builds the providers whose credentials are set, in
// lookup order. Both share one client so the upstream timeout applies to
// every token exchange and profile fetch.
func configuredProviders(cfg config.Config, logger *slog.Logger) []auth.LoginProvider {
	client := &http.Client{Timeout: cfg.OAuthTimeout}

	var providers []auth.LoginProvider
	if cfg.GitHub.Enabled() {
		providers = append(providers, auth.NewGitHubProvider(cfg.GitHub, client))
	} else {
		logger.Info("GitHub login disabled: GITHUB_CLIENT_ID not set")
	}
	if cfg.Auth0.Enabled() {
		providers = append(providers, auth.NewAuth0Provider(cfg.Auth0, client))
	} else {
		logger.Info("Auth0 login disabled: AUTH0_DOMAIN not set")
	}
	return providers
}

// callbackPath is where each provider redirects back to.
func callbackPath(provider string) string {
	if provider == auth.ProviderAuth0 {
		return "/callback"
	}
	return "/login/" + provider + "/authorized"
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new HTTP connections
//  2. Wait for in-flight requests to finish (30s timeout)
//  3. Close the database connection (flushes WAL, releases file lock)
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15*time.Second + s.config.OAuthTimeout,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
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
