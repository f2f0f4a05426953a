package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/esp-pix/authserver/config"
	"github.com/esp-pix/authserver/internal/auth"
	"github.com/esp-pix/authserver/internal/db"
	"github.com/esp-pix/authserver/internal/events"
	"github.com/esp-pix/authserver/internal/handlers"
	"github.com/esp-pix/authserver/internal/logging"
	"github.com/esp-pix/authserver/internal/mq"
	"github.com/esp-pix/authserver/internal/ratelimit"
	"github.com/esp-pix/authserver/internal/services"
	"github.com/esp-pix/authserver/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server wraps the HTTP server and the resources it owns.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	bus        *mq.MQ
}

// Deps are the collaborators the router is built from.
type Deps struct {
	DB     *sql.DB
	Events services.EventPublisher
	Config config.Config
	Logger *slog.Logger
}

// New opens the credential store and event bus and builds the router.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	dbConn, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	bus, err := mq.NewFromConfig(ctx, cfg)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}
	var publisher services.EventPublisher = events.Discard{}
	if bus != nil {
		publisher = events.NewBusPublisher(bus, cfg.Events.Channel)
	}

	router := NewRouter(Deps{DB: dbConn, Events: publisher, Config: cfg, Logger: logger})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		bus:        bus,
	}, nil
}

// NewRouter wires repositories, services and handlers onto a chi router.
func NewRouter(d Deps) *chi.Mux {
	userRepo := store.NewUserRepository(d.DB)
	sessionRepo := store.NewSessionRepository(d.DB)
	keyRepo := store.NewAPIKeyRepository(d.DB)

	hasher := auth.NewHasher(d.Config.Auth.BcryptCost)
	sessionManager := services.NewSessionManager(userRepo, sessionRepo, hasher, d.Events, d.Config.Auth)
	keyManager := services.NewAPIKeyManager(keyRepo, d.Events)
	userService := services.NewUserService(userRepo, hasher, d.Events)

	authHandler := handlers.NewAuthHandler(sessionManager, d.Config.Production())
	deviceHandler := handlers.NewDeviceHandler(keyManager)
	limiter := ratelimit.New(d.Config.Auth.RateLimitPerMinute)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		logging.RequestLogger(d.Logger),
		middleware.Recoverer,
		middleware.Timeout(60*time.Second),
		handlers.Boundary,
	)

	router.Get("/", handlers.Index)
	router.Get("/api/ping", handlers.Ping(d.DB))
	router.Get("/login", authHandler.LoginPage)
	router.With(limiter.Middleware).Post("/login", authHandler.Login)
	router.Post("/api/webhook", deviceHandler.Webhook)
	router.With(limiter.Middleware).Post("/api/auth/validate-key", deviceHandler.ValidateKey)

	router.Group(func(r chi.Router) {
		r.Use(deviceHandler.RequireAPIKey)
		r.Post("/api/create_payment", deviceHandler.NotImplemented)
		r.Get("/api/status", deviceHandler.NotImplemented)
		r.Get("/api/status/*", deviceHandler.NotImplemented)
	})

	router.With(authHandler.RequireSession).Post("/logout", authHandler.Logout)
	router.With(authHandler.RequireSession).Get("/api/session", authHandler.Session)
	router.Route("/api/users", func(r chi.Router) {
		handlers.UserRouter(r, userService, authHandler.RequireSession)
	})
	router.Route("/api/keys", func(r chi.Router) {
		handlers.KeyRouter(r, keyManager, authHandler.RequireSession)
	})

	return router
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, then releases the bus and the pool.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.bus != nil {
		err = errors.Join(err, s.bus.Close())
	}
	if s.db != nil {
		err = errors.Join(err, s.db.Close())
	}
	return err
}
