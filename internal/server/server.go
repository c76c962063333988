package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/worldview-app/apiserver/config"
	"github.com/worldview-app/apiserver/internal/auth"
	"github.com/worldview-app/apiserver/internal/cache"
	"github.com/worldview-app/apiserver/internal/countries"
	"github.com/worldview-app/apiserver/internal/db"
	"github.com/worldview-app/apiserver/internal/handlers"
	"github.com/worldview-app/apiserver/internal/mq"
	"github.com/worldview-app/apiserver/internal/services"
	"github.com/worldview-app/apiserver/internal/store"
)

const defaultPort = 5000

// The handler deadline stays below the write deadline so a slow handler
// still gets its 504 written before the connection is cut.
const (
	readTimeout    = 15 * time.Second
	writeTimeout   = 15 * time.Second
	idleTimeout    = 60 * time.Second
	requestTimeout = 10 * time.Second
)

// Dependencies are the collaborators the HTTP routes need.
type Dependencies struct {
	Accounts    *services.AccountService
	Favorites   *services.FavoritesService
	Tokens      handlers.TokenCodec
	Countries   handlers.CountrySource
	Cookie      handlers.SessionCookie
	CORSOrigins []string
	Logger      *slog.Logger
}

// NewRouter mounts every route with the standard middleware stack.
func NewRouter(deps Dependencies) *chi.Mux {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		requestLogger(logger),
		middleware.Recoverer,
		requestMetrics,
		corsHandler(deps.CORSOrigins),
		middleware.Timeout(requestTimeout),
	)
	router.NotFound(handlers.NotFound)
	router.Get("/", handlers.Root)
	router.Get("/healthz", handlers.Healthz)
	router.Handle("/metrics", promhttp.Handler())

	router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			handlers.AuthRouter(r, deps.Accounts, deps.Tokens, deps.Cookie, logger)
		})
		r.Route("/favorites", func(r chi.Router) {
			session := handlers.RequireSession(deps.Tokens, deps.Cookie.Name)
			handlers.FavoritesRouter(r, deps.Favorites, deps.Countries, session, logger)
		})
		r.Route("/countries", func(r chi.Router) {
			handlers.CountriesRouter(r, deps.Countries, logger)
		})
	})
	return router
}

// Server wraps the HTTP server and the resources it owns.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	closers    []func() error
	logger     *slog.Logger
}

// New wires storage, cache, messaging and routes from cfg.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	if cfg.Session.Secret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	dbConn, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	s := &Server{db: dbConn, logger: logger}

	responseCache, err := NewCache(ctx, cfg.Cache, logger)
	if err != nil {
		_ = s.close()
		return nil, err
	}
	if closer, ok := responseCache.(interface{ Close() error }); ok {
		s.closers = append(s.closers, closer.Close)
	}

	publisher, err := s.openEvents(ctx, cfg.MQ)
	if err != nil {
		_ = s.close()
		return nil, err
	}

	accountRepo := store.NewAccountRepository(dbConn)
	countryClient := countries.NewClient(
		cfg.Countries.BaseURL,
		responseCache,
		countries.WithCacheTTL(cfg.Countries.CacheTTL),
		countries.WithHTTPClient(&http.Client{Timeout: cfg.Countries.HTTPTimeout}),
	)

	s.router = NewRouter(Dependencies{
		Accounts:    services.NewAccountService(accountRepo, publisher, logger),
		Favorites:   services.NewFavoritesService(accountRepo, publisher, logger),
		Tokens:      auth.NewTokenCodec(cfg.Session.Secret, cfg.Session.TokenTTL),
		Countries:   countryClient,
		Cookie:      handlers.NewSessionCookie(cfg),
		CORSOrigins: cfg.CORS.AllowedOrigins,
		Logger:      logger,
	})

	port := cfg.ServerPort
	if port == 0 {
		port = defaultPort
	}
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}
	return s, nil
}

// NewCache builds the response cache selected by cfg.
func NewCache(ctx context.Context, cfg config.CacheConfig, logger *slog.Logger) (cache.Cache, error) {
	switch cfg.Backend {
	case "", "memory":
		return cache.NewMemory(), nil
	case "redis":
		redisCache, err := cache.NewRedis(ctx, cfg.Redis, logger)
		if err != nil {
			return nil, err
		}
		return redisCache, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

func (s *Server) openEvents(ctx context.Context, cfg config.MQConfig) (services.EventPublisher, error) {
	broker, err := mq.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if broker == nil {
		s.logger.Info("event publishing disabled")
		return nil, nil
	}
	bus, err := mq.NewEventBus(broker, cfg.EventsChannel, s.logger)
	if err != nil {
		_ = broker.Close()
		return nil, err
	}
	s.closers = append(s.closers, bus.Close)
	s.logger.Info("publishing events", slog.String("backend", cfg.Backend), slog.String("channel", bus.Channel()))
	return bus, nil
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	s.logger.Info("server listening", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and releases owned resources.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	return errors.Join(err, s.close())
}

func (s *Server) close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	s.closers = nil
	if s.db != nil {
		errs = append(errs, s.db.Close())
		s.db = nil
	}
	return errors.Join(errs...)
}
