// Package api provides the HTTP API server and handlers for the notes server.
package api

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/listenupapp/notes-server/internal/auth"
	"github.com/listenupapp/notes-server/internal/config"
	"github.com/listenupapp/notes-server/internal/metrics"
	"github.com/listenupapp/notes-server/internal/ratelimit"
	"github.com/listenupapp/notes-server/internal/sse"
	"github.com/listenupapp/notes-server/internal/store"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	store      store.Store
	services   *Services
	tokens     *auth.TokenService
	sseManager *sse.Manager
	sseHandler *sse.Handler
	router     *chi.Mux
	api        huma.API
	logger     *slog.Logger

	submitLimiter  *ratelimit.KeyedRateLimiter
	webhookLimiter *ratelimit.KeyedRateLimiter

	corsOrigins    []string
	metricsEnabled bool
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(
	st store.Store,
	services *Services,
	tokens *auth.TokenService,
	sseManager *sse.Manager,
	cfg *config.Config,
	logger *slog.Logger,
) *Server {
	s := &Server{
		store:          st,
		services:       services,
		tokens:         tokens,
		sseManager:     sseManager,
		sseHandler:     sse.NewHandler(sseManager, logger),
		router:         chi.NewRouter(),
		logger:         logger,
		submitLimiter:  ratelimit.PerMinute(cfg.RateLimit.SubmitPerMinute, cfg.RateLimit.SubmitBurst),
		webhookLimiter: ratelimit.New(float64(cfg.RateLimit.WebhookRPS), cfg.RateLimit.WebhookBurst),
		corsOrigins:    cfg.Server.CORSOrigins,
		metricsEnabled: cfg.Metrics.Enabled,
	}

	s.setupMiddleware()
	s.api = humachi.New(s.router, newHumaConfig())
	RegisterErrorHandler()
	s.setupRoutes()

	return s
}

// newHumaConfig returns the OpenAPI config shared by the server and tests.
func newHumaConfig() huma.Config {
	humaConfig := huma.DefaultConfig("Notes API", "1.0.0")
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "PASETO",
		},
	}
	humaConfig.Transformers = append(humaConfig.Transformers, EnvelopeTransformer)
	return humaConfig
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close releases the limiter janitors.
func (s *Server) Close() {
	s.submitLimiter.Stop()
	s.webhookLimiter.Stop()
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(clientIPMiddleware)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)

	origins := s.corsOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	s.router.Use(authMiddleware(s.tokens, s.store))
}

func (s *Server) setupRoutes() {
	s.registerHealthRoutes()
	s.registerNoteRoutes()
	s.registerTagRoutes()
	s.registerActivityRoutes()
	s.registerWebhookRoutes()
	s.registerAdminSettingsRoutes()

	s.router.Get("/events", s.sseHandler.ServeHTTP)
	if s.metricsEnabled {
		s.router.Handle("/metrics", metrics.Handler())
	}
}
