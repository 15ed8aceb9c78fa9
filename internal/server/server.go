package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ankitpatel990/neuvox/internal/engine"
	"github.com/ankitpatel990/neuvox/internal/otel"
	"github.com/ankitpatel990/neuvox/internal/session"
	"github.com/ankitpatel990/neuvox/internal/tenant"
)

const defaultTimeout = 60 * time.Second

// Server holds the dependencies for the HTTP API.
type Server struct {
	router        *chi.Mux
	orchestrator  *engine.Orchestrator
	store         *session.Store
	tenantManager *tenant.Manager
	apiKeys       map[string]string
	corsOrigins   []string
	startTime     time.Time
}

// Option configures the Server.
type Option func(*Server)

// WithTenantManager enables per-tenant rate limiting.
func WithTenantManager(tm *tenant.Manager) Option {
	return func(s *Server) { s.tenantManager = tm }
}

// WithCORSOrigins sets allowed CORS origins (e.g. ["*"]).
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) { s.corsOrigins = origins }
}

// NewServer builds a Server over the orchestrator and session store.
// apiKeys maps API key -> tenant_id; an empty map leaves the API open,
// which is only appropriate for local evaluation.
func NewServer(orch *engine.Orchestrator, store *session.Store, apiKeys map[string]string, opts ...Option) *Server {
	s := &Server{
		router:       chi.NewRouter(),
		orchestrator: orch,
		store:        store,
		apiKeys:      apiKeys,
		corsOrigins:  []string{"*"},
		startTime:    time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.apiKeys == nil {
		s.apiKeys = make(map[string]string)
	}
	return s
}

// Routes returns the configured http.Handler.
func (s *Server) Routes() http.Handler {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(otel.Middleware())
	r.Use(CORSMiddleware(s.corsOrigins))

	// Unauthenticated
	r.Get("/health", s.handleHealth)
	r.Get("/v1/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		if len(s.apiKeys) > 0 {
			r.Use(AuthMiddleware(s.apiKeys))
		}
		r.Use(RateLimitMiddleware(s.tenantManager))
		r.Use(middleware.Timeout(defaultTimeout))

		r.Post("/v1/engage", s.handleEngage)
		r.Get("/v1/sessions", s.handleSessionsList)
		r.Get("/v1/sessions/{id}", s.handleSessionGet)
	})

	return r
}
