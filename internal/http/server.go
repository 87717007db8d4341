package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	"fintrack/internal/events"
	"fintrack/internal/log"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
	"fintrack/internal/middleware/trace"
	"fintrack/internal/services"
)

// Pinger reports whether the ledger store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the server routes to. Hub may be nil, which
// disables /api/ws.
type Deps struct {
	Auth               *auth.Service
	Ledger             *services.LedgerService
	Insights           *services.InsightService
	Hub                *events.Hub
	Store              Pinger
	Logger             *log.Logger
	RateLimitPerMinute int
	// TrustedProxies are CIDRs whose forwarding headers are believed.
	TrustedProxies []string
	// AllowedOrigins lists browser origins for CORS and websocket upgrades.
	// Empty disables CORS.
	AllowedOrigins []string
}

type Server struct {
	http.Server
	deps    Deps
	logger  *log.Logger
	errLog  *log.StructuredLogger
	started time.Time

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	metrics          appMetrics

	shutdownOnce sync.Once
}

func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	s := &Server{
		deps:             deps,
		logger:           logger,
		errLog:           log.NewStructuredLogger(logger),
		started:          time.Now(),
		rateLimiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: deps.RateLimitPerMinute}),
		securityDetector: security.NewDetector(),
	}
	for _, cidr := range deps.TrustedProxies {
		if err := s.securityDetector.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring trusted proxy", log.FieldError, err)
		}
	}
	if deps.Hub != nil {
		deps.Hub.AllowOrigins(deps.AllowedOrigins)
	}
	s.traceMiddleware = trace.NewMiddleware(s.securityDetector.ExtractClientIP, logger)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.traceMiddleware.Middleware)
	r.Use(log.Middleware(s.logger))
	r.Use(log.RequestIDMiddleware(func(req *http.Request) string {
		return trace.GetRequestID(req.Context())
	}))
	r.Use(middleware.Recoverer)
	if len(s.deps.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.deps.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", auth.TokenHeader},
			ExposedHeaders: []string{trace.RequestIDHeader},
			MaxAge:         300,
		}))
	}
	r.Use(s.securityDetector.Middleware(s.logger))
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldClientIP, s.securityDetector.ExtractClientIP(r),
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path)
		TooManyRequestsError().Write(w)
	}))
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("not found").Write(w)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusMethodNotAllowed, "method not allowed").Write(w)
	})

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", s.handleMetrics)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(s.deps.Auth.Tokens(), s.authFailed))

			for _, kind := range core.Kinds() {
				r.Route("/"+kind.Plural(), func(r chi.Router) {
					r.Get("/", s.handleListRecords(kind))
					r.Post("/", s.handleCreateRecord(kind))
					r.Get("/{id}", s.handleGetRecord(kind))
					r.Put("/{id}", s.handleUpdateRecord(kind))
					r.Delete("/{id}", s.handleDeleteRecord(kind))
				})
			}

			r.Route("/insights", func(r chi.Router) {
				r.Get("/summary", s.handleSummary)
				r.Get("/breakdown", s.handleBreakdown)
				r.Get("/highest", s.handleHighest)
				r.Get("/monthly", s.handleMonthly)
				r.Get("/predictions", s.handlePredictions)
			})

			r.Get("/ws", s.handleWS)
		})
	})
	return r
}

// Shutdown stops background helpers and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) authFailed(w http.ResponseWriter, r *http.Request, err error) {
	log.FromContext(r.Context()).DebugContext(r.Context(), "Authentication failed", log.FieldError, err, log.FieldPath, r.URL.Path)
	UnauthorizedError("missing or invalid token").Write(w)
}

// owner returns the authenticated user id. Routes behind auth.Middleware
// always have one.
func owner(r *http.Request) string {
	id, _ := auth.OwnerFrom(r.Context())
	return id
}

// writeError maps err to a response and logs server-side failures.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, msg := errorStatus(err)
	if status >= http.StatusInternalServerError {
		fields := log.NewFields().
			WithRequestID(trace.GetRequestID(r.Context())).
			WithOwner(owner(r))
		s.errLog.LogError(r.Context(), "Request failed", err, op, fields)
	}
	ErrorResponse(status, msg).Write(w)
}
