package server

import (
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tjfontaine/relaypipe/internal/config"
	"github.com/tjfontaine/relaypipe/internal/pipeline"
)

// Route describes a mounted pipeline endpoint.
type Route struct {
	Method  string `json:"method"`
	Pattern string `json:"pattern"`
}

type Server struct {
	Router *chi.Mux
	cfg    config.ServerConfig
	logger *slog.Logger

	plan atomic.Pointer[pipeline.Plan]

	mu     sync.Mutex
	routes []Route
}

// Option configures a Server.
type Option func(*serverOptions)

type serverOptions struct {
	tracing     bool
	serviceName string
}

// WithTracing wraps every request in an otelhttp server span.
func WithTracing(serviceName string) Option {
	return func(o *serverOptions) {
		o.tracing = true
		o.serviceName = serviceName
	}
}

// New creates a server with the standard middleware chain and an empty plan.
func New(cfg config.ServerConfig, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	var o serverOptions
	for _, opt := range opts {
		opt(&o)
	}

	r := chi.NewRouter()

	// Apply middleware in order
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(TimeoutMiddleware(cfg.RequestTimeout))
	r.Use(middleware.Recoverer)

	if o.tracing {
		name := o.serviceName
		if name == "" {
			name = "relaypipe"
		}
		r.Use(func(next http.Handler) http.Handler {
			return otelhttp.NewHandler(next, name)
		})
	}

	s := &Server{
		Router: r,
		cfg:    cfg,
		logger: logger,
	}
	s.plan.Store(pipeline.NewPlan())
	return s
}

// SetPlan replaces the plan used for new requests. A nil plan is treated as
// empty. In-flight requests keep the pipeline they were built with.
func (s *Server) SetPlan(p *pipeline.Plan) {
	if p == nil {
		p = pipeline.NewPlan()
	}
	s.plan.Store(p)
}

// Plan returns the current plan.
func (s *Server) Plan() *pipeline.Plan {
	return s.plan.Load()
}

// Mount routes method and pattern to a pipeline that ends in the
// participant endpoint builds.
func (s *Server) Mount(method, pattern string, endpoint pipeline.Factory) {
	s.Router.Method(method, pattern, s.pipelineHandler(endpoint))

	s.mu.Lock()
	s.routes = append(s.routes, Route{Method: method, Pattern: pattern})
	s.mu.Unlock()

	s.logger.Info("registered pipeline route",
		slog.String("method", method),
		slog.String("path", pattern))
}

// Routes returns the mounted pipeline routes in registration order.
func (s *Server) Routes() []Route {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Route, len(s.routes))
	copy(out, s.routes)
	return out
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}
