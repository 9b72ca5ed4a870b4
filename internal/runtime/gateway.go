// Package runtime provides the Gateway: it loads configuration, builds the
// participant plan, wires storage and event publishers, and runs the HTTP
// server with hot reload.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/tjfontaine/relaypipe/internal/adapters/events/direct"
	"github.com/tjfontaine/relaypipe/internal/adapters/events/nats"
	"github.com/tjfontaine/relaypipe/internal/adapters/storage/postgres"
	"github.com/tjfontaine/relaypipe/internal/adapters/storage/sqlite"
	"github.com/tjfontaine/relaypipe/internal/api/controlplane"
	"github.com/tjfontaine/relaypipe/internal/config"
	"github.com/tjfontaine/relaypipe/internal/core/ports"
	"github.com/tjfontaine/relaypipe/internal/participant"
	"github.com/tjfontaine/relaypipe/internal/participant/registry"
	"github.com/tjfontaine/relaypipe/internal/pipeline"
	"github.com/tjfontaine/relaypipe/internal/registration"
	"github.com/tjfontaine/relaypipe/internal/server"
	"github.com/tjfontaine/relaypipe/internal/storage/memory"
)

type route struct {
	method   string
	pattern  string
	endpoint pipeline.Factory
}

// Gateway is the main entry point for running relaypipe.
// It manages configuration, the participant plan, and HTTP server lifecycle.
// Gateway can be embedded in larger applications or run standalone.
type Gateway struct {
	// Dependencies (injected via options)
	config     ports.ConfigProvider
	store      ports.ExchangeStore
	publishers []ports.EventPublisher
	registry   *prometheus.Registry
	httpClient *http.Client
	routes     []route

	natsConfigured bool

	// Internal state
	cfg      *config.Config
	metrics  *participant.Metrics
	srv      *server.Server
	server   *http.Server
	listener net.Listener
	logger   *slog.Logger

	// Lifecycle management
	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.RWMutex
}

// New creates a new Gateway with the given options.
// Storage and events not set by options are built from configuration at Start.
func New(opts ...Option) (*Gateway, error) {
	gw := &Gateway{
		logger: slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(gw); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	if gw.config == nil {
		return nil, errors.New("config provider required (use WithFileConfig or WithConfig)")
	}
	if gw.registry == nil {
		gw.registry = prometheus.NewRegistry()
		gw.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	registration.RegisterBuiltins()
	return gw, nil
}

// Start loads configuration, builds the plan and starts serving.
func (g *Gateway) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.ctx, g.cancel = context.WithCancel(ctx)

	cfg, err := g.config.Load(g.ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	g.cfg = cfg

	if err := g.initStorage(cfg); err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	if err := g.initEvents(cfg); err != nil {
		return fmt.Errorf("init events: %w", err)
	}

	g.metrics, err = participant.NewMetrics(g.registry)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	var serverOpts []server.Option
	if cfg.Telemetry.Tracing {
		serverOpts = append(serverOpts, server.WithTracing(cfg.Telemetry.ServiceName))
	}
	g.srv = server.New(cfg.Server, g.logger, serverOpts...)

	plan, err := g.buildPlan(cfg)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}
	g.srv.SetPlan(plan)

	for _, rt := range g.routes {
		g.srv.Mount(rt.method, rt.pattern, rt.endpoint)
	}
	g.mountAdmin()

	if err := g.startServer(cfg); err != nil {
		return fmt.Errorf("start server: %w", err)
	}

	g.watchConfig()

	g.logger.Info("gateway started",
		slog.String("addr", g.listener.Addr().String()),
		slog.Any("stages", plan.Names()),
		slog.Int("routes", len(g.routes)))

	return nil
}

// Shutdown gracefully stops the gateway.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	g.mu.Lock()
	if g.cancel != nil {
		g.cancel()
	}
	g.mu.Unlock()

	// Close waits for the watch loop, which may be blocked in reload on g.mu.
	if g.config != nil {
		if err := g.config.Close(); err != nil {
			g.logger.Error("failed to close config", slog.String("error", err.Error()))
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	// Stop HTTP server
	if g.server != nil {
		if err := g.server.Shutdown(ctx); err != nil {
			g.logger.Error("failed to shutdown server", slog.String("error", err.Error()))
			return err
		}
	}

	// Close resources
	for _, p := range g.publishers {
		if err := p.Close(); err != nil {
			g.logger.Error("failed to close event publisher", slog.String("error", err.Error()))
		}
	}

	if g.store != nil {
		if err := g.store.Close(); err != nil {
			g.logger.Error("failed to close storage", slog.String("error", err.Error()))
		}
	}

	g.logger.Info("gateway shutdown complete")
	return nil
}

// Addr returns the address the server listens on, or "" before Start.
func (g *Gateway) Addr() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.listener == nil {
		return ""
	}
	return g.listener.Addr().String()
}

// Handler returns the HTTP handler, or nil before Start.
func (g *Gateway) Handler() http.Handler {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.srv == nil {
		return nil
	}
	return g.srv
}

// Config returns the active configuration.
func (g *Gateway) Config() *config.Config {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.cfg
}

// Stages returns the stage names of the active plan.
func (g *Gateway) Stages() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.srv == nil {
		return nil
	}
	return g.srv.Plan().Names()
}

// watchConfig registers a reload callback with the config provider.
// The provider runs its own watch loop until g.ctx is done or it is closed.
func (g *Gateway) watchConfig() {
	onChange := func(newCfg *config.Config) {
		g.logger.Info("config changed, reloading")
		if err := g.reload(newCfg); err != nil {
			g.logger.Error("failed to reload", slog.String("error", err.Error()))
		}
	}

	if err := g.config.Watch(g.ctx, onChange); err != nil {
		if !errors.Is(err, context.Canceled) {
			g.logger.Error("config watch failed", slog.String("error", err.Error()))
		}
	}
}

// reload rebuilds the plan from cfg. On failure the running plan is kept.
// Server, storage and events settings only take effect on restart.
func (g *Gateway) reload(cfg *config.Config) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.ctx == nil || g.ctx.Err() != nil {
		g.logger.Debug("gateway stopped, reload ignored")
		return nil
	}

	plan, err := g.buildPlan(cfg)
	if err != nil {
		return fmt.Errorf("rebuild pipeline: %w", err)
	}

	if g.cfg != nil && (cfg.Server != g.cfg.Server || cfg.Storage != g.cfg.Storage || cfg.Events != g.cfg.Events) {
		g.logger.Warn("server, storage and events changes require a restart")
	}

	g.srv.SetPlan(plan)
	g.cfg = cfg

	g.logger.Info("reload complete", slog.Any("stages", plan.Names()))
	return nil
}

func (g *Gateway) buildPlan(cfg *config.Config) (*pipeline.Plan, error) {
	return registry.NewPlan(cfg.Pipeline.Stages, registry.Deps{
		Logger:     g.logger,
		Metrics:    g.metrics,
		Publishers: g.publishers,
		HTTPClient: g.httpClient,
	})
}

func (g *Gateway) initStorage(cfg *config.Config) error {
	if g.store != nil {
		return nil
	}

	switch cfg.Storage.Type {
	case "none":
		return nil
	case "memory":
		g.store = memory.New()
	case "sqlite":
		path := cfg.Storage.SQLite.Path
		if path == "" {
			path = "relaypipe.db"
		}
		store, err := sqlite.NewProvider(path)
		if err != nil {
			return err
		}
		g.store = store
	case "postgres":
		store, err := postgres.NewProvider(cfg.Storage.Database.DSN)
		if err != nil {
			return err
		}
		g.store = store
	default:
		return fmt.Errorf("unknown storage type %q", cfg.Storage.Type)
	}

	g.logger.Info("storage initialized", slog.String("type", cfg.Storage.Type))
	return nil
}

func (g *Gateway) initEvents(cfg *config.Config) error {
	if g.store != nil {
		publisher, err := direct.NewPublisher(g.store)
		if err != nil {
			return err
		}
		g.publishers = append([]ports.EventPublisher{publisher}, g.publishers...)
	}

	if cfg.Events.Type == "nats" && !g.natsConfigured {
		publisher, err := nats.NewPublisher(nats.Config{
			URL:     cfg.Events.NATS.URL,
			Subject: cfg.Events.NATS.Subject,
			Name:    cfg.Telemetry.ServiceName,
		}, g.logger)
		if err != nil {
			return err
		}
		g.publishers = append(g.publishers, publisher)
		g.natsConfigured = true
		g.logger.Info("nats events enabled", slog.String("subject", publisher.Subject()))
	}
	return nil
}

func (g *Gateway) mountAdmin() {
	r := g.srv.Router
	r.Get("/healthz", controlplane.HealthHandler())
	r.Handle("/metrics", controlplane.MetricsHandler(g.registry))
	r.Mount("/admin", controlplane.NewServer(controlplane.Options{
		Store:  g.store,
		Config: g.Config,
		Stages: g.Stages,
		Routes: g.srv.Routes,
	}))
}

func (g *Gateway) startServer(cfg *config.Config) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.Port))
	if err != nil {
		return err
	}
	g.listener = ln

	g.server = &http.Server{
		Handler:      g.srv,
		ReadTimeout:  cfg.Server.RequestTimeout,
		WriteTimeout: cfg.Server.RequestTimeout + cfg.Server.ShutdownTimeout,
	}

	go func() {
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("server error", slog.String("error", err.Error()))
		}
	}()
	return nil
}
