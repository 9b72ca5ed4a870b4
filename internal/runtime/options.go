package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tjfontaine/relaypipe/internal/adapters/config/file"
	"github.com/tjfontaine/relaypipe/internal/adapters/events/nats"
	"github.com/tjfontaine/relaypipe/internal/adapters/storage/postgres"
	"github.com/tjfontaine/relaypipe/internal/adapters/storage/sqlite"
	"github.com/tjfontaine/relaypipe/internal/config"
	"github.com/tjfontaine/relaypipe/internal/core/ports"
	"github.com/tjfontaine/relaypipe/internal/pipeline"
	"github.com/tjfontaine/relaypipe/internal/storage/memory"
)

// Option is a functional option for configuring a Gateway.
type Option func(*Gateway) error

// WithFileConfig uses file-based configuration with hot-reload (default).
// The path should point to a config.yaml file that will be watched for changes.
func WithFileConfig(path string) Option {
	return func(g *Gateway) error {
		provider, err := file.NewProvider(path, g.logger)
		if err != nil {
			return fmt.Errorf("create file config provider: %w", err)
		}
		g.config = provider
		return nil
	}
}

// WithConfig uses a fixed configuration with no reloads.
func WithConfig(cfg *config.Config) Option {
	return func(g *Gateway) error {
		if cfg == nil {
			return errors.New("config is nil")
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		if len(cfg.Pipeline.Stages) == 0 {
			cfg.Pipeline.Stages = config.DefaultStages()
		}
		g.config = staticConfig{cfg: cfg}
		return nil
	}
}

// WithConfigProvider sets a custom config provider.
// For advanced use cases where you need full control over config loading.
func WithConfigProvider(provider ports.ConfigProvider) Option {
	return func(g *Gateway) error {
		g.config = provider
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) error {
		g.logger = logger
		return nil
	}
}

// WithMemoryStorage keeps exchanges in process memory.
func WithMemoryStorage() Option {
	return func(g *Gateway) error {
		g.store = memory.New()
		return nil
	}
}

// WithSQLite uses SQLite storage (default for single-instance deployments).
func WithSQLite(path string) Option {
	return func(g *Gateway) error {
		store, err := sqlite.NewProvider(path)
		if err != nil {
			return fmt.Errorf("create sqlite storage: %w", err)
		}
		g.store = store
		return nil
	}
}

// WithPostgres uses PostgreSQL storage.
// Recommended for distributed deployments.
func WithPostgres(dsn string) Option {
	return func(g *Gateway) error {
		store, err := postgres.NewProvider(dsn)
		if err != nil {
			return fmt.Errorf("create postgres storage: %w", err)
		}
		g.store = store
		return nil
	}
}

// WithStorageProvider sets a custom exchange store.
func WithStorageProvider(store ports.ExchangeStore) Option {
	return func(g *Gateway) error {
		g.store = store
		return nil
	}
}

// WithNATSEvents publishes every exchange to a NATS subject.
func WithNATSEvents(url, subject string) Option {
	return func(g *Gateway) error {
		publisher, err := nats.NewPublisher(nats.Config{URL: url, Subject: subject}, g.logger)
		if err != nil {
			return fmt.Errorf("create nats publisher: %w", err)
		}
		g.publishers = append(g.publishers, publisher)
		g.natsConfigured = true
		return nil
	}
}

// WithEventPublisher adds a publisher that receives every recorded exchange.
func WithEventPublisher(publisher ports.EventPublisher) Option {
	return func(g *Gateway) error {
		g.publishers = append(g.publishers, publisher)
		return nil
	}
}

// WithPrometheusRegistry registers metrics with reg instead of a private
// registry. /metrics serves reg.
func WithPrometheusRegistry(reg *prometheus.Registry) Option {
	return func(g *Gateway) error {
		g.registry = reg
		return nil
	}
}

// WithHTTPClient sets the client used by participants that call out, such
// as webhooks.
func WithHTTPClient(client *http.Client) Option {
	return func(g *Gateway) error {
		g.httpClient = client
		return nil
	}
}

// WithRoute mounts a pipeline endpoint. endpoint is called once per request.
func WithRoute(method, pattern string, endpoint pipeline.Factory) Option {
	return func(g *Gateway) error {
		if endpoint == nil {
			return fmt.Errorf("route %s %s: endpoint is nil", method, pattern)
		}
		g.routes = append(g.routes, route{method: method, pattern: pattern, endpoint: endpoint})
		return nil
	}
}

// staticConfig is a ConfigProvider that never changes.
type staticConfig struct {
	cfg *config.Config
}

func (s staticConfig) Load(context.Context) (*config.Config, error) {
	return s.cfg, nil
}

func (s staticConfig) Watch(ctx context.Context, _ func(*config.Config)) error {
	<-ctx.Done()
	return ctx.Err()
}

func (s staticConfig) Close() error {
	return nil
}
