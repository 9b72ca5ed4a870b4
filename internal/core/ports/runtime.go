package ports

import (
	"context"

	"github.com/tjfontaine/relaypipe/internal/config"
	"github.com/tjfontaine/relaypipe/internal/core/domain"
)

// ConfigProvider loads and manages configuration.
type ConfigProvider interface {
	Load(ctx context.Context) (*config.Config, error)
	Watch(ctx context.Context, onChange func(*config.Config)) error
	Close() error
}

// EventPublisher publishes exchange events.
// Implementations: direct storage, NATS.
type EventPublisher interface {
	Publish(ctx context.Context, ex *domain.Exchange) error
	Close() error
}
