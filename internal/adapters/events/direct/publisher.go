// Package direct provides a direct event publisher that writes to storage.
package direct

import (
	"context"
	"errors"

	"github.com/tjfontaine/relaypipe/internal/core/domain"
	"github.com/tjfontaine/relaypipe/internal/core/ports"
)

// Publisher implements ports.EventPublisher by writing directly to storage.
// This is the default implementation for single-instance deployments.
type Publisher struct {
	store ports.ExchangeStore
}

var _ ports.EventPublisher = (*Publisher)(nil)

// NewPublisher creates a new direct event publisher.
func NewPublisher(store ports.ExchangeStore) (*Publisher, error) {
	if store == nil {
		return nil, errors.New("exchange store required")
	}
	return &Publisher{store: store}, nil
}

// Publish saves the exchange.
func (p *Publisher) Publish(ctx context.Context, ex *domain.Exchange) error {
	return p.store.SaveExchange(ctx, ex)
}

// Close is a no-op; the store is owned by the caller.
func (p *Publisher) Close() error {
	return nil
}
