package ports

import (
	"context"
	"time"

	"github.com/tjfontaine/relaypipe/internal/core/domain"
)

// ExchangeStore persists dispatched exchanges.
type ExchangeStore interface {
	// SaveExchange stores an exchange. Saving an existing ID replaces it.
	SaveExchange(ctx context.Context, ex *domain.Exchange) error

	// GetExchange retrieves an exchange by ID.
	GetExchange(ctx context.Context, id string) (*domain.Exchange, error)

	// ListExchanges lists exchanges, newest first.
	ListExchanges(ctx context.Context, opts ExchangeListOptions) ([]*domain.Exchange, error)

	// Close closes the storage connection.
	Close() error
}

// ExchangeListOptions filters and paginates ListExchanges.
type ExchangeListOptions struct {
	Method      string
	StatusClass string // "2xx", "4xx", ...
	Since       time.Time
	Limit       int
	Offset      int
}
