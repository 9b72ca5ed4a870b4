// Package postgres provides the PostgreSQL storage adapter.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/tjfontaine/relaypipe/internal/core/ports"
	"github.com/tjfontaine/relaypipe/internal/storage/sqldb"
)

// Provider implements ports.ExchangeStore on PostgreSQL through the pgx
// database/sql driver.
type Provider struct {
	*sqldb.Store
}

// NewProvider connects to dsn and verifies the connection.
func NewProvider(dsn string) (*Provider, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn required")
	}
	store, err := sqldb.New(sqldb.Config{Driver: "pgx", DSN: dsn})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := store.DB().PingContext(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Provider{Store: store}, nil
}

var _ ports.ExchangeStore = (*Provider)(nil)
