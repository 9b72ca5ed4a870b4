// Package sqlite provides the SQLite storage adapter.
package sqlite

import (
	"github.com/tjfontaine/relaypipe/internal/core/ports"
	"github.com/tjfontaine/relaypipe/internal/storage/sqldb"
)

// Provider implements ports.ExchangeStore using SQLite.
// It wraps the sqldb implementation.
type Provider struct {
	*sqldb.Store
}

// NewProvider creates a new SQLite storage provider.
func NewProvider(path string) (*Provider, error) {
	store, err := sqldb.NewSQLite(path)
	if err != nil {
		return nil, err
	}

	return &Provider{
		Store: store,
	}, nil
}

// Ensure Provider implements ports.ExchangeStore at compile time.
var _ ports.ExchangeStore = (*Provider)(nil)
