// Package memory is an in-process ExchangeStore for development and tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/tjfontaine/relaypipe/internal/core/domain"
	"github.com/tjfontaine/relaypipe/internal/storage"
)

// Store is an in-memory implementation of ExchangeStore
type Store struct {
	mu        sync.RWMutex
	exchanges map[string]*domain.Exchange
}

var _ storage.ExchangeStore = (*Store)(nil)

// New creates a new in-memory store
func New() *Store {
	return &Store{
		exchanges: make(map[string]*domain.Exchange),
	}
}

func (s *Store) SaveExchange(ctx context.Context, ex *domain.Exchange) error {
	if ex.ID == "" {
		return errors.New("exchange id is required")
	}
	if ex.CreatedAt.IsZero() {
		ex.CreatedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.exchanges[ex.ID] = clone(ex)
	return nil
}

func (s *Store) GetExchange(ctx context.Context, id string) (*domain.Exchange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ex, exists := s.exchanges[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	return clone(ex), nil
}

func (s *Store) ListExchanges(ctx context.Context, opts storage.ExchangeListOptions) ([]*domain.Exchange, error) {
	lo, hi := 0, 1000
	if opts.StatusClass != "" {
		var err error
		if lo, hi, err = storage.StatusRange(opts.StatusClass); err != nil {
			return nil, err
		}
	}

	s.mu.RLock()
	var result []*domain.Exchange
	for _, ex := range s.exchanges {
		if opts.Method != "" && !strings.EqualFold(ex.Method, opts.Method) {
			continue
		}
		if ex.Status < lo || ex.Status >= hi {
			continue
		}
		if !opts.Since.IsZero() && ex.CreatedAt.Before(opts.Since) {
			continue
		}
		result = append(result, clone(ex))
	}
	s.mu.RUnlock()

	slices.SortFunc(result, func(a, b *domain.Exchange) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})

	start := max(opts.Offset, 0)
	if start >= len(result) {
		return []*domain.Exchange{}, nil
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = storage.DefaultListLimit
	}
	end := min(start+limit, len(result))

	return result[start:end], nil
}

func (s *Store) Close() error {
	return nil
}

func clone(ex *domain.Exchange) *domain.Exchange {
	c := *ex
	c.Metadata = maps.Clone(ex.Metadata)
	return &c
}
