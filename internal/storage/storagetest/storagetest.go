// Package storagetest runs the same behavioral checks against every
// ExchangeStore implementation.
package storagetest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/tjfontaine/relaypipe/internal/core/domain"
	"github.com/tjfontaine/relaypipe/internal/storage"
)

// Run exercises store. newStore must return an empty store each call.
func Run(t *testing.T, newStore func(t *testing.T) storage.ExchangeStore) {
	t.Helper()

	t.Run("SaveAndGet", func(t *testing.T) { testSaveAndGet(t, newStore(t)) })
	t.Run("SaveReplaces", func(t *testing.T) { testSaveReplaces(t, newStore(t)) })
	t.Run("GetMissing", func(t *testing.T) { testGetMissing(t, newStore(t)) })
	t.Run("SaveRequiresID", func(t *testing.T) { testSaveRequiresID(t, newStore(t)) })
	t.Run("ListOrderAndPaging", func(t *testing.T) { testListOrderAndPaging(t, newStore(t)) })
	t.Run("ListFilters", func(t *testing.T) { testListFilters(t, newStore(t)) })
}

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func exchange(id, method string, status int, offset time.Duration) *domain.Exchange {
	return &domain.Exchange{
		ID:        id,
		Method:    method,
		Path:      "/v1/echo",
		Status:    status,
		Duration:  25 * time.Millisecond,
		CreatedAt: base.Add(offset),
	}
}

func testSaveAndGet(t *testing.T, store storage.ExchangeStore) {
	ctx := context.Background()
	ex := exchange("ex-1", "POST", 500, 0)
	ex.ContentType = "application/json"
	ex.Subject = "alice"
	ex.Error = "boom"
	ex.Recovered = true
	ex.Metadata = map[string]string{"request_id": "req-1"}

	if err := store.SaveExchange(ctx, ex); err != nil {
		t.Fatalf("SaveExchange() error = %v", err)
	}

	got, err := store.GetExchange(ctx, "ex-1")
	if err != nil {
		t.Fatalf("GetExchange() error = %v", err)
	}

	if got.Method != "POST" || got.Path != "/v1/echo" || got.Status != 500 {
		t.Errorf("got %s %s %d, want POST /v1/echo 500", got.Method, got.Path, got.Status)
	}
	if got.ContentType != "application/json" {
		t.Errorf("ContentType = %q", got.ContentType)
	}
	if got.Subject != "alice" || got.Error != "boom" || !got.Recovered {
		t.Errorf("Subject/Error/Recovered = %q/%q/%v", got.Subject, got.Error, got.Recovered)
	}
	if got.Duration != 25*time.Millisecond {
		t.Errorf("Duration = %v, want 25ms", got.Duration)
	}
	if got.Metadata["request_id"] != "req-1" {
		t.Errorf("Metadata = %v", got.Metadata)
	}
	if !got.CreatedAt.Equal(base) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, base)
	}
}

func testSaveReplaces(t *testing.T, store storage.ExchangeStore) {
	ctx := context.Background()
	if err := store.SaveExchange(ctx, exchange("ex-1", "GET", 200, 0)); err != nil {
		t.Fatalf("SaveExchange() error = %v", err)
	}
	if err := store.SaveExchange(ctx, exchange("ex-1", "GET", 404, 0)); err != nil {
		t.Fatalf("SaveExchange() second error = %v", err)
	}

	got, err := store.GetExchange(ctx, "ex-1")
	if err != nil {
		t.Fatalf("GetExchange() error = %v", err)
	}
	if got.Status != 404 {
		t.Errorf("Status = %d, want 404", got.Status)
	}

	all, err := store.ListExchanges(ctx, storage.ExchangeListOptions{})
	if err != nil {
		t.Fatalf("ListExchanges() error = %v", err)
	}
	if len(all) != 1 {
		t.Errorf("len = %d, want 1", len(all))
	}
}

func testGetMissing(t *testing.T, store storage.ExchangeStore) {
	_, err := store.GetExchange(context.Background(), "nope")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetExchange() error = %v, want ErrNotFound", err)
	}
}

func testSaveRequiresID(t *testing.T, store storage.ExchangeStore) {
	if err := store.SaveExchange(context.Background(), exchange("", "GET", 200, 0)); err == nil {
		t.Error("expected error for empty id")
	}
}

func testListOrderAndPaging(t *testing.T, store storage.ExchangeStore) {
	ctx := context.Background()
	for i := range 5 {
		ex := exchange(fmt.Sprintf("ex-%d", i), "GET", 200, time.Duration(i)*time.Second)
		if err := store.SaveExchange(ctx, ex); err != nil {
			t.Fatalf("SaveExchange(%d) error = %v", i, err)
		}
	}

	all, err := store.ListExchanges(ctx, storage.ExchangeListOptions{})
	if err != nil {
		t.Fatalf("ListExchanges() error = %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("len = %d, want 5", len(all))
	}
	if all[0].ID != "ex-4" || all[4].ID != "ex-0" {
		t.Errorf("order = %s..%s, want ex-4..ex-0", all[0].ID, all[4].ID)
	}

	page, err := store.ListExchanges(ctx, storage.ExchangeListOptions{Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("ListExchanges() page error = %v", err)
	}
	if len(page) != 2 || page[0].ID != "ex-3" || page[1].ID != "ex-2" {
		t.Errorf("page = %v, want [ex-3 ex-2]", ids(page))
	}

	negative, err := store.ListExchanges(ctx, storage.ExchangeListOptions{Limit: 2, Offset: -3})
	if err != nil {
		t.Fatalf("ListExchanges() negative offset error = %v", err)
	}
	if len(negative) != 2 || negative[0].ID != "ex-4" || negative[1].ID != "ex-3" {
		t.Errorf("negative offset page = %v, want [ex-4 ex-3]", ids(negative))
	}

	past, err := store.ListExchanges(ctx, storage.ExchangeListOptions{Offset: 10})
	if err != nil {
		t.Fatalf("ListExchanges() past end error = %v", err)
	}
	if len(past) != 0 {
		t.Errorf("len = %d, want 0", len(past))
	}
}

func testListFilters(t *testing.T, store storage.ExchangeStore) {
	ctx := context.Background()
	seed := []*domain.Exchange{
		exchange("get-ok", "GET", 200, 0),
		exchange("post-ok", "POST", 201, time.Second),
		exchange("get-missing", "GET", 404, 2*time.Second),
		exchange("post-fail", "POST", 500, 3*time.Second),
	}
	for _, ex := range seed {
		if err := store.SaveExchange(ctx, ex); err != nil {
			t.Fatalf("SaveExchange(%s) error = %v", ex.ID, err)
		}
	}

	tests := []struct {
		name    string
		opts    storage.ExchangeListOptions
		want    []string
		wantErr bool
	}{
		{"method", storage.ExchangeListOptions{Method: "post"}, []string{"post-fail", "post-ok"}, false},
		{"status class", storage.ExchangeListOptions{StatusClass: "2xx"}, []string{"post-ok", "get-ok"}, false},
		{"since", storage.ExchangeListOptions{Since: base.Add(2 * time.Second)}, []string{"post-fail", "get-missing"}, false},
		{"combined", storage.ExchangeListOptions{Method: "GET", StatusClass: "4xx"}, []string{"get-missing"}, false},
		{"invalid class", storage.ExchangeListOptions{StatusClass: "9xx"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.ListExchanges(ctx, tt.opts)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ListExchanges() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if fmt.Sprint(ids(got)) != fmt.Sprint(tt.want) {
				t.Errorf("ids = %v, want %v", ids(got), tt.want)
			}
		})
	}
}

func ids(exs []*domain.Exchange) []string {
	out := make([]string, len(exs))
	for i, ex := range exs {
		out[i] = ex.ID
	}
	return out
}
