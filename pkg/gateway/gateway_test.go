package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestEmbeddedGateway(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Port = 0

	gw, err := New(
		WithConfig(cfg),
		WithMemoryStorage(),
		WithRoute(http.MethodGet, "/v1/hello", Static(NewEndpoint("hello",
			func(ctx context.Context, req *Request) (any, error) {
				return Result{Status: http.StatusAccepted, Payload: map[string]string{"hello": "world"}}, nil
			}))),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := gw.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		gw.Shutdown(ctx)
	}()

	rec := httptest.NewRecorder()
	gw.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/hello", nil))
	if rec.Code != http.StatusAccepted {
		t.Errorf("status = %d, want 202", rec.Code)
	}
}
