package registration

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tjfontaine/relaypipe/internal/config"
	"github.com/tjfontaine/relaypipe/internal/container"
	"github.com/tjfontaine/relaypipe/internal/core/domain"
	"github.com/tjfontaine/relaypipe/internal/negotiation"
	"github.com/tjfontaine/relaypipe/internal/participant"
	"github.com/tjfontaine/relaypipe/internal/participant/registry"
)

func TestRegisterBuiltins(t *testing.T) {
	registry.Clear()
	t.Cleanup(registry.Clear)

	RegisterBuiltins()
	RegisterBuiltins() // idempotent

	want := []string{
		"api_key", "auth", "error_handler", "json", "logging", "metrics", "negotiation",
		"recorder", "recover", "request_id", "timeout", "tracing", "webhook", "yaml",
	}
	got := registry.Types()
	if len(got) != len(want) {
		t.Fatalf("Types() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Types()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestDefaultStagesBuildAndRecover(t *testing.T) {
	registry.Clear()
	t.Cleanup(registry.Clear)
	RegisterBuiltins()

	m, err := participant.NewMetrics(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}

	plan, err := registry.NewPlan(config.DefaultStages(), registry.Deps{Metrics: m})
	if err != nil {
		t.Fatalf("NewPlan() error = %v", err)
	}

	c := container.New()
	negotiation.Install(c)
	p, err := plan.Build(c)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if err := p.Pipe(participant.NewEndpoint("fail", func(ctx context.Context, req *domain.Request) (any, error) {
		panic("endpoint exploded")
	})); err != nil {
		t.Fatalf("Pipe() error = %v", err)
	}

	resp, err := p.Dispatch(context.Background(), domain.NewRequest(http.MethodGet, "/"), domain.NewResponse())
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if resp.StatusCode() != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", resp.StatusCode())
	}
	if resp.Header.Get("Content-Type") != "application/json" {
		t.Errorf("Content-Type = %q", resp.Header.Get("Content-Type"))
	}
	if resp.Header.Get(participant.RequestIDHeader) == "" {
		t.Error("expected request id header")
	}
}

func TestBuiltins_ConfigErrors(t *testing.T) {
	registry.Clear()
	t.Cleanup(registry.Clear)
	RegisterBuiltins()

	tests := map[string]config.StageConfig{
		"timeout without duration": {Type: "timeout"},
		"auth without secret":      {Type: "auth"},
		"api_key without keys":     {Type: "api_key"},
		"webhook without url":      {Type: "webhook"},
		"metrics without deps":     {Type: "metrics"},
	}
	for name, stage := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := registry.NewPlan([]config.StageConfig{stage}, registry.Deps{}); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestWebhook_BlockPrivate(t *testing.T) {
	registry.Clear()
	t.Cleanup(registry.Clear)
	RegisterBuiltins()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"action":"allow"}`))
	}))
	defer srv.Close()

	tests := []struct {
		name         string
		blockPrivate bool
		wantStatus   int
		wantHits     int32
	}{
		{name: "loopback allowed", blockPrivate: false, wantStatus: http.StatusOK, wantHits: 1},
		{name: "loopback blocked", blockPrivate: true, wantStatus: http.StatusForbidden, wantHits: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hits.Store(0)
			stages := []config.StageConfig{{
				Type:         "webhook",
				URL:          srv.URL,
				Timeout:      time.Second,
				BlockPrivate: tt.blockPrivate,
			}}
			plan, err := registry.NewPlan(stages, registry.Deps{})
			if err != nil {
				t.Fatalf("NewPlan() error = %v", err)
			}
			p, err := plan.Build(container.New())
			if err != nil {
				t.Fatalf("Build() error = %v", err)
			}
			if err := p.Pipe(participant.NewEndpoint("ok", func(ctx context.Context, req *domain.Request) (any, error) {
				return "ok", nil
			})); err != nil {
				t.Fatalf("Pipe() error = %v", err)
			}

			resp, err := p.Dispatch(context.Background(), domain.NewRequest(http.MethodGet, "/"), domain.NewResponse())
			if err != nil {
				t.Fatalf("Dispatch() error = %v", err)
			}
			if resp.StatusCode() != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode(), tt.wantStatus)
			}
			if got := hits.Load(); got != tt.wantHits {
				t.Errorf("webhook hits = %d, want %d", got, tt.wantHits)
			}
		})
	}
}
