package runtime

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tjfontaine/relaypipe/internal/config"
	"github.com/tjfontaine/relaypipe/internal/core/domain"
	"github.com/tjfontaine/relaypipe/internal/participant"
	"github.com/tjfontaine/relaypipe/internal/pipeline"
	"github.com/tjfontaine/relaypipe/internal/storage"
	"github.com/tjfontaine/relaypipe/internal/storage/memory"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func echoRoute() Option {
	return WithRoute(http.MethodGet, "/v1/echo/{word}", pipeline.Static(participant.NewEndpoint("echo",
		func(ctx context.Context, req *domain.Request) (any, error) {
			return map[string]string{"echo": req.Param("word")}, nil
		})))
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Server.Port = 0
	return cfg
}

func startGateway(t *testing.T, opts ...Option) *Gateway {
	t.Helper()
	gw, err := New(append([]Option{WithLogger(quietLogger())}, opts...)...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := gw.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		gw.Shutdown(ctx)
	})
	return gw
}

func TestGateway_New_RequiredOptions(t *testing.T) {
	_, err := New()
	if err == nil {
		t.Fatal("Expected error without config provider")
	}
	if err.Error() != "config provider required (use WithFileConfig or WithConfig)" {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestGateway_New_OptionError(t *testing.T) {
	if _, err := New(WithConfig(nil)); err == nil {
		t.Error("Expected error for nil config")
	}
	if _, err := New(WithConfig(testConfig()), WithRoute("GET", "/", nil)); err == nil {
		t.Error("Expected error for nil endpoint")
	}
}

func TestGateway_Start_And_Shutdown(t *testing.T) {
	gw := startGateway(t, WithConfig(testConfig()), echoRoute())

	if gw.Addr() == "" {
		t.Fatal("Addr() empty after Start")
	}

	resp, err := http.Get("http://" + gw.Addr() + "/v1/echo/hello")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["echo"] != "hello" {
		t.Errorf("echo = %q, want hello", body["echo"])
	}
}

func TestGateway_RecordsExchanges(t *testing.T) {
	store := memory.New()
	gw := startGateway(t, WithConfig(testConfig()), WithStorageProvider(store), echoRoute())
	h := gw.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/echo/abc", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/exchanges", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("admin status = %d: %s", rec.Code, rec.Body.String())
	}

	var list struct {
		Exchanges []domain.Exchange `json:"exchanges"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list.Exchanges) != 1 {
		t.Fatalf("exchanges = %d, want 1", len(list.Exchanges))
	}
	if list.Exchanges[0].Path != "/v1/echo/abc" || list.Exchanges[0].Status != http.StatusOK {
		t.Errorf("exchange = %+v", list.Exchanges[0])
	}
}

func TestGateway_HealthAndMetrics(t *testing.T) {
	gw := startGateway(t, WithConfig(testConfig()), echoRoute())
	h := gw.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d", rec.Code)
	}

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/echo/x", nil))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "relaypipe_exchanges_total") {
		t.Errorf("metrics missing relaypipe_exchanges_total")
	}
}

func TestGateway_StorageNone(t *testing.T) {
	cfg := testConfig()
	cfg.Storage.Type = "none"
	gw := startGateway(t, WithConfig(cfg), echoRoute())

	rec := httptest.NewRecorder()
	gw.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/exchanges", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestGateway_SQLiteFromConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Storage.Type = "sqlite"
	cfg.Storage.SQLite.Path = filepath.Join(t.TempDir(), "exchanges.db")
	gw := startGateway(t, WithConfig(cfg), echoRoute())

	gw.Handler().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/echo/persist", nil))

	list, err := gw.store.ListExchanges(context.Background(), storageOpts())
	if err != nil {
		t.Fatalf("ListExchanges: %v", err)
	}
	if len(list) != 1 || list[0].Path != "/v1/echo/persist" {
		t.Errorf("exchanges = %+v", list)
	}
}

func TestGateway_Reload(t *testing.T) {
	gw := startGateway(t, WithConfig(testConfig()), echoRoute())

	before := gw.Stages()
	if len(before) != len(config.DefaultStages()) {
		t.Fatalf("stages = %v", before)
	}

	next := testConfig()
	next.Pipeline.Stages = []config.StageConfig{{Type: "request_id"}, {Type: "json"}}
	if err := gw.reload(next); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := gw.Stages(); len(got) != 2 || got[0] != "request_id" || got[1] != "json" {
		t.Errorf("stages after reload = %v", got)
	}
	if gw.Config() != next {
		t.Error("Config() not updated")
	}

	bad := testConfig()
	bad.Pipeline.Stages = []config.StageConfig{{Type: "no_such_participant"}}
	if err := gw.reload(bad); err == nil {
		t.Fatal("expected reload error")
	}
	if got := gw.Stages(); len(got) != 2 {
		t.Errorf("failed reload replaced plan: %v", got)
	}
}

func TestGateway_FileConfigHotReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	write := func(content string) {
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write config: %v", err)
		}
	}
	write("server:\n  port: 0\n")

	gw := startGateway(t, WithFileConfig(path), echoRoute())
	if len(gw.Stages()) != len(config.DefaultStages()) {
		t.Fatalf("stages = %v", gw.Stages())
	}

	write("server:\n  port: 0\npipeline:\n  stages:\n    - type: request_id\n")

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if got := gw.Stages(); len(got) == 1 && got[0] == "request_id" {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Errorf("stages never reloaded: %v", gw.Stages())
}

func TestGateway_ReloadIgnoredAfterShutdown(t *testing.T) {
	gw := startGateway(t, WithConfig(testConfig()), echoRoute())
	before := gw.Stages()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := gw.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	next := testConfig()
	next.Pipeline.Stages = []config.StageConfig{{Type: "json"}}
	if err := gw.reload(next); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := gw.Stages(); len(got) != len(before) {
		t.Errorf("stages changed after shutdown: %v", got)
	}
}

func TestGateway_ShutdownStopsFileWatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	gw := startGateway(t, WithFileConfig(path), echoRoute())

	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		done <- gw.Shutdown(ctx)
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Shutdown: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Shutdown did not return")
	}

	if err := os.WriteFile(path, []byte("server:\n  port: 0\npipeline:\n  stages:\n    - type: request_id\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(300 * time.Millisecond)
	if got := gw.Stages(); len(got) != len(config.DefaultStages()) {
		t.Errorf("stages reloaded after shutdown: %v", got)
	}
}

func TestGateway_StartFailsOnBadStage(t *testing.T) {
	cfg := testConfig()
	cfg.Pipeline.Stages = []config.StageConfig{{Type: "timeout"}} // timeout needs a duration
	gw, err := New(WithConfig(cfg), WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	err = gw.Start(context.Background())
	if err == nil {
		t.Fatal("expected Start error")
	}
	if !strings.Contains(err.Error(), "build pipeline") {
		t.Errorf("error = %v", err)
	}
	gw.Shutdown(context.Background())
}

func storageOpts() storage.ExchangeListOptions {
	return storage.ExchangeListOptions{Limit: 10}
}
