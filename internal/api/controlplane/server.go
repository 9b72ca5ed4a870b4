// Package controlplane serves the read-only admin API: process stats, the
// running configuration, and recorded exchanges.
package controlplane

import (
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tjfontaine/relaypipe/internal/config"
	"github.com/tjfontaine/relaypipe/internal/core/domain"
	"github.com/tjfontaine/relaypipe/internal/server"
	"github.com/tjfontaine/relaypipe/internal/storage"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// Options wires the control plane to the running gateway. The functions
// are called per request so they always reflect the latest reload.
type Options struct {
	Store  storage.ExchangeStore
	Config func() *config.Config
	Stages func() []string
	Routes func() []server.Route
}

type Server struct {
	router    *chi.Mux
	startTime time.Time
	opts      Options
}

func NewServer(opts Options) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		startTime: time.Now(),
		opts:      opts,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Use(middleware.Recoverer)

	s.router.Get("/stats", s.handleStats)
	s.router.Get("/overview", s.handleOverview)
	s.router.Get("/exchanges", s.handleListExchanges)
	s.router.Get("/exchanges/{exchange_id}", s.handleExchangeDetail)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// HealthHandler reports liveness.
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"})
	}
}

// MetricsHandler exposes g in the Prometheus text format.
func MetricsHandler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

type StatsResponse struct {
	Uptime       string      `json:"uptime"`
	GoVersion    string      `json:"go_version"`
	NumGoroutine int         `json:"num_goroutine"`
	Memory       MemoryStats `json:"memory"`
}

type MemoryStats struct {
	Alloc      uint64 `json:"alloc"`
	TotalAlloc uint64 `json:"total_alloc"`
	Sys        uint64 `json:"sys"`
	NumGC      uint32 `json:"num_gc"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	stats := StatsResponse{
		Uptime:       time.Since(s.startTime).String(),
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
		Memory: MemoryStats{
			Alloc:      m.Alloc,
			TotalAlloc: m.TotalAlloc,
			Sys:        m.Sys,
			NumGC:      m.NumGC,
		},
	}

	writeJSON(w, stats)
}

type OverviewResponse struct {
	Storage StorageSummary `json:"storage"`
	Events  string         `json:"events"`
	Stages  []string       `json:"stages"`
	Routes  []server.Route `json:"routes"`
}

type StorageSummary struct {
	Enabled bool   `json:"enabled"`
	Type    string `json:"type"`
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	resp := OverviewResponse{
		Storage: StorageSummary{Enabled: s.opts.Store != nil, Type: "none"},
		Events:  "none",
		Stages:  []string{},
		Routes:  []server.Route{},
	}

	if s.opts.Config != nil {
		if cfg := s.opts.Config(); cfg != nil {
			resp.Storage.Type = cfg.Storage.Type
			resp.Events = cfg.Events.Type
		}
	}
	if s.opts.Stages != nil {
		resp.Stages = append(resp.Stages, s.opts.Stages()...)
	}
	if s.opts.Routes != nil {
		resp.Routes = append(resp.Routes, s.opts.Routes()...)
	}

	writeJSON(w, resp)
}

type ExchangeListResponse struct {
	Exchanges []*domain.Exchange `json:"exchanges"`
	Total     int                `json:"total"`
	Limit     int                `json:"limit"`
	Offset    int                `json:"offset"`
}

func (s *Server) handleListExchanges(w http.ResponseWriter, r *http.Request) {
	if s.opts.Store == nil {
		http.Error(w, "storage not configured", http.StatusServiceUnavailable)
		return
	}

	q := r.URL.Query()
	opts := storage.ExchangeListOptions{
		Method:      q.Get("method"),
		StatusClass: q.Get("status"),
		Limit:       defaultListLimit,
	}

	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= maxListLimit {
			opts.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			opts.Offset = n
		}
	}
	if v := q.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			http.Error(w, "since must be an RFC 3339 timestamp", http.StatusBadRequest)
			return
		}
		opts.Since = since
	}
	if opts.StatusClass != "" {
		if _, _, err := storage.StatusRange(opts.StatusClass); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	exchanges, err := s.opts.Store.ListExchanges(r.Context(), opts)
	if err != nil {
		http.Error(w, "failed to list exchanges: "+err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, ExchangeListResponse{
		Exchanges: exchanges,
		Total:     len(exchanges),
		Limit:     opts.Limit,
		Offset:    opts.Offset,
	})
}

func (s *Server) handleExchangeDetail(w http.ResponseWriter, r *http.Request) {
	if s.opts.Store == nil {
		http.Error(w, "storage not configured", http.StatusServiceUnavailable)
		return
	}

	id := chi.URLParam(r, "exchange_id")
	ex, err := s.opts.Store.GetExchange(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "exchange not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to get exchange: "+err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, ex)
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
