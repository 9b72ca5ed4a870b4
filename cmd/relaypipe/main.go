package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/tjfontaine/relaypipe/internal/config"
	"github.com/tjfontaine/relaypipe/internal/core/domain"
	"github.com/tjfontaine/relaypipe/internal/participant"
	"github.com/tjfontaine/relaypipe/internal/pipeline"
	"github.com/tjfontaine/relaypipe/internal/telemetry"
	"github.com/tjfontaine/relaypipe/pkg/gateway"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	configPath := flag.String("config", envOr("RELAYPIPE_CONFIG", config.DefaultPath), "path to config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	shutdownTracer, err := telemetry.InitTracer(cfg.Telemetry, os.Stdout, logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	gw, err := gateway.New(
		gateway.WithFileConfig(*configPath),
		gateway.WithLogger(logger),
		gateway.WithRoute(http.MethodGet, "/v1/echo", pipeline.Static(participant.NewEndpoint("echo", echo))),
		gateway.WithRoute(http.MethodPost, "/v1/echo", pipeline.Static(participant.NewEndpoint("echo", echo))),
		gateway.WithRoute(http.MethodGet, "/v1/fail", pipeline.Static(participant.NewEndpoint("fail", fail))),
		gateway.WithRoute(http.MethodGet, "/v1/panic", pipeline.Static(participant.NewEndpoint("panic", panics))),
	)
	if err != nil {
		log.Fatalf("Failed to create gateway: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := gw.Start(ctx); err != nil {
		log.Fatalf("Failed to start gateway: %v", err)
	}

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutdown signal received, stopping gateway...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := gw.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// echo returns the request as it reached the endpoint.
func echo(ctx context.Context, req *domain.Request) (any, error) {
	out := map[string]any{
		"method": req.Method,
		"path":   req.Path(),
		"query":  req.URL.Query(),
	}
	if body, ok := req.Attribute(domain.AttrParsedBody); ok {
		out["body"] = body
	}
	if subject, ok := req.Attribute(domain.AttrSubject); ok {
		out["subject"] = subject
	}
	return out, nil
}

func fail(ctx context.Context, req *domain.Request) (any, error) {
	return nil, errors.New("the fail endpoint always fails")
}

func panics(ctx context.Context, req *domain.Request) (any, error) {
	panic("the panic endpoint always panics")
}
