// Package registration wires the built-in participant types into the
// participant registry.
package registration

import (
	"errors"

	"github.com/tjfontaine/relaypipe/internal/config"
	"github.com/tjfontaine/relaypipe/internal/core/ports"
	"github.com/tjfontaine/relaypipe/internal/participant"
	"github.com/tjfontaine/relaypipe/internal/participant/registry"
	"github.com/tjfontaine/relaypipe/internal/participant/serializer"
	"github.com/tjfontaine/relaypipe/internal/pkg/safehttp"
)

// RegisterBuiltins registers the built-in participant factories explicitly.
// This replaces init-based side effects and is intended to be called from
// cmd/relaypipe and tests before building a plan. It is safe to call more
// than once.
func RegisterBuiltins() {
	for _, f := range builtins() {
		if registry.IsRegistered(f.Type) {
			continue
		}
		registry.Register(f)
	}
}

func builtins() []registry.Factory {
	return []registry.Factory{
		{
			Type:        "request_id",
			Description: "assigns or propagates X-Request-ID",
			Build: func(config.StageConfig, registry.Deps) (ports.Participant, error) {
				return participant.NewRequestID(), nil
			},
		},
		{
			Type:        "logging",
			Description: "logs each exchange",
			Build: func(_ config.StageConfig, deps registry.Deps) (ports.Participant, error) {
				return participant.NewLogging(deps.Logger), nil
			},
		},
		{
			Type:        "recover",
			Description: "turns panics into errors",
			Build: func(_ config.StageConfig, deps registry.Deps) (ports.Participant, error) {
				return participant.NewRecover(deps.Logger), nil
			},
		},
		{
			Type:        "timeout",
			Description: "runs the rest of the chain under a deadline",
			Build: func(cfg config.StageConfig, _ registry.Deps) (ports.Participant, error) {
				if cfg.Timeout <= 0 {
					return nil, errors.New("timeout stage requires a positive timeout")
				}
				return participant.NewTimeout(cfg.Timeout), nil
			},
		},
		{
			Type:        "tracing",
			Description: "wraps the rest of the chain in a span",
			Build: func(_ config.StageConfig, deps registry.Deps) (ports.Participant, error) {
				if deps.Tracer != nil {
					return participant.NewTracingWithTracer(deps.Tracer), nil
				}
				return participant.NewTracing(), nil
			},
		},
		{
			Type:        "metrics",
			Description: "records prometheus exchange metrics",
			Build: func(_ config.StageConfig, deps registry.Deps) (ports.Participant, error) {
				if deps.Metrics == nil {
					return nil, errors.New("metrics stage requires metrics collectors")
				}
				return participant.NewMetricsParticipant(deps.Metrics), nil
			},
		},
		{
			Type:        "auth",
			Description: "validates HS256 bearer tokens",
			Build: func(cfg config.StageConfig, _ registry.Deps) (ports.Participant, error) {
				return participant.NewAuth(participant.AuthConfig{
					Secret:   cfg.Secret,
					Issuer:   cfg.Issuer,
					Audience: cfg.Audience,
				})
			},
		},
		{
			Type:        "api_key",
			Description: "authenticates requests by hashed API key",
			Build: func(cfg config.StageConfig, _ registry.Deps) (ports.Participant, error) {
				keys := make([]participant.APIKey, 0, len(cfg.Keys))
				for _, k := range cfg.Keys {
					keys = append(keys, participant.APIKey{Subject: k.Subject, KeyHash: k.KeyHash})
				}
				return participant.NewAPIKeyAuth(participant.APIKeyConfig{Header: cfg.Header, Keys: keys})
			},
		},
		{
			Type:        "webhook",
			Description: "asks an external service to allow or deny the request",
			Build: func(cfg config.StageConfig, deps registry.Deps) (ports.Participant, error) {
				client := deps.HTTPClient
				if cfg.BlockPrivate {
					client = safehttp.NewClient(cfg.Timeout)
				}
				return participant.NewWebhook(participant.WebhookConfig{
					Name:           cfg.StageName(),
					URL:            cfg.URL,
					Timeout:        cfg.Timeout,
					OnError:        cfg.OnError,
					Retries:        cfg.Retries,
					Headers:        cfg.Headers,
					ForwardHeaders: cfg.ForwardHeaders,
					Client:         client,
				}, deps.Logger)
			},
		},
		{
			Type:        "negotiation",
			Description: "rejects unsatisfiable Accept headers with 406",
			Build: func(config.StageConfig, registry.Deps) (ports.Participant, error) {
				return participant.NewNegotiation(), nil
			},
		},
		{
			Type:        "error_handler",
			Description: "recovers errors through the error queue",
			Build: func(_ config.StageConfig, deps registry.Deps) (ports.Participant, error) {
				return participant.NewErrorHandler(deps.Logger), nil
			},
		},
		{
			Type:        "recorder",
			Description: "publishes an exchange record",
			Build: func(_ config.StageConfig, deps registry.Deps) (ports.Participant, error) {
				return participant.NewRecorder(deps.Logger, deps.Publishers...), nil
			},
		},
		{
			Type:        "json",
			Description: "application/json serializer",
			Build: func(config.StageConfig, registry.Deps) (ports.Participant, error) {
				return serializer.JSON(), nil
			},
		},
		{
			Type:        "yaml",
			Description: "YAML serializer",
			Build: func(config.StageConfig, registry.Deps) (ports.Participant, error) {
				return serializer.YAML(), nil
			},
		},
	}
}
