package participant

import (
	"context"
	"log/slog"
	"time"

	"github.com/tjfontaine/relaypipe/internal/container"
	"github.com/tjfontaine/relaypipe/internal/core/domain"
	"github.com/tjfontaine/relaypipe/internal/core/ports"
)

// Logging logs the start and completion of every dispatch.
type Logging struct {
	logger    *slog.Logger
	container *container.Container
}

// NewLogging creates a logging participant.
func NewLogging(logger *slog.Logger) *Logging {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logging{logger: logger}
}

func (p *Logging) Name() string { return "logging" }

func (p *Logging) SetContainer(c *container.Container) { p.container = c }

func (p *Logging) Handle(ctx context.Context, req *domain.Request, resp *domain.Response, next ports.Continuation) (*domain.Response, error) {
	if Recovering(req) {
		return next.Next(ctx, req, resp)
	}

	start := time.Now()
	var requestID string
	if p.container != nil {
		requestID = p.container.String(container.KeyRequestID)
	}

	p.logger.Debug("exchange started",
		slog.String("request_id", requestID),
		slog.String("method", req.Method),
		slog.String("path", req.Path()),
	)

	resp, err := next.Next(ctx, req, resp)
	duration := time.Since(start)

	if err != nil {
		p.logger.Error("exchange failed",
			slog.String("request_id", requestID),
			slog.String("method", req.Method),
			slog.String("path", req.Path()),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	attrs := []slog.Attr{
		slog.String("request_id", requestID),
		slog.String("method", req.Method),
		slog.String("path", req.Path()),
		slog.Int("status", resp.StatusCode()),
		slog.Duration("duration", duration),
	}
	if p.container != nil {
		if recovered := p.container.RecoveredError(); recovered != nil {
			attrs = append(attrs, slog.String("recovered_error", recovered.Error()))
		}
	}
	p.logger.LogAttrs(ctx, slog.LevelInfo, "exchange completed", attrs...)
	return resp, nil
}
