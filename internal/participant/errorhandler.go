package participant

import (
	"context"
	"log/slog"

	"github.com/tjfontaine/relaypipe/internal/container"
	"github.com/tjfontaine/relaypipe/internal/core/domain"
	"github.com/tjfontaine/relaypipe/internal/core/ports"
)

// ErrorHandler is the error-capable participant. When the rest of the chain
// fails it records the error, switches the pipeline to its error queue and
// re-dispatches an error response through the participants registered
// before it, so serializers can format the failure.
type ErrorHandler struct {
	logger    *slog.Logger
	container *container.Container
}

// NewErrorHandler creates an error handler.
func NewErrorHandler(logger *slog.Logger) *ErrorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ErrorHandler{logger: logger}
}

func (p *ErrorHandler) Name() string { return "error_handler" }

func (p *ErrorHandler) SetContainer(c *container.Container) { p.container = c }

func (p *ErrorHandler) CatchesErrors() {}

func (p *ErrorHandler) Handle(ctx context.Context, req *domain.Request, resp *domain.Response, next ports.Continuation) (*domain.Response, error) {
	out, err := next.Next(ctx, req, resp)
	if err == nil {
		return out, nil
	}
	if Recovering(req) {
		return nil, err
	}

	rec, ok := next.(ports.ErrorRecovery)
	if !ok {
		return nil, err
	}

	status := domain.StatusFromError(err)
	var requestID string
	if p.container != nil {
		p.container.Set(container.KeyRecoveredError, err)
		requestID = p.container.String(container.KeyRequestID)
	}

	level := slog.LevelWarn
	if status >= 500 {
		level = slog.LevelError
	}
	p.logger.LogAttrs(ctx, level, "recovering from pipeline error",
		slog.String("request_id", requestID),
		slog.Int("status", status),
		slog.String("error", err.Error()),
	)

	rec.ActivateErrorQueue()

	errResp := resp.WithStatus(status).WithPayload(domain.NewErrorBody(err, requestID))
	return next.Next(ctx, req.WithAttribute(domain.AttrRecovering, err), errResp)
}
