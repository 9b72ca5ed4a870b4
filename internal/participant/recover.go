package participant

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/tjfontaine/relaypipe/internal/core/domain"
	"github.com/tjfontaine/relaypipe/internal/core/ports"
)

// Recover converts a panic further down the chain into an error.
type Recover struct {
	logger *slog.Logger
}

// NewRecover creates a recover participant.
func NewRecover(logger *slog.Logger) *Recover {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recover{logger: logger}
}

func (p *Recover) Name() string { return "recover" }

func (p *Recover) Handle(ctx context.Context, req *domain.Request, resp *domain.Response, next ports.Continuation) (out *domain.Response, retErr error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("participant panicked",
				slog.String("method", req.Method),
				slog.String("path", req.Path()),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			out = nil
			retErr = fmt.Errorf("panic handling %s %s: %v", req.Method, req.Path(), r)
		}
	}()
	return next.Next(ctx, req, resp)
}
