package participant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tjfontaine/relaypipe/internal/core/domain"
	"github.com/tjfontaine/relaypipe/internal/core/ports"
)

// Timeout runs the rest of the chain under a deadline.
// Cancellation is cooperative: participants must honour ctx.Done().
type Timeout struct {
	timeout time.Duration
}

// NewTimeout creates a timeout participant. A non-positive timeout disables it.
func NewTimeout(d time.Duration) *Timeout {
	return &Timeout{timeout: d}
}

func (p *Timeout) Name() string { return "timeout" }

func (p *Timeout) Handle(ctx context.Context, req *domain.Request, resp *domain.Response, next ports.Continuation) (*domain.Response, error) {
	if p.timeout <= 0 {
		return next.Next(ctx, req, resp)
	}

	tctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	out, err := next.Next(tctx, req, resp)
	if err != nil {
		return nil, err
	}
	// A result produced after the deadline is discarded.
	if errors.Is(tctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("exceeded %s: %w", p.timeout, context.DeadlineExceeded)
	}
	return out, nil
}
