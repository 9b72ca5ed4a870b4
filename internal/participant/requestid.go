package participant

import (
	"context"

	"github.com/google/uuid"

	"github.com/tjfontaine/relaypipe/internal/container"
	"github.com/tjfontaine/relaypipe/internal/core/domain"
	"github.com/tjfontaine/relaypipe/internal/core/ports"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// RequestID assigns every exchange an id. An inbound X-Request-ID is reused;
// otherwise a new uuid is generated. The id is stored in the container and
// echoed on the response.
type RequestID struct {
	container *container.Container
}

// NewRequestID creates a request id participant.
func NewRequestID() *RequestID {
	return &RequestID{}
}

func (p *RequestID) Name() string { return "request_id" }

func (p *RequestID) SetContainer(c *container.Container) { p.container = c }

func (p *RequestID) Handle(ctx context.Context, req *domain.Request, resp *domain.Response, next ports.Continuation) (*domain.Response, error) {
	if Recovering(req) {
		return next.Next(ctx, req, resp)
	}

	id := req.Header.Get(RequestIDHeader)
	if id == "" {
		id = uuid.New().String()
		req = req.WithHeader(RequestIDHeader, id)
	}
	if p.container != nil {
		p.container.Set(container.KeyRequestID, id)
	}

	resp, err := next.Next(ctx, req, resp)
	if err != nil {
		return nil, err
	}
	return resp.WithHeader(RequestIDHeader, id), nil
}
