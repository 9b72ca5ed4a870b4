package participant

import (
	"context"
	"net/http"

	"github.com/tjfontaine/relaypipe/internal/core/domain"
	"github.com/tjfontaine/relaypipe/internal/core/ports"
)

// EndpointFunc handles a request and returns the payload to send back.
// A nil payload yields 204 No Content.
type EndpointFunc func(ctx context.Context, req *domain.Request) (any, error)

// Result lets an endpoint pick the status code of its response.
type Result struct {
	Status  int
	Payload any
}

// Endpoint is the terminal participant. It never continues the chain.
type Endpoint struct {
	name string
	fn   EndpointFunc
}

// NewEndpoint adapts fn into a participant.
func NewEndpoint(name string, fn EndpointFunc) *Endpoint {
	return &Endpoint{name: name, fn: fn}
}

func (p *Endpoint) Name() string { return p.name }

func (p *Endpoint) Handle(ctx context.Context, req *domain.Request, resp *domain.Response, _ ports.Continuation) (*domain.Response, error) {
	if Recovering(req) {
		return resp, nil
	}

	v, err := p.fn(ctx, req)
	if err != nil {
		return nil, err
	}

	switch r := v.(type) {
	case nil:
		return resp.WithStatus(http.StatusNoContent), nil
	case Result:
		out := resp.WithPayload(r.Payload)
		if r.Status != 0 {
			out = out.WithStatus(r.Status)
		}
		return out, nil
	case *domain.Response:
		return r, nil
	default:
		return resp.WithPayload(v), nil
	}
}
