package participant

import (
	"context"
	"fmt"
	"net/http"

	"github.com/tjfontaine/relaypipe/internal/container"
	"github.com/tjfontaine/relaypipe/internal/core/domain"
	"github.com/tjfontaine/relaypipe/internal/core/ports"
	"github.com/tjfontaine/relaypipe/internal/negotiation"
)

// Negotiation answers 406 when none of the registered media types satisfies
// the Accept header, and otherwise records the chosen type on the request.
type Negotiation struct {
	container *container.Container
}

// NewNegotiation creates a negotiation participant.
func NewNegotiation() *Negotiation {
	return &Negotiation{}
}

func (p *Negotiation) Name() string { return "negotiation" }

func (p *Negotiation) SetContainer(c *container.Container) { p.container = c }

func (p *Negotiation) Handle(ctx context.Context, req *domain.Request, resp *domain.Response, next ports.Continuation) (*domain.Response, error) {
	reg, err := negotiation.FromContainer(p.container)
	if err != nil {
		return nil, err
	}

	accept := req.Header.Get("Accept")
	mt, ok := reg.Negotiate(accept)
	if !ok {
		return reject(p.container, resp, &domain.HTTPError{
			Status:  http.StatusNotAcceptable,
			Code:    "not_acceptable",
			Message: fmt.Sprintf("cannot produce any of %q", accept),
		}), nil
	}

	return next.Next(ctx, req.WithAttribute(domain.AttrContentType, mt), resp)
}
