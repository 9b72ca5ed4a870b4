// Package participant provides the cross-cutting participants a pipeline is
// assembled from.
//
// Participants placed before the error handler are also part of the error
// queue and see the request a second time when the handler recovers. Those
// that only observe the exchange pass straight through on that second run;
// it is recognizable by the domain.AttrRecovering request attribute.
package participant

import (
	"github.com/tjfontaine/relaypipe/internal/container"
	"github.com/tjfontaine/relaypipe/internal/core/domain"
)

// Recovering reports whether req is being re-dispatched by the error handler.
func Recovering(req *domain.Request) bool {
	_, ok := req.Attribute(domain.AttrRecovering)
	return ok
}

// reject builds a short-circuit response carrying an error payload.
func reject(c *container.Container, resp *domain.Response, he *domain.HTTPError) *domain.Response {
	var requestID string
	if c != nil {
		requestID = c.String(container.KeyRequestID)
	}
	return resp.WithStatus(he.Status).WithPayload(domain.NewErrorBody(he, requestID))
}
