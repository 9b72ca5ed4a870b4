// Package ports defines the core interfaces for the pipeline.
// This file contains the participant contract and the optional capabilities
// a participant may implement.
package ports

import (
	"context"

	"github.com/tjfontaine/relaypipe/internal/container"
	"github.com/tjfontaine/relaypipe/internal/core/domain"
)

// Continuation advances the chain to the next participant.
// It has the same shape as a participant invocation minus the continuation
// itself, so a participant can re-enter the remainder of the chain.
type Continuation interface {
	Next(ctx context.Context, req *domain.Request, resp *domain.Response) (*domain.Response, error)
}

// ContinuationFunc adapts a function to a Continuation.
type ContinuationFunc func(ctx context.Context, req *domain.Request, resp *domain.Response) (*domain.Response, error)

// Next calls f.
func (f ContinuationFunc) Next(ctx context.Context, req *domain.Request, resp *domain.Response) (*domain.Response, error) {
	return f(ctx, req, resp)
}

// Participant is a unit of the pipeline.
//
// A participant receives the request, the response built so far and the
// continuation. It may call next zero or more times (normally exactly once)
// to proceed, or short-circuit by returning its own response.
type Participant interface {
	Handle(ctx context.Context, req *domain.Request, resp *domain.Response, next Continuation) (*domain.Response, error)
}

// ParticipantFunc adapts a plain function to a Participant.
type ParticipantFunc func(ctx context.Context, req *domain.Request, resp *domain.Response, next Continuation) (*domain.Response, error)

// Handle calls f.
func (f ParticipantFunc) Handle(ctx context.Context, req *domain.Request, resp *domain.Response, next Continuation) (*domain.Response, error) {
	return f(ctx, req, resp, next)
}

// ContainerAware participants receive the shared container at registration.
type ContainerAware interface {
	SetContainer(c *container.Container)
}

// ErrorParticipant marks a participant as error-capable. Registering the
// first ErrorParticipant freezes the pipeline's error queue.
type ErrorParticipant interface {
	Participant
	CatchesErrors()
}

// Serializer participants announce the media types they produce.
// RegisterMimeTypes is called exactly once, at registration, after the
// container has been injected. A non-nil error aborts the registration.
type Serializer interface {
	Participant
	RegisterMimeTypes() error
}

// Named participants report a name for logs and spans.
type Named interface {
	Name() string
}

// ErrorRecovery is implemented by the continuations the pipeline hands to
// participants. An error-capable participant that caught a downstream
// failure calls ActivateErrorQueue and then Next again to re-run the
// participants registered before it.
type ErrorRecovery interface {
	Continuation
	ActivateErrorQueue()
}
