package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tjfontaine/relaypipe/internal/container"
	"github.com/tjfontaine/relaypipe/internal/core/domain"
	"github.com/tjfontaine/relaypipe/internal/core/ports"
)

// Pipeline dispatches a request through an ordered chain of participants.
// It is not safe for concurrent use; it serves a single in-flight request.
type Pipeline struct {
	main        *queue
	errorQueue  *queue
	active      *queue
	errorFrozen bool
	locked      bool

	// generation is bumped when the error queue becomes active, re-arming
	// continuations that were already used against the main queue.
	generation uint64

	container *container.Container
	logger    *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger used for pipeline debug events.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates an empty pipeline. c may be nil, in which case no container is
// injected into participants and no latest request/response is published.
func New(c *container.Container, opts ...Option) *Pipeline {
	p := &Pipeline{
		main:       &queue{},
		errorQueue: &queue{},
		container:  c,
		logger:     slog.Default(),
	}
	p.active = p.main
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Pipe registers a participant. Participants are dispatched in the order
// they are registered.
//
// Registration injects the container into ContainerAware participants and
// runs the mime-type hook of Serializers before queueing. It fails with a
// LockedError once dispatch has started.
func (p *Pipeline) Pipe(part ports.Participant) error {
	if part == nil {
		return ErrNilParticipant
	}
	name := NameOf(part)

	if p.locked {
		return &LockedError{Participant: name}
	}

	if p.container != nil {
		if ca, ok := part.(ports.ContainerAware); ok {
			ca.SetContainer(p.container)
		}
	}

	if s, ok := part.(ports.Serializer); ok {
		if err := s.RegisterMimeTypes(); err != nil {
			return fmt.Errorf("register mime types for %s: %w", name, err)
		}
	}

	p.main.push(part)

	if !p.errorFrozen {
		p.errorQueue.push(part)

		if _, ok := part.(ports.ErrorParticipant); ok {
			p.errorFrozen = true
			p.logger.Debug("error queue frozen",
				slog.String("participant", name),
				slog.Int("length", p.errorQueue.len()))
		}
	}

	return nil
}

// ActivateErrorQueue makes the error queue the active queue, discarding
// whatever remains of the main queue. Participants already dequeued are not
// invoked again by this call; only the next dispatch step is affected.
// Calling it more than once has no further effect.
func (p *Pipeline) ActivateErrorQueue() {
	if p.active == p.errorQueue {
		return
	}
	p.logger.Debug("error queue activated",
		slog.Int("discarded", p.main.len()),
		slog.Int("length", p.errorQueue.len()))
	p.active = p.errorQueue
	p.generation++
}

// Dispatch runs the next step of the chain: it locks the pipeline, publishes
// req and resp to the container, pops the head of the active queue and
// invokes it. When the active queue is empty, resp is returned unchanged.
func (p *Pipeline) Dispatch(ctx context.Context, req *domain.Request, resp *domain.Response) (*domain.Response, error) {
	if !p.locked {
		p.locked = true
		p.logger.Debug("pipeline locked", slog.Int("participants", p.main.len()))
	}

	if p.container != nil {
		p.container.Set(container.KeyLatestRequest, req)
		p.container.Set(container.KeyLatestResponse, resp)
	}

	part, ok := p.active.pop()
	if !ok {
		return resp, nil
	}

	return part.Handle(ctx, req, resp, &continuation{p: p})
}

// Next makes the pipeline itself a continuation. It is Dispatch.
func (p *Pipeline) Next(ctx context.Context, req *domain.Request, resp *domain.Response) (*domain.Response, error) {
	return p.Dispatch(ctx, req, resp)
}

// Container returns the container, which may be nil.
func (p *Pipeline) Container() *container.Container {
	return p.container
}

// Len returns the number of participants left in the main queue.
func (p *Pipeline) Len() int {
	return p.main.len()
}

// ErrorQueueLen returns the number of participants left in the error queue.
func (p *Pipeline) ErrorQueueLen() int {
	return p.errorQueue.len()
}

// ErrorQueueFrozen reports whether an error-capable participant has been
// registered.
func (p *Pipeline) ErrorQueueFrozen() bool {
	return p.errorFrozen
}

// ErrorQueueActive reports whether dispatch pulls from the error queue.
func (p *Pipeline) ErrorQueueActive() bool {
	return p.active == p.errorQueue
}

// Locked reports whether dispatch has started.
func (p *Pipeline) Locked() bool {
	return p.locked
}

// continuation is the handle a participant receives as next. It may advance
// the chain once per active queue.
type continuation struct {
	p      *Pipeline
	called bool
	gen    uint64
}

func (c *continuation) Next(ctx context.Context, req *domain.Request, resp *domain.Response) (*domain.Response, error) {
	if c.called && c.gen == c.p.generation {
		return nil, ErrContinuationReused
	}
	c.called = true
	c.gen = c.p.generation
	return c.p.Dispatch(ctx, req, resp)
}

func (c *continuation) ActivateErrorQueue() {
	c.p.ActivateErrorQueue()
}

// NameOf returns the participant's name for logs.
func NameOf(part ports.Participant) string {
	if n, ok := part.(ports.Named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", part)
}

var (
	_ ports.Continuation  = (*Pipeline)(nil)
	_ ports.ErrorRecovery = (*continuation)(nil)
)
