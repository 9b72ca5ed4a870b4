package pipeline

import (
	"fmt"

	"github.com/tjfontaine/relaypipe/internal/container"
	"github.com/tjfontaine/relaypipe/internal/core/ports"
)

// Factory creates a participant for one pipeline.
type Factory func() (ports.Participant, error)

// Static returns a factory that always yields part. Use it only for
// participants that keep no per-request state.
func Static(part ports.Participant) Factory {
	return func() (ports.Participant, error) {
		return part, nil
	}
}

// Plan is an ordered list of participant factories from which a fresh
// pipeline is built for every request.
// A Plan must not be modified once it is shared between goroutines.
type Plan struct {
	names     []string
	factories []Factory
}

// NewPlan creates an empty plan.
func NewPlan() *Plan {
	return &Plan{}
}

// Add appends a named factory.
func (pl *Plan) Add(name string, f Factory) *Plan {
	pl.names = append(pl.names, name)
	pl.factories = append(pl.factories, f)
	return pl
}

// Len returns the number of factories.
func (pl *Plan) Len() int {
	return len(pl.factories)
}

// Names returns the factory names in order.
func (pl *Plan) Names() []string {
	return append([]string(nil), pl.names...)
}

// Build creates a pipeline, instantiating and registering every participant
// in order.
func (pl *Plan) Build(c *container.Container, opts ...Option) (*Pipeline, error) {
	p := New(c, opts...)
	for i, f := range pl.factories {
		part, err := f()
		if err != nil {
			return nil, fmt.Errorf("build %s: %w", pl.names[i], err)
		}
		if err := p.Pipe(part); err != nil {
			return nil, fmt.Errorf("pipe %s: %w", pl.names[i], err)
		}
	}
	return p, nil
}
