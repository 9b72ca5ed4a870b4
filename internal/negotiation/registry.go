// Package negotiation tracks the media types the serializers of a pipeline
// can produce and picks one for a request's Accept header.
package negotiation

import (
	"errors"
	"fmt"
	"mime"
	"strings"
	"sync"

	"github.com/munnerz/goautoneg"

	"github.com/tjfontaine/relaypipe/internal/container"
)

// ErrNoRegistry is returned when the container holds no registry.
var ErrNoRegistry = errors.New("no content type registry in container")

// Registry maps media types to the serializer that produces them.
// The first registered type is the default.
type Registry struct {
	mu     sync.RWMutex
	types  []string
	owners map[string]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{owners: make(map[string]string)}
}

// Register records owner as the producer of the given media types.
// Registering a type already owned by someone else is an error.
func (r *Registry) Register(owner string, mediaTypes ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, mt := range mediaTypes {
		mt = Normalize(mt)
		if mt == "" {
			return fmt.Errorf("invalid media type for %s", owner)
		}
		if existing, ok := r.owners[mt]; ok {
			if existing == owner {
				continue
			}
			return fmt.Errorf("media type %s already registered by %s", mt, existing)
		}
		r.owners[mt] = owner
		r.types = append(r.types, mt)
	}
	return nil
}

// Types returns the registered media types in registration order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.types...)
}

// Owner returns the producer of a media type.
func (r *Registry) Owner(mediaType string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	owner, ok := r.owners[Normalize(mediaType)]
	return owner, ok
}

// Default returns the first registered media type, or "".
func (r *Registry) Default() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.types) == 0 {
		return ""
	}
	return r.types[0]
}

// Negotiate picks the best registered media type for an Accept header.
// An empty header accepts anything. It reports false when nothing matches.
func (r *Registry) Negotiate(accept string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.types) == 0 {
		return "", false
	}
	if strings.TrimSpace(accept) == "" {
		return r.types[0], true
	}
	chosen := goautoneg.Negotiate(accept, r.types)
	return chosen, chosen != ""
}

// Resolve is Negotiate with a fallback to the default type, for responses
// that must be encoded even when the client accepts nothing we produce.
func (r *Registry) Resolve(accept string) string {
	if mt, ok := r.Negotiate(accept); ok {
		return mt
	}
	return r.Default()
}

// Normalize lower-cases a media type and strips its parameters.
func Normalize(mediaType string) string {
	mt, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		return ""
	}
	return mt
}

// Install stores a fresh registry in c unless one is already there, and
// returns the registry in use.
func Install(c *container.Container) *Registry {
	if r, err := FromContainer(c); err == nil {
		return r
	}
	r := NewRegistry()
	c.Set(container.KeyContentTypes, r)
	return r
}

// FromContainer returns the registry stored in c.
func FromContainer(c *container.Container) (*Registry, error) {
	if c == nil {
		return nil, ErrNoRegistry
	}
	v, ok := c.Get(container.KeyContentTypes)
	if !ok {
		return nil, ErrNoRegistry
	}
	r, ok := v.(*Registry)
	if !ok {
		return nil, ErrNoRegistry
	}
	return r, nil
}
