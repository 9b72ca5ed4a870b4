// Package serializer provides the participants that decode request bodies
// and encode response payloads for the media types they register.
package serializer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"gopkg.in/yaml.v3"

	"github.com/tjfontaine/relaypipe/internal/container"
	"github.com/tjfontaine/relaypipe/internal/core/domain"
	"github.com/tjfontaine/relaypipe/internal/core/ports"
	"github.com/tjfontaine/relaypipe/internal/negotiation"
)

// ErrNoContainer is returned by RegisterMimeTypes when the serializer was
// registered with a pipeline that has no container.
var ErrNoContainer = errors.New("serializer requires a container")

// Serializer converts between a wire format and Go values.
//
// On the way in it decodes a request body whose Content-Type it owns into the
// parsedBody attribute. On the way out it encodes the response payload when
// content negotiation selects one of its media types.
type Serializer struct {
	name       string
	mediaTypes []string
	marshal    func(any) ([]byte, error)
	unmarshal  func([]byte, any) error

	container *container.Container
	registry  *negotiation.Registry
}

// JSON creates the application/json serializer.
func JSON() *Serializer {
	return &Serializer{
		name:       "json",
		mediaTypes: []string{"application/json"},
		marshal:    json.Marshal,
		unmarshal:  json.Unmarshal,
	}
}

// YAML creates the YAML serializer.
func YAML() *Serializer {
	return &Serializer{
		name:       "yaml",
		mediaTypes: []string{"application/yaml", "application/x-yaml", "text/yaml"},
		marshal:    yaml.Marshal,
		unmarshal:  yaml.Unmarshal,
	}
}

// Name returns the serializer name.
func (s *Serializer) Name() string {
	return s.name
}

// MediaTypes returns the media types the serializer produces.
func (s *Serializer) MediaTypes() []string {
	return append([]string(nil), s.mediaTypes...)
}

// SetContainer implements ports.ContainerAware.
func (s *Serializer) SetContainer(c *container.Container) {
	s.container = c
}

// RegisterMimeTypes adds the serializer's media types to the container's
// negotiation registry.
func (s *Serializer) RegisterMimeTypes() error {
	if s.container == nil {
		return ErrNoContainer
	}
	reg, err := negotiation.FromContainer(s.container)
	if err != nil {
		return err
	}
	if err := reg.Register(s.name, s.mediaTypes...); err != nil {
		return err
	}
	s.registry = reg
	return nil
}

// Handle implements ports.Participant.
func (s *Serializer) Handle(ctx context.Context, req *domain.Request, resp *domain.Response, next ports.Continuation) (*domain.Response, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("%s serializer: mime types not registered", s.name)
	}

	if _, recovering := req.Attribute(domain.AttrRecovering); !recovering && len(req.Body) > 0 {
		if owner, ok := s.registry.Owner(req.Header.Get("Content-Type")); ok && owner == s.name {
			var v any
			if err := s.unmarshal(req.Body, &v); err != nil {
				return nil, &domain.HTTPError{
					Status:  http.StatusBadRequest,
					Code:    "invalid_body",
					Message: fmt.Sprintf("request body is not valid %s", s.name),
					Err:     err,
				}
			}
			req = req.WithAttribute(domain.AttrParsedBody, v)
		}
	}

	resp, err := next.Next(ctx, req, resp)
	if err != nil {
		return nil, err
	}

	if resp.Payload == nil || len(resp.Body) > 0 {
		return resp, nil
	}

	mt := s.registry.Resolve(req.Header.Get("Accept"))
	if owner, _ := s.registry.Owner(mt); owner != s.name {
		return resp, nil
	}

	body, err := s.marshal(resp.Payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", s.name, err)
	}
	return resp.WithBody(body).WithHeader("Content-Type", mt), nil
}

var (
	_ ports.Serializer     = (*Serializer)(nil)
	_ ports.ContainerAware = (*Serializer)(nil)
	_ ports.Named          = (*Serializer)(nil)
)
