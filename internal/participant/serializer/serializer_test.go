package serializer

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/tjfontaine/relaypipe/internal/container"
	"github.com/tjfontaine/relaypipe/internal/core/domain"
	"github.com/tjfontaine/relaypipe/internal/core/ports"
	"github.com/tjfontaine/relaypipe/internal/negotiation"
	"github.com/tjfontaine/relaypipe/internal/pipeline"
)

type payload struct {
	Message string `json:"message" yaml:"message"`
}

// endpoint returns a participant that records the request it saw and
// replies with a payload.
func endpoint(seen **domain.Request) ports.Participant {
	return ports.ParticipantFunc(func(ctx context.Context, req *domain.Request, resp *domain.Response, next ports.Continuation) (*domain.Response, error) {
		*seen = req
		return resp.WithPayload(payload{Message: "hi"}), nil
	})
}

func newTestPipeline(t *testing.T, parts ...ports.Participant) *pipeline.Pipeline {
	t.Helper()
	c := container.New()
	negotiation.Install(c)
	p := pipeline.New(c)
	for _, part := range parts {
		if err := p.Pipe(part); err != nil {
			t.Fatalf("Pipe() error = %v", err)
		}
	}
	return p
}

func TestSerializer_EncodesByAccept(t *testing.T) {
	tests := []struct {
		name        string
		accept      string
		contentType string
		body        string
	}{
		{name: "default json", accept: "", contentType: "application/json", body: `{"message":"hi"}`},
		{name: "explicit json", accept: "application/json", contentType: "application/json", body: `{"message":"hi"}`},
		{name: "yaml", accept: "application/yaml", contentType: "application/yaml", body: "message: hi\n"},
		{name: "text yaml", accept: "text/yaml", contentType: "text/yaml", body: "message: hi\n"},
		{name: "unsatisfiable falls back", accept: "image/png", contentType: "application/json", body: `{"message":"hi"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen *domain.Request
			p := newTestPipeline(t, JSON(), YAML(), endpoint(&seen))

			req := domain.NewRequest(http.MethodGet, "/")
			if tt.accept != "" {
				req = req.WithHeader("Accept", tt.accept)
			}

			resp, err := p.Dispatch(context.Background(), req, domain.NewResponse())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := resp.Header.Get("Content-Type"); got != tt.contentType {
				t.Errorf("Content-Type = %q, want %q", got, tt.contentType)
			}
			if string(resp.Body) != tt.body {
				t.Errorf("body = %q, want %q", resp.Body, tt.body)
			}
		})
	}
}

func TestSerializer_DecodesOwnedBody(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
	}{
		{name: "json", contentType: "application/json", body: `{"message":"hello"}`},
		{name: "json with charset", contentType: "application/json; charset=utf-8", body: `{"message":"hello"}`},
		{name: "yaml", contentType: "application/x-yaml", body: "message: hello\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen *domain.Request
			p := newTestPipeline(t, JSON(), YAML(), endpoint(&seen))

			req := domain.NewRequest(http.MethodPost, "/").
				WithHeader("Content-Type", tt.contentType).
				WithBody([]byte(tt.body))

			if _, err := p.Dispatch(context.Background(), req, domain.NewResponse()); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			parsed, ok := seen.Attribute(domain.AttrParsedBody)
			if !ok {
				t.Fatal("expected parsed body attribute")
			}
			m, ok := parsed.(map[string]any)
			if !ok {
				t.Fatalf("parsed body type = %T", parsed)
			}
			if m["message"] != "hello" {
				t.Errorf("message = %v", m["message"])
			}
		})
	}
}

func TestSerializer_IgnoresForeignBody(t *testing.T) {
	var seen *domain.Request
	p := newTestPipeline(t, JSON(), endpoint(&seen))

	req := domain.NewRequest(http.MethodPost, "/").
		WithHeader("Content-Type", "text/plain").
		WithBody([]byte("not json"))

	if _, err := p.Dispatch(context.Background(), req, domain.NewResponse()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := seen.Attribute(domain.AttrParsedBody); ok {
		t.Error("expected no parsed body for a foreign content type")
	}
}

func TestSerializer_DecodeFailureIsBadRequest(t *testing.T) {
	var seen *domain.Request
	p := newTestPipeline(t, JSON(), endpoint(&seen))

	req := domain.NewRequest(http.MethodPost, "/").
		WithHeader("Content-Type", "application/json").
		WithBody([]byte("{broken"))

	_, err := p.Dispatch(context.Background(), req, domain.NewResponse())
	he, ok := domain.AsHTTPError(err)
	if !ok {
		t.Fatalf("expected HTTPError, got %v", err)
	}
	if he.Status != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", he.Status)
	}
	if seen != nil {
		t.Error("endpoint should not run after a decode failure")
	}
}

func TestSerializer_SkipsDecodeWhileRecovering(t *testing.T) {
	var seen *domain.Request
	p := newTestPipeline(t, JSON(), endpoint(&seen))

	req := domain.NewRequest(http.MethodPost, "/").
		WithHeader("Content-Type", "application/json").
		WithBody([]byte("{broken")).
		WithAttribute(domain.AttrRecovering, errors.New("earlier failure"))

	resp, err := p.Dispatch(context.Background(), req, domain.NewResponse())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Body) == 0 {
		t.Error("expected payload to be encoded")
	}
}

func TestSerializer_KeepsEncodedBody(t *testing.T) {
	p := newTestPipeline(t, JSON(), ports.ParticipantFunc(func(ctx context.Context, req *domain.Request, resp *domain.Response, next ports.Continuation) (*domain.Response, error) {
		return resp.WithBody([]byte("raw")).WithHeader("Content-Type", "text/plain"), nil
	}))

	resp, err := p.Dispatch(context.Background(), domain.NewRequest(http.MethodGet, "/"), domain.NewResponse())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(resp.Body) != "raw" || resp.Header.Get("Content-Type") != "text/plain" {
		t.Errorf("serializer rewrote an encoded body: %q %q", resp.Body, resp.Header.Get("Content-Type"))
	}
}

func TestSerializer_RegisterMimeTypes(t *testing.T) {
	t.Run("without container", func(t *testing.T) {
		p := pipeline.New(nil)
		err := p.Pipe(JSON())
		if !errors.Is(err, ErrNoContainer) {
			t.Errorf("expected ErrNoContainer, got %v", err)
		}
		if p.Len() != 0 {
			t.Error("serializer should not be queued")
		}
	})

	t.Run("without registry", func(t *testing.T) {
		p := pipeline.New(container.New())
		if err := p.Pipe(JSON()); !errors.Is(err, negotiation.ErrNoRegistry) {
			t.Errorf("expected ErrNoRegistry, got %v", err)
		}
	})

	t.Run("registers types", func(t *testing.T) {
		c := container.New()
		reg := negotiation.Install(c)
		p := pipeline.New(c)
		if err := p.Pipe(YAML()); err != nil {
			t.Fatalf("Pipe() error = %v", err)
		}
		if got := strings.Join(reg.Types(), ","); got != "application/yaml,application/x-yaml,text/yaml" {
			t.Errorf("types = %s", got)
		}
	})

	t.Run("same serializer twice", func(t *testing.T) {
		p := newTestPipeline(t, JSON())
		if err := p.Pipe(JSON()); err != nil {
			t.Errorf("same serializer twice should not conflict: %v", err)
		}
	})
}
