package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"

	"github.com/tjfontaine/relaypipe/internal/container"
	"github.com/tjfontaine/relaypipe/internal/core/domain"
	"github.com/tjfontaine/relaypipe/internal/negotiation"
	"github.com/tjfontaine/relaypipe/internal/participant"
	"github.com/tjfontaine/relaypipe/internal/pipeline"
)

func (s *Server) pipelineHandler(endpoint pipeline.Factory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		req, err := s.newRequest(w, r)
		if err != nil {
			AddError(ctx, err)
			writeError(w, r, err)
			return
		}

		p, err := s.build(endpoint)
		if err != nil {
			s.logger.Error("failed to build pipeline", slog.Any("error", err))
			AddError(ctx, err)
			writeError(w, r, err)
			return
		}

		resp, err := p.Dispatch(ctx, req, domain.NewResponse())
		if err != nil {
			AddError(ctx, err)
			writeError(w, r, err)
			return
		}

		if recovered := p.Container().RecoveredError(); recovered != nil {
			AddError(ctx, recovered)
		}
		writeResponse(w, resp)
	}
}

// build creates a pipeline for one request: a fresh container, the plan's
// participants, then the endpoint.
func (s *Server) build(endpoint pipeline.Factory) (*pipeline.Pipeline, error) {
	c := container.New()
	negotiation.Install(c)

	p, err := s.plan.Load().Build(c, pipeline.WithLogger(s.logger))
	if err != nil {
		return nil, err
	}

	part, err := endpoint()
	if err != nil {
		return nil, fmt.Errorf("build endpoint: %w", err)
	}
	if err := p.Pipe(part); err != nil {
		return nil, fmt.Errorf("pipe endpoint: %w", err)
	}
	return p, nil
}

// newRequest converts r into a pipeline request. The body is read in full,
// bounded by server.max_body_bytes.
func (s *Server) newRequest(w http.ResponseWriter, r *http.Request) (*domain.Request, error) {
	var body io.Reader = r.Body
	if s.cfg.MaxBodyBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	}

	data, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, &domain.HTTPError{
				Status:  http.StatusRequestEntityTooLarge,
				Code:    "request_too_large",
				Message: fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit),
			}
		}
		return nil, &domain.HTTPError{
			Status:  http.StatusBadRequest,
			Code:    "invalid_request",
			Message: "failed to read request body",
			Err:     err,
		}
	}

	header := r.Header.Clone()
	if header.Get(participant.RequestIDHeader) == "" {
		if id := GetRequestID(r.Context()); id != "" {
			header.Set(participant.RequestIDHeader, id)
		}
	}

	req := &domain.Request{
		Method:     r.Method,
		URL:        r.URL,
		Header:     header,
		Body:       data,
		RemoteAddr: r.RemoteAddr,
	}

	if rctx := chi.RouteContext(r.Context()); rctx != nil && len(rctx.URLParams.Keys) > 0 {
		req.Params = make(map[string]string, len(rctx.URLParams.Keys))
		for i, key := range rctx.URLParams.Keys {
			if key == "*" {
				continue
			}
			req.Params[key] = rctx.URLParams.Values[i]
		}
	}
	return req, nil
}

// writeResponse writes resp. A payload no serializer encoded is written as
// JSON.
func writeResponse(w http.ResponseWriter, resp *domain.Response) {
	for name, values := range resp.Header {
		w.Header()[name] = slices.Clone(values)
	}

	body := resp.Body
	if len(body) == 0 && resp.Payload != nil {
		data, err := json.Marshal(resp.Payload)
		if err != nil {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("failed to encode response\n"))
			return
		}
		body = data
		if w.Header().Get("Content-Type") == "" {
			w.Header().Set("Content-Type", "application/json")
		}
	}

	w.WriteHeader(resp.StatusCode())
	if len(body) > 0 {
		_, _ = w.Write(body)
	}
}

// writeError reports an error that escaped the pipeline.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := domain.StatusFromError(err)
	if status < 100 || status > 599 {
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(domain.NewErrorBody(err, GetRequestID(r.Context())))
}
