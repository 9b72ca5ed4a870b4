package participant

import (
	"errors"
	"net/http"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/relaypipe/internal/core/domain"
)

func setupTestTracer() (*tracetest.SpanRecorder, trace.Tracer) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	return sr, tp.Tracer("test")
}

func spanAttr(span sdktrace.ReadOnlySpan, key string) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestTracing_CreatesSpan(t *testing.T) {
	sr, tracer := setupTestTracer()
	h := newHarness(t, NewTracingWithTracer(tracer), reply("ok"))
	h.mustDispatch(domain.NewRequest(http.MethodPost, "/v1/echo"))

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name() != "relaypipe.pipeline.dispatch" {
		t.Errorf("span name = %q", spans[0].Name())
	}
	if v, ok := spanAttr(spans[0], "http.request.method"); !ok || v.AsString() != http.MethodPost {
		t.Errorf("method attribute = %v", v)
	}
	if v, ok := spanAttr(spans[0], "http.response.status_code"); !ok || v.AsInt64() != http.StatusOK {
		t.Errorf("status attribute = %v", v)
	}
	if spans[0].Status().Code != codes.Ok {
		t.Errorf("status code = %v, want Ok", spans[0].Status().Code)
	}
}

func TestTracing_RecordsError(t *testing.T) {
	sr, tracer := setupTestTracer()
	h := newHarness(t, NewTracingWithTracer(tracer), fail(errors.New("upstream down")))

	if _, err := h.dispatch(get("/")); err == nil {
		t.Fatal("expected error")
	}

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Status().Code != codes.Error {
		t.Errorf("status code = %v, want Error", spans[0].Status().Code)
	}
	if spans[0].Status().Description != "upstream down" {
		t.Errorf("status description = %q", spans[0].Status().Description)
	}
	if len(spans[0].Events()) == 0 {
		t.Error("expected error event on span")
	}
}

func TestTracing_SkipsRecoveryPass(t *testing.T) {
	sr, tracer := setupTestTracer()
	h := newHarness(t,
		NewTracingWithTracer(tracer),
		NewErrorHandler(nil),
		fail(domain.NewHTTPError(http.StatusNotFound, "missing")),
	)

	resp := h.mustDispatch(get("/"))
	if resp.StatusCode() != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode())
	}
	if len(sr.Ended()) != 1 {
		t.Errorf("expected a single span across both passes, got %d", len(sr.Ended()))
	}
}
