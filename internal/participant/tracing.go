package participant

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/relaypipe/internal/core/domain"
	"github.com/tjfontaine/relaypipe/internal/core/ports"
)

// tracerName is the instrumentation scope name for pipeline tracing.
const tracerName = "github.com/tjfontaine/relaypipe"

// Tracing wraps the rest of the chain in an OpenTelemetry span.
// Without a configured TracerProvider the global noop tracer is used.
type Tracing struct {
	tracer trace.Tracer
}

// NewTracing creates a tracing participant using the global tracer provider.
func NewTracing() *Tracing {
	return NewTracingWithTracer(otel.Tracer(tracerName))
}

// NewTracingWithTracer creates a tracing participant using tracer.
func NewTracingWithTracer(tracer trace.Tracer) *Tracing {
	return &Tracing{tracer: tracer}
}

func (p *Tracing) Name() string { return "tracing" }

func (p *Tracing) Handle(ctx context.Context, req *domain.Request, resp *domain.Response, next ports.Continuation) (*domain.Response, error) {
	if Recovering(req) {
		return next.Next(ctx, req, resp)
	}

	ctx, span := p.tracer.Start(ctx, "relaypipe.pipeline.dispatch",
		trace.WithAttributes(
			attribute.String("http.request.method", req.Method),
			attribute.String("url.path", req.Path()),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	defer span.End()

	out, err := next.Next(ctx, req, resp)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("http.response.status_code", out.StatusCode()))
	if out.StatusCode() >= 500 {
		span.SetStatus(codes.Error, "server error response")
	} else {
		span.SetStatus(codes.Ok, "")
	}
	return out, nil
}
