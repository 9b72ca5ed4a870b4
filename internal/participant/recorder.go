package participant

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tjfontaine/relaypipe/internal/container"
	"github.com/tjfontaine/relaypipe/internal/core/domain"
	"github.com/tjfontaine/relaypipe/internal/core/ports"
)

// Recorder measures each exchange and hands the resulting record to the
// configured publishers. Publish failures are logged and never fail the
// exchange.
type Recorder struct {
	publishers []ports.EventPublisher
	logger     *slog.Logger
	container  *container.Container
	now        func() time.Time
}

// NewRecorder creates a recorder.
func NewRecorder(logger *slog.Logger, publishers ...ports.EventPublisher) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		publishers: publishers,
		logger:     logger,
		now:        time.Now,
	}
}

func (p *Recorder) Name() string { return "recorder" }

func (p *Recorder) SetContainer(c *container.Container) { p.container = c }

func (p *Recorder) Handle(ctx context.Context, req *domain.Request, resp *domain.Response, next ports.Continuation) (*domain.Response, error) {
	if Recovering(req) {
		return next.Next(ctx, req, resp)
	}

	start := p.now()
	out, err := next.Next(ctx, req, resp)

	ex := &domain.Exchange{
		ID:        uuid.New().String(),
		Method:    req.Method,
		Path:      req.Path(),
		Duration:  p.now().Sub(start),
		CreatedAt: start.UTC(),
		Metadata:  map[string]string{},
	}

	if err != nil {
		ex.Status = domain.StatusFromError(err)
		ex.Error = err.Error()
	} else {
		ex.Status = out.StatusCode()
		ex.ContentType = out.Header.Get("Content-Type")
	}

	if p.container != nil {
		if id := p.container.String(container.KeyRequestID); id != "" {
			ex.Metadata["request_id"] = id
		}
		ex.Subject = p.container.String(container.KeySubject)
		if recovered := p.container.RecoveredError(); recovered != nil {
			ex.Recovered = true
			if ex.Error == "" {
				ex.Error = recovered.Error()
			}
		}
	}

	for _, pub := range p.publishers {
		// The exchange is over; a cancelled request must not drop its record.
		if perr := pub.Publish(context.WithoutCancel(ctx), ex); perr != nil {
			p.logger.Warn("failed to publish exchange",
				slog.String("exchange_id", ex.ID),
				slog.String("error", perr.Error()),
			)
		}
	}

	return out, err
}
