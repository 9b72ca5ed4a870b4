package participant

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tjfontaine/relaypipe/internal/core/domain"
	"github.com/tjfontaine/relaypipe/internal/core/ports"
)

// DurationBuckets are the histogram buckets for exchange duration, 5ms to 30s.
var DurationBuckets = []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// Metrics holds the collectors shared by every metrics participant.
// Create it once per process; participants are built per pipeline.
type Metrics struct {
	ExchangesTotal   *prometheus.CounterVec
	ExchangeDuration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg. Collectors
// already registered under the same names are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		ExchangesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relaypipe_exchanges_total",
				Help: "Dispatched exchanges",
			},
			[]string{"method", "status"},
		),
		ExchangeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "relaypipe_exchange_duration_seconds",
				Help:    "Exchange duration",
				Buckets: DurationBuckets,
			},
			[]string{"method"},
		),
	}

	counter, err := register(reg, m.ExchangesTotal)
	if err != nil {
		return nil, err
	}
	m.ExchangesTotal = counter

	hist, err := register(reg, m.ExchangeDuration)
	if err != nil {
		return nil, err
	}
	m.ExchangeDuration = hist

	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// MetricsParticipant records a counter and a duration histogram per exchange.
type MetricsParticipant struct {
	metrics *Metrics
}

// NewMetricsParticipant creates a metrics participant recording into m.
func NewMetricsParticipant(m *Metrics) *MetricsParticipant {
	return &MetricsParticipant{metrics: m}
}

func (p *MetricsParticipant) Name() string { return "metrics" }

func (p *MetricsParticipant) Handle(ctx context.Context, req *domain.Request, resp *domain.Response, next ports.Continuation) (*domain.Response, error) {
	if Recovering(req) {
		return next.Next(ctx, req, resp)
	}

	start := time.Now()
	out, err := next.Next(ctx, req, resp)
	elapsed := time.Since(start).Seconds()

	status := domain.StatusFromError(err)
	if err == nil {
		status = out.StatusCode()
	}

	p.metrics.ExchangesTotal.WithLabelValues(req.Method, domain.StatusClass(status)).Inc()
	p.metrics.ExchangeDuration.WithLabelValues(req.Method).Observe(elapsed)

	return out, err
}
