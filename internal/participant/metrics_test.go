package participant

import (
	"errors"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"

	"github.com/tjfontaine/relaypipe/internal/core/domain"
)

func histogramCount(t *testing.T, m *Metrics, method string) uint64 {
	t.Helper()
	obs, err := m.ExchangeDuration.GetMetricWithLabelValues(method)
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues() error = %v", err)
	}
	var metric dto.Metric
	if err := obs.(prometheus.Metric).Write(&metric); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	return metric.GetHistogram().GetSampleCount()
}

func TestMetrics_RecordsExchanges(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}

	ok := newHarness(t, NewMetricsParticipant(m), reply("ok"))
	ok.mustDispatch(get("/"))

	failing := newHarness(t, NewMetricsParticipant(m), fail(errors.New("boom")))
	if _, err := failing.dispatch(get("/")); err == nil {
		t.Fatal("expected error")
	}

	notFound := newHarness(t, NewMetricsParticipant(m), fail(domain.NewHTTPError(http.StatusNotFound, "gone")))
	_, _ = notFound.dispatch(get("/"))

	if got := testutil.ToFloat64(m.ExchangesTotal.WithLabelValues(http.MethodGet, "2xx")); got != 1 {
		t.Errorf("2xx count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ExchangesTotal.WithLabelValues(http.MethodGet, "5xx")); got != 1 {
		t.Errorf("5xx count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ExchangesTotal.WithLabelValues(http.MethodGet, "4xx")); got != 1 {
		t.Errorf("4xx count = %v, want 1", got)
	}
	if got := histogramCount(t, m, http.MethodGet); got != 3 {
		t.Errorf("histogram samples = %d, want 3", got)
	}
}

func TestNewMetrics_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewMetrics(reg)
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}
	second, err := NewMetrics(reg)
	if err != nil {
		t.Fatalf("second NewMetrics() error = %v", err)
	}
	if first.ExchangesTotal != second.ExchangesTotal {
		t.Error("expected the registered counter to be reused")
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	// Vectors without observations are not gathered.
	if len(families) != 0 {
		t.Errorf("expected no families before observations, got %d", len(families))
	}
}
