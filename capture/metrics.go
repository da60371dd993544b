package capture

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/vitalvas/autodoc/store"
	"github.com/vitalvas/autodoc/synth"
)

// Metrics holds Prometheus metrics for the capture middleware. A nil
// *Metrics records nothing.
type Metrics struct {
	captures *prometheus.CounterVec
	skipped  *prometheus.CounterVec
	failures *prometheus.CounterVec
	duration prometheus.Histogram
}

// NewMetrics creates the capture metrics and registers them with reg.
// It returns nil when reg is nil.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		return nil, nil
	}

	m := &Metrics{
		captures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "autodoc",
				Subsystem: "capture",
				Name:      "exchanges_total",
				Help:      "Total number of exchanges merged into the document",
			},
			[]string{"method", "status"},
		),
		skipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "autodoc",
				Subsystem: "capture",
				Name:      "skipped_total",
				Help:      "Total number of exchanges not captured",
			},
			[]string{"reason"},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "autodoc",
				Subsystem: "capture",
				Name:      "failures_total",
				Help:      "Total number of captures aborted by an error",
			},
			[]string{"reason"},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "autodoc",
				Subsystem: "capture",
				Name:      "duration_seconds",
				Help:      "Time spent merging one exchange into the document",
				Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
		),
	}

	for _, c := range []prometheus.Collector{m.captures, m.skipped, m.failures, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) recordCapture(method, status string, took time.Duration) {
	if m == nil {
		return
	}
	m.captures.WithLabelValues(method, status).Inc()
	m.duration.Observe(took.Seconds())
}

func (m *Metrics) recordSkip(reason string) {
	if m == nil {
		return
	}
	m.skipped.WithLabelValues(reason).Inc()
}

func (m *Metrics) recordFailure(err error) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(failureReason(err)).Inc()
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, synth.ErrInvalidSecurityIdentifier):
		return "security"
	case errors.Is(err, store.ErrMisconfigured), errors.Is(err, store.ErrBackendNotFound):
		return "store"
	default:
		return "other"
	}
}
