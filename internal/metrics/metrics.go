// Package metrics exposes acquisition counters in the Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mikesmitty/max30003"
)

// Metrics holds the collectors of one device. Each instance has its own
// registry so that several devices, or tests, do not collide.
type Metrics struct {
	reg *prometheus.Registry

	samples   *prometheus.CounterVec
	overflows prometheus.Counter
	empty     prometheus.Counter
	errors    prometheus.Counter
	heartRate prometheus.Gauge
	rtor      prometheus.Histogram
}

// New returns the collectors registered on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		samples: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "max30003_samples_total",
				Help: "ECG samples read from the FIFO, by tag.",
			},
			[]string{"tag"},
		),
		overflows: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "max30003_fifo_overflows_total",
			Help: "FIFO drains that ended on an overflow.",
		}),
		empty: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "max30003_fifo_empty_total",
			Help: "FIFO drains that ended on an empty FIFO.",
		}),
		errors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "max30003_errors_total",
			Help: "FIFO drains that failed.",
		}),
		heartRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "max30003_heart_rate_bpm",
			Help: "Last instantaneous heart rate.",
		}),
		rtor: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "max30003_rtor_interval_seconds",
			Help:    "R-to-R intervals.",
			Buckets: prometheus.LinearBuckets(0.3, 0.1, 15),
		}),
	}
	m.reg.MustRegister(m.samples, m.overflows, m.empty, m.errors, m.heartRate, m.rtor)
	return m
}

// ObserveBatch accounts for one FIFO drain.
func (m *Metrics) ObserveBatch(b max30003.Batch) {
	for _, s := range b.Samples {
		m.samples.WithLabelValues(s.Tag.String()).Inc()
	}
	switch b.Terminal {
	case max30003.TerminalOverflow:
		m.overflows.Inc()
	case max30003.TerminalEmpty:
		m.empty.Inc()
	}
	if b.Err != nil {
		m.errors.Inc()
	}
}

// ObserveRtoR records an R-to-R interval. Intervals not measured yet are
// ignored.
func (m *Metrics) ObserveRtoR(r max30003.RtoR) {
	if r.Interval <= 0 {
		return
	}
	m.rtor.Observe(r.Interval.Seconds())
	m.heartRate.Set(r.BPM())
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// Handler serves the collectors over HTTP.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
