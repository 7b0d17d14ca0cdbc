// Package metrics exposes daemon readings as Prometheus metrics.
package metrics

import (
	"fmt"
	"net/http"
	"runtime"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shini4i/netspeed/internal/speed"
)

const (
	namespace = "netspeed"
)

// Metrics owns a private registry so tests and embedders don't collide on
// the global one.
type Metrics struct {
	registry *prometheus.Registry

	buildInfo      *prometheus.GaugeVec
	rate           *prometheus.GaugeVec
	peakRate       *prometheus.GaugeVec
	measurements   prometheus.Counter
	failures       *prometheus.CounterVec
	interfaces     prometheus.Gauge
	historyEntries prometheus.Gauge

	mu               sync.Mutex
	peakUp, peakDown uint64
}

// New defines and registers all metrics.
func New(version string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		buildInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help: fmt.Sprintf(
				"A metric with a constant '1' value labeled by version and goversion from which %s was built.",
				namespace,
			),
		}, []string{"version", "goversion"}),

		rate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rate_bytes_per_second",
			Help:      "Most recent aggregated rate.",
		}, []string{"direction"}),

		peakRate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "peak_rate_bytes_per_second",
			Help:      "Highest rate seen since the daemon started or was reset.",
		}, []string{"direction"}),

		measurements: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "measurements_total",
			Help:      "Successful measurements.",
		}),

		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "measurement_failures_total",
			Help:      "Failed measurements by error code.",
		}, []string{"code"}),

		interfaces: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "counted_interfaces",
			Help:      "Interfaces that currently pass the filter.",
		}),

		historyEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "history_entries",
			Help:      "Readings held in the history buffer.",
		}),
	}

	m.registry.MustRegister(
		m.buildInfo,
		m.rate,
		m.peakRate,
		m.measurements,
		m.failures,
		m.interfaces,
		m.historyEntries,
		collectors.NewGoCollector(),
	)
	m.buildInfo.WithLabelValues(version, runtime.Version()).Set(1)

	return m
}

// Registry returns the registry holding every netspeed metric.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Observe records a successful reading.
func (m *Metrics) Observe(s speed.Speed) {
	m.measurements.Inc()
	m.rate.WithLabelValues("upload").Set(float64(s.Upload))
	m.rate.WithLabelValues("download").Set(float64(s.Download))

	m.mu.Lock()
	defer m.mu.Unlock()
	m.peakUp = max(m.peakUp, s.Upload)
	m.peakDown = max(m.peakDown, s.Download)
	m.peakRate.WithLabelValues("upload").Set(float64(m.peakUp))
	m.peakRate.WithLabelValues("download").Set(float64(m.peakDown))
}

// ObserveFailure records a failed measurement under its error code.
func (m *Metrics) ObserveFailure(code string) {
	m.failures.WithLabelValues(code).Inc()
}

// SetInterfaces records how many interfaces are counted.
func (m *Metrics) SetInterfaces(n int) {
	m.interfaces.Set(float64(n))
}

// SetHistoryEntries records the history buffer length.
func (m *Metrics) SetHistoryEntries(n int) {
	m.historyEntries.Set(float64(n))
}

// Reset zeroes rate gauges after the baseline has been discarded.
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.peakUp, m.peakDown = 0, 0
	m.rate.Reset()
	m.peakRate.Reset()
	m.historyEntries.Set(0)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
