package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/haukened/geoblock/internal/geoblock/repos/registry"
)

// Check results used as the "result" label of geoblock_ip_checks_total.
const (
	ResultBlocked    = "blocked"
	ResultAllowed    = "allowed"
	ResultLocal      = "local"
	ResultUnresolved = "unresolved"
)

// StatsSource reports collection sizes at scrape time.
type StatsSource interface {
	Stats() registry.Stats
}

// Metrics holds the service's collectors on a private registry.
// All methods are no-ops on a nil *Metrics.
type Metrics struct {
	reg *prometheus.Registry

	ipChecks     *prometheus.CounterVec
	sweepRemoved prometheus.Counter
	sweepErrors  prometheus.Counter
	geoLookup    prometheus.Histogram
}

// New registers the collectors. When src is non-nil, block and attempt gauges
// are read from it on every scrape.
func New(src StatsSource) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	m := &Metrics{
		reg: reg,
		ipChecks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "geoblock_ip_checks_total",
			Help: "IP block checks by result",
		}, []string{"result"}),
		sweepRemoved: f.NewCounter(prometheus.CounterOpts{
			Name: "geoblock_sweep_removed_total",
			Help: "Expired temporal blocks removed by the sweeper",
		}),
		sweepErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "geoblock_sweep_errors_total",
			Help: "Sweeps that failed",
		}),
		geoLookup: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "geoblock_geo_lookup_duration_seconds",
			Help:    "Time spent resolving an IP to a country",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
	}
	for _, r := range []string{ResultBlocked, ResultAllowed, ResultLocal, ResultUnresolved} {
		m.ipChecks.WithLabelValues(r)
	}

	if src != nil {
		f.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        "geoblock_blocks",
			Help:        "Current number of blocks by kind",
			ConstLabels: prometheus.Labels{"kind": "permanent"},
		}, func() float64 { return float64(src.Stats().Permanent) })
		f.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        "geoblock_blocks",
			Help:        "Current number of blocks by kind",
			ConstLabels: prometheus.Labels{"kind": "temporal"},
		}, func() float64 { return float64(src.Stats().Temporal) })
		f.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "geoblock_attempts",
			Help: "Current size of the attempt log",
		}, func() float64 { return float64(src.Stats().Attempts) })
	}
	return m
}

// ObserveCheck counts one IP check with the given result label.
func (m *Metrics) ObserveCheck(result string) {
	if m == nil {
		return
	}
	m.ipChecks.WithLabelValues(result).Inc()
}

// ObserveLookup records the duration of one geolocation lookup.
func (m *Metrics) ObserveLookup(d time.Duration) {
	if m == nil {
		return
	}
	m.geoLookup.Observe(d.Seconds())
}

// ObserveSweep adds removed to the sweep counter.
func (m *Metrics) ObserveSweep(removed int) {
	if m == nil || removed <= 0 {
		return
	}
	m.sweepRemoved.Add(float64(removed))
}

// SweepFailed counts one failed sweep.
func (m *Metrics) SweepFailed() {
	if m == nil {
		return
	}
	m.sweepErrors.Inc()
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
