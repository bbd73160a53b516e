// Package metrics exposes the reconciliation core's Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what the orchestrator and stores report to.
type Recorder interface {
	RecordScan(platform, kind, outcome string, d time.Duration)
	RecordCycle(outcome string, d time.Duration)
	RecordAuth(platform, result string)
	SetGames(n int)
	SetAuthenticated(n int)
}

// Collector is the Prometheus-backed Recorder.
type Collector struct {
	scans         *prometheus.CounterVec
	scanLatency   *prometheus.HistogramVec
	cycles        *prometheus.CounterVec
	cycleLatency  prometheus.Histogram
	auth          *prometheus.CounterVec
	games         prometheus.Gauge
	authenticated prometheus.Gauge
}

// NewCollector creates the metrics and registers them on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		scans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gamedeck_adapter_scans_total",
			Help: "Adapter scans by platform, kind (installed, owned) and outcome.",
		}, []string{"platform", "kind", "outcome"}),
		scanLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gamedeck_adapter_scan_seconds",
			Help:    "Adapter scan latency in seconds, retries included.",
			Buckets: prometheus.DefBuckets,
		}, []string{"platform", "kind"}),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gamedeck_scan_cycles_total",
			Help: "Scan cycles by overall outcome.",
		}, []string{"outcome"}),
		cycleLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gamedeck_scan_cycle_seconds",
			Help:    "Scan cycle duration in seconds.",
			Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		auth: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gamedeck_auth_events_total",
			Help: "Authentication and refresh results by platform.",
		}, []string{"platform", "result"}),
		games: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gamedeck_games",
			Help: "Canonical games in the registry.",
		}),
		authenticated: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gamedeck_authenticated_platforms",
			Help: "Platforms holding a valid session.",
		}),
	}

	reg.MustRegister(
		c.scans,
		c.scanLatency,
		c.cycles,
		c.cycleLatency,
		c.auth,
		c.games,
		c.authenticated,
	)
	return c
}

func (c *Collector) RecordScan(platform, kind, outcome string, d time.Duration) {
	c.scans.WithLabelValues(platform, kind, outcome).Inc()
	c.scanLatency.WithLabelValues(platform, kind).Observe(d.Seconds())
}

func (c *Collector) RecordCycle(outcome string, d time.Duration) {
	c.cycles.WithLabelValues(outcome).Inc()
	c.cycleLatency.Observe(d.Seconds())
}

func (c *Collector) RecordAuth(platform, result string) {
	c.auth.WithLabelValues(platform, result).Inc()
}

func (c *Collector) SetGames(n int)         { c.games.Set(float64(n)) }
func (c *Collector) SetAuthenticated(n int) { c.authenticated.Set(float64(n)) }

// Handler serves the Prometheus scrape endpoint for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordScan(string, string, string, time.Duration) {}
func (Nop) RecordCycle(string, time.Duration)                {}
func (Nop) RecordAuth(string, string)                        {}
func (Nop) SetGames(int)                                     {}
func (Nop) SetAuthenticated(int)                             {}
