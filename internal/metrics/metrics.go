// Package metrics exposes sweep progress as Prometheus metrics.
package metrics

import (
	"strings"
	"time"

	"github.com/newthinker/btsweep/internal/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Scene statuses.
const (
	StatusCompleted = "completed"
	StatusNoTrades  = "no_trades"
	StatusFailed    = "failed"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	// Scrapes of the exposition endpoint
	scrapesTotal   *prometheus.CounterVec
	scrapeDuration prometheus.Histogram

	// Sweep metrics
	scenesTotal   *prometheus.CounterVec
	sceneDuration prometheus.Histogram
	workersBusy   prometheus.Gauge
	rowsWritten   *prometheus.CounterVec
	fetchesTotal  *prometheus.CounterVec
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{Registry: reg}

	r.scrapesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "btsweep_scrapes_total",
			Help: "Requests to the metrics endpoint, by status class",
		},
		[]string{"status"},
	)
	r.scrapeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "btsweep_scrape_duration_seconds",
			Help:    "Metrics endpoint response time in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
	reg.MustRegister(r.scrapesTotal)
	reg.MustRegister(r.scrapeDuration)

	r.scenesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "btsweep_scenes_total",
			Help: "Total number of scenes run, by outcome",
		},
		[]string{"status"},
	)
	r.sceneDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "btsweep_scene_duration_seconds",
			Help:    "Scene run duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
		},
	)
	r.workersBusy = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "btsweep_workers_busy",
			Help: "Number of workers currently running a scene",
		},
	)
	r.rowsWritten = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "btsweep_rows_written_total",
			Help: "Rows appended to the results database, by table",
		},
		[]string{"table"},
	)
	r.fetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "btsweep_data_fetches_total",
			Help: "Market data fetches, by source and status",
		},
		[]string{"source", "status"},
	)

	reg.MustRegister(r.scenesTotal)
	reg.MustRegister(r.sceneDuration)
	reg.MustRegister(r.workersBusy)
	reg.MustRegister(r.rowsWritten)
	reg.MustRegister(r.fetchesTotal)

	return r
}

// RecordScrape records one request to the metrics endpoint.
func (r *Registry) RecordScrape(status int, d time.Duration) {
	r.scrapesTotal.WithLabelValues(statusToString(status)).Inc()
	r.scrapeDuration.Observe(d.Seconds())
}

// RecordScene records a finished scene.
func (r *Registry) RecordScene(status string, d time.Duration) {
	r.scenesTotal.WithLabelValues(status).Inc()
	r.sceneDuration.Observe(d.Seconds())
}

// WorkerBusy marks a worker busy. Call the returned func when it is idle again.
func (r *Registry) WorkerBusy() func() {
	r.workersBusy.Inc()
	return r.workersBusy.Dec
}

// RecordRows adds rows written per table.
func (r *Registry) RecordRows(written map[string]int) {
	for table, n := range written {
		r.rowsWritten.WithLabelValues(table).Add(float64(n))
	}
}

// RecordFetch records a data fetch. Failures are labelled with their error
// code, or "error" when the error carries none.
func (r *Registry) RecordFetch(source string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
		if code := core.Code(err); code != "" {
			status = strings.ToLower(code)
		}
	}
	r.fetchesTotal.WithLabelValues(source, status).Inc()
}

func statusToString(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
