// Package metrics exposes Prometheus collectors for the SE-Atlas server.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	DatasetLoadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "seatlas_dataset_loads_total",
		Help: "Dataset load attempts by kind and result",
	}, []string{"kind", "result"})
	DatasetLoadDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "seatlas_dataset_load_duration_seconds",
		Help:    "Dataset fetch and parse duration",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"kind"})
	DatasetRecords = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "seatlas_dataset_records",
		Help: "Records kept after load",
	}, []string{"kind"})
	DroppedRecords = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "seatlas_dropped_records_total",
		Help: "Records dropped at load (invalid geometry or coordinates)",
	}, []string{"kind"})
	LoginAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "seatlas_login_attempts_total",
		Help: "Login attempts by result",
	}, []string{"result"})
	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "seatlas_active_sessions",
		Help: "Sessions currently held in memory",
	})
	PipelineDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "seatlas_pipeline_duration_seconds",
		Help:    "Filter, join and aggregate duration by query path",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"path"})
	PipelineCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "seatlas_pipeline_cache_total",
		Help: "Query and image cache lookups by cache and result",
	}, []string{"cache", "result"})
)

func init() {
	prometheus.MustRegister(DatasetLoadsTotal)
	prometheus.MustRegister(DatasetLoadDuration)
	prometheus.MustRegister(DatasetRecords)
	prometheus.MustRegister(DroppedRecords)
	prometheus.MustRegister(LoginAttemptsTotal)
	prometheus.MustRegister(ActiveSessions)
	prometheus.MustRegister(PipelineDuration)
	prometheus.MustRegister(PipelineCacheTotal)
}

// ObserveLoad records one dataset load attempt that started at start.
func ObserveLoad(kind string, start time.Time, err error) {
	DatasetLoadDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	if err != nil {
		DatasetLoadsTotal.WithLabelValues(kind, "error").Inc()
		return
	}
	DatasetLoadsTotal.WithLabelValues(kind, "ok").Inc()
}

// ObservePipeline records the duration of one query path run.
func ObservePipeline(path string, start time.Time) {
	PipelineDuration.WithLabelValues(path).Observe(time.Since(start).Seconds())
}

// CacheLookup records a cache hit or miss.
func CacheLookup(cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	PipelineCacheTotal.WithLabelValues(cache, result).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
