package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// AnalysesTotal counts analysis attempts by outcome. The result label
	// is "success" or the analysis error kind.
	AnalysesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "videoincident",
		Subsystem: "analyzer",
		Name:      "analyses_total",
		Help:      "Total number of analysis calls submitted to the inference service, labeled by result.",
	}, []string{"result"})

	// AnalysisDurationSeconds is end-to-end time per analysis call.
	AnalysisDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "videoincident",
		Subsystem: "analyzer",
		Name:      "analysis_duration_seconds",
		Help:      "End-to-end time of one analysis call including response decoding.",
		// Coarse buckets; inference calls on large uploads can run long.
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120, 300},
	}, []string{"result"})

	// ActiveSessions is the number of live sessions held in memory.
	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "videoincident",
		Subsystem: "sessions",
		Name:      "active",
		Help:      "Current number of in-memory sessions.",
	})

	// UploadBytes observes accepted upload sizes.
	UploadBytes = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "videoincident",
		Subsystem: "uploads",
		Name:      "bytes",
		Help:      "Size in bytes of accepted video uploads.",
		Buckets:   prometheus.ExponentialBuckets(256*1024, 4, 8),
	})

	// SeekRequestsTotal counts nonce'd seek commands issued from the incident list.
	SeekRequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "videoincident",
		Subsystem: "playback",
		Name:      "seek_requests_total",
		Help:      "Total number of seek requests issued from incident rows.",
	})
)

// Register registers service metrics with the default Prometheus registry.
// Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			AnalysesTotal,
			AnalysisDurationSeconds,
			ActiveSessions,
			UploadBytes,
			SeekRequestsTotal,
		)
	})
}
