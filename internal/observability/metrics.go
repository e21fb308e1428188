package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	DirectionWrite = "write"
	DirectionRead  = "read"

	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
)

var (
	registerOnce sync.Once

	sessions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "instantgraph",
			Subsystem: "session",
			Name:      "total",
			Help:      "Serialization sessions by direction and outcome.",
		},
		[]string{"direction", "outcome"},
	)
	sessionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "instantgraph",
			Subsystem: "session",
			Name:      "duration_seconds",
			Help:      "Serialization session duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"direction", "outcome"},
	)
	sessionNodes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "instantgraph",
			Subsystem: "session",
			Name:      "nodes_total",
			Help:      "Graph nodes encoded or decoded.",
		},
		[]string{"direction"},
	)
	sessionBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "instantgraph",
			Subsystem: "session",
			Name:      "bytes_total",
			Help:      "Stream bytes written or read by successful sessions.",
		},
		[]string{"direction"},
	)
	cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "instantgraph",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Cache lookups by result.",
		},
		[]string{"result"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(sessions, sessionDuration, sessionNodes, sessionBytes, cacheLookups)
	})
}

// RecordSession records one finished session.
func RecordSession(direction string, ok bool, nodes int, bytes int64, duration time.Duration) {
	RegisterMetrics()
	outcome := OutcomeOK
	if !ok {
		outcome = OutcomeFailed
	}
	sessions.WithLabelValues(direction, outcome).Inc()
	sessionDuration.WithLabelValues(direction, outcome).Observe(duration.Seconds())
	sessionNodes.WithLabelValues(direction).Add(float64(nodes))
	if ok {
		sessionBytes.WithLabelValues(direction).Add(float64(bytes))
	}
}

// RecordCacheLookup records a hit or a miss.
func RecordCacheLookup(hit bool) {
	RegisterMetrics()
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookups.WithLabelValues(result).Inc()
}
