// Package metrics collects Prometheus metrics for the memory core and its
// HTTP surface, adapted from the 2lar-b2 brain2-backend observability
// collector: a registry-holding struct with typed fields per metric rather
// than a string-keyed dispatch table, since every metric this module emits
// is known at compile time.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds every Prometheus metric the memory core and its HTTP
// surface emit, registered against its own registry so tests can build
// independent instances without colliding on prometheus's default registry.
type Collector struct {
	registry *prometheus.Registry

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	MemoriesAdded     prometheus.Counter
	MemoriesUpdated   prometheus.Counter
	MemoriesSuperseded prometheus.Counter
	MemoriesSkipped   prometheus.Counter
	MemoriesArchived  prometheus.Counter

	GateDecisions *prometheus.CounterVec

	SearchRequests prometheus.Counter
	SearchDuration prometheus.Histogram
	SearchHits     prometheus.Histogram

	SignalsApplied  *prometheus.CounterVec
	IndexStaleCount prometheus.Gauge

	ProviderRetries *prometheus.CounterVec
}

// New builds a Collector under namespace "rook" and registers every metric
// with its own registry.
func New() *Collector {
	registry := prometheus.NewRegistry()

	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rook", Name: "http_requests_total", Help: "Total HTTP requests served.",
	}, []string{"method", "route", "status"})

	httpDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "rook", Name: "http_request_duration_seconds", Help: "HTTP request duration.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	memoriesAdded := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "rook", Name: "memories_added_total", Help: "Memories created via the ingestion gate.",
	})
	memoriesUpdated := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "rook", Name: "memories_updated_total", Help: "Memories updated in place via the ingestion gate.",
	})
	memoriesSuperseded := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "rook", Name: "memories_superseded_total", Help: "Memories superseded by a newer fact.",
	})
	memoriesSkipped := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "rook", Name: "memories_skipped_total", Help: "Candidate facts skipped as near-duplicates.",
	})
	memoriesArchived := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "rook", Name: "memories_archived_total", Help: "Memories archived via delete or scheduler decay.",
	})

	gateDecisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rook", Name: "gate_decisions_total", Help: "Prediction-error gate decisions by matched rule.",
	}, []string{"action", "rule"})

	searchRequests := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "rook", Name: "search_requests_total", Help: "Total retrieval engine searches.",
	})
	searchDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "rook", Name: "search_duration_seconds", Help: "Retrieval engine search latency.",
		Buckets: prometheus.DefBuckets,
	})
	searchHits := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "rook", Name: "search_hits", Help: "Number of hits returned per search.",
		Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
	})

	signalsApplied := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rook", Name: "signals_applied_total", Help: "Strength signals applied, by kind.",
	}, []string{"kind"})

	indexStaleCount := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "rook", Name: "index_stale_memories", Help: "Memories currently flagged index_stale.",
	})

	providerRetries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rook", Name: "provider_retries_total", Help: "Retries against a transient-unavailable capability provider.",
	}, []string{"capability"})

	registry.MustRegister(
		httpRequests, httpDuration,
		memoriesAdded, memoriesUpdated, memoriesSuperseded, memoriesSkipped, memoriesArchived,
		gateDecisions, searchRequests, searchDuration, searchHits,
		signalsApplied, indexStaleCount, providerRetries,
	)

	return &Collector{
		registry:           registry,
		HTTPRequests:       httpRequests,
		HTTPDuration:       httpDuration,
		MemoriesAdded:      memoriesAdded,
		MemoriesUpdated:    memoriesUpdated,
		MemoriesSuperseded: memoriesSuperseded,
		MemoriesSkipped:    memoriesSkipped,
		MemoriesArchived:   memoriesArchived,
		GateDecisions:      gateDecisions,
		SearchRequests:     searchRequests,
		SearchDuration:     searchDuration,
		SearchHits:         searchHits,
		SignalsApplied:     signalsApplied,
		IndexStaleCount:    indexStaleCount,
		ProviderRetries:    providerRetries,
	}
}

// Handler returns the /metrics endpoint serving this Collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveGateDecision records one gate decision for the action/rule pair.
func (c *Collector) ObserveGateDecision(action string, rule int) {
	c.GateDecisions.WithLabelValues(action, strconv.Itoa(rule)).Inc()
}
