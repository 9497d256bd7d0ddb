package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Cache metrics
	VerticesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pgraph_vertices_total",
			Help: "Total number of vertices in the store",
		},
	)

	EdgesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pgraph_edges_total",
			Help: "Total number of forward edges in the store",
		},
	)

	VertexTypesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pgraph_vertex_types_total",
			Help: "Number of distinct card types",
		},
	)

	EdgeTypesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pgraph_edge_types_total",
			Help: "Number of distinct edge types",
		},
	)

	VertexLRUEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pgraph_vertex_lru_entries",
			Help: "Vertices currently held by the LRU cache",
		},
	)

	VertexLRUHitRatio = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pgraph_vertex_lru_hit_ratio",
			Help: "LRU hit fraction since process start",
		},
	)

	// Query metrics
	QueryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pgraph_query_duration_seconds",
			Help:    "Card query duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	PredicateErrorsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pgraph_predicate_errors_total",
			Help: "Predicate evaluations degraded to non-match by type mismatch",
		},
	)

	// Raft metrics
	RaftLeader = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pgraph_raft_is_leader",
			Help: "Whether this node is the Raft leader (1 = leader, 0 = follower)",
		},
	)

	// Write metrics
	ApplyDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pgraph_apply_duration_seconds",
			Help:    "Time taken to apply a replicated write in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// Init registers all metrics with the default registry.
func Init() {
	prometheus.MustRegister(
		VerticesTotal,
		EdgesTotal,
		VertexTypesTotal,
		EdgeTypesTotal,
		VertexLRUEntries,
		VertexLRUHitRatio,
		QueryDuration,
		PredicateErrorsTotal,
		RaftLeader,
		ApplyDuration,
	)
}

// StartServer serves /metrics on the given address.
func StartServer(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return server.ListenAndServe()
}
