package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Citation parsing
	SegmentsProduced = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "epion_citation_segments_per_text",
			Help:    "Number of segments produced per annotated text",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		},
	)

	TokensRendered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "epion_citation_tokens_rendered_total",
			Help: "Inline display tokens rendered",
		},
		[]string{"kind", "mode"},
	)

	UnresolvedCitations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "epion_citation_unresolved_total",
			Help: "Citation ids with no matching source",
		},
		[]string{"origin"},
	)

	SourceActivations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "epion_citation_source_activations_total",
			Help: "Interactive citation references activated by readers",
		},
	)

	// Annotation requests
	Annotations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "epion_annotations_total",
			Help: "Annotation requests by origin and outcome",
		},
		[]string{"origin", "status"},
	)

	AnnotationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "epion_annotation_duration_seconds",
			Help:    "Annotation latency including storage lookups",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"origin"},
	)

	// Source cache
	SourceCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "epion_source_cache_lookups_total",
			Help: "Source list cache lookups",
		},
		[]string{"result"},
	)

	// Streaming
	StreamConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "epion_stream_connections",
			Help: "Open streaming annotation connections",
		},
	)

	StreamChunks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "epion_stream_chunks_total",
			Help: "Text chunks received on streaming connections",
		},
	)

	// HTTP
	RateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "epion_http_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"path"},
	)
)
