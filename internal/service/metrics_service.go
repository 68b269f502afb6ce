package service

import (
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "content_admin"

// MetricsSnapshot is the JSON summary served next to the Prometheus endpoint.
type MetricsSnapshot struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	StagedTotal              uint64    `json:"staged_total"`
	ApprovedTotal            uint64    `json:"approved_total"`
	AssignmentConflicts      uint64    `json:"assignment_conflicts"`
	SnapshotBuilds           uint64    `json:"snapshot_builds"`
	GeneratedAt              time.Time `json:"generated_at"`
}

type summaryCounters struct {
	cacheHits, cacheMisses   atomic.Uint64
	requests, requestNanos   atomic.Uint64
	staged, approved         atomic.Uint64
	conflicts, snapshotBuild atomic.Uint64
}

// MetricsService owns a private Prometheus registry. All methods are safe on a nil receiver.
type MetricsService struct {
	handler http.Handler

	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLookups    *prometheus.HistogramVec
	cacheWrites     prometheus.Histogram
	blobDuration    *prometheus.HistogramVec
	transitions     *prometheus.CounterVec
	assignments     *prometheus.CounterVec
	directory       *prometheus.CounterVec
	snapshotBuilds  *prometheus.CounterVec

	summary summaryCounters
}

// NewMetricsService registers the collectors, including Go runtime and process collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(registry)

	return &MetricsService{
		handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace, Name: "http_request_duration_seconds",
			Help: "HTTP request latency by route template.", Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace, Name: "http_requests_total",
			Help: "HTTP requests by route template.",
		}, []string{"method", "path", "status"}),
		cacheLookups: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace, Name: "hierarchy_cache_lookup_seconds",
			Help: "Shared hierarchy row cache lookups.", Buckets: prometheus.DefBuckets,
		}, []string{"result"}),
		cacheWrites: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace, Name: "hierarchy_cache_write_seconds",
			Help: "Shared hierarchy row cache writes.", Buckets: prometheus.DefBuckets,
		}),
		blobDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace, Name: "blob_operation_duration_seconds",
			Help: "Blob store calls.", Buckets: prometheus.DefBuckets,
		}, []string{"operation", "outcome"}),
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace, Name: "artifact_transitions_total",
			Help: "Artifact create, stage, approve and remove attempts.",
		}, []string{"transition", "outcome"}),
		assignments: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace, Name: "assignment_outcomes_total",
			Help: "Assignment create and replace results.",
		}, []string{"operation", "outcome"}),
		directory: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace, Name: "directory_lookups_total",
			Help: "User directory lookups made while enriching conflicts.",
		}, []string{"outcome"}),
		snapshotBuilds: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace, Name: "hierarchy_snapshot_builds_total",
			Help: "Hierarchy snapshot rebuilds by row source.",
		}, []string{"source"}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records one served request.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	code := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, code).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, code).Inc()
	m.summary.requests.Add(1)
	m.summary.requestNanos.Add(uint64(duration.Nanoseconds()))
}

// RecordCacheOperation records a row cache lookup.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
		m.summary.cacheHits.Add(1)
	} else {
		m.summary.cacheMisses.Add(1)
	}
	m.cacheLookups.WithLabelValues(result).Observe(duration.Seconds())
}

// ObserveCacheWrite records a row cache write.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrites.Observe(duration.Seconds())
}

// ObserveBlob records a blob store call.
func (m *MetricsService) ObserveBlob(operation string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	m.blobDuration.WithLabelValues(operation, outcomeLabel(err)).Observe(duration.Seconds())
}

// RecordTransition counts stage and approve attempts.
func (m *MetricsService) RecordTransition(transition string, err error) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(transition, outcomeLabel(err)).Inc()
	if err != nil {
		return
	}
	switch transition {
	case "stage":
		m.summary.staged.Add(1)
	case "approve":
		m.summary.approved.Add(1)
	}
}

// RecordAssignment counts assignment results ("created", "conflict", "replaced", "error").
func (m *MetricsService) RecordAssignment(operation, outcome string) {
	if m == nil {
		return
	}
	m.assignments.WithLabelValues(operation, outcome).Inc()
	if outcome == "conflict" {
		m.summary.conflicts.Add(1)
	}
}

// RecordDirectoryLookup counts enrichment lookups ("found", "unknown", "placeholder").
func (m *MetricsService) RecordDirectoryLookup(outcome string) {
	if m == nil {
		return
	}
	m.directory.WithLabelValues(outcome).Inc()
}

// RecordSnapshotBuild counts hierarchy rebuilds by row source ("cache" or "database").
func (m *MetricsService) RecordSnapshotBuild(source string) {
	if m == nil {
		return
	}
	m.snapshotBuilds.WithLabelValues(source).Inc()
	m.summary.snapshotBuild.Add(1)
}

// Snapshot returns the aggregated counters.
func (m *MetricsService) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	hits, misses := m.summary.cacheHits.Load(), m.summary.cacheMisses.Load()
	requests := m.summary.requests.Load()

	snap := MetricsSnapshot{
		CacheHits:           hits,
		CacheMisses:         misses,
		RequestsTotal:       requests,
		StagedTotal:         m.summary.staged.Load(),
		ApprovedTotal:       m.summary.approved.Load(),
		AssignmentConflicts: m.summary.conflicts.Load(),
		SnapshotBuilds:      m.summary.snapshotBuild.Load(),
		GeneratedAt:         time.Now().UTC(),
	}
	if hits+misses > 0 {
		snap.CacheHitRatio = float64(hits) / float64(hits+misses)
	}
	if requests > 0 {
		snap.AverageRequestDurationMs = float64(m.summary.requestNanos.Load()) / float64(requests) / float64(time.Millisecond)
	}
	return snap
}

func outcomeLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
