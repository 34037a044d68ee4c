// Package prometheus exposes the extraction pipeline's operational metrics.
// One PipelineMetrics value is created at startup, registered on a private
// registry, and injected into the application service; stages report through
// it rather than touching prometheus directly.
package prometheus

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Default histogram buckets.
var (
	DefaultStageDurationBuckets = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	DefaultLLMDurationBuckets   = []float64{.5, 1, 2, 5, 10, 30, 60, 120}
	DefaultScoreBuckets         = []float64{.1, .2, .3, .4, .5, .6, .7, .8, .9, 1}
)

// PipelineMetrics holds every metric emitted by the extraction pipeline.
type PipelineMetrics struct {
	registry *prometheus.Registry

	SessionsTotal     *prometheus.CounterVec // status: completed | degraded
	DocumentsIngested prometheus.Counter
	DocumentsRejected prometheus.Counter
	StageDuration     *prometheus.HistogramVec // stage: normalize | dedup | pattern | llm | merge | temporal | negation | confidence | timeline | quality
	DedupReduction    prometheus.Histogram
	EntitiesExtracted *prometheus.CounterVec // source: pattern | llm | merged
	EntitiesNegated   prometheus.Counter
	LLMCallsTotal     *prometheus.CounterVec // outcome: ok | timeout | error | malformed
	LLMCallDuration   prometheus.Histogram
	SessionQuality    prometheus.Histogram
	ConflictsRetained prometheus.Counter
	CacheHitsTotal    prometheus.Counter
	CacheMissesTotal  prometheus.Counter
	JobsConsumedTotal *prometheus.CounterVec // status: ok | failed
}

// NewPipelineMetrics registers all pipeline metrics under the given namespace
// on a fresh private registry.
func NewPipelineMetrics(namespace string) *PipelineMetrics {
	if namespace == "" {
		namespace = "neurochart"
	}
	reg := prometheus.NewRegistry()
	factory := func(name, help string, labels ...string) *prometheus.CounterVec {
		cv := prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: name, Help: help,
		}, labels)
		reg.MustRegister(cv)
		return cv
	}
	counter := func(name, help string) prometheus.Counter {
		c := prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: name, Help: help,
		})
		reg.MustRegister(c)
		return c
	}
	histogram := func(name, help string, buckets []float64) prometheus.Histogram {
		h := prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: name, Help: help, Buckets: buckets,
		})
		reg.MustRegister(h)
		return h
	}

	m := &PipelineMetrics{registry: reg}
	m.SessionsTotal = factory("extraction_sessions_total", "Completed extraction sessions", "status")
	m.DocumentsIngested = counter("documents_ingested_total", "Documents accepted into sessions")
	m.DocumentsRejected = counter("documents_rejected_total", "Documents rejected as malformed")
	m.StageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "stage_duration_seconds",
		Help:      "Duration of each pipeline stage",
		Buckets:   DefaultStageDurationBuckets,
	}, []string{"stage"})
	reg.MustRegister(m.StageDuration)
	m.DedupReduction = histogram("dedup_reduction_ratio", "Fraction of sentences removed by deduplication", DefaultScoreBuckets)
	m.EntitiesExtracted = factory("entities_extracted_total", "Entities produced, by source", "source")
	m.EntitiesNegated = counter("entities_negated_total", "Entities removed by the negation filter")
	m.LLMCallsTotal = factory("llm_calls_total", "External extractor calls, by outcome", "outcome")
	m.LLMCallDuration = histogram("llm_call_duration_seconds", "External extractor call duration", DefaultLLMDurationBuckets)
	m.SessionQuality = histogram("session_quality_score", "Overall quality score of completed sessions", DefaultScoreBuckets)
	m.ConflictsRetained = counter("merge_conflicts_retained_total", "Merge conflicts retained as alternatives")
	m.CacheHitsTotal = counter("session_cache_hits_total", "Session cache hits")
	m.CacheMissesTotal = counter("session_cache_misses_total", "Session cache misses")
	m.JobsConsumedTotal = factory("extraction_jobs_consumed_total", "Asynchronous extraction jobs consumed", "status")
	return m
}

// Handler returns an HTTP handler serving this registry in the Prometheus
// exposition format.
func (m *PipelineMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Registry exposes the private registry so additional collectors (process,
// Go runtime) can be attached at startup.
func (m *PipelineMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveStage records one stage execution.
func (m *PipelineMetrics) ObserveStage(stage string, d time.Duration) {
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}
