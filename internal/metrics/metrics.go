// Package metrics provides Prometheus metrics for the agent pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector used by the pipeline. Each instance owns its
// registry so independent bots or tests never collide on registration.
type Metrics struct {
	Registry *prometheus.Registry

	// Pipeline
	MessagesTotal    *prometheus.CounterVec
	MessageDuration  *prometheus.HistogramVec
	StageDuration    *prometheus.HistogramVec
	MessagesInFlight prometheus.Gauge

	// Knowledge
	KnowledgeQueriesTotal *prometheus.CounterVec

	// Actions
	ActionsTotal   *prometheus.CounterVec
	ActionDuration *prometheus.HistogramVec
	ActionsDropped *prometheus.CounterVec

	// Memory and learning
	MemoryWritesTotal   *prometheus.CounterVec
	LearningEventsTotal *prometheus.CounterVec

	// LLM
	LLMTokensTotal *prometheus.CounterVec
	LLMCostUSD     *prometheus.CounterVec
}

// New creates and registers all metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	m := &Metrics{Registry: reg}

	m.MessagesTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "botcore_messages_total",
			Help: "Total number of processed inbound messages",
		},
		[]string{"bot", "status"},
	)

	m.MessageDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "botcore_message_duration_seconds",
			Help:    "End-to-end pipeline duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"bot"},
	)

	m.StageDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "botcore_stage_duration_seconds",
			Help:    "Duration of individual pipeline stages in seconds",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"stage"},
	)

	m.MessagesInFlight = f.NewGauge(
		prometheus.GaugeOpts{
			Name: "botcore_messages_in_flight",
			Help: "Number of messages currently being processed",
		},
	)

	m.KnowledgeQueriesTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "botcore_knowledge_queries_total",
			Help: "Knowledge base queries by cache outcome and result",
		},
		[]string{"cache", "found"},
	)

	m.ActionsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "botcore_actions_total",
			Help: "Executed actions by type and status",
		},
		[]string{"action", "status"},
	)

	m.ActionDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "botcore_action_duration_seconds",
			Help:    "Action execution duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"action"},
	)

	m.ActionsDropped = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "botcore_actions_dropped_total",
			Help: "Action requests dropped before execution",
		},
		[]string{"reason"},
	)

	m.MemoryWritesTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "botcore_memory_writes_total",
			Help: "Memories stored by type",
		},
		[]string{"type"},
	)

	m.LearningEventsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "botcore_learning_events_total",
			Help: "Interactions recorded by the learning system",
		},
		[]string{"bot"},
	)

	m.LLMTokensTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "botcore_llm_tokens_total",
			Help: "LLM tokens consumed by model and kind",
		},
		[]string{"model", "kind"},
	)

	m.LLMCostUSD = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "botcore_llm_cost_usd_total",
			Help: "Estimated LLM spend in USD",
		},
		[]string{"model"},
	)

	return m
}

// RecordMessage records a finished pipeline run.
func (m *Metrics) RecordMessage(bot, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.MessagesTotal.WithLabelValues(bot, status).Inc()
	m.MessageDuration.WithLabelValues(bot).Observe(d.Seconds())
}

// RecordStage records the duration of one pipeline stage.
func (m *Metrics) RecordStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordKnowledgeQuery records a knowledge lookup.
func (m *Metrics) RecordKnowledgeQuery(cacheHit, found bool) {
	if m == nil {
		return
	}
	cache := "miss"
	if cacheHit {
		cache = "hit"
	}
	f := "false"
	if found {
		f = "true"
	}
	m.KnowledgeQueriesTotal.WithLabelValues(cache, f).Inc()
}

// RecordAction records one action execution.
func (m *Metrics) RecordAction(action string, success bool, d time.Duration) {
	if m == nil {
		return
	}
	status := "success"
	if !success {
		status = "error"
	}
	m.ActionsTotal.WithLabelValues(action, status).Inc()
	m.ActionDuration.WithLabelValues(action).Observe(d.Seconds())
}

// RecordDropped counts requests dropped for the given reason.
func (m *Metrics) RecordDropped(reason string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ActionsDropped.WithLabelValues(reason).Add(float64(n))
}

func (m *Metrics) RecordMemoryWrite(memType string) {
	if m == nil {
		return
	}
	m.MemoryWritesTotal.WithLabelValues(memType).Inc()
}

func (m *Metrics) RecordLearning(bot string) {
	if m == nil {
		return
	}
	m.LearningEventsTotal.WithLabelValues(bot).Inc()
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// RecordLLMUsage adds token counts and estimated cost for one completion.
func (m *Metrics) RecordLLMUsage(modelName string, prompt, completion int, costUSD float64) {
	if m == nil {
		return
	}
	m.LLMTokensTotal.WithLabelValues(modelName, "prompt").Add(float64(prompt))
	m.LLMTokensTotal.WithLabelValues(modelName, "completion").Add(float64(completion))
	if costUSD > 0 {
		m.LLMCostUSD.WithLabelValues(modelName).Add(costUSD)
	}
}

// TrackInFlight bumps the in-flight gauge and returns its release.
func (m *Metrics) TrackInFlight() func() {
	if m == nil {
		return func() {}
	}
	m.MessagesInFlight.Inc()
	return m.MessagesInFlight.Dec
}
