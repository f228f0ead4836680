// Package prometheus implements the metrics collector port.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector implements ports.MetricsCollector using Prometheus.
type Collector struct {
	sessionsStarted   prometheus.Counter
	sessionsCompleted *prometheus.CounterVec
	sessionDuration   *prometheus.HistogramVec
	stageDuration     *prometheus.HistogramVec
	agentRuns         *prometheus.CounterVec
	agentDuration     *prometheus.HistogramVec
	toolCalls         *prometheus.CounterVec
	toolDuration      *prometheus.HistogramVec
	cacheHits         *prometheus.CounterVec
	llmTokens         *prometheus.CounterVec
	debateRounds      *prometheus.HistogramVec
	workerPoolIdle    prometheus.Gauge
	workerPoolBusy    prometheus.Gauge
	workerPoolStopped prometheus.Gauge
	activeSessions    prometheus.Gauge
	subscribers       prometheus.Gauge
}

// NewCollector creates a Prometheus metrics collector registered on the
// default registry.
func NewCollector() *Collector {
	return &Collector{
		sessionsStarted: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "arbiter_sessions_started_total",
				Help: "Total number of analysis sessions started",
			},
		),
		sessionsCompleted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arbiter_sessions_completed_total",
				Help: "Total number of analysis sessions reaching a terminal state",
			},
			[]string{"status"},
		),
		sessionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "arbiter_session_duration_seconds",
				Help:    "Analysis session duration in seconds",
				Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200, 1800},
			},
			[]string{"status"},
		),
		stageDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "arbiter_stage_duration_seconds",
				Help:    "Stage duration in seconds",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"stage"},
		),
		agentRuns: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arbiter_agent_runs_total",
				Help: "Total number of agent runs",
			},
			[]string{"role", "status"},
		),
		agentDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "arbiter_agent_run_duration_seconds",
				Help:    "Agent run duration in seconds",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"role"},
		),
		toolCalls: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arbiter_tool_calls_total",
				Help: "Total number of live tool calls",
			},
			[]string{"tool", "status"},
		),
		toolDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "arbiter_tool_call_duration_seconds",
				Help:    "Tool call duration in seconds",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 150},
			},
			[]string{"tool"},
		),
		cacheHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arbiter_tool_cache_hits_total",
				Help: "Total number of tool cache hits",
			},
			[]string{"tool"},
		),
		llmTokens: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arbiter_llm_tokens_total",
				Help: "Total number of LLM tokens used",
			},
			[]string{"model", "type"},
		),
		debateRounds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "arbiter_debate_rounds",
				Help:    "Rounds taken per debate before resolution",
				Buckets: []float64{1, 2, 3, 4, 5},
			},
			[]string{"stage"},
		),
		workerPoolIdle: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "arbiter_worker_pool_idle",
				Help: "Number of idle dispatch workers",
			},
		),
		workerPoolBusy: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "arbiter_worker_pool_busy",
				Help: "Number of busy dispatch workers",
			},
		),
		workerPoolStopped: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "arbiter_worker_pool_stopped",
				Help: "Number of stopped dispatch workers",
			},
		),
		activeSessions: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "arbiter_active_sessions",
				Help: "Number of currently running analysis sessions",
			},
		),
		subscribers: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "arbiter_event_subscribers",
				Help: "Number of active event subscriptions",
			},
		),
	}
}

func (c *Collector) RecordSessionStarted() {
	c.sessionsStarted.Inc()
}

func (c *Collector) RecordSessionCompleted(status string, duration time.Duration) {
	c.sessionsCompleted.WithLabelValues(status).Inc()
	c.sessionDuration.WithLabelValues(status).Observe(duration.Seconds())
}

func (c *Collector) RecordStageDuration(stage string, duration time.Duration) {
	c.stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

func (c *Collector) RecordAgentRun(role, status string, duration time.Duration) {
	c.agentRuns.WithLabelValues(role, status).Inc()
	c.agentDuration.WithLabelValues(role).Observe(duration.Seconds())
}

func (c *Collector) RecordToolCall(tool, status string, duration time.Duration) {
	c.toolCalls.WithLabelValues(tool, status).Inc()
	c.toolDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

func (c *Collector) RecordCacheHit(tool string) {
	c.cacheHits.WithLabelValues(tool).Inc()
}

func (c *Collector) RecordLLMTokens(model string, input, output int) {
	c.llmTokens.WithLabelValues(model, "input").Add(float64(input))
	c.llmTokens.WithLabelValues(model, "output").Add(float64(output))
}

func (c *Collector) RecordDebateRounds(stage string, rounds int) {
	c.debateRounds.WithLabelValues(stage).Observe(float64(rounds))
}

func (c *Collector) RecordWorkerPoolStatus(idle, busy, stopped int) {
	c.workerPoolIdle.Set(float64(idle))
	c.workerPoolBusy.Set(float64(busy))
	c.workerPoolStopped.Set(float64(stopped))
}

func (c *Collector) SetActiveSessions(n int) {
	c.activeSessions.Set(float64(n))
}

func (c *Collector) SetSubscribers(n int) {
	c.subscribers.Set(float64(n))
}
