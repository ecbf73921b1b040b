package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is a centralized interface for the agent core's Prometheus
// instrumentation. It tracks:
//   - LLM Gateway request performance, token usage, and estimated cost
//   - Tool execution counts and latencies, including retries and panics
//   - Conversation compaction frequency and context-window utilization
//   - Scheduler fires, by outcome
//   - Error rates categorized by component
//   - Active session counts and admin HTTP surface traffic
//
// Usage:
//
//	metrics := observability.NewMetrics()
//	metrics.RecordLLMRequest("anthropic", "claude-3-opus", "success", time.Since(start).Seconds(), 100, 500)
type Metrics struct {
	// LLMRequestDuration measures Gateway.Generate latency in seconds.
	// Labels: provider (anthropic|openai), model
	LLMRequestDuration *prometheus.HistogramVec

	// LLMRequestCounter counts Gateway requests by provider, model, and outcome.
	// Labels: provider, model, status (success|error)
	LLMRequestCounter *prometheus.CounterVec

	// LLMRetryCounter counts retry attempts the Agent Loop made around a
	// Gateway call, by outcome of the attempt that followed.
	// Labels: provider, status (retried|exhausted)
	LLMRetryCounter *prometheus.CounterVec

	// LLMTokensUsed tracks token consumption by provider, model, and kind.
	// Labels: provider, model, type (prompt|completion)
	LLMTokensUsed *prometheus.CounterVec

	// LLMCostUSD tracks estimated API cost in USD.
	// Labels: provider, model
	LLMCostUSD *prometheus.CounterVec

	// ToolExecutionCounter counts tool invocations by name and outcome.
	// Labels: tool_name, status (success|error|panic)
	ToolExecutionCounter *prometheus.CounterVec

	// ToolExecutionDuration measures tool execution time in seconds.
	// Labels: tool_name
	ToolExecutionDuration *prometheus.HistogramVec

	// CompactionCounter counts conversation compactions by outcome.
	// Labels: status (success|error)
	CompactionCounter *prometheus.CounterVec

	// ContextWindowUsed tracks estimated token count at compaction checks.
	// Labels: model
	ContextWindowUsed *prometheus.HistogramVec

	// SchedulerFireCounter counts scheduled task fires by outcome.
	// Labels: kind (cron|one_shot|reminder|daily_briefing|heartbeat), status (success|error|panic)
	SchedulerFireCounter *prometheus.CounterVec

	// ErrorCounter tracks errors by component and error type.
	// Labels: component (loop|tool|scheduler|storage|adminapi), error_type
	ErrorCounter *prometheus.CounterVec

	// ActiveSessions is a gauge of currently active conversation sessions.
	ActiveSessions prometheus.Gauge

	// HTTPRequestDuration measures admin HTTP surface request latency.
	// Labels: method, path, status_code
	HTTPRequestDuration *prometheus.HistogramVec

	// HTTPRequestCounter counts admin HTTP surface requests.
	// Labels: method, path, status_code
	HTTPRequestCounter *prometheus.CounterVec

	// RateLimitRejections counts messages rejected by the per-user rate
	// limiter before reaching the Agent Loop.
	RateLimitRejections prometheus.Counter
}

// NewMetrics creates and registers every Prometheus metric. Call once at
// process startup; the resulting *Metrics is safe for concurrent use.
func NewMetrics() *Metrics {
	return &Metrics{
		LLMRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentcore_llm_request_duration_seconds",
				Help:    "Duration of LLM Gateway requests in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider", "model"},
		),

		LLMRequestCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_llm_requests_total",
				Help: "Total number of LLM Gateway requests by provider, model, and status",
			},
			[]string{"provider", "model", "status"},
		),

		LLMRetryCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_llm_retries_total",
				Help: "Total number of Agent Loop retry attempts around a Gateway call",
			},
			[]string{"provider", "status"},
		),

		LLMTokensUsed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_llm_tokens_total",
				Help: "Total number of tokens used by provider, model, and type",
			},
			[]string{"provider", "model", "type"},
		),

		LLMCostUSD: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_llm_cost_usd_total",
				Help: "Estimated LLM Gateway cost in USD",
			},
			[]string{"provider", "model"},
		),

		ToolExecutionCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_tool_executions_total",
				Help: "Total number of tool executions by tool name and status",
			},
			[]string{"tool_name", "status"},
		),

		ToolExecutionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentcore_tool_execution_duration_seconds",
				Help:    "Duration of tool executions in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"tool_name"},
		),

		CompactionCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_compactions_total",
				Help: "Total number of conversation compactions by status",
			},
			[]string{"status"},
		),

		ContextWindowUsed: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentcore_context_window_tokens",
				Help:    "Estimated token count observed at compaction checks",
				Buckets: []float64{1000, 4000, 8000, 16000, 32000, 64000, 128000},
			},
			[]string{"model"},
		),

		SchedulerFireCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_scheduler_fires_total",
				Help: "Total number of scheduled task fires by kind and status",
			},
			[]string{"kind", "status"},
		),

		ErrorCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_errors_total",
				Help: "Total number of errors by component and error type",
			},
			[]string{"component", "error_type"},
		),

		ActiveSessions: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "agentcore_active_sessions",
				Help: "Current number of active conversation sessions",
			},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentcore_http_request_duration_seconds",
				Help:    "Duration of admin HTTP surface requests in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"method", "path", "status_code"},
		),

		HTTPRequestCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_http_requests_total",
				Help: "Total number of admin HTTP surface requests",
			},
			[]string{"method", "path", "status_code"},
		),

		RateLimitRejections: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "agentcore_rate_limit_rejections_total",
				Help: "Total number of messages rejected by the per-user rate limiter",
			},
		),
	}
}

// RecordLLMRequest records one Gateway.Generate attempt's outcome, latency,
// and token usage.
func (m *Metrics) RecordLLMRequest(provider, model, status string, durationSeconds float64, promptTokens, completionTokens int) {
	m.LLMRequestCounter.WithLabelValues(provider, model, status).Inc()
	m.LLMRequestDuration.WithLabelValues(provider, model).Observe(durationSeconds)
	if promptTokens > 0 {
		m.LLMTokensUsed.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		m.LLMTokensUsed.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
	}
}

// RecordLLMRetry records one Agent Loop retry attempt around a failed
// Gateway call. status is "retried" if another attempt followed, or
// "exhausted" if the call failed for good after at least one retry.
func (m *Metrics) RecordLLMRetry(provider, status string) {
	m.LLMRetryCounter.WithLabelValues(provider, status).Inc()
}

// RecordLLMCost records estimated API cost.
func (m *Metrics) RecordLLMCost(provider, model string, costUSD float64) {
	m.LLMCostUSD.WithLabelValues(provider, model).Add(costUSD)
}

// RecordToolExecution records one tool invocation's outcome and duration.
// status is "success", "error", or "panic".
func (m *Metrics) RecordToolExecution(toolName, status string, durationSeconds float64) {
	m.ToolExecutionCounter.WithLabelValues(toolName, status).Inc()
	m.ToolExecutionDuration.WithLabelValues(toolName).Observe(durationSeconds)
}

// RecordCompaction records one Compactor.Compact call's outcome.
func (m *Metrics) RecordCompaction(status string) {
	m.CompactionCounter.WithLabelValues(status).Inc()
}

// RecordContextWindow records the estimated token count observed at a
// ShouldCompact check.
func (m *Metrics) RecordContextWindow(model string, tokensUsed int) {
	m.ContextWindowUsed.WithLabelValues(model).Observe(float64(tokensUsed))
}

// RecordSchedulerFire records one scheduled task fire's outcome.
func (m *Metrics) RecordSchedulerFire(kind, status string) {
	m.SchedulerFireCounter.WithLabelValues(kind, status).Inc()
}

// RecordError increments the error counter for a component and error type.
func (m *Metrics) RecordError(component, errorType string) {
	m.ErrorCounter.WithLabelValues(component, errorType).Inc()
}

// SessionStarted increments the active sessions gauge.
func (m *Metrics) SessionStarted() {
	m.ActiveSessions.Inc()
}

// SessionEnded decrements the active sessions gauge.
func (m *Metrics) SessionEnded() {
	m.ActiveSessions.Dec()
}

// RecordHTTPRequest records one admin HTTP surface request.
func (m *Metrics) RecordHTTPRequest(method, path, statusCode string, durationSeconds float64) {
	m.HTTPRequestCounter.WithLabelValues(method, path, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path, statusCode).Observe(durationSeconds)
}

// RecordRateLimitRejection records a message rejected before it reached the
// Agent Loop.
func (m *Metrics) RecordRateLimitRejection() {
	m.RateLimitRejections.Inc()
}
