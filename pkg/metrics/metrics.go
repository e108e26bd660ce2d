// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// FetchPagesTotal counts history page requests by outcome.
	FetchPagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetch_pages_total",
			Help: "History page requests by outcome",
		},
		[]string{"outcome"},
	)

	// FetchRateLimitWaitSeconds tracks time spent waiting on 429 responses.
	FetchRateLimitWaitSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fetch_rate_limit_wait_seconds",
			Help:    "Time spent backing off after a rate limit response",
			Buckets: []float64{.5, 1, 2, 5, 10, 30, 60},
		},
	)

	// FetchMessages tracks how many messages a pagination run returned.
	FetchMessages = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fetch_messages",
			Help:    "Messages returned per pagination run",
			Buckets: []float64{0, 10, 50, 100, 250, 500, 1000, 5000},
		},
	)

	// FetchFallbacksTotal counts runs that fell back to the local cache.
	FetchFallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fetch_cache_fallbacks_total",
			Help: "Pagination runs answered from the local message cache",
		},
	)

	// StoreSavesTotal counts conversation store writes.
	StoreSavesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_saves_total",
			Help: "Conversation store saves by trigger and status",
		},
		[]string{"trigger", "status"},
	)

	// StoreEntries tracks the number of stored conversation entries.
	StoreEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "store_conversation_entries",
			Help: "Conversation entries held in memory",
		},
	)

	// LLMRequestDuration tracks completion request duration.
	LLMRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_request_duration_seconds",
			Help:    "LLM completion request duration",
			Buckets: []float64{.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"provider", "status"},
	)

	// LLMTokensTotal tracks total LLM tokens processed.
	LLMTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_tokens_total",
			Help: "Total LLM tokens processed",
		},
		[]string{"model", "direction"},
	)

	// ExportsTotal counts exports by kind.
	ExportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exports_total",
			Help: "Completed exports",
		},
		[]string{"kind"},
	)

	// NotificationDecisionsTotal counts suppression decisions.
	NotificationDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_decisions_total",
			Help: "Notification suppression decisions",
		},
		[]string{"decision", "reason"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordLLMRequest records metrics for a completion request.
func RecordLLMRequest(provider, model, status string, duration float64, tokensIn, tokensOut int) {
	LLMRequestDuration.WithLabelValues(provider, status).Observe(duration)
	if status != "success" {
		return
	}
	LLMTokensTotal.WithLabelValues(model, "in").Add(float64(tokensIn))
	LLMTokensTotal.WithLabelValues(model, "out").Add(float64(tokensOut))
}

// RecordSave records a conversation store write.
func RecordSave(trigger string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	StoreSavesTotal.WithLabelValues(trigger, status).Inc()
}

// RecordDecision records a notification suppression decision.
func RecordDecision(suppress bool, reason string) {
	decision := "notify"
	if suppress {
		decision = "suppress"
	}
	NotificationDecisionsTotal.WithLabelValues(decision, reason).Inc()
}
