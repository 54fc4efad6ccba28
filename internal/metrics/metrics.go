package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sippy_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sippy_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	WebhookDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sippy_webhook_deliveries_total",
			Help: "Inbound chat deliveries by transport and outcome",
		},
		[]string{"transport", "outcome"}, // "accepted", "malformed", "ignored"
	)

	// Interpreter metrics
	GateVerdicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sippy_gate_verdicts_total",
			Help: "Ingestion gate verdicts",
		},
		[]string{"verdict"},
	)

	GateSwept = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sippy_gate_swept_entries_total",
			Help: "Dedup and spam entries evicted by the sweeper",
		},
	)

	CommandsParsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sippy_commands_parsed_total",
			Help: "Resolved commands by kind and resolver",
		},
		[]string{"kind", "resolver"}, // resolver: "matcher" or "augmenter"
	)

	AugmenterStatuses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sippy_augmenter_status_total",
			Help: "Natural-language augmenter outcomes",
		},
		[]string{"status"},
	)

	ClassifierLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sippy_classifier_latency_seconds",
			Help:    "Classification model call latency",
			Buckets: []float64{.1, .25, .5, 1, 2, 3, 5},
		},
	)

	Verifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sippy_send_verifications_total",
			Help: "Send-intent verifier outcomes",
		},
		[]string{"outcome"}, // "accepted" or a mismatch reason
	)

	GuardrailVerdicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sippy_guardrail_verdicts_total",
			Help: "Guardrail verdicts for financial commands",
		},
		[]string{"verdict"}, // "allowed" or a denial reason
	)

	TransfersExecuted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sippy_transfers_executed_total",
			Help: "Transfers completed by the executor",
		},
	)

	PipelinePanics = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sippy_pipeline_panics_total",
			Help: "Panics recovered while handling a message",
		},
	)
)
