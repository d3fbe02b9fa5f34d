package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "promptcompliance_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "promptcompliance_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	LLMRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "promptcompliance_llm_requests_total",
		Help: "Total LLM requests",
	}, []string{"provider", "status"})

	LLMRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "promptcompliance_llm_request_duration_seconds",
		Help:    "LLM request duration",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"provider"})

	EvaluationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "promptcompliance_evaluations_total",
		Help: "Evaluations persisted",
	})

	EvaluationOverallScore = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "promptcompliance_evaluation_overall_score",
		Help:    "Distribution of overall evaluation scores",
		Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
	})

	JudgeDegradedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "promptcompliance_judge_degraded_total",
		Help: "Guideline judge calls that fell back to degraded results",
	}, []string{"reason"})

	PromptVersionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "promptcompliance_prompt_versions_total",
		Help: "Prompt versions saved",
	})

	ImproverFallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "promptcompliance_improver_fallbacks_total",
		Help: "Prompt rewrites that used the deterministic auto-adjustments fallback",
	})

	DatasetReloadsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "promptcompliance_reference_dataset_reloads_total",
		Help: "Reference dataset reloads triggered by a modification-time change",
	})
)
