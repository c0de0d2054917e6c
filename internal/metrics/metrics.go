package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry is the custom prometheus registry for SynapseStrike metrics
var Registry = prometheus.NewRegistry()

var (
	// DecisionsTotal tracks pipeline verdicts by decision
	DecisionsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "synapsestrike",
			Subsystem: "decision",
			Name:      "total",
			Help:      "Total number of decisions by verdict",
		},
		[]string{"decision"},
	)

	// PipelineDuration tracks end-to-end pipeline latency
	PipelineDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "synapsestrike",
			Subsystem: "pipeline",
			Name:      "duration_seconds",
			Help:      "Pipeline run duration in seconds",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 45, 60, 90, 120},
		},
		[]string{"pipeline"},
	)

	// AIRequestDuration tracks AI request latency as histogram
	AIRequestDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "synapsestrike",
			Subsystem: "ai",
			Name:      "request_duration_seconds",
			Help:      "AI request duration in seconds",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 45, 60, 90, 120},
		},
		[]string{"ai_model"},
	)

	// AICallsTotal tracks total AI calls
	AICallsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "synapsestrike",
			Subsystem: "ai",
			Name:      "calls_total",
			Help:      "Total number of AI calls",
		},
		[]string{"ai_model"},
	)

	// AIErrorsTotal tracks AI call errors
	AIErrorsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "synapsestrike",
			Subsystem: "ai",
			Name:      "errors_total",
			Help:      "Total number of AI call errors",
		},
		[]string{"ai_model"},
	)

	// LearningRunsTotal tracks learning pipeline outcomes
	LearningRunsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "synapsestrike",
			Subsystem: "learning",
			Name:      "runs_total",
			Help:      "Total number of learning runs by outcome",
		},
		[]string{"outcome"}, // outcome: "completed", "failed", "skipped"
	)

	// MemoryWritesTotal tracks vector store upserts per collection
	MemoryWritesTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "synapsestrike",
			Subsystem: "memory",
			Name:      "writes_total",
			Help:      "Total number of vector memory upserts",
		},
		[]string{"collection"},
	)

	// QueueClaimsTotal tracks learning-queue items claimed by workers
	QueueClaimsTotal = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: "synapsestrike",
			Subsystem: "learning",
			Name:      "queue_claims_total",
			Help:      "Total number of learning queue items claimed",
		},
	)

	// TradesRecordedTotal tracks closed trades accepted for learning
	TradesRecordedTotal = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: "synapsestrike",
			Subsystem: "learning",
			Name:      "trades_recorded_total",
			Help:      "Total number of closed trades recorded",
		},
	)
)

// RecordAICall records an AI call with its duration
func RecordAICall(aiModel string, duration time.Duration, hasError bool) {
	AIRequestDuration.WithLabelValues(aiModel).Observe(duration.Seconds())
	AICallsTotal.WithLabelValues(aiModel).Inc()
	if hasError {
		AIErrorsTotal.WithLabelValues(aiModel).Inc()
	}
}

// RecordDecision increments the verdict counter
func RecordDecision(decision string) {
	DecisionsTotal.WithLabelValues(decision).Inc()
}

// RecordLearningRun records a learning pipeline outcome
func RecordLearningRun(outcome string) {
	LearningRunsTotal.WithLabelValues(outcome).Inc()
}

// ObservePipeline records a pipeline run duration
func ObservePipeline(pipeline string, duration time.Duration) {
	PipelineDuration.WithLabelValues(pipeline).Observe(duration.Seconds())
}

// Init registers the default prometheus collectors
func Init() {
	Registry.MustRegister(collectors.NewGoCollector())
	Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
}
