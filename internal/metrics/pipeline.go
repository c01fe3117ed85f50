package metrics

import "github.com/prometheus/client_golang/prometheus"

// Ingestion metrics.
var (
	IngestDocumentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_documents_total",
			Help:      "Documents seen by the ingestion pipeline, by outcome",
		},
		[]string{"outcome"}, // "ingested" / "skipped" / "failed"
	)

	IngestChunksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_chunks_total",
			Help:      "Chunks embedded and stored",
		},
	)
)

// Query metrics.
var (
	PipelineRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_runs_total",
			Help:      "Question-answering runs, by final state",
		},
		[]string{"state"},
	)

	PipelineStageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_stage_duration_seconds",
			Help:      "Duration of each pipeline stage in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
		[]string{"stage"},
	)
)

func init() {
	prometheus.MustRegister(
		IngestDocumentsTotal,
		IngestChunksTotal,
		PipelineRunsTotal,
		PipelineStageDuration,
	)
}
