// Package metrics exposes Prometheus counters and histograms for the
// processing pipeline and HTTP surface.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DocumentsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "doctagger",
		Name:      "documents_processed_total",
		Help:      "Documents processed, by final status.",
	}, []string{"status"})

	ProcessingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "doctagger",
		Name:      "processing_duration_seconds",
		Help:      "End to end pipeline duration per document.",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
	})

	StageFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "doctagger",
		Name:      "stage_failures_total",
		Help:      "Pipeline failures, by stage.",
	}, []string{"stage"})

	EmptyExtractions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "doctagger",
		Name:      "empty_extractions_total",
		Help:      "Documents whose text extraction produced no text.",
	})

	OCRRuns = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "doctagger",
		Name:      "ocr_runs_total",
		Help:      "Documents that went through OCR.",
	})

	BatchRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "doctagger",
		Name:      "batch_runs_total",
		Help:      "Batch runs, by terminal status.",
	}, []string{"status"})

	InboxDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "doctagger",
		Name:      "inbox_depth",
		Help:      "PDF files currently waiting in the inbox.",
	})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "doctagger",
		Name:      "http_requests_total",
		Help:      "HTTP requests, by method, path and status code.",
	}, []string{"method", "path", "code"})
)
