package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ScansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eventsack_scans_total",
		Help: "Total number of scan runs, labelled by data source.",
	}, []string{"data_source"})

	CandidatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eventsack_candidates_total",
		Help: "Candidate events counted at the end of each pipeline stage.",
	}, []string{"stage"})

	ClassifierFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eventsack_classifier_fallbacks_total",
		Help: "Classifier batches that fell back to the local policy, labelled by stage and reason.",
	}, []string{"stage", "reason"})

	BriefsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eventsack_briefs_created_total",
		Help: "Total number of research briefs persisted.",
	})

	BriefsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eventsack_briefs_failed_total",
		Help: "Brief writes that were skipped, labelled by reason.",
	}, []string{"reason"})

	IngestedItems = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eventsack_ingested_items_total",
		Help: "Items pushed to the ingest endpoint, labelled by outcome.",
	}, []string{"outcome"})

	ScanDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "eventsack_scan_duration_seconds",
		Help:    "End-to-end scan latency in seconds.",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	})
)

// stage labels
const (
	EXTRACTED  = "extracted"
	GATEKEEPER = "gatekeeper"
	ENRICHMENT = "enrichment"
)

// fallback reasons
const (
	UNAVAILABLE = "unavailable"
	FAILED      = "failed"
)
