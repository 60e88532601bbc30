package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ReconcileRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docket_reconcile_runs_total",
			Help: "Total reconciliation passes by result",
		},
		[]string{"result"},
	)

	ReconcileChanges = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "docket_reconcile_field_changes_total",
			Help: "Total field corrections persisted by reconciliation",
		},
	)

	ReconcileDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "docket_reconcile_duration_seconds",
			Help:    "Reconciliation pass duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
	)

	BucketsTracked = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "docket_msa_buckets",
			Help: "MSA buckets observed by the latest grouping pass",
		},
	)

	UnlinkedDocuments = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "docket_unlinked_documents",
			Help: "POs and invoices without an MSA link in the latest pass",
		},
	)

	DocumentsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "docket_documents_created_total",
			Help: "Total documents created",
		},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docket_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docket_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	SearchQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docket_search_queries_total",
			Help: "Total search queries by backend",
		},
		[]string{"backend"},
	)

	SearchIndexErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "docket_search_index_errors_total",
			Help: "Total failed search index writes",
		},
	)
)

func Init() {
	prometheus.MustRegister(ReconcileRuns)
	prometheus.MustRegister(ReconcileChanges)
	prometheus.MustRegister(ReconcileDuration)
	prometheus.MustRegister(BucketsTracked)
	prometheus.MustRegister(UnlinkedDocuments)
	prometheus.MustRegister(DocumentsCreated)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(SearchQueries)
	prometheus.MustRegister(SearchIndexErrors)
}

func Handler() http.Handler {
	return promhttp.Handler()
}
