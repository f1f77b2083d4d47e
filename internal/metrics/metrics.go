package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "alertstate"

// Metrics groups the service collectors on one private registry.
// Params: none; build with New.
// Returns: collectors used by manager, ingest and notify paths.
type Metrics struct {
	registry *prometheus.Registry

	// State machine metrics
	ResultsTotal       *prometheus.CounterVec
	TransitionsTotal   *prometheus.CounterVec
	Instances          prometheus.Gauge
	ApplyDuration      prometheus.Histogram
	UnknownRuleResults *prometheus.CounterVec
	DroppedResults     *prometheus.CounterVec

	// Persistence metrics
	PersistTotal *prometheus.CounterVec

	// Notify metrics
	NotificationsTotal *prometheus.CounterVec

	// Ingest metrics
	IngestRequestsTotal *prometheus.CounterVec
	IngestBatchSize     prometheus.Histogram

	// GC metrics
	GCRemovedTotal prometheus.Counter
}

// New registers all collectors on a fresh registry.
// Params: none.
// Returns: ready metrics set.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		ResultsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "results_total",
				Help:      "Evaluation results applied, by outcome",
			},
			[]string{"outcome"},
		),
		TransitionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transitions_total",
				Help:      "Instance state changes, by previous and next state",
			},
			[]string{"from", "to"},
		),
		Instances: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "instances",
				Help:      "Instances currently held in the cache",
			},
		),
		ApplyDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "apply_duration_seconds",
				Help:      "Time spent applying one result end to end",
				Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
			},
		),
		UnknownRuleResults: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "unknown_rule_results_total",
				Help:      "Results dropped because the rule is not configured",
			},
			[]string{"org_id"},
		),
		DroppedResults: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dropped_results_total",
				Help:      "Results ignored by ordering guards, by reason",
			},
			[]string{"reason"},
		),
		PersistTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "persist_total",
				Help:      "Snapshot store operations, by operation and status",
			},
			[]string{"op", "status"},
		),
		NotificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_total",
				Help:      "Notification jobs announced, by state and status",
			},
			[]string{"state", "status"},
		),
		IngestRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ingest_requests_total",
				Help:      "Ingest requests, by transport and status",
			},
			[]string{"transport", "status"},
		),
		IngestBatchSize: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "ingest_batch_size",
				Help:      "Results per ingest request",
				Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
			},
		),
		GCRemovedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gc_removed_total",
				Help:      "Instances removed by garbage collection",
			},
		),
	}
}

// Registry exposes the private registry for tests and custom exporters.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
