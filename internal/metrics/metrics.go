// Package metrics holds the Prometheus collectors for store availability,
// reconciliation outcomes, multi-store writes and the cache.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is safe to use as a nil pointer; every recorder is then a no-op.
type Metrics struct {
	registry *prometheus.Registry

	reconcileItems  *prometheus.CounterVec
	reconcilePasses *prometheus.CounterVec
	passDuration    prometheus.Histogram
	retries         prometheus.Counter

	writes   *prometheus.CounterVec
	repoints *prometheus.CounterVec
	storeUp  *prometheus.GaugeVec

	cacheRequests      *prometheus.CounterVec
	cacheInvalidations *prometheus.CounterVec
}

// New builds a private registry with the process and Go collectors plus ours.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		reconcileItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shelfsync_reconcile_items_total",
			Help: "Items processed by reconciliation passes by outcome",
		}, []string{"direction", "outcome"}),
		reconcilePasses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shelfsync_reconcile_passes_total",
			Help: "Reconciliation passes by result",
		}, []string{"direction", "result"}),
		passDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "shelfsync_reconcile_pass_seconds",
			Help:    "Duration of reconciliation passes",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shelfsync_reconcile_retries_total",
			Help: "Retried write attempts during reconciliation",
		}),
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shelfsync_writes_total",
			Help: "Multi-store book writes by operation and result",
		}, []string{"operation", "result"}),
		repoints: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shelfsync_store_repoints_total",
			Help: "Store repoint attempts by store and result",
		}, []string{"store", "result"}),
		storeUp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "shelfsync_store_available",
			Help: "1 when the store has a usable connection",
		}, []string{"store"}),
		cacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shelfsync_cache_requests_total",
			Help: "Cache lookups by namespace kind and result",
		}, []string{"namespace", "result"}),
		cacheInvalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shelfsync_cache_invalidations_total",
			Help: "Namespace invalidations",
		}, []string{"namespace"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.reconcileItems, m.reconcilePasses, m.passDuration, m.retries,
		m.writes, m.repoints, m.storeUp,
		m.cacheRequests, m.cacheInvalidations,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ReconcileItem(direction, outcome string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.reconcileItems.WithLabelValues(direction, outcome).Add(float64(n))
}

func (m *Metrics) ReconcilePass(direction string, err error, took time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.reconcilePasses.WithLabelValues(direction, result).Inc()
	m.passDuration.Observe(took.Seconds())
}

func (m *Metrics) Retry() {
	if m == nil {
		return
	}
	m.retries.Inc()
}

func (m *Metrics) Write(operation string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.writes.WithLabelValues(operation, result).Inc()
}

func (m *Metrics) Repoint(store string, success bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !success {
		result = "error"
	}
	m.repoints.WithLabelValues(store, result).Inc()
}

func (m *Metrics) StoreAvailable(store string, up bool) {
	if m == nil {
		return
	}
	v := 0.0
	if up {
		v = 1
	}
	m.storeUp.WithLabelValues(store).Set(v)
}

// CacheLookup records a hit or miss. Reader-scoped namespaces are folded into
// one label value to keep cardinality bounded.
func (m *Metrics) CacheLookup(namespace string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheRequests.WithLabelValues(namespaceKind(namespace), result).Inc()
}

func (m *Metrics) CacheInvalidation(namespace string) {
	if m == nil {
		return
	}
	m.cacheInvalidations.WithLabelValues(namespaceKind(namespace)).Inc()
}

func namespaceKind(ns string) string {
	for i := 0; i < len(ns); i++ {
		if ns[i] == ':' {
			return ns[:i]
		}
	}
	return ns
}
