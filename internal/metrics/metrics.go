// Package metrics implements the counter/gauge/histogram surface described
// in spec §4.6: a per-request accumulator folded into process-global,
// Prometheus-backed instrumentation after each request completes.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// responseTimeBucketsMS are the fixed histogram buckets spec §4.6 names, in
// milliseconds.
var responseTimeBucketsMS = []float64{0.1, 0.5, 1, 2.5, 5, 7.5, 10, 25, 50, 75, 100, 250, 500, 750, 1000}

// Registry owns the process-global counters, gauges, and histograms. The
// engine holds one Registry for its lifetime; an external exporter mounts
// Handler() to serve it.
type Registry struct {
	reg *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	responseTimeMS  *prometheus.HistogramVec
	questionTimeMS  *prometheus.HistogramVec

	authoritativeHitsTotal *prometheus.CounterVec
	overrideHitsTotal      *prometheus.CounterVec
	blockedTotal           *prometheus.CounterVec
	cacheHitsTotal         *prometheus.CounterVec
	cacheMissesTotal       *prometheus.CounterVec
	nameserverHitsTotal    *prometheus.CounterVec
	nameserverMissesTotal  *prometheus.CounterVec

	cacheSize          prometheus.GaugeFunc
	cacheOverflowCount prometheus.Counter
	cacheExpiredTotal  prometheus.Counter
	cachePrunedTotal   prometheus.Counter
}

// NewRegistry creates a Registry on a private prometheus.Registry (not the
// global default, so multiple engines in one process, as in tests, never
// collide). cacheSizeFunc is polled on each /metrics scrape.
func NewRegistry(cacheSizeFunc func() float64) *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		reg: reg,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "homedns_requests_total",
			Help: "DNS requests processed, labeled by protocol/rcode/qtype/qclass/rd.",
		}, []string{"protocol", "rcode", "qtype", "qclass", "rd"}),
		responseTimeMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "homedns_response_time_ms",
			Help:    "Total time to answer a request, in milliseconds.",
			Buckets: responseTimeBucketsMS,
		}, []string{"protocol"}),
		questionTimeMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "homedns_question_time_ms",
			Help:    "Time to resolve a single question, in milliseconds.",
			Buckets: responseTimeBucketsMS,
		}, []string{"qtype"}),
		cacheOverflowCount: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "homedns_cache_overflow_total",
			Help: "Count of cache inserts that grew current_size past desired_size.",
		}),
		cacheExpiredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "homedns_cache_expired_total",
			Help: "Count of entries removed by remove_expired.",
		}),
		cachePrunedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "homedns_cache_pruned_total",
			Help: "Count of namespaces evicted by prune's LRU sweep.",
		}),
		authoritativeHitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "homedns_authoritative_hits_total",
			Help: "Questions answered directly from an authoritative zone.",
		}, requestLabelNames),
		overrideHitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "homedns_override_hits_total",
			Help: "Questions answered from a hosts-derived override zone.",
		}, requestLabelNames),
		blockedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "homedns_blocked_total",
			Help: "Questions answered with a blocklist sinkhole record.",
		}, requestLabelNames),
		cacheHitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "homedns_cache_hits_total",
			Help: "Questions answered from the cache.",
		}, requestLabelNames),
		cacheMissesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "homedns_cache_misses_total",
			Help: "Cache lookups that found nothing usable.",
		}, requestLabelNames),
		nameserverHitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "homedns_nameserver_hits_total",
			Help: "Upstream nameserver queries that returned a usable answer.",
		}, requestLabelNames),
		nameserverMissesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "homedns_nameserver_misses_total",
			Help: "Upstream nameserver queries that did not.",
		}, requestLabelNames),
	}
	r.cacheSize = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "homedns_cache_size",
		Help: "Current total number of cached entries.",
	}, cacheSizeFunc)

	reg.MustRegister(r.requestsTotal, r.responseTimeMS, r.questionTimeMS,
		r.cacheOverflowCount, r.cacheExpiredTotal, r.cachePrunedTotal, r.cacheSize,
		r.authoritativeHitsTotal, r.overrideHitsTotal, r.blockedTotal,
		r.cacheHitsTotal, r.cacheMissesTotal, r.nameserverHitsTotal, r.nameserverMissesTotal)

	return r
}

// requestLabelNames is the label set shared by requests_total and every
// per-request counter folded in from a Context's Counters (spec §4.6).
var requestLabelNames = []string{"protocol", "rcode", "qtype", "qclass", "rd"}

// Handler exposes the registry for an external Prometheus exporter to
// scrape; mounting it on an HTTP server is an external collaborator's job
// (spec §1), this is the engine's side of that contract.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// RecordRequest counts one completed request under its labels and observes
// its total response time. The request's Counters are folded in separately,
// by RecordCounters.
func (r *Registry) RecordRequest(protocol, rcode, qtype, qclass string, rd bool, elapsed time.Duration) {
	rdLabel := "0"
	if rd {
		rdLabel = "1"
	}
	r.requestsTotal.WithLabelValues(protocol, rcode, qtype, qclass, rdLabel).Inc()
	r.responseTimeMS.WithLabelValues(protocol).Observe(float64(elapsed.Microseconds()) / 1000.0)
}

// RecordQuestionTime records the processing time for a single question.
func (r *Registry) RecordQuestionTime(qtype string, elapsed time.Duration) {
	r.questionTimeMS.WithLabelValues(qtype).Observe(float64(elapsed.Microseconds()) / 1000.0)
}

// RecordCounters folds a completed request's Counters accumulator into the
// process-global per-request counters, under the same labels as
// RecordRequest (spec §4.6: "the transport layer folds these into
// process-global counters keyed by" protocol/rcode/qtype/qclass/rd).
func (r *Registry) RecordCounters(protocol, rcode, qtype, qclass string, rd bool, c *Counters) {
	if c == nil {
		return
	}
	rdLabel := "0"
	if rd {
		rdLabel = "1"
	}
	labels := []string{protocol, rcode, qtype, qclass, rdLabel}
	addIfPositive(r.authoritativeHitsTotal, labels, c.AuthoritativeHits)
	addIfPositive(r.overrideHitsTotal, labels, c.OverrideHits)
	addIfPositive(r.blockedTotal, labels, c.Blocked)
	addIfPositive(r.cacheHitsTotal, labels, c.CacheHits)
	addIfPositive(r.cacheMissesTotal, labels, c.CacheMisses)
	addIfPositive(r.nameserverHitsTotal, labels, c.NameserverHits)
	addIfPositive(r.nameserverMissesTotal, labels, c.NameserverMisses)
	if c.CacheOverflows > 0 {
		r.cacheOverflowCount.Add(float64(c.CacheOverflows))
	}
}

func addIfPositive(vec *prometheus.CounterVec, labels []string, n int) {
	if n <= 0 {
		return
	}
	vec.WithLabelValues(labels...).Add(float64(n))
}

// RecordCacheExpired adds n to the cache_expired_total counter.
func (r *Registry) RecordCacheExpired(n int) { r.cacheExpiredTotal.Add(float64(n)) }

// RecordCachePruned adds n to the cache_pruned_total counter.
func (r *Registry) RecordCachePruned(n int) { r.cachePrunedTotal.Add(float64(n)) }

// Counters is the per-request accumulator attached to a resolver Context
// (spec §4.6): a plain counter bag with no locking, since one Context never
// escapes its owning request's single goroutine.
type Counters struct {
	AuthoritativeHits int
	OverrideHits      int
	Blocked           int
	CacheHits         int
	CacheMisses       int
	NameserverHits    int
	NameserverMisses  int
	CacheOverflows    int
}
