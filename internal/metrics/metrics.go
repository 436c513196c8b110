// Package metrics exposes run counters through a per-process prometheus
// registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xconmik/buildata-automation/internal/model"
	"github.com/xconmik/buildata-automation/internal/pipeline"
	"github.com/xconmik/buildata-automation/internal/scrape"
)

var (
	_ scrape.CacheObserver = (*Metrics)(nil)
	_ pipeline.Observer    = (*Metrics)(nil)
)

// Metrics holds the collectors. Each instance has its own registry so tests
// and commands never collide on global registration.
type Metrics struct {
	Registry *prometheus.Registry

	LeadsProcessed      *prometheus.CounterVec
	LeadDuration        prometheus.Histogram
	ScrapeCache         *prometheus.CounterVec
	DropdownSelections  *prometheus.CounterVec
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New registers every collector, plus the Go and process collectors, on a
// fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		LeadsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leads_processed_total",
			Help: "Leads that reached a log row, by status.",
		}, []string{"status"}),
		LeadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "lead_duration_seconds",
			Help:    "Time from resolving a lead to its log row.",
			Buckets: []float64{1, 5, 10, 20, 30, 60, 120, 300},
		}),
		ScrapeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scrape_cache_total",
			Help: "Scrape coordinator lookups by kind and result.",
		}, []string{"kind", "result"}),
		DropdownSelections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dropdown_selections_total",
			Help: "Searchable dropdown selections by control and result.",
		}, []string{"control", "result"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Control server requests.",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Control server request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	m.Registry.MustRegister(
		m.LeadsProcessed,
		m.LeadDuration,
		m.ScrapeCache,
		m.DropdownSelections,
		m.HTTPRequests,
		m.HTTPRequestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// LeadProcessed implements pipeline.Observer.
func (m *Metrics) LeadProcessed(status model.LogStatus, elapsed time.Duration) {
	m.LeadsProcessed.WithLabelValues(string(status)).Inc()
	m.LeadDuration.Observe(elapsed.Seconds())
}

// ObserveCache implements scrape.CacheObserver.
func (m *Metrics) ObserveCache(kind scrape.Kind, result string) {
	m.ScrapeCache.WithLabelValues(string(kind), result).Inc()
}

// ObserveSelection matches dropdown.Resolver.OnResult.
func (m *Metrics) ObserveSelection(control string, ok bool) {
	result := "confirmed"
	if !ok {
		result = "failed"
	}
	m.DropdownSelections.WithLabelValues(control, result).Inc()
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// Middleware counts requests by chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
