package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metrics holds the API's Prometheus collectors on a private registry.
type metrics struct {
	registry      *prometheus.Registry
	requests      *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	agendaEntries prometheus.Gauge
	routes        map[string]bool
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dateutil",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"path", "code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dateutil",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"path"}),
		agendaEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dateutil",
			Name:      "agenda_entries",
			Help:      "Entries in the last built agenda.",
		}),
		routes: map[string]bool{},
	}
	m.registry.MustRegister(m.requests, m.latency, m.agendaEntries)
	return m
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// route records path as a known route; unknown paths share one label.
func (m *metrics) route(path string) {
	m.routes[path] = true
}

func (m *metrics) label(path string) string {
	if m.routes[path] {
		return path
	}
	return "other"
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (m *metrics) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		path := m.label(r.URL.Path)
		m.requests.WithLabelValues(path, strconv.Itoa(rec.status)).Inc()
		m.latency.WithLabelValues(path).Observe(time.Since(start).Seconds())
	})
}
