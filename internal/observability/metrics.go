package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the service. Each collector
// owns a private registry so tests can create as many as they like.
type Collector struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Diagram metrics
	LayoutRuns       *prometheus.CounterVec
	LayoutDuration   prometheus.Histogram
	EventsDispatched *prometheus.CounterVec
	MutationsApplied *prometheus.CounterVec
	SessionsOpen     prometheus.Gauge
	SessionsEvicted  prometheus.Counter

	// Generation collaborator
	GenerationCalls    *prometheus.CounterVec
	GenerationDuration prometheus.Histogram

	// Live connections
	WebSocketClients prometheus.Gauge
}

// NewCollector creates a collector with the given metric namespace.
func NewCollector(namespace string) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		LayoutRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "layout_runs_total",
			Help:      "Force layout runs by outcome",
		}, []string{"outcome"}),
		LayoutDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "layout_duration_seconds",
			Help:      "Force layout duration in seconds",
			Buckets:   []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5},
		}),
		EventsDispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dispatched_total",
			Help:      "Interaction events dispatched by topic",
		}, []string{"topic"}),
		MutationsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_applied_total",
			Help:      "Model mutations applied by kind",
		}, []string{"mutation"}),
		SessionsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_open",
			Help:      "Diagrams currently held in memory",
		}),
		SessionsEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_evicted_total",
			Help:      "Diagrams evicted from the session store",
		}),
		GenerationCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_calls_total",
			Help:      "Calls to the generation service by outcome",
		}, []string{"outcome"}),
		GenerationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Generation call duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		WebSocketClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_clients",
			Help:      "Connected WebSocket clients",
		}),
	}

	c.registry.MustRegister(
		c.HTTPRequests, c.HTTPDuration,
		c.LayoutRuns, c.LayoutDuration,
		c.EventsDispatched, c.MutationsApplied,
		c.SessionsOpen, c.SessionsEvicted,
		c.GenerationCalls, c.GenerationDuration,
		c.WebSocketClients,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records one served request.
func (c *Collector) RecordHTTPRequest(method, route string, status int, d time.Duration) {
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// RecordLayout records one simulation run.
func (c *Collector) RecordLayout(d time.Duration, err error) {
	c.LayoutRuns.WithLabelValues(outcome(err)).Inc()
	c.LayoutDuration.Observe(d.Seconds())
}

// RecordGeneration records one call to the generation service.
func (c *Collector) RecordGeneration(d time.Duration, err error) {
	c.GenerationCalls.WithLabelValues(outcome(err)).Inc()
	c.GenerationDuration.Observe(d.Seconds())
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
