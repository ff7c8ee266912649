// Package metrics exports responder outcomes in Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/felixgeelhaar/haven/internal/responder"
)

const namespace = "haven"

// Outcome label values for haven_chat_requests_total.
const (
	OutcomeAnswered = "answered"
	OutcomeOffTopic = "off_topic"
	OutcomeFailed   = "failed"
)

// Exporter turns responder events into Prometheus series.
type Exporter struct {
	registry *prometheus.Registry

	requests       *prometheus.CounterVec
	failures       *prometheus.CounterVec
	latency        prometheus.Histogram
	memoriesStored prometheus.Counter
	recalled       prometheus.Histogram
}

// Config configures the exporter.
type Config struct {
	// Registry to use (if nil, creates a new one)
	Registry *prometheus.Registry

	// Buckets for the response latency histogram (in seconds)
	LatencyBuckets []float64
}

func DefaultConfig() Config {
	return Config{
		LatencyBuckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}
}

func NewExporter(cfg Config) *Exporter {
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = DefaultConfig().LatencyBuckets
	}
	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	e := &Exporter{registry: registry}

	e.requests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "requests_total",
			Help:      "Chat requests by outcome",
		},
		[]string{"outcome"},
	)
	e.failures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "failures_total",
			Help:      "Failed chat requests by step and kind",
		},
		[]string{"op", "kind"},
	)
	e.latency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "response_seconds",
			Help:      "End-to-end latency of answered requests",
			Buckets:   cfg.LatencyBuckets,
		},
	)
	e.memoriesStored = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "memory",
			Name:      "stored_total",
			Help:      "Messages appended to memory",
		},
	)
	e.recalled = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "memory",
			Name:      "recalled_passages",
			Help:      "Passages recalled per request",
			Buckets:   []float64{0, 1, 2, 3},
		},
	)

	registry.MustRegister(e.requests, e.failures, e.latency, e.memoriesStored, e.recalled)
	return e
}

// Attach subscribes the exporter to bus.
func (e *Exporter) Attach(bus *responder.EventBus) {
	bus.SubscribeAll(e.observe)
}

func (e *Exporter) observe(ev responder.Event) {
	switch ev.Type {
	case responder.EventOffTopic:
		e.requests.WithLabelValues(OutcomeOffTopic).Inc()
	case responder.EventMemoryStored:
		e.memoriesStored.Inc()
	case responder.EventContextRecalled:
		if n, ok := ev.Data["count"].(int); ok {
			e.recalled.Observe(float64(n))
		}
	case responder.EventResponseGenerated:
		e.requests.WithLabelValues(OutcomeAnswered).Inc()
		if d, ok := ev.Data["duration"].(time.Duration); ok {
			e.latency.Observe(d.Seconds())
		}
	case responder.EventRequestFailed:
		e.requests.WithLabelValues(OutcomeFailed).Inc()
		op, _ := ev.Data["op"].(string)
		kind, _ := ev.Data["kind"].(string)
		e.failures.WithLabelValues(op, kind).Inc()
	}
}

// TrackMemorySize exposes size() as the haven_memory_records gauge.
func (e *Exporter) TrackMemorySize(size func() int) {
	e.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "memory",
			Name:      "records",
			Help:      "Records held by the vector memory",
		},
		func() float64 { return float64(size()) },
	))
}

// Handler serves the registry in the Prometheus text format.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}
