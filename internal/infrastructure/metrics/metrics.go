// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "servicedesk"

// Drop reasons reported by Realtime.Dropped.
const (
	DropPublishBufferFull = "publish_buffer_full"
	DropClientBufferFull  = "client_buffer_full"
	DropEncodeFailed      = "encode_failed"
)

// Realtime holds the collectors of the realtime transport.
type Realtime struct {
	Connections prometheus.Gauge
	Rooms       prometheus.Gauge
	Dispatched  prometheus.Counter
	Deliveries  prometheus.Counter
	Dropped     *prometheus.CounterVec
	Rejected    *prometheus.CounterVec
}

// NewRealtime creates the realtime collectors and registers them with reg.
// A nil reg leaves them unregistered, which tests rely on.
func NewRealtime(reg prometheus.Registerer) *Realtime {
	m := &Realtime{
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "connections",
			Help:      "Active authenticated realtime connections.",
		}),
		Rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "rooms",
			Help:      "Rooms with at least one member.",
		}),
		Dispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "events_dispatched_total",
			Help:      "Events routed to their audience.",
		}),
		Deliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "deliveries_total",
			Help:      "Frames queued to connections.",
		}),
		Dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "events_dropped_total",
			Help:      "Events or frames discarded before delivery.",
		}, []string{"reason"}),
		Rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "handshakes_rejected_total",
			Help:      "Realtime handshakes refused.",
		}, []string{"reason"}),
	}

	if reg != nil {
		reg.MustRegister(m.Connections, m.Rooms, m.Dispatched, m.Deliveries, m.Dropped, m.Rejected)
	}
	return m
}

// HTTP holds the request collectors used by the metrics middleware.
type HTTP struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

// NewHTTP creates the HTTP collectors and registers them with reg.
func NewHTTP(reg prometheus.Registerer) *HTTP {
	m := &HTTP{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	if reg != nil {
		reg.MustRegister(m.Requests, m.Duration)
	}
	return m
}

// NewRegistry returns a registry preloaded with the Go runtime and process
// collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}
