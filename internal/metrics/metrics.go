// Package metrics holds the Prometheus collectors shared by the broker
// client, the dispatcher and the RPC gateway, and the HTTP server that
// exposes them.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	errspkg "github.com/drblury/shopmesh/internal/runtime/errors"
)

const (
	Namespace = "shopmesh"

	StatusSuccess   = "success"
	StatusError     = "error"
	StatusTimeout   = "timeout"
	StatusTransport = "transport"
	StatusIgnored   = "ignored"

	// KindUnknown replaces kinds outside the known enumeration so peers
	// cannot grow the label set.
	KindUnknown = "unknown"
	// DestinationReply groups publishes to private reply queues and
	// DestinationOther everything that is neither a reply queue nor a
	// service routing key.
	DestinationReply = "reply"
	DestinationOther = "other"
)

// Metrics is safe to use as a nil pointer; every method is then a no-op so
// components can run without a registry in tests.
type Metrics struct {
	// RPC gateway (caller side)
	rpcCalls    *prometheus.CounterVec
	rpcDuration *prometheus.HistogramVec
	rpcInFlight prometheus.Gauge
	lateReplies prometheus.Counter

	// Dispatcher (receiving side)
	eventsDispatched *prometheus.CounterVec
	rpcServed        *prometheus.CounterVec

	// Broker client
	published      *prometheus.CounterVec
	connectionUp   prometheus.Gauge
	connectionLost prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		rpcCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "rpc",
			Name:      "calls_total",
			Help:      "Total RPC calls by destination, request kind and status",
		}, []string{"destination", "kind", "status"}),
		rpcDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "rpc",
			Name:      "duration_seconds",
			Help:      "RPC round trip duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"destination"}),
		rpcInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "rpc",
			Name:      "in_flight",
			Help:      "Number of RPC calls waiting for a reply",
		}),
		lateReplies: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "rpc",
			Name:      "late_replies_total",
			Help:      "Replies dropped because no pending call matched their correlation id",
		}),
		eventsDispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "dispatcher",
			Name:      "events_total",
			Help:      "Inbound events by kind and status",
		}, []string{"kind", "status"}),
		rpcServed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "dispatcher",
			Name:      "rpc_requests_total",
			Help:      "Inbound RPC requests served by kind and status",
		}, []string{"kind", "status"}),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "broker",
			Name:      "published_total",
			Help:      "Messages handed to the broker by destination and status",
		}, []string{"destination", "status"}),
		connectionUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "broker",
			Name:      "connection_up",
			Help:      "1 while the broker connection is live",
		}),
		connectionLost: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "broker",
			Name:      "connection_lost_total",
			Help:      "Number of detected broker connection losses",
		}),
	}

	collectors := []prometheus.Collector{
		m.rpcCalls, m.rpcDuration, m.rpcInFlight, m.lateReplies,
		m.eventsDispatched, m.rpcServed,
		m.published, m.connectionUp, m.connectionLost,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Status classifies err into one of the status label values.
func Status(err error) string {
	switch {
	case err == nil:
		return StatusSuccess
	case errspkg.IsTimeout(err):
		return StatusTimeout
	case errspkg.IsTransport(err):
		return StatusTransport
	default:
		return StatusError
	}
}

func (m *Metrics) IncRPCInFlight() {
	if m == nil {
		return
	}
	m.rpcInFlight.Inc()
}

func (m *Metrics) DecRPCInFlight() {
	if m == nil {
		return
	}
	m.rpcInFlight.Dec()
}

// RecordRPCCall records the outcome and duration of one gateway call.
func (m *Metrics) RecordRPCCall(destination, kind string, err error, durationSeconds float64) {
	if m == nil {
		return
	}
	m.rpcCalls.WithLabelValues(destination, kind, Status(err)).Inc()
	m.rpcDuration.WithLabelValues(destination).Observe(durationSeconds)
}

func (m *Metrics) IncLateReplies() {
	if m == nil {
		return
	}
	m.lateReplies.Inc()
}

// RecordEvent records one inbound event. handled is false when no handler
// was registered for its kind.
func (m *Metrics) RecordEvent(kind string, handled bool, err error) {
	if m == nil {
		return
	}
	status := Status(err)
	if err == nil && !handled {
		status = StatusIgnored
	}
	m.eventsDispatched.WithLabelValues(kind, status).Inc()
}

func (m *Metrics) RecordRPCServed(kind string, err error) {
	if m == nil {
		return
	}
	m.rpcServed.WithLabelValues(kind, Status(err)).Inc()
}

func (m *Metrics) RecordPublish(destination string, err error) {
	if m == nil {
		return
	}
	m.published.WithLabelValues(destination, Status(err)).Inc()
}

func (m *Metrics) SetConnectionUp(up bool) {
	if m == nil {
		return
	}
	if up {
		m.connectionUp.Set(1)
		return
	}
	m.connectionUp.Set(0)
}

func (m *Metrics) IncConnectionLost() {
	if m == nil {
		return
	}
	m.connectionLost.Inc()
}

// ErrAlreadyRegistered reports whether err came from registering the same
// collectors twice, which happens when several services share a registry.
func ErrAlreadyRegistered(err error) bool {
	var are prometheus.AlreadyRegisteredError
	return errors.As(err, &are)
}
