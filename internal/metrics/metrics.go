// Package metrics exposes payload subscription activity to Prometheus
package metrics

import (
	"errors"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alexbotov/xumm/pkg/xumm"
)

const namespace = "xumm"

// Observer is a xumm.Observer recording subscription activity
type Observer struct {
	registry *prometheus.Registry

	active           prometheus.Gauge
	connections      prometheus.Counter
	messages         prometheus.Counter
	keepaliveTimeout prometheus.Counter
	reconnects       prometheus.Counter
	settled          *prometheus.CounterVec

	mu   sync.Mutex
	open map[string]struct{}
}

var _ xumm.Observer = (*Observer)(nil)

// New creates an Observer with its own registry
func New() *Observer {
	o := &Observer{
		registry: prometheus.NewRegistry(),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "subscription",
			Name:      "active",
			Help:      "Payload subscriptions that are not settled yet",
		}),
		connections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "subscription",
			Name:      "connections_total",
			Help:      "WebSocket connections opened, reconnects included",
		}),
		messages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "subscription",
			Name:      "messages_total",
			Help:      "Frames received on payload status sockets",
		}),
		keepaliveTimeout: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "subscription",
			Name:      "keepalive_timeouts_total",
			Help:      "Connections dropped because no keepalive ack arrived",
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "subscription",
			Name:      "reconnect_attempts_total",
			Help:      "Reconnect attempts after a connection was lost",
		}),
		settled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "subscription",
			Name:      "settled_total",
			Help:      "Settled subscriptions by outcome",
		}, []string{"outcome"}),
		open: make(map[string]struct{}),
	}
	o.registry.MustRegister(
		o.active,
		o.connections,
		o.messages,
		o.keepaliveTimeout,
		o.reconnects,
		o.settled,
		collectors.NewGoCollector(),
	)
	return o
}

// Registry returns the registry holding the subscription metrics
func (o *Observer) Registry() *prometheus.Registry {
	return o.registry
}

// Handler serves the registry in the Prometheus exposition format
func (o *Observer) Handler() http.Handler {
	return promhttp.HandlerFor(o.registry, promhttp.HandlerOpts{})
}

func (o *Observer) SubscriptionOpened(uuid string) {
	o.connections.Inc()

	o.mu.Lock()
	defer o.mu.Unlock()
	o.open[uuid] = struct{}{}
	o.active.Set(float64(len(o.open)))
}

func (o *Observer) MessageReceived(string) {
	o.messages.Inc()
}

func (o *Observer) KeepaliveTimedOut(string) {
	o.keepaliveTimeout.Inc()
}

func (o *Observer) Reconnecting(string, uint64) {
	o.reconnects.Inc()
}

func (o *Observer) SubscriptionSettled(uuid string, err error) {
	o.settled.WithLabelValues(outcome(err)).Inc()

	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.open, uuid)
	o.active.Set(float64(len(o.open)))
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "resolved"
	case errors.Is(err, xumm.ErrReconnectExhausted):
		return "reconnect_exhausted"
	}
	return "failed"
}
