// Package metrics exposes SkyRoute counters and gauges in Prometheus format.
//
// A Collector owns its own registry so several routers (or tests) in one
// process never collide on metric names.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "skyroute"

// Collector records dispatch and connection metrics.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Collector struct {
	registry *prometheus.Registry

	received   prometheus.Counter
	deliveries *prometheus.CounterVec
	reconnects prometheus.Counter
	state      *prometheus.GaugeVec

	mu           sync.Mutex
	currentState string
}

// New creates a Collector with Go runtime and process collectors attached.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		received: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Inbound MQTT messages handed to the dispatcher.",
		}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Subscriber deliveries by thread mode and outcome.",
		}, []string{"mode", "outcome"}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnect_attempts_total",
			Help:      "Reconnect attempts scheduled after a lost or failed connection.",
		}),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connection_state",
			Help:      "1 for the current connection state, 0 otherwise.",
		}, []string{"state"}),
	}

	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.received,
		c.deliveries,
		c.reconnects,
		c.state,
	)
	return c
}

// MessageReceived counts one inbound message.
func (c *Collector) MessageReceived() {
	c.received.Inc()
}

// Delivery counts one delivery outcome.
func (c *Collector) Delivery(mode, outcome string) {
	c.deliveries.WithLabelValues(mode, outcome).Inc()
}

// SetConnectionState marks state as current.
func (c *Collector) SetConnectionState(state string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.currentState != "" {
		c.state.WithLabelValues(c.currentState).Set(0)
	}
	c.state.WithLabelValues(state).Set(1)
	c.currentState = state
}

// ReconnectAttempt counts one scheduled reconnect.
func (c *Collector) ReconnectAttempt() {
	c.reconnects.Inc()
}

// TrackGauges registers gauges that are sampled at scrape time.
//
// Parameters:
//   - pending: Returns the number of buffered commands
//   - subscriptions: Returns the number of live subscriptions
func (c *Collector) TrackGauges(pending, subscriptions func() int) error {
	gauges := []prometheus.Collector{
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_commands",
			Help:      "Commands buffered until the connection is established.",
		}, func() float64 { return float64(pending()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subscriptions",
			Help:      "Live subscriptions in the registry.",
		}, func() float64 { return float64(subscriptions()) }),
	}
	for _, g := range gauges {
		if err := c.registry.Register(g); err != nil {
			return err
		}
	}
	return nil
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
