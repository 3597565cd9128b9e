package main

import (
	"context"

	"github.com/nerrad567/skyroute/internal/infrastructure/influxdb"
	"github.com/nerrad567/skyroute/internal/infrastructure/logging"
	"github.com/nerrad567/skyroute/internal/infrastructure/metrics"
	"github.com/nerrad567/skyroute/internal/topic"
	"github.com/nerrad567/skyroute/pkg/skyroute"
)

// systemSubscriber owns the routes the host registers for itself.
const systemSubscriber skyroute.SubscriberID = "system"

// deliveryMetrics fans dispatcher counters out to several sinks.
type deliveryMetrics []skyroute.DeliveryMetrics

func newDeliveryMetrics(collector *metrics.Collector, influx *influxdb.Client) deliveryMetrics {
	sinks := deliveryMetrics{collector}
	if influx != nil {
		sinks = append(sinks, influx)
	}
	return sinks
}

func (m deliveryMetrics) MessageReceived() {
	for _, sink := range m {
		sink.MessageReceived()
	}
}

func (m deliveryMetrics) Delivery(mode, outcome string) {
	for _, sink := range m {
		sink.Delivery(mode, outcome)
	}
}

// observeConnection feeds connection state into metrics, InfluxDB and logs.
func observeConnection(router *skyroute.Router, collector *metrics.Collector, influx *influxdb.Client, log *logging.Logger) error {
	collector.SetConnectionState(router.State().String())

	router.OnStateChange(func(from, to skyroute.State) {
		collector.SetConnectionState(to.String())
		st := router.Status()
		log.Info("connection state changed", "from", from.String(), "to", to.String(), "attempt", st.RetryCount)
		if influx != nil {
			influx.WriteConnectionState(from.String(), to.String(), st.RetryCount, st.LastDelay)
		}
	})
	router.OnConnectionLost(func(error) {
		if router.State() == skyroute.Connecting {
			collector.ReconnectAttempt()
		}
	})

	return collector.TrackGauges(router.Pending, router.SubscriptionCount)
}

// clientStatus is the retained online/offline message clients publish.
type clientStatus struct {
	Status    string `json:"status"`
	ClientID  string `json:"client_id"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

// registerSystemRoutes logs client status changes on the main loop and
// traces every other system topic.
func registerSystemRoutes(router *skyroute.Router, qos byte, log *logging.Logger) error {
	topics := topic.Topics{}
	return router.Register(systemSubscriber,
		skyroute.On(topics.AllClientStatus(), func(_ context.Context, m skyroute.Message[clientStatus]) error {
			log.Info("client status",
				"client", m.Bind("client")["client"],
				"status", m.Value.Status,
				"reason", m.Value.Reason,
			)
			return nil
		}, skyroute.WithQoS(qos), skyroute.WithMode(skyroute.Main), skyroute.WithCodec(skyroute.JSON)),
		skyroute.OnRaw(topics.AllSystem(), func(_ context.Context, d skyroute.Delivery) error {
			log.Debug("system message", "topic", d.Topic, "bytes", len(d.Payload))
			return nil
		}, skyroute.WithQoS(qos)),
	)
}
