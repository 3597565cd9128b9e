package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementConnection = "mqtt_connection"
	MeasurementMessages   = "mqtt_messages"
	MeasurementDeliveries = "mqtt_deliveries"
)

// WriteConnectionState records a lifecycle transition together with the
// retry attempt and the backoff delay in effect at the time.
//
// Parameters:
//   - from, to: State names ("connecting", "connected", ...)
//   - attempt: Consecutive failed attempts so far
//   - delay: Most recently scheduled reconnect delay
func (c *Client) WriteConnectionState(from, to string, attempt int, delay time.Duration) {
	c.writePoint(MeasurementConnection,
		map[string]string{"state": to},
		map[string]any{
			"from":      from,
			"attempt":   attempt,
			"delay_ms":  delay.Milliseconds(),
			"connected": to == "connected",
		},
	)
}

// MessageReceived records one inbound message. Together with Delivery it
// lets the client act as dispatch metrics.
func (c *Client) MessageReceived() {
	c.writePoint(MeasurementMessages, nil, map[string]any{"count": 1})
}

// Delivery records one delivery outcome for a thread mode.
func (c *Client) Delivery(mode, outcome string) {
	c.writePoint(MeasurementDeliveries,
		map[string]string{"mode": mode, "outcome": outcome},
		map[string]any{"count": 1},
	)
}

// WritePoint writes a custom point. The client_id tag is always added.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	c.writePoint(measurement, tags, fields)
}

func (c *Client) writePoint(measurement string, tags map[string]string, fields map[string]any) {
	if !c.IsConnected() {
		return
	}
	all := make(map[string]string, len(tags)+1)
	for k, v := range tags {
		all[k] = v
	}
	all["client_id"] = c.clientID
	c.writer.WritePoint(write.NewPoint(measurement, all, fields, time.Now()))
}
