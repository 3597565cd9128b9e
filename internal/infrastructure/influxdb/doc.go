// Package influxdb writes SkyRoute telemetry to InfluxDB.
//
// It wraps the official influxdb-client-go v2 library and records:
//   - Connection lifecycle transitions with retry attempt and backoff delay
//   - Inbound message counts
//   - Delivery outcomes per thread mode
//
// Every point carries a client_id tag.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB, clientID)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteConnectionState("connecting", "connected", 0, 0)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// Writes are non-blocking and batched according to batch_size and
// flush_interval; batch errors reach the SetOnError callback.
package influxdb
