// Package mqtt implements the SkyRoute transport on top of the Eclipse Paho
// MQTT client.
//
// This package manages:
//   - Broker connections over tcp, ssl, ws and wss
//   - Subscribe, unsubscribe and publish commands
//   - Last Will and Testament (LWT) on the configured status topic
//   - Delivery of connection events and messages on one goroutine
//
// # Reconnection
//
// Paho's own auto-reconnect and connect-retry are disabled. The connection
// lifecycle decides when to retry and calls Connect again, so the backoff
// policy lives in one place.
//
// # Sessions
//
// CleanSession is taken from the transport configuration. With a clean
// session the broker forgets subscriptions on every connect and the caller
// must subscribe again; SkyRoute's router does this automatically.
//
// # Security Considerations
//
//   - Use an ssl://, tls://, mqtts:// or wss:// broker URL in production
//   - TLS 1.2 is the minimum version when no tls.Config is supplied
//   - Credentials are never logged
//
// # Usage
//
//	t := mqtt.New()
//	defer t.Close()
//
//	lc := lifecycle.New(t, lifecycle.DefaultOptions())
//	lc.Connect(transport.Config{BrokerURL: "tcp://127.0.0.1:1883", ClientID: "skyroute"})
package mqtt
