// Package transport defines the contract between SkyRoute's connection
// lifecycle and a wire-level MQTT implementation.
//
// A Transport owns framing, network I/O and TLS. SkyRoute only asks it to
// connect, disconnect and send commands, and listens to three callbacks.
//
// # Callback contract
//
// Implementations must deliver OnConnected, OnConnectionLost and OnMessage
// from a single goroutine, one at a time. A failed connection attempt is
// reported through OnConnectionLost. Callbacks must not be invoked from inside
// Connect, Disconnect or Send.
package transport

import (
	"crypto/tls"
	"time"

	"github.com/nerrad567/skyroute/internal/command"
)

// Handlers are the callbacks a Transport reports events through.
// Nil fields are ignored.
type Handlers struct {
	OnConnected      func()
	OnConnectionLost func(cause error)
	OnMessage        func(topic string, payload []byte)
}

// Transport is the wire-level collaborator of the connection lifecycle.
type Transport interface {
	// SetHandlers installs the event callbacks. Call before Connect.
	SetHandlers(h Handlers)

	// Connect starts a connection attempt with cfg and returns without
	// waiting for it. The outcome arrives via OnConnected or OnConnectionLost.
	// An error means the attempt could not even be started.
	Connect(cfg Config) error

	// Disconnect closes the connection. It does not fire OnConnectionLost.
	Disconnect()

	// Send transmits a command. It returns ErrNotConnected when no
	// connection is open.
	Send(cmd command.Command) error

	// IsConnected reports whether a connection is currently open.
	IsConnected() bool
}

// Config describes how to reach a broker.
type Config struct {
	// BrokerURL is scheme://host:port, e.g. tcp://localhost:1883 or ssl://broker:8883.
	BrokerURL string

	ClientID string
	Username string
	Password string

	// CleanSession asks the broker to discard session state (including
	// subscriptions) when the client reconnects.
	CleanSession bool

	KeepAlive      time.Duration
	ConnectTimeout time.Duration

	// TLS is used for ssl/tls/mqtts/wss schemes. Nil selects a default config.
	TLS *tls.Config

	// StatusTopic, when set, receives a retained "online" message on connect
	// and is configured as the last-will topic carrying "offline".
	StatusTopic string
}

// Validate checks that cfg names a usable broker.
func (c Config) Validate() error {
	_, err := ParseBrokerURL(c.BrokerURL)
	return err
}
