package skyroute

import (
	"time"

	"github.com/nerrad567/skyroute/internal/codec"
	"github.com/nerrad567/skyroute/internal/dispatch"
	"github.com/nerrad567/skyroute/internal/lifecycle"
	"github.com/nerrad567/skyroute/internal/subscription"
	"github.com/nerrad567/skyroute/internal/transport"
)

// Types shared with the internal packages.
type (
	Transport       = transport.Transport
	TransportConfig = transport.Config
	ReconnectPolicy = lifecycle.Options
	State           = lifecycle.State
	Codec           = codec.Codec
	SubscriberID    = subscription.SubscriberID
	ThreadMode      = subscription.ThreadMode
	Route           = subscription.Route
	Delivery        = subscription.Delivery
	Handler         = subscription.Handler
	Failure         = dispatch.Failure
	FailureRecorder = dispatch.FailureRecorder
	DeliveryMetrics = dispatch.Metrics
)

// Thread modes.
const (
	Main       = subscription.Main
	Background = subscription.Background
	Async      = subscription.Async
)

// Connection states.
const (
	Disconnected  = lifecycle.Disconnected
	Connecting    = lifecycle.Connecting
	Connected     = lifecycle.Connected
	Disconnecting = lifecycle.Disconnecting
)

// Built-in codecs.
var (
	JSON = codec.JSON
	YAML = codec.YAML
	Text = codec.Text
)

// Logger is the structured logger the Router and its components write to.
// *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Options configures a Router.
type Options struct {
	// Transport carries commands to the broker. Required.
	Transport Transport

	// Reconnect is the backoff policy after a lost connection. The zero
	// value disables automatic reconnects; use DefaultReconnectPolicy.
	Reconnect ReconnectPolicy

	// DefaultCodec decodes routes and encodes publishes that name no codec.
	// Defaults to JSON.
	DefaultCodec Codec

	// PropagateErrors reports decode and handler errors to OnError (and from
	// Dispatch) instead of only logging them.
	PropagateErrors bool
	OnError         func(error)

	// Workers bounds concurrent Async and hopped Background handlers.
	Workers int

	// InboxSize bounds inbound messages waiting for dispatch.
	InboxSize int

	Recorder FailureRecorder
	Metrics  DeliveryMetrics
	Logger   Logger
}

// DefaultReconnectPolicy reconnects after 1s, growing by 1.5 up to 60s.
func DefaultReconnectPolicy() ReconnectPolicy {
	return lifecycle.DefaultOptions()
}

// settings collects Option values for both routes and publishes.
type settings struct {
	qos    byte
	retain bool
	ttl    time.Duration
	codec  Codec
	mode   ThreadMode
}

// Option adjusts a route (On, OnRaw) or a publish. Options that do not apply
// to the call they are passed to are ignored.
type Option func(*settings)

// WithQoS sets the QoS of a publish or a route's subscription.
func WithQoS(qos byte) Option {
	return func(s *settings) { s.qos = qos }
}

// WithRetain asks the broker to retain a published message.
func WithRetain() Option {
	return func(s *settings) { s.retain = true }
}

// WithTTL sets the message expiry of a publish. Transports without expiry
// support ignore it.
func WithTTL(ttl time.Duration) Option {
	return func(s *settings) { s.ttl = ttl }
}

// WithCodec selects the codec for a publish or a route.
func WithCodec(c Codec) Option {
	return func(s *settings) { s.codec = c }
}

// WithMode selects the thread mode of a route. Routes default to Background.
func WithMode(mode ThreadMode) Option {
	return func(s *settings) { s.mode = mode }
}

func applyOptions(opts []Option) settings {
	s := settings{mode: Background}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}
