package skyroute

import (
	"context"
	"fmt"

	"github.com/nerrad567/skyroute/internal/topic"
)

// Message is a decoded delivery handed to a typed handler.
type Message[T any] struct {
	Topic    string
	Pattern  string
	Captures []string
	Payload  []byte
	Value    T
}

// Bind maps the message's wildcard captures to names, in pattern order.
// See topic.Bind for how "#" captures are joined.
func (m Message[T]) Bind(names ...string) map[string]string {
	bound, _ := topic.Bind(m.Pattern, m.Topic, names...)
	return bound
}

// On builds a route whose payloads are decoded into T before fn runs.
//
// Parameters:
//   - pattern: Topic filter; "+" matches one level, "#" the remainder
//   - fn: Handler; a returned error is reported as an invocation failure
//   - opts: WithQoS, WithMode, WithCodec
func On[T any](pattern string, fn func(ctx context.Context, m Message[T]) error, opts ...Option) Route {
	s := applyOptions(opts)
	route := Route{
		Pattern:  pattern,
		QoS:      s.qos,
		Mode:     s.mode,
		Codec:    s.codec,
		NewValue: func() any { return new(T) },
	}
	if fn != nil {
		route.Handler = func(ctx context.Context, d Delivery) error {
			v, ok := d.Value.(*T)
			if !ok {
				return fmt.Errorf("%w: skyroute: unexpected value %T for %q", ErrDecode, d.Value, d.Topic)
			}
			return fn(ctx, Message[T]{
				Topic:    d.Topic,
				Pattern:  d.Pattern,
				Captures: d.Captures,
				Payload:  d.Payload,
				Value:    *v,
			})
		}
	}
	return route
}

// OnRaw builds a route whose handler receives the payload undecoded.
func OnRaw(pattern string, fn Handler, opts ...Option) Route {
	s := applyOptions(opts)
	return Route{
		Pattern: pattern,
		QoS:     s.qos,
		Mode:    s.mode,
		Handler: fn,
	}
}
