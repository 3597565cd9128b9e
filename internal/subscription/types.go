package subscription

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/nerrad567/skyroute/internal/codec"
	"github.com/nerrad567/skyroute/internal/command"
	"github.com/nerrad567/skyroute/internal/topic"
)

// SubscriberID identifies the owner of one or more subscriptions.
type SubscriberID string

// ThreadMode selects the execution context a handler runs on.
type ThreadMode uint8

const (
	// Main runs handlers on the single-threaded main loop. Callers already
	// on the loop invoke directly; everyone else posts to it.
	Main ThreadMode = iota

	// Background runs handlers inline on the dispatching goroutine, except
	// when dispatch happens on the main loop, where it hops to the pool.
	Background

	// Async always runs handlers on the worker pool.
	Async
)

// String returns the lowercase mode name.
func (m ThreadMode) String() string {
	switch m {
	case Main:
		return "main"
	case Background:
		return "background"
	case Async:
		return "async"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// ParseThreadMode parses "main", "background" or "async".
func ParseThreadMode(s string) (ThreadMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "main":
		return Main, nil
	case "background":
		return Background, nil
	case "async":
		return Async, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidThreadMode, s)
	}
}

// Delivery is what a handler receives for one matched message.
type Delivery struct {
	// Topic is the concrete topic the message was published on.
	Topic string

	// Pattern is the subscription pattern that matched.
	Pattern string

	// Captures holds the levels matched by wildcards, left to right.
	// Each level under a trailing "#" is a separate entry.
	Captures []string

	// Payload is the raw message body.
	Payload []byte

	// Value is the decoded payload, or nil for raw routes.
	Value any
}

// Handler processes a delivery. A returned error is an invocation failure.
type Handler func(ctx context.Context, d Delivery) error

// Route declares one topic interest of a subscriber.
type Route struct {
	Pattern string
	QoS     byte
	Mode    ThreadMode

	// Codec decodes payloads; nil selects the dispatcher default.
	Codec codec.Codec

	// NewValue returns a pointer for the codec to decode into. When nil the
	// payload is not decoded and Delivery.Value is nil.
	NewValue func() any

	Handler Handler
}

// Validate checks the pattern, QoS, mode and handler.
func (r Route) Validate() error {
	if err := topic.ValidatePattern(r.Pattern); err != nil {
		return err
	}
	if err := command.ValidateQoS(r.QoS); err != nil {
		return err
	}
	if r.Mode > Async {
		return fmt.Errorf("%w: %d", ErrInvalidThreadMode, r.Mode)
	}
	if r.Handler == nil {
		return fmt.Errorf("%w: pattern %q", ErrNoHandler, r.Pattern)
	}
	return nil
}

// Subscription is a registered Route owned by a subscriber.
//
// Thread Safety:
//   - Active may be called from any goroutine.
//   - The other fields are immutable after registration.
type Subscription struct {
	ID    SubscriberID
	Route Route

	seq    uint64
	active atomic.Bool
}

// Active reports whether the subscription may still receive deliveries.
func (s *Subscription) Active() bool {
	return s.active.Load()
}

// Pattern returns the route pattern.
func (s *Subscription) Pattern() string {
	return s.Route.Pattern
}

// Mode returns the route thread mode.
func (s *Subscription) Mode() ThreadMode {
	return s.Route.Mode
}
