package lifecycle

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Reconnect defaults.
const (
	DefaultBaseDelay  = 1 * time.Second
	DefaultMaxDelay   = 60 * time.Second
	DefaultMultiplier = 1.5
)

// Options configures reconnection behaviour.
type Options struct {
	// AutoReconnect schedules a new attempt after every connection loss or
	// failed attempt. When false the lifecycle stays Disconnected until the
	// next explicit Connect.
	AutoReconnect bool

	// BaseDelay is the delay before the first reconnect attempt.
	BaseDelay time.Duration

	// MaxDelay caps the delay between attempts.
	MaxDelay time.Duration

	// Multiplier grows the delay after each attempt.
	Multiplier float64
}

// DefaultOptions returns auto-reconnect with a 1s base, 60s cap and 1.5 growth.
func DefaultOptions() Options {
	return Options{
		AutoReconnect: true,
		BaseDelay:     DefaultBaseDelay,
		MaxDelay:      DefaultMaxDelay,
		Multiplier:    DefaultMultiplier,
	}
}

func (o Options) withDefaults() Options {
	if o.BaseDelay <= 0 {
		o.BaseDelay = DefaultBaseDelay
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = DefaultMaxDelay
	}
	if o.MaxDelay < o.BaseDelay {
		o.MaxDelay = o.BaseDelay
	}
	if o.Multiplier < 1 {
		o.Multiplier = DefaultMultiplier
	}
	return o
}

// newBackOff builds a deterministic exponential policy: no jitter and no
// elapsed-time limit, so the n-th delay is exactly min(base*multiplier^n, max).
func newBackOff(o Options) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = o.BaseDelay
	b.MaxInterval = o.MaxDelay
	b.Multiplier = o.Multiplier
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}
