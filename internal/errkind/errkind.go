// Package errkind defines the root error categories shared by every SkyRoute
// package.
//
// Package-level sentinels wrap one of these roots, so callers can test either
// the precise failure or its category:
//
//	if errors.Is(err, errkind.ErrConfiguration) {
//	    // caller supplied something invalid
//	}
package errkind

import "errors"

var (
	// ErrConfiguration marks invalid input supplied by the caller: malformed
	// broker addresses, QoS outside 0-2, malformed topic patterns.
	// Returned synchronously.
	ErrConfiguration = errors.New("configuration error")

	// ErrConnection marks transport-level failures. These are recovered by the
	// reconnect policy and logged; they are never returned to publish/subscribe
	// callers.
	ErrConnection = errors.New("connection error")

	// ErrDecode marks a payload that could not be converted to the shape a
	// subscriber expects.
	ErrDecode = errors.New("decode error")

	// ErrInvocation marks a subscriber handler that returned an error or panicked.
	ErrInvocation = errors.New("invocation error")
)
