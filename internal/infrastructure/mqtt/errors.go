package mqtt

import (
	"errors"
	"fmt"

	"github.com/nerrad567/skyroute/internal/errkind"
)

// Domain-specific errors for MQTT operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrPayloadTooLarge is returned when a publish payload exceeds MaxPayloadSize.
	ErrPayloadTooLarge = fmt.Errorf("%w: mqtt: payload too large", errkind.ErrConfiguration)

	// ErrPublishFailed is returned when the broker rejects a publish.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrSubscribeFailed is returned when the broker rejects a subscribe.
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")

	// ErrUnsubscribeFailed is returned when the broker rejects an unsubscribe.
	ErrUnsubscribeFailed = errors.New("mqtt: unsubscribe failed")

	// ErrTimeout is returned when an acknowledgement does not arrive in time.
	ErrTimeout = errors.New("mqtt: operation timed out")
)
