package subscription

import (
	"fmt"

	"github.com/nerrad567/skyroute/internal/errkind"
)

var (
	// ErrEmptySubscriber is returned when a subscriber ID is empty.
	ErrEmptySubscriber = fmt.Errorf("%w: subscription: subscriber ID is required", errkind.ErrConfiguration)

	// ErrNoHandler is returned when a route has no handler.
	ErrNoHandler = fmt.Errorf("%w: subscription: route handler is required", errkind.ErrConfiguration)

	// ErrInvalidThreadMode is returned for an unknown thread mode.
	ErrInvalidThreadMode = fmt.Errorf("%w: subscription: invalid thread mode", errkind.ErrConfiguration)
)
