package dispatch

import (
	"errors"
	"fmt"

	"github.com/nerrad567/skyroute/internal/errkind"
)

var (
	// ErrHandler wraps errors returned or panics raised by subscriber handlers.
	ErrHandler = fmt.Errorf("%w: dispatch: handler failed", errkind.ErrInvocation)

	// ErrStopped is returned when work is offered after shutdown.
	ErrStopped = errors.New("dispatch: stopped")
)
