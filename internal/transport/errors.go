package transport

import (
	"errors"
	"fmt"

	"github.com/nerrad567/skyroute/internal/errkind"
)

var (
	// ErrNotConnected is returned by Send when no connection is open.
	ErrNotConnected = fmt.Errorf("%w: transport: not connected", errkind.ErrConnection)

	// ErrConnectionLost is the cause reported when a peer closes the connection.
	ErrConnectionLost = fmt.Errorf("%w: transport: connection lost", errkind.ErrConnection)

	// ErrConnectionFailed is the cause reported when a connection attempt fails.
	ErrConnectionFailed = fmt.Errorf("%w: transport: connection failed", errkind.ErrConnection)

	// ErrInvalidBroker is returned when a broker address is absent or malformed.
	ErrInvalidBroker = fmt.Errorf("%w: transport: invalid broker address", errkind.ErrConfiguration)

	// ErrUnknownCommand is returned by Send for a command kind it cannot handle.
	ErrUnknownCommand = errors.New("transport: unknown command kind")
)
