package lifecycle

import "fmt"

// State is the connection state of a Lifecycle.
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
	Disconnecting
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Disconnecting:
		return "disconnecting"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}
