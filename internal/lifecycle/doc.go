// Package lifecycle owns the connection state machine that sits between
// SkyRoute and its Transport.
//
// It provides:
//   - Fire-and-forget command execution: commands issued while not connected
//     are buffered and replayed in FIFO order once the transport connects
//   - Automatic reconnection with exponential backoff (base * 1.5^n, capped)
//   - Fan-out observers for connect, connection-lost, message and state events
//
// # State machine
//
//	Disconnected --Connect--> Connecting --transport up--> Connected
//	Connected --connection lost--> Connecting (auto-reconnect) or Disconnected
//	any --Disconnect--> Disconnected
//
// State is only changed by the lifecycle itself, from its public methods and
// the transport callbacks.
//
// # Buffer policy
//
// A Connect that supersedes a live or in-progress session drops the buffer:
// reconfiguration forgets in-flight intents. Disconnect drops it as well.
// A reconnect after connection loss keeps it.
package lifecycle
