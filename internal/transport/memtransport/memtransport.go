// Package memtransport is an in-process Transport with a loopback broker.
//
// Published messages are delivered back to the same client when they match one
// of its subscriptions, which makes it useful for tests and for running SkyRoute
// without a broker. Test hooks (Drop, FailNextConnects, Inject, Flush) drive the
// connection lifecycle deterministically.
package memtransport

import (
	"sync"

	"github.com/nerrad567/skyroute/internal/command"
	"github.com/nerrad567/skyroute/internal/topic"
	"github.com/nerrad567/skyroute/internal/transport"
)

// Transport implements transport.Transport entirely in memory.
//
// All callbacks run on one internal goroutine, in the order they were raised.
type Transport struct {
	mu           sync.Mutex
	handlers     transport.Handlers
	connected    bool
	generation   uint64
	cfg          transport.Config
	connects     int
	failConnects int
	subs         map[string]byte
	sent         []command.Command

	events *transport.Serializer
}

var _ transport.Transport = (*Transport)(nil)

// New creates a transport and starts its callback goroutine.
// Call Close when done.
func New() *Transport {
	return &Transport{
		subs:   make(map[string]byte),
		events: transport.NewSerializer(),
	}
}

// SetHandlers implements transport.Transport.
func (t *Transport) SetHandlers(h transport.Handlers) {
	t.mu.Lock()
	t.handlers = h
	t.mu.Unlock()
}

// Connect implements transport.Transport. The attempt completes asynchronously.
func (t *Transport) Connect(cfg transport.Config) error {
	t.mu.Lock()
	t.generation++
	gen := t.generation
	t.cfg = cfg
	t.connects++
	t.connected = false
	fail := t.failConnects > 0
	if fail {
		t.failConnects--
	}
	t.mu.Unlock()

	if fail {
		t.post(func() { t.lost(gen, transport.ErrConnectionFailed) })
		return nil
	}

	t.post(func() {
		t.mu.Lock()
		if gen != t.generation {
			t.mu.Unlock()
			return
		}
		t.connected = true
		if cfg.CleanSession {
			t.subs = make(map[string]byte)
		}
		cb := t.handlers.OnConnected
		t.mu.Unlock()

		if cb != nil {
			cb()
		}
	})
	return nil
}

// Disconnect implements transport.Transport.
func (t *Transport) Disconnect() {
	t.mu.Lock()
	t.generation++
	t.connected = false
	t.mu.Unlock()
}

// Send implements transport.Transport.
func (t *Transport) Send(cmd command.Command) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.connected {
		return transport.ErrNotConnected
	}

	switch cmd.Kind {
	case command.KindSubscribe:
		t.subs[cmd.Topic] = cmd.QoS
	case command.KindUnsubscribe:
		delete(t.subs, cmd.Topic)
	case command.KindPublish:
		if t.matchesLocked(cmd.Topic) {
			name, payload := cmd.Topic, append([]byte(nil), cmd.Payload...)
			t.post(func() { t.deliver(name, payload) })
		}
	default:
		return transport.ErrUnknownCommand
	}

	t.sent = append(t.sent, cmd)
	return nil
}

// IsConnected implements transport.Transport.
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

// Drop simulates the broker closing the connection with cause.
func (t *Transport) Drop(cause error) {
	t.mu.Lock()
	if !t.connected {
		t.mu.Unlock()
		return
	}
	t.connected = false
	gen := t.generation
	t.mu.Unlock()

	if cause == nil {
		cause = transport.ErrConnectionLost
	}
	t.post(func() { t.lost(gen, cause) })
}

// FailNextConnects makes the next n connection attempts fail.
func (t *Transport) FailNextConnects(n int) {
	t.mu.Lock()
	t.failConnects = n
	t.mu.Unlock()
}

// Inject delivers a message as if the broker had routed it to this client,
// regardless of subscriptions.
func (t *Transport) Inject(name string, payload []byte) {
	t.post(func() { t.deliver(name, payload) })
}

// Sent returns a copy of every command accepted by Send.
func (t *Transport) Sent() []command.Command {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]command.Command, len(t.sent))
	copy(out, t.sent)
	return out
}

// ResetSent forgets recorded commands.
func (t *Transport) ResetSent() {
	t.mu.Lock()
	t.sent = nil
	t.mu.Unlock()
}

// Subscriptions returns the patterns the loopback broker currently holds.
func (t *Transport) Subscriptions() map[string]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]byte, len(t.subs))
	for k, v := range t.subs {
		out[k] = v
	}
	return out
}

// Connects returns how many times Connect has been called.
func (t *Transport) Connects() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connects
}

// Config returns the configuration of the latest Connect call.
func (t *Transport) Config() transport.Config {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cfg
}

// Flush blocks until every callback raised before the call has run.
func (t *Transport) Flush() {
	t.events.Flush()
}

// Close stops the callback goroutine. Pending callbacks are discarded.
func (t *Transport) Close() {
	t.events.Close()
}

func (t *Transport) matchesLocked(name string) bool {
	for pattern := range t.subs {
		if topic.Matches(pattern, name) {
			return true
		}
	}
	return false
}

func (t *Transport) lost(gen uint64, cause error) {
	t.mu.Lock()
	if gen != t.generation {
		t.mu.Unlock()
		return
	}
	cb := t.handlers.OnConnectionLost
	t.mu.Unlock()

	if cb != nil {
		cb(cause)
	}
}

func (t *Transport) deliver(name string, payload []byte) {
	t.mu.Lock()
	cb := t.handlers.OnMessage
	t.mu.Unlock()

	if cb != nil {
		cb(name, payload)
	}
}

func (t *Transport) post(fn func()) {
	t.events.Post(fn)
}
