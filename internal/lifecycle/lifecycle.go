package lifecycle

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/nerrad567/skyroute/internal/command"
	"github.com/nerrad567/skyroute/internal/errkind"
	"github.com/nerrad567/skyroute/internal/transport"
)

// Logger defines the logging interface used by the Lifecycle.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// scheduleFunc runs f after d and returns a function that cancels it.
type scheduleFunc func(d time.Duration, f func()) (cancel func() bool)

func afterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

// Lifecycle manages the connection to a Transport and buffers commands
// while it is not connected.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Observers are called outside internal locks, in registration order.
type Lifecycle struct {
	transport transport.Transport
	queue     *command.Queue
	opts      Options
	logger    Logger
	schedule  scheduleFunc

	// sessionMu orders the transport's Connect and Disconnect calls.
	// Execute never takes it, so a slow teardown does not hold up sends.
	sessionMu sync.Mutex

	// mu guards the fields below and serializes every Send, so replayed
	// commands always reach the transport before newly executed ones.
	mu          sync.Mutex
	state       State
	closing     bool // old session being torn down; its callbacks are ignored
	cfg         transport.Config
	configured  bool
	generation  uint64
	backoff     *backoff.ExponentialBackOff
	retryCount  int
	lastDelay   time.Duration
	cancelRetry func() bool

	obsMu       sync.RWMutex
	onConnected []func()
	onLost      []func(cause error)
	onMessage   []func(topic string, payload []byte)
	onState     []func(from, to State)
}

// New creates a Lifecycle bound to t and installs itself as t's handlers.
func New(t transport.Transport, opts Options) *Lifecycle {
	opts = opts.withDefaults()
	l := &Lifecycle{
		transport: t,
		queue:     command.NewQueue(),
		opts:      opts,
		logger:    noopLogger{},
		schedule:  afterFunc,
		backoff:   newBackOff(opts),
	}

	t.SetHandlers(transport.Handlers{
		OnConnected:      l.handleConnected,
		OnConnectionLost: l.handleConnectionLost,
		OnMessage:        l.handleMessage,
	})
	return l
}

// SetLogger sets the logger for the lifecycle.
func (l *Lifecycle) SetLogger(logger Logger) {
	l.logger = logger
}

// Connect starts a session with cfg.
//
// A live or in-progress session is closed first and its buffered commands
// are discarded. The retry state is reset. Connect returns once the attempt
// has been started; transport failures are handled by the reconnect policy
// and never returned. It fails only with a configuration error.
func (l *Lifecycle) Connect(cfg transport.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	l.sessionMu.Lock()
	defer l.sessionMu.Unlock()

	l.mu.Lock()
	prev := l.state
	l.stopRetryLocked()
	l.generation++
	l.cfg = cfg
	l.configured = true
	l.retryCount = 0
	l.lastDelay = 0
	l.backoff.Reset()
	l.state = Connecting
	supersede := prev != Disconnected
	if supersede {
		l.closing = true
		if dropped := l.queue.Clear(); dropped > 0 {
			l.logger.Info("session superseded, dropped buffered commands", "dropped", dropped)
		}
	}
	l.mu.Unlock()

	l.notifyState(prev, Connecting)
	if supersede {
		l.transport.Disconnect()
		l.mu.Lock()
		l.closing = false
		l.mu.Unlock()
	}

	l.logger.Info("connecting", "broker", cfg.BrokerURL, "client_id", cfg.ClientID)
	if err := l.transport.Connect(cfg); err != nil {
		l.handleConnectionLost(fmt.Errorf("%w: %w", transport.ErrConnectionFailed, err))
	}
	return nil
}

// Disconnect closes the session, stops reconnect attempts and discards
// buffered commands. Calling it while disconnected is a no-op.
//
// Commands executed while the transport is shutting down are buffered for
// the next session.
func (l *Lifecycle) Disconnect() {
	l.sessionMu.Lock()
	defer l.sessionMu.Unlock()

	l.mu.Lock()
	l.stopRetryLocked()
	l.generation++

	prev := l.state
	if prev == Disconnected {
		l.mu.Unlock()
		return
	}

	l.state = Disconnecting
	dropped := l.queue.Clear()
	l.mu.Unlock()

	l.transport.Disconnect()

	l.mu.Lock()
	l.state = Disconnected
	l.mu.Unlock()

	l.logger.Info("disconnected", "dropped_commands", dropped)
	l.notifyState(prev, Disconnected)
}

// Execute sends cmd now if connected, or buffers it for the next connection.
//
// It never waits for connectivity. The only errors are invalid commands;
// connection failures are absorbed by re-buffering.
func (l *Lifecycle) Execute(cmd command.Command) error {
	if err := command.ValidateQoS(cmd.QoS); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != Connected {
		l.queue.Enqueue(cmd)
		l.logger.Debug("command buffered", "command", cmd.String(), "state", l.state.String())
		return nil
	}

	return l.sendLocked(cmd)
}

// sendLocked forwards cmd to the transport. A connection-class failure puts
// the command back in the buffer.
func (l *Lifecycle) sendLocked(cmd command.Command) error {
	err := l.transport.Send(cmd)
	if err == nil {
		return nil
	}
	if errors.Is(err, errkind.ErrConnection) {
		l.queue.Enqueue(cmd)
		l.logger.Warn("send failed, command buffered", "command", cmd.String(), "error", err)
		return nil
	}
	return err
}

// State returns the current connection state.
func (l *Lifecycle) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// RetryCount returns the number of reconnect attempts scheduled since the
// last successful connection.
func (l *Lifecycle) RetryCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.retryCount
}

// LastDelay returns the delay of the most recently scheduled reconnect.
func (l *Lifecycle) LastDelay() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastDelay
}

// Pending returns the number of buffered commands.
func (l *Lifecycle) Pending() int {
	return l.queue.Len()
}

// OnConnected adds an observer called after every successful connection,
// once buffered commands have been replayed.
func (l *Lifecycle) OnConnected(fn func()) {
	l.obsMu.Lock()
	l.onConnected = append(l.onConnected, fn)
	l.obsMu.Unlock()
}

// OnConnectionLost adds an observer called when the connection drops or an
// attempt fails.
func (l *Lifecycle) OnConnectionLost(fn func(cause error)) {
	l.obsMu.Lock()
	l.onLost = append(l.onLost, fn)
	l.obsMu.Unlock()
}

// OnMessage adds an observer for inbound messages.
func (l *Lifecycle) OnMessage(fn func(topic string, payload []byte)) {
	l.obsMu.Lock()
	l.onMessage = append(l.onMessage, fn)
	l.obsMu.Unlock()
}

// OnStateChange adds an observer for state transitions.
func (l *Lifecycle) OnStateChange(fn func(from, to State)) {
	l.obsMu.Lock()
	l.onState = append(l.onState, fn)
	l.obsMu.Unlock()
}

// handleConnected is the transport's OnConnected callback.
func (l *Lifecycle) handleConnected() {
	l.mu.Lock()
	prev := l.state
	if prev == Disconnected || prev == Disconnecting || l.closing {
		l.mu.Unlock()
		l.logger.Debug("ignoring connect from a closed session")
		return
	}

	l.stopRetryLocked()
	l.state = Connected
	l.retryCount = 0
	l.lastDelay = 0
	l.backoff.Reset()

	pending := l.queue.Drain()
	replayed := 0
	for i, cmd := range pending {
		err := l.transport.Send(cmd)
		if err == nil {
			replayed++
			continue
		}
		if errors.Is(err, errkind.ErrConnection) {
			for _, rest := range pending[i:] {
				l.queue.Enqueue(rest)
			}
			l.logger.Warn("replay interrupted, remaining commands buffered", "remaining", len(pending)-i, "error", err)
			break
		}
		l.logger.Error("dropping command rejected by transport", "command", cmd.String(), "error", err)
	}
	l.mu.Unlock()

	l.logger.Info("connected", "replayed_commands", replayed)
	l.notifyState(prev, Connected)

	l.obsMu.RLock()
	observers := append([]func(){}, l.onConnected...)
	l.obsMu.RUnlock()
	for _, fn := range observers {
		fn()
	}
}

// handleConnectionLost is the transport's OnConnectionLost callback. It is
// also used when a reconnect attempt cannot be started.
func (l *Lifecycle) handleConnectionLost(cause error) {
	l.mu.Lock()
	prev := l.state
	if prev == Disconnected || prev == Disconnecting || l.closing {
		l.mu.Unlock()
		return
	}

	var delay time.Duration
	reconnect := l.opts.AutoReconnect && l.configured
	if reconnect {
		delay = l.backoff.NextBackOff()
		l.retryCount++
		l.lastDelay = delay
		l.state = Connecting
		gen := l.generation
		l.stopRetryLocked()
		l.cancelRetry = l.schedule(delay, func() { l.retry(gen) })
	} else {
		l.state = Disconnected
	}
	attempt := l.retryCount
	next := l.state
	l.mu.Unlock()

	if reconnect {
		l.logger.Warn("connection lost, reconnect scheduled", "error", cause, "attempt", attempt, "delay", delay)
	} else {
		l.logger.Warn("connection lost", "error", cause)
	}
	l.notifyState(prev, next)

	l.obsMu.RLock()
	observers := append([]func(error){}, l.onLost...)
	l.obsMu.RUnlock()
	for _, fn := range observers {
		fn(cause)
	}
}

// handleMessage is the transport's OnMessage callback.
func (l *Lifecycle) handleMessage(topic string, payload []byte) {
	l.obsMu.RLock()
	observers := append([]func(string, []byte){}, l.onMessage...)
	l.obsMu.RUnlock()
	for _, fn := range observers {
		fn(topic, payload)
	}
}

// retry runs a scheduled reconnect attempt unless it has been superseded.
func (l *Lifecycle) retry(gen uint64) {
	l.sessionMu.Lock()
	defer l.sessionMu.Unlock()

	l.mu.Lock()
	if gen != l.generation || l.state != Connecting {
		l.mu.Unlock()
		return
	}
	l.cancelRetry = nil
	cfg := l.cfg
	l.mu.Unlock()

	if err := l.transport.Connect(cfg); err != nil {
		l.handleConnectionLost(fmt.Errorf("%w: %w", transport.ErrConnectionFailed, err))
	}
}

func (l *Lifecycle) stopRetryLocked() {
	if l.cancelRetry != nil {
		l.cancelRetry()
		l.cancelRetry = nil
	}
}

func (l *Lifecycle) notifyState(from, to State) {
	if from == to {
		return
	}
	l.obsMu.RLock()
	observers := append([]func(State, State){}, l.onState...)
	l.obsMu.RUnlock()
	for _, fn := range observers {
		fn(from, to)
	}
}
