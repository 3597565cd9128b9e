package skyroute

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/skyroute/internal/command"
	"github.com/nerrad567/skyroute/internal/dispatch"
	"github.com/nerrad567/skyroute/internal/lifecycle"
	"github.com/nerrad567/skyroute/internal/subscription"
	"github.com/nerrad567/skyroute/internal/topic"
	"github.com/nerrad567/skyroute/internal/transport"
)

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Status is a point-in-time view of a Router.
type Status struct {
	State           string        `json:"state"`
	Connected       bool          `json:"connected"`
	RetryCount      int           `json:"retry_count"`
	LastDelay       time.Duration `json:"last_delay_ns"`
	PendingCommands int           `json:"pending_commands"`
	Subscriptions   int           `json:"subscriptions"`
	Subscribers     int           `json:"subscribers"`
}

// Router is the composition root: it binds the connection lifecycle to the
// dispatcher and forwards registrations and publishes to the broker.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Run must be called from a single goroutine; Main-mode handlers run there.
type Router struct {
	life       *lifecycle.Lifecycle
	registry   *subscription.Registry
	loop       *dispatch.Loop
	dispatcher *dispatch.Dispatcher
	codec      Codec
	logger     Logger

	// mu guards the session fields below.
	mu          sync.Mutex
	cfg         TransportConfig
	resubscribe bool
	raw         map[string]byte

	initOnce sync.Once
	closed   atomic.Bool
}

// New creates a Router over opts.Transport. Nothing is started until Init
// or ApplyConfig.
//
// Returns:
//   - *Router: Router ready for registrations and publishes
//   - error: ErrNoTransport when no transport is supplied
func New(opts Options) (*Router, error) {
	if opts.Transport == nil {
		return nil, ErrNoTransport
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	if opts.DefaultCodec == nil {
		opts.DefaultCodec = JSON
	}

	life := lifecycle.New(opts.Transport, opts.Reconnect)
	life.SetLogger(opts.Logger)

	registry := subscription.NewRegistry(life)
	registry.SetLogger(opts.Logger)

	loop := dispatch.NewLoop()
	dispatcher := dispatch.New(registry, loop, dispatch.Options{
		DefaultCodec:    opts.DefaultCodec,
		PropagateErrors: opts.PropagateErrors,
		OnError:         opts.OnError,
		Workers:         opts.Workers,
		InboxSize:       opts.InboxSize,
		Recorder:        opts.Recorder,
		Metrics:         opts.Metrics,
	})
	dispatcher.SetLogger(opts.Logger)

	r := &Router{
		life:       life,
		registry:   registry,
		loop:       loop,
		dispatcher: dispatcher,
		codec:      opts.DefaultCodec,
		logger:     opts.Logger,
		raw:        make(map[string]byte),
	}

	life.OnMessage(dispatcher.OnMessage)
	life.OnConnected(r.handleConnected)
	life.OnConnectionLost(r.handleConnectionLost)
	return r, nil
}

// Init starts the inbound dispatch goroutine. It is called implicitly by
// ApplyConfig and Run; calling it again is a no-op.
func (r *Router) Init() {
	r.initOnce.Do(r.dispatcher.Start)
}

// Run executes the main loop until ctx is cancelled or the Router is closed.
// Main-mode handlers run on the calling goroutine.
func (r *Router) Run(ctx context.Context) error {
	if r.closed.Load() {
		return ErrClosed
	}
	r.Init()
	return r.loop.Run(ctx)
}

// ApplyConfig connects with cfg. A live or pending session is replaced and
// its buffered commands are dropped; registered routes are subscribed again
// once the new session is up.
//
// Returns a configuration error for a missing or malformed broker address.
// Connection failures are handled by the reconnect policy.
func (r *Router) ApplyConfig(cfg TransportConfig) error {
	if r.closed.Load() {
		return ErrClosed
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	r.Init()

	r.mu.Lock()
	r.cfg = cfg
	if r.life.State() != lifecycle.Disconnected {
		r.resubscribe = true
	}
	r.mu.Unlock()

	return r.life.Connect(cfg)
}

// Disconnect closes the session and drops buffered commands. Registrations
// survive and are subscribed again on the next ApplyConfig.
func (r *Router) Disconnect() {
	r.mu.Lock()
	r.resubscribe = true
	r.mu.Unlock()
	r.life.Disconnect()
}

// Register adds routes for a subscriber and subscribes their patterns.
// All routes are validated first; on a validation error nothing is registered.
func (r *Router) Register(id SubscriberID, routes ...Route) error {
	if r.closed.Load() {
		return ErrClosed
	}
	if id == "" {
		return subscription.ErrEmptySubscriber
	}
	for _, route := range routes {
		if err := route.Validate(); err != nil {
			return err
		}
	}
	for _, route := range routes {
		if _, err := r.registry.Register(id, route); err != nil {
			return err
		}
	}
	return nil
}

// Unregister removes every route of id. Once it returns no handler of id
// starts running; handlers already running finish. Unknown ids are a no-op.
func (r *Router) Unregister(id SubscriberID) {
	r.registry.Unregister(id)
}

// IsRegistered reports whether id owns at least one route.
func (r *Router) IsRegistered(id SubscriberID) bool {
	return r.registry.IsRegistered(id)
}

// Subscribers returns the registered subscriber ids, sorted.
func (r *Router) Subscribers() []SubscriberID {
	return r.registry.Subscribers()
}

// Publish encodes value and sends it to topicName, buffering while offline.
//
// []byte values are sent as-is; anything else goes through the codec
// (WithCodec, else the default).
//
// Returns a configuration error for a wildcard or empty topic, an invalid
// QoS or a value the codec cannot encode.
func (r *Router) Publish(topicName string, value any, opts ...Option) error {
	if r.closed.Load() {
		return ErrClosed
	}
	if err := topic.ValidateTopic(topicName); err != nil {
		return err
	}
	s := applyOptions(opts)
	if err := command.ValidateQoS(s.qos); err != nil {
		return err
	}

	payload, err := r.encode(value, s.codec)
	if err != nil {
		return fmt.Errorf("publishing to %q: %w", topicName, err)
	}
	return r.life.Execute(command.Publish(topicName, payload, s.qos, s.retain, s.ttl))
}

func (r *Router) encode(value any, c Codec) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	}
	if c == nil {
		c = r.codec
	}
	return c.Encode(value)
}

// Subscribe issues a raw subscribe without a handler, e.g. to warm a
// retained-message cache in the broker session. The pattern is restored
// after a session loss like a registered one, until Unsubscribe.
func (r *Router) Subscribe(pattern string, qos byte) error {
	if r.closed.Load() {
		return ErrClosed
	}
	if err := topic.ValidatePattern(pattern); err != nil {
		return err
	}
	if err := command.ValidateQoS(qos); err != nil {
		return err
	}
	r.mu.Lock()
	r.raw[pattern] = qos
	r.mu.Unlock()
	return r.life.Execute(command.Subscribe(pattern, qos))
}

// Unsubscribe issues a raw unsubscribe and stops restoring pattern.
func (r *Router) Unsubscribe(pattern string) error {
	if r.closed.Load() {
		return ErrClosed
	}
	if err := topic.ValidatePattern(pattern); err != nil {
		return err
	}
	r.mu.Lock()
	delete(r.raw, pattern)
	r.mu.Unlock()
	return r.life.Execute(command.Unsubscribe(pattern))
}

// OnStateChange adds an observer for connection state transitions.
func (r *Router) OnStateChange(fn func(from, to State)) {
	r.life.OnStateChange(fn)
}

// OnConnected adds an observer called after each successful connection.
func (r *Router) OnConnected(fn func()) {
	r.life.OnConnected(fn)
}

// OnConnectionLost adds an observer called when the connection drops or an
// attempt fails.
func (r *Router) OnConnectionLost(fn func(cause error)) {
	r.life.OnConnectionLost(fn)
}

// State returns the connection state.
func (r *Router) State() State {
	return r.life.State()
}

// Status returns a snapshot of connection and registry counters.
func (r *Router) Status() Status {
	state := r.life.State()
	return Status{
		State:           state.String(),
		Connected:       state == lifecycle.Connected,
		RetryCount:      r.life.RetryCount(),
		LastDelay:       r.life.LastDelay(),
		PendingCommands: r.life.Pending(),
		Subscriptions:   r.registry.Count(),
		Subscribers:     len(r.registry.Subscribers()),
	}
}

// Pending returns the number of buffered commands.
func (r *Router) Pending() int {
	return r.life.Pending()
}

// SubscriptionCount returns the number of registered routes.
func (r *Router) SubscriptionCount() int {
	return r.registry.Count()
}

// HealthCheck returns nil while connected.
func (r *Router) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.closed.Load() {
		return ErrClosed
	}
	if state := r.life.State(); state != lifecycle.Connected {
		return fmt.Errorf("%w: state %s", transport.ErrNotConnected, state)
	}
	return nil
}

// Close disconnects, stops dispatching, waits for running pool handlers
// (bounded by ctx) and ends Run. Safe to call more than once.
func (r *Router) Close(ctx context.Context) error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	r.life.Disconnect()
	err := r.dispatcher.Stop(ctx)
	r.loop.Close()
	return err
}

// handleConnected restores subscriptions the broker may have forgotten.
func (r *Router) handleConnected() {
	r.mu.Lock()
	resubscribe := r.resubscribe
	r.resubscribe = false
	r.mu.Unlock()
	if !resubscribe {
		return
	}

	patterns := r.sessionPatterns()
	for _, p := range patterns {
		if err := r.life.Execute(command.Subscribe(p.Pattern, p.QoS)); err != nil {
			r.logger.Error("resubscribe failed", "pattern", p.Pattern, "error", err)
		}
	}
	r.logger.Info("resubscribed", "patterns", len(patterns))
}

// sessionPatterns merges registered patterns with raw subscriptions. A
// pattern held by both is subscribed once at the higher QoS.
func (r *Router) sessionPatterns() []subscription.PatternQoS {
	patterns := r.registry.Patterns()
	index := make(map[string]int, len(patterns))
	for i, p := range patterns {
		index[p.Pattern] = i
	}

	r.mu.Lock()
	raw := make([]string, 0, len(r.raw))
	for pattern := range r.raw {
		raw = append(raw, pattern)
	}
	sort.Strings(raw)
	for _, pattern := range raw {
		qos := r.raw[pattern]
		if i, ok := index[pattern]; ok {
			patterns[i].QoS = max(patterns[i].QoS, qos)
			continue
		}
		patterns = append(patterns, subscription.PatternQoS{Pattern: pattern, QoS: qos})
	}
	r.mu.Unlock()
	return patterns
}

// handleConnectionLost marks the session's subscriptions as lost when the
// broker does not keep them.
func (r *Router) handleConnectionLost(error) {
	r.mu.Lock()
	if r.cfg.CleanSession {
		r.resubscribe = true
	}
	r.mu.Unlock()
}
