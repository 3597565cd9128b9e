package dispatch

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/nerrad567/skyroute/internal/codec"
	"github.com/nerrad567/skyroute/internal/subscription"
	"github.com/nerrad567/skyroute/internal/topic"
)

// Default inbound buffer size.
const DefaultInboxSize = 256

// Delivery outcomes reported to Metrics.
const (
	OutcomeDelivered = "delivered"
	OutcomeDecode    = "decode_error"
	OutcomeHandler   = "handler_error"
	OutcomeSkipped   = "skipped"
)

// Failure kinds reported to a FailureRecorder.
const (
	FailureDecode  = "decode"
	FailureHandler = "invocation"
)

// Logger defines the logging interface used by the Dispatcher.
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

// Failure describes one delivery that could not be completed.
type Failure struct {
	Subscriber  string
	Pattern     string
	Topic       string
	Kind        string
	Err         error
	PayloadSize int
	At          time.Time
}

// FailureRecorder persists delivery failures.
type FailureRecorder interface {
	RecordFailure(ctx context.Context, f Failure) error
}

// Metrics receives dispatch counters.
type Metrics interface {
	MessageReceived()
	Delivery(mode, outcome string)
}

// Options configures a Dispatcher.
type Options struct {
	// DefaultCodec decodes payloads for routes without a codec.
	// Defaults to codec.Default.
	DefaultCodec codec.Codec

	// PropagateErrors returns decode and handler errors from Dispatch and
	// passes errors from scheduled deliveries to OnError. When false they are
	// only logged.
	PropagateErrors bool

	// OnError receives errors from scheduled deliveries when PropagateErrors
	// is set. Nil logs them at error level.
	OnError func(error)

	// Workers bounds concurrent pool tasks. Defaults to DefaultWorkers.
	Workers int

	// InboxSize bounds messages waiting for the inbound goroutine.
	// Defaults to DefaultInboxSize.
	InboxSize int

	Recorder FailureRecorder
	Metrics  Metrics
}

type inbound struct {
	topic   string
	payload []byte
}

// Dispatcher matches inbound messages against a Registry and runs handlers.
//
// Thread Safety:
//   - Dispatch may be called from any goroutine.
//   - OnMessage is meant for the transport callback goroutine; it only
//     enqueues and returns.
type Dispatcher struct {
	registry *subscription.Registry
	loop     *Loop
	pool     *Pool
	opts     Options
	logger   Logger

	inbox    chan inbound
	quit     chan struct{}
	stopped  chan struct{}
	startMu  sync.Mutex
	started  bool
	stopOnce sync.Once
}

// New creates a Dispatcher. loop is the main context for Main routes.
func New(registry *subscription.Registry, loop *Loop, opts Options) *Dispatcher {
	if opts.DefaultCodec == nil {
		opts.DefaultCodec = codec.Default
	}
	if opts.InboxSize <= 0 {
		opts.InboxSize = DefaultInboxSize
	}
	return &Dispatcher{
		registry: registry,
		loop:     loop,
		pool:     NewPool(opts.Workers),
		opts:     opts,
		logger:   noopLogger{},
		inbox:    make(chan inbound, opts.InboxSize),
		quit:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

// SetLogger sets the logger for the dispatcher.
func (d *Dispatcher) SetLogger(logger Logger) {
	d.logger = logger
}

// Start launches the inbound goroutine. Calling it twice is a no-op.
func (d *Dispatcher) Start() {
	d.startMu.Lock()
	defer d.startMu.Unlock()
	if d.started {
		return
	}
	d.started = true
	go d.run()
}

// OnMessage queues a message for the inbound goroutine. It blocks while the
// inbox is full and drops the message once the dispatcher is stopped.
func (d *Dispatcher) OnMessage(name string, payload []byte) {
	select {
	case <-d.quit:
		d.logger.Debug("dispatcher stopped, message dropped", "topic", name)
		return
	default:
	}

	select {
	case d.inbox <- inbound{topic: name, payload: payload}:
	case <-d.quit:
		d.logger.Debug("dispatcher stopped, message dropped", "topic", name)
	}
}

// Stop drains the inbox, waits for pool tasks and stops the inbound
// goroutine. Main-loop tasks already posted stay on the Loop.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.stopOnce.Do(func() { close(d.quit) })

	d.startMu.Lock()
	started := d.started
	d.startMu.Unlock()
	if started {
		select {
		case <-d.stopped:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return d.pool.Shutdown(ctx)
}

func (d *Dispatcher) run() {
	defer close(d.stopped)
	ctx := context.Background()

	for {
		select {
		case msg := <-d.inbox:
			d.handleInbound(ctx, msg)
		case <-d.quit:
			for {
				select {
				case msg := <-d.inbox:
					d.handleInbound(ctx, msg)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) handleInbound(ctx context.Context, msg inbound) {
	if err := d.Dispatch(ctx, msg.topic, msg.payload); err != nil {
		d.reportAsync(err)
	}
}

// Dispatch delivers one message to every matching active subscription.
//
// Deliveries that run synchronously contribute their errors to the result
// when PropagateErrors is set; otherwise Dispatch returns nil. ctx tells the
// dispatcher whether the caller is on the main loop (see OnLoop).
func (d *Dispatcher) Dispatch(ctx context.Context, name string, payload []byte) error {
	if d.opts.Metrics != nil {
		d.opts.Metrics.MessageReceived()
	}

	var errs []error
	matched := 0
	d.registry.ForEachMatching(name, func(sub *subscription.Subscription) {
		matched++
		if err := d.schedule(ctx, sub, name, payload); err != nil {
			errs = append(errs, err)
		}
	})

	if matched == 0 {
		d.logger.Debug("no subscribers for topic", "topic", name)
	}
	if !d.opts.PropagateErrors {
		return nil
	}
	return errors.Join(errs...)
}

// schedule decodes the payload for sub and runs or schedules its handler.
func (d *Dispatcher) schedule(ctx context.Context, sub *subscription.Subscription, name string, payload []byte) error {
	delivery, err := d.prepare(sub, name, payload)
	if err != nil {
		d.fail(ctx, sub, delivery, FailureDecode, err)
		return err
	}

	mode := sub.Mode()
	onLoop := OnLoop(ctx)

	switch {
	case mode == subscription.Main && onLoop,
		mode == subscription.Background && !onLoop:
		return d.invoke(ctx, sub, delivery)

	case mode == subscription.Main:
		if d.loop == nil || !d.loop.Post(func(loopCtx context.Context) {
			d.reportAsync(d.invoke(loopCtx, sub, delivery))
		}) {
			return d.rejected(sub, delivery, "main loop unavailable")
		}
		return nil

	default:
		if err := d.pool.Go(func(poolCtx context.Context) {
			d.reportAsync(d.invoke(poolCtx, sub, delivery))
		}); err != nil {
			return d.rejected(sub, delivery, err.Error())
		}
		return nil
	}
}

func (d *Dispatcher) prepare(sub *subscription.Subscription, name string, payload []byte) (subscription.Delivery, error) {
	route := sub.Route
	captures, _ := topic.Captures(route.Pattern, name)
	delivery := subscription.Delivery{
		Topic:    name,
		Pattern:  route.Pattern,
		Captures: captures,
		Payload:  payload,
	}
	if route.NewValue == nil {
		return delivery, nil
	}

	c := route.Codec
	if c == nil {
		c = d.opts.DefaultCodec
	}
	v := route.NewValue()
	if err := c.Decode(payload, v); err != nil {
		return delivery, fmt.Errorf("subscriber %q on %q: %w", sub.ID, name, err)
	}
	delivery.Value = v
	return delivery, nil
}

// invoke runs the handler if the subscription is still active. Panics are
// converted to ErrHandler.
func (d *Dispatcher) invoke(ctx context.Context, sub *subscription.Subscription, delivery subscription.Delivery) (err error) {
	mode := sub.Mode().String()
	if !sub.Active() {
		d.count(mode, OutcomeSkipped)
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: subscriber %q on %q: panic: %v", ErrHandler, sub.ID, delivery.Topic, r)
			d.logger.Error("handler panic", "subscriber", string(sub.ID), "topic", delivery.Topic, "stack", string(debug.Stack()))
		}
		if err != nil {
			d.fail(ctx, sub, delivery, FailureHandler, err)
			return
		}
		d.count(mode, OutcomeDelivered)
	}()

	if herr := sub.Route.Handler(ctx, delivery); herr != nil {
		return fmt.Errorf("%w: subscriber %q on %q: %w", ErrHandler, sub.ID, delivery.Topic, herr)
	}
	return nil
}

func (d *Dispatcher) rejected(sub *subscription.Subscription, delivery subscription.Delivery, reason string) error {
	err := fmt.Errorf("%w: subscriber %q on %q: %s", ErrStopped, sub.ID, delivery.Topic, reason)
	d.logger.Warn("delivery rejected", "subscriber", string(sub.ID), "topic", delivery.Topic, "reason", reason)
	d.count(sub.Mode().String(), OutcomeSkipped)
	return err
}

func (d *Dispatcher) fail(ctx context.Context, sub *subscription.Subscription, delivery subscription.Delivery, kind string, err error) {
	outcome := OutcomeHandler
	if kind == FailureDecode {
		outcome = OutcomeDecode
	}
	d.count(sub.Mode().String(), outcome)

	d.logger.Warn("delivery failed",
		"subscriber", string(sub.ID),
		"pattern", delivery.Pattern,
		"topic", delivery.Topic,
		"kind", kind,
		"error", err,
	)

	if d.opts.Recorder == nil {
		return
	}
	rec := Failure{
		Subscriber:  string(sub.ID),
		Pattern:     delivery.Pattern,
		Topic:       delivery.Topic,
		Kind:        kind,
		Err:         err,
		PayloadSize: len(delivery.Payload),
		At:          time.Now().UTC(),
	}
	if rerr := d.opts.Recorder.RecordFailure(context.WithoutCancel(ctx), rec); rerr != nil {
		d.logger.Error("recording delivery failure", "error", rerr)
	}
}

// reportAsync handles an error that has no synchronous caller to return to.
func (d *Dispatcher) reportAsync(err error) {
	if err == nil || !d.opts.PropagateErrors {
		return
	}
	if d.opts.OnError != nil {
		d.opts.OnError(err)
		return
	}
	d.logger.Error("delivery error", "error", err)
}

func (d *Dispatcher) count(mode, outcome string) {
	if d.opts.Metrics != nil {
		d.opts.Metrics.Delivery(mode, outcome)
	}
}
