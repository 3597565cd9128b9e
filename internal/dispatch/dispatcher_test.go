package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nerrad567/skyroute/internal/codec"
	"github.com/nerrad567/skyroute/internal/command"
	"github.com/nerrad567/skyroute/internal/errkind"
	"github.com/nerrad567/skyroute/internal/subscription"
)

type nopExecutor struct{}

func (nopExecutor) Execute(command.Command) error { return nil }

type fakeRecorder struct {
	mu       sync.Mutex
	failures []Failure
}

func (f *fakeRecorder) RecordFailure(_ context.Context, fl Failure) error {
	f.mu.Lock()
	f.failures = append(f.failures, fl)
	f.mu.Unlock()
	return nil
}

func (f *fakeRecorder) all() []Failure {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Failure(nil), f.failures...)
}

type fakeMetrics struct {
	mu       sync.Mutex
	received int
	outcomes map[string]int
}

func (f *fakeMetrics) MessageReceived() {
	f.mu.Lock()
	f.received++
	f.mu.Unlock()
}

func (f *fakeMetrics) Delivery(mode, outcome string) {
	f.mu.Lock()
	if f.outcomes == nil {
		f.outcomes = make(map[string]int)
	}
	f.outcomes[mode+"/"+outcome]++
	f.mu.Unlock()
}

func (f *fakeMetrics) get(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.outcomes[key]
}

type harness struct {
	reg  *subscription.Registry
	loop *Loop
	d    *Dispatcher
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	reg := subscription.NewRegistry(nopExecutor{})
	loop := NewLoop()
	d := New(reg, loop, opts)
	t.Cleanup(func() {
		if err := d.Stop(context.Background()); err != nil {
			t.Errorf("Stop() error = %v", err)
		}
	})
	return &harness{reg: reg, loop: loop, d: d}
}

func (h *harness) register(t *testing.T, id string, route subscription.Route) *subscription.Subscription {
	t.Helper()
	sub, err := h.reg.Register(subscription.SubscriberID(id), route)
	if err != nil {
		t.Fatalf("Register(%s) error = %v", id, err)
	}
	return sub
}

type callerKey struct{}

func TestDispatch_ThreadModes(t *testing.T) {
	tests := []struct {
		name   string
		mode   subscription.ThreadMode
		onLoop bool
		// sync: handler ran before Dispatch returned with the caller's context.
		wantSync bool
		// wantLoop: handler context is marked as main loop.
		wantLoop bool
	}{
		{"main from main loop", subscription.Main, true, true, true},
		{"main from elsewhere", subscription.Main, false, false, true},
		{"background from main loop", subscription.Background, true, false, false},
		{"background from elsewhere", subscription.Background, false, true, false},
		{"async from main loop", subscription.Async, true, false, false},
		{"async from elsewhere", subscription.Async, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, Options{})

			type call struct {
				sameCaller bool
				onLoop     bool
			}
			calls := make(chan call, 1)
			h.register(t, "s", subscription.Route{
				Pattern: "room/+/light",
				Mode:    tt.mode,
				Handler: func(ctx context.Context, _ subscription.Delivery) error {
					calls <- call{sameCaller: ctx.Value(callerKey{}) != nil, onLoop: OnLoop(ctx)}
					return nil
				},
			})

			dispatch := func(ctx context.Context) {
				ctx = context.WithValue(ctx, callerKey{}, true)
				if err := h.d.Dispatch(ctx, "room/kitchen/light", []byte("on")); err != nil {
					t.Errorf("Dispatch() error = %v", err)
				}
				if tt.wantSync && len(calls) != 1 {
					t.Error("handler did not run before Dispatch returned")
				}
			}

			if tt.onLoop {
				h.loop.Post(dispatch)
				h.loop.RunPending(context.Background())
			} else {
				dispatch(context.Background())
			}
			if tt.mode == subscription.Main && !tt.onLoop {
				if len(calls) != 0 {
					t.Fatal("main handler ran off the loop")
				}
				h.loop.RunPending(context.Background())
			}

			var got call
			select {
			case got = <-calls:
			case <-time.After(2 * time.Second):
				t.Fatal("handler was not invoked")
			}
			if got.sameCaller != tt.wantSync {
				t.Errorf("ran with caller context = %t, want %t", got.sameCaller, tt.wantSync)
			}
			if got.onLoop != tt.wantLoop {
				t.Errorf("OnLoop(handler ctx) = %t, want %t", got.onLoop, tt.wantLoop)
			}
		})
	}
}

type temperature struct {
	Celsius float64 `json:"celsius"`
}

func TestDispatch_DecodesAndCaptures(t *testing.T) {
	h := newHarness(t, Options{})

	var got subscription.Delivery
	h.register(t, "s", subscription.Route{
		Pattern:  "site/+/sensor/#",
		Mode:     subscription.Background,
		NewValue: func() any { return &temperature{} },
		Handler: func(_ context.Context, d subscription.Delivery) error {
			got = d
			return nil
		},
	})

	if err := h.d.Dispatch(context.Background(), "site/north/sensor/a/b", []byte(`{"celsius":21.5}`)); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	if got.Topic != "site/north/sensor/a/b" || got.Pattern != "site/+/sensor/#" {
		t.Errorf("delivery topic/pattern = %q/%q", got.Topic, got.Pattern)
	}
	wantCaps := []string{"north", "a", "b"}
	if len(got.Captures) != len(wantCaps) {
		t.Fatalf("Captures = %v, want %v", got.Captures, wantCaps)
	}
	for i := range wantCaps {
		if got.Captures[i] != wantCaps[i] {
			t.Errorf("Captures[%d] = %q, want %q", i, got.Captures[i], wantCaps[i])
		}
	}
	v, ok := got.Value.(*temperature)
	if !ok || v.Celsius != 21.5 {
		t.Errorf("Value = %#v, want &temperature{21.5}", got.Value)
	}
}

func TestDispatch_RouteCodec(t *testing.T) {
	h := newHarness(t, Options{DefaultCodec: codec.JSON})

	var got string
	h.register(t, "s", subscription.Route{
		Pattern:  "status",
		Mode:     subscription.Background,
		Codec:    codec.Text,
		NewValue: func() any { return new(string) },
		Handler: func(_ context.Context, d subscription.Delivery) error {
			got = *d.Value.(*string)
			return nil
		},
	})

	if err := h.d.Dispatch(context.Background(), "status", []byte("online")); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if got != "online" {
		t.Errorf("Value = %q, want online", got)
	}
}

func TestDispatch_FailureIsolation(t *testing.T) {
	tests := []struct {
		name      string
		propagate bool
	}{
		{"swallow", false},
		{"propagate", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &fakeRecorder{}
			metrics := &fakeMetrics{}
			h := newHarness(t, Options{PropagateErrors: tt.propagate, Recorder: rec, Metrics: metrics})

			var delivered []string
			ok := func(id string) subscription.Handler {
				return func(context.Context, subscription.Delivery) error {
					delivered = append(delivered, id)
					return nil
				}
			}

			h.register(t, "decoder", subscription.Route{
				Pattern:  "t",
				Mode:     subscription.Background,
				NewValue: func() any { return &temperature{} },
				Handler:  ok("decoder"),
			})
			h.register(t, "first", subscription.Route{Pattern: "t", Mode: subscription.Background, Handler: ok("first")})
			h.register(t, "failing", subscription.Route{
				Pattern: "t",
				Mode:    subscription.Background,
				Handler: func(context.Context, subscription.Delivery) error { return errors.New("boom") },
			})
			h.register(t, "panicking", subscription.Route{
				Pattern: "t",
				Mode:    subscription.Background,
				Handler: func(context.Context, subscription.Delivery) error { panic("bad state") },
			})
			h.register(t, "last", subscription.Route{Pattern: "t", Mode: subscription.Background, Handler: ok("last")})

			err := h.d.Dispatch(context.Background(), "t", []byte("not json"))

			if len(delivered) != 2 || delivered[0] != "first" || delivered[1] != "last" {
				t.Errorf("delivered = %v, want [first last]", delivered)
			}

			if tt.propagate {
				if !errors.Is(err, errkind.ErrDecode) {
					t.Errorf("Dispatch() error = %v, want ErrDecode in chain", err)
				}
				if !errors.Is(err, errkind.ErrInvocation) {
					t.Errorf("Dispatch() error = %v, want ErrInvocation in chain", err)
				}
			} else if err != nil {
				t.Errorf("Dispatch() error = %v, want nil", err)
			}

			failures := rec.all()
			if len(failures) != 3 {
				t.Fatalf("recorded %d failures, want 3", len(failures))
			}
			kinds := map[string]string{}
			for _, f := range failures {
				kinds[f.Subscriber] = f.Kind
				if f.PayloadSize != len("not json") {
					t.Errorf("failure PayloadSize = %d", f.PayloadSize)
				}
			}
			if kinds["decoder"] != FailureDecode || kinds["failing"] != FailureHandler || kinds["panicking"] != FailureHandler {
				t.Errorf("failure kinds = %v", kinds)
			}

			if metrics.received != 1 {
				t.Errorf("messages received = %d, want 1", metrics.received)
			}
			if got := metrics.get("background/" + OutcomeDelivered); got != 2 {
				t.Errorf("delivered count = %d, want 2", got)
			}
			if got := metrics.get("background/" + OutcomeHandler); got != 2 {
				t.Errorf("handler error count = %d, want 2", got)
			}
			if got := metrics.get("background/" + OutcomeDecode); got != 1 {
				t.Errorf("decode error count = %d, want 1", got)
			}
		})
	}
}

func TestDispatch_AsyncErrorsGoToOnError(t *testing.T) {
	errs := make(chan error, 1)
	h := newHarness(t, Options{
		PropagateErrors: true,
		OnError:         func(err error) { errs <- err },
	})
	h.register(t, "s", subscription.Route{
		Pattern: "t",
		Mode:    subscription.Async,
		Handler: func(context.Context, subscription.Delivery) error { return errors.New("async boom") },
	})

	if err := h.d.Dispatch(context.Background(), "t", nil); err != nil {
		t.Fatalf("Dispatch() error = %v, want nil for scheduled delivery", err)
	}

	select {
	case err := <-errs:
		if !errors.Is(err, ErrHandler) {
			t.Errorf("OnError got %v, want ErrHandler", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("OnError was not called")
	}
}

func TestDispatch_QueuedInvocationSkippedAfterUnregister(t *testing.T) {
	h := newHarness(t, Options{})

	var calls atomic.Int32
	h.register(t, "s", subscription.Route{
		Pattern: "x",
		Mode:    subscription.Main,
		Handler: func(context.Context, subscription.Delivery) error {
			calls.Add(1)
			return nil
		},
	})

	if err := h.d.Dispatch(context.Background(), "x", nil); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if h.loop.Len() != 1 {
		t.Fatalf("loop has %d tasks, want 1", h.loop.Len())
	}

	h.reg.Unregister("s")
	h.loop.RunPending(context.Background())

	if calls.Load() != 0 {
		t.Errorf("handler ran %d times after unregister returned", calls.Load())
	}
}

func TestDispatch_InFlightInvocationCompletes(t *testing.T) {
	h := newHarness(t, Options{})

	started := make(chan struct{})
	release := make(chan struct{})
	var completed atomic.Bool
	h.register(t, "s", subscription.Route{
		Pattern: "x",
		Mode:    subscription.Async,
		Handler: func(context.Context, subscription.Delivery) error {
			close(started)
			<-release
			completed.Store(true)
			return nil
		},
	})

	_ = h.d.Dispatch(context.Background(), "x", nil)
	<-started

	h.reg.Unregister("s")
	_ = h.d.Dispatch(context.Background(), "x", nil)
	close(release)

	if err := h.d.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if !completed.Load() {
		t.Error("in-flight invocation did not complete")
	}
}

func TestDispatch_ConcurrentUnregister(t *testing.T) {
	h := newHarness(t, Options{})

	var calls atomic.Int32
	h.register(t, "s", subscription.Route{
		Pattern: "x",
		Mode:    subscription.Async,
		Handler: func(context.Context, subscription.Delivery) error {
			calls.Add(1)
			return nil
		},
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			_ = h.d.Dispatch(context.Background(), "x", nil)
		}
	}()

	time.Sleep(time.Millisecond)
	h.reg.Unregister("s")
	wg.Wait()

	// Let invocations scheduled before Unregister finish.
	if err := h.d.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	settled := calls.Load()

	for i := 0; i < 10; i++ {
		if err := h.d.Dispatch(context.Background(), "x", nil); err != nil {
			t.Fatalf("Dispatch() error = %v", err)
		}
	}
	if got := calls.Load(); got != settled {
		t.Errorf("handler ran %d more times after unregister", got-settled)
	}
	if got := h.reg.Matching("x"); len(got) != 0 {
		t.Errorf("Matching(x) returned %d subscriptions after unregister", len(got))
	}
}

func TestDispatcher_InboundGoroutine(t *testing.T) {
	h := newHarness(t, Options{})

	got := make(chan string, 3)
	h.register(t, "s", subscription.Route{
		Pattern: "in/#",
		Mode:    subscription.Background,
		Handler: func(_ context.Context, d subscription.Delivery) error {
			got <- d.Topic
			return nil
		},
	})

	h.d.Start()
	h.d.Start()
	h.d.OnMessage("in/a", nil)
	h.d.OnMessage("in/b", nil)
	h.d.OnMessage("other", nil)

	for _, want := range []string{"in/a", "in/b"} {
		select {
		case topic := <-got:
			if topic != want {
				t.Errorf("delivered %q, want %q", topic, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %q", want)
		}
	}

	if err := h.d.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	h.d.OnMessage("in/c", nil)
	if len(got) != 0 {
		t.Error("message delivered after Stop")
	}
}

func TestDispatch_MainLoopClosed(t *testing.T) {
	h := newHarness(t, Options{PropagateErrors: true})
	h.register(t, "s", subscription.Route{
		Pattern: "x",
		Mode:    subscription.Main,
		Handler: func(context.Context, subscription.Delivery) error { return nil },
	})

	h.loop.Close()
	if err := h.d.Dispatch(context.Background(), "x", nil); !errors.Is(err, ErrStopped) {
		t.Errorf("Dispatch() error = %v, want ErrStopped", err)
	}
}
