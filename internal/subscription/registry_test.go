package subscription

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/nerrad567/skyroute/internal/command"
	"github.com/nerrad567/skyroute/internal/errkind"
)

type fakeExecutor struct {
	mu   sync.Mutex
	cmds []command.Command
	err  error
}

func (f *fakeExecutor) Execute(cmd command.Command) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.cmds = append(f.cmds, cmd)
	return nil
}

func (f *fakeExecutor) commands() []command.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]command.Command(nil), f.cmds...)
}

func noop(context.Context, Delivery) error { return nil }

func route(pattern string) Route {
	return Route{Pattern: pattern, QoS: 1, Mode: Background, Handler: noop}
}

func TestRegister_IssuesSubscribe(t *testing.T) {
	exec := &fakeExecutor{}
	r := NewRegistry(exec)

	sub, err := r.Register("s1", route("a/+/c"))
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if !sub.Active() {
		t.Error("new subscription is not active")
	}
	if !r.IsRegistered("s1") {
		t.Error("IsRegistered(s1) = false")
	}

	cmds := exec.commands()
	if len(cmds) != 1 || cmds[0].Kind != command.KindSubscribe || cmds[0].Topic != "a/+/c" || cmds[0].QoS != 1 {
		t.Errorf("commands = %v, want subscribe a/+/c qos=1", cmds)
	}
}

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name  string
		id    SubscriberID
		route Route
		want  error
	}{
		{"empty subscriber", "", route("a"), ErrEmptySubscriber},
		{"misplaced hash", "s", route("a/#/b"), errkind.ErrConfiguration},
		{"empty pattern", "s", route(""), errkind.ErrConfiguration},
		{"bad qos", "s", Route{Pattern: "a", QoS: 3, Handler: noop}, errkind.ErrConfiguration},
		{"bad mode", "s", Route{Pattern: "a", Mode: ThreadMode(9), Handler: noop}, ErrInvalidThreadMode},
		{"no handler", "s", Route{Pattern: "a"}, ErrNoHandler},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &fakeExecutor{}
			r := NewRegistry(exec)

			_, err := r.Register(tt.id, tt.route)
			if !errors.Is(err, tt.want) {
				t.Errorf("Register() error = %v, want %v", err, tt.want)
			}
			if len(exec.commands()) != 0 {
				t.Error("invalid registration issued a command")
			}
			if r.Count() != 0 {
				t.Errorf("Count() = %d, want 0", r.Count())
			}
		})
	}
}

func TestRegister_ExecutorError(t *testing.T) {
	exec := &fakeExecutor{err: errors.New("boom")}
	r := NewRegistry(exec)

	if _, err := r.Register("s1", route("a")); err == nil {
		t.Fatal("Register() error = nil, want executor error")
	}
	if r.IsRegistered("s1") {
		t.Error("failed registration left s1 registered")
	}
}

func TestUnregister_SharedPattern(t *testing.T) {
	exec := &fakeExecutor{}
	r := NewRegistry(exec)

	subA, _ := r.Register("a", route("x/#"))
	_, _ = r.Register("b", route("x/#"))
	_, _ = r.Register("a", route("y"))

	if n := r.Unregister("a"); n != 2 {
		t.Errorf("Unregister(a) = %d, want 2", n)
	}
	if subA.Active() {
		t.Error("unregistered subscription still active")
	}

	// x/# is still held by b; only y is unsubscribed.
	cmds := exec.commands()
	last := cmds[len(cmds)-1]
	if last.Kind != command.KindUnsubscribe || last.Topic != "y" {
		t.Errorf("last command = %v, want unsubscribe y", last)
	}
	for _, c := range cmds {
		if c.Kind == command.KindUnsubscribe && c.Topic == "x/#" {
			t.Error("x/# unsubscribed while b still holds it")
		}
	}

	r.Unregister("b")
	cmds = exec.commands()
	last = cmds[len(cmds)-1]
	if last.Kind != command.KindUnsubscribe || last.Topic != "x/#" {
		t.Errorf("last command = %v, want unsubscribe x/#", last)
	}
	if got := r.Patterns(); len(got) != 0 {
		t.Errorf("Patterns() = %v, want empty", got)
	}
}

func TestUnregister_Idempotent(t *testing.T) {
	exec := &fakeExecutor{}
	r := NewRegistry(exec)

	if r.IsRegistered("ghost") {
		t.Error("IsRegistered(ghost) = true before registration")
	}
	if n := r.Unregister("ghost"); n != 0 {
		t.Errorf("Unregister(ghost) = %d, want 0", n)
	}
	if r.IsRegistered("ghost") {
		t.Error("IsRegistered(ghost) = true after unregister")
	}
	if len(exec.commands()) != 0 {
		t.Errorf("commands = %v, want none", exec.commands())
	}

	_, _ = r.Register("s", route("a"))
	r.Unregister("s")
	before := len(exec.commands())
	r.Unregister("s")
	if len(exec.commands()) != before {
		t.Error("second Unregister issued commands")
	}
}

func TestMatching(t *testing.T) {
	r := NewRegistry(&fakeExecutor{})

	_, _ = r.Register("third", route("home/#"))
	_, _ = r.Register("first", route("home/+/temp"))
	_, _ = r.Register("second", route("home/kitchen/temp"))
	_, _ = r.Register("other", route("garage/#"))

	got := r.Matching("home/kitchen/temp")
	want := []SubscriberID{"third", "first", "second"}
	if len(got) != len(want) {
		t.Fatalf("Matching() returned %d, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("Matching()[%d].ID = %q, want %q", i, got[i].ID, id)
		}
	}

	var seen []SubscriberID
	r.ForEachMatching("garage/door", func(s *Subscription) { seen = append(seen, s.ID) })
	if len(seen) != 1 || seen[0] != "other" {
		t.Errorf("ForEachMatching(garage/door) = %v, want [other]", seen)
	}
}

func TestForEachMatching_SkipsUnregisteredAfterSnapshot(t *testing.T) {
	r := NewRegistry(&fakeExecutor{})
	_, _ = r.Register("a", route("t"))
	_, _ = r.Register("b", route("t"))

	var seen []SubscriberID
	r.ForEachMatching("t", func(s *Subscription) {
		seen = append(seen, s.ID)
		if s.ID == "a" {
			r.Unregister("b")
		}
	})

	if len(seen) != 1 || seen[0] != "a" {
		t.Errorf("seen = %v, want [a]", seen)
	}
}

func TestPatternsAndCount(t *testing.T) {
	r := NewRegistry(&fakeExecutor{})
	_, _ = r.Register("a", Route{Pattern: "b/x", QoS: 0, Handler: noop})
	_, _ = r.Register("b", Route{Pattern: "b/x", QoS: 2, Handler: noop})
	_, _ = r.Register("b", Route{Pattern: "a/#", QoS: 1, Handler: noop})

	if r.Count() != 3 {
		t.Errorf("Count() = %d, want 3", r.Count())
	}
	got := r.Patterns()
	want := []PatternQoS{{"a/#", 1}, {"b/x", 2}}
	if len(got) != len(want) {
		t.Fatalf("Patterns() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Patterns()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	if ids := r.Subscribers(); len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Errorf("Subscribers() = %v, want [a b]", ids)
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry(&fakeExecutor{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		id := SubscriberID(fmt.Sprintf("s%d", i))
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, _ = r.Register(id, route("load/+"))
				r.Unregister(id)
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.ForEachMatching("load/x", func(s *Subscription) {
					_ = s.Pattern()
				})
			}
		}()
	}
	wg.Wait()

	if r.Count() != 0 {
		t.Errorf("Count() = %d, want 0", r.Count())
	}
}

func TestParseThreadMode(t *testing.T) {
	for _, m := range []ThreadMode{Main, Background, Async} {
		got, err := ParseThreadMode(m.String())
		if err != nil || got != m {
			t.Errorf("ParseThreadMode(%q) = %v, %v", m.String(), got, err)
		}
	}
	if _, err := ParseThreadMode("ui"); !errors.Is(err, ErrInvalidThreadMode) {
		t.Errorf("ParseThreadMode(ui) error = %v, want ErrInvalidThreadMode", err)
	}
}
