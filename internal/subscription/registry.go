package subscription

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/nerrad567/skyroute/internal/command"
	"github.com/nerrad567/skyroute/internal/topic"
)

// Logger defines the logging interface used by the Registry.
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

// Executor sends or buffers broker commands.
type Executor interface {
	Execute(cmd command.Command) error
}

// Registry indexes subscriptions by pattern and by subscriber.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Register and Unregister hold the write lock while issuing their
//     commands, so Subscribe/Unsubscribe for a pattern reach the executor in
//     the same order the index changed.
type Registry struct {
	exec   Executor
	logger Logger

	mu           sync.RWMutex
	byPattern    map[string][]*Subscription
	bySubscriber map[SubscriberID][]*Subscription
	seq          uint64
}

// NewRegistry creates an empty registry issuing commands through exec.
func NewRegistry(exec Executor) *Registry {
	return &Registry{
		exec:         exec,
		logger:       noopLogger{},
		byPattern:    make(map[string][]*Subscription),
		bySubscriber: make(map[SubscriberID][]*Subscription),
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Register adds route for id and issues Subscribe for its pattern.
//
// The Subscribe is issued once per registration, whatever the connection
// state; the executor buffers it while offline.
//
// Returns:
//   - *Subscription: the active subscription
//   - error: a configuration error if id or route is invalid
func (r *Registry) Register(id SubscriberID, route Route) (*Subscription, error) {
	if id == "" {
		return nil, ErrEmptySubscriber
	}
	if err := route.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	sub := &Subscription{ID: id, Route: route, seq: r.seq}
	sub.active.Store(true)

	if err := r.exec.Execute(command.Subscribe(route.Pattern, route.QoS)); err != nil {
		return nil, fmt.Errorf("subscribing %q: %w", route.Pattern, err)
	}

	r.byPattern[route.Pattern] = append(r.byPattern[route.Pattern], sub)
	r.bySubscriber[id] = append(r.bySubscriber[id], sub)

	r.logger.Debug("subscription registered",
		"subscriber", string(id),
		"pattern", route.Pattern,
		"qos", route.QoS,
		"mode", route.Mode.String(),
	)
	return sub, nil
}

// Unregister deactivates and removes every subscription owned by id. Patterns
// left with no subscriptions are unsubscribed. Unknown IDs are a no-op.
//
// Returns the number of subscriptions removed.
func (r *Registry) Unregister(id SubscriberID) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	subs, ok := r.bySubscriber[id]
	if !ok {
		return 0
	}
	delete(r.bySubscriber, id)

	var errs []error
	for _, sub := range subs {
		sub.active.Store(false)

		pattern := sub.Route.Pattern
		remaining := removeSub(r.byPattern[pattern], sub)
		if len(remaining) > 0 {
			r.byPattern[pattern] = remaining
			continue
		}

		delete(r.byPattern, pattern)
		if err := r.exec.Execute(command.Unsubscribe(pattern)); err != nil {
			errs = append(errs, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		r.logger.Error("unsubscribe failed", "subscriber", string(id), "error", err)
	}
	r.logger.Debug("subscriber unregistered", "subscriber", string(id), "removed", len(subs))
	return len(subs)
}

// IsRegistered reports whether id owns at least one subscription.
func (r *Registry) IsRegistered(id SubscriberID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.bySubscriber[id]
	return ok
}

// Matching returns the active subscriptions whose pattern matches name, in
// registration order. The result is a snapshot taken under the read lock.
func (r *Registry) Matching(name string) []*Subscription {
	r.mu.RLock()
	var out []*Subscription
	for pattern, subs := range r.byPattern {
		if !topic.Matches(pattern, name) {
			continue
		}
		for _, sub := range subs {
			if sub.Active() {
				out = append(out, sub)
			}
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

// ForEachMatching calls fn for each subscription matching name that is still
// active when its turn comes. Subscriptions unregistered after the snapshot
// was taken are skipped.
func (r *Registry) ForEachMatching(name string, fn func(*Subscription)) {
	for _, sub := range r.Matching(name) {
		if sub.Active() {
			fn(sub)
		}
	}
}

// Patterns returns every pattern with at least one subscription, sorted, with
// the highest QoS requested for each.
func (r *Registry) Patterns() []PatternQoS {
	r.mu.RLock()
	out := make([]PatternQoS, 0, len(r.byPattern))
	for pattern, subs := range r.byPattern {
		var qos byte
		for _, sub := range subs {
			if sub.Route.QoS > qos {
				qos = sub.Route.QoS
			}
		}
		out = append(out, PatternQoS{Pattern: pattern, QoS: qos})
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Pattern < out[j].Pattern })
	return out
}

// PatternQoS pairs a subscribed pattern with its QoS.
type PatternQoS struct {
	Pattern string
	QoS     byte
}

// Count returns the number of registered subscriptions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, subs := range r.bySubscriber {
		n += len(subs)
	}
	return n
}

// Subscribers returns the registered subscriber IDs, sorted.
func (r *Registry) Subscribers() []SubscriberID {
	r.mu.RLock()
	out := make([]SubscriberID, 0, len(r.bySubscriber))
	for id := range r.bySubscriber {
		out = append(out, id)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func removeSub(subs []*Subscription, target *Subscription) []*Subscription {
	out := make([]*Subscription, 0, len(subs))
	for _, s := range subs {
		if s != target {
			out = append(out, s)
		}
	}
	return out
}
