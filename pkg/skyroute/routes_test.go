package skyroute

import (
	"context"
	"errors"
	"testing"
)

func TestOn_BuildsRoute(t *testing.T) {
	route := On("home/+/temp", func(context.Context, Message[reading]) error { return nil },
		WithQoS(1), WithMode(Async), WithCodec(YAML))

	if route.Pattern != "home/+/temp" || route.QoS != 1 || route.Mode != Async || route.Codec != YAML {
		t.Errorf("route = %+v", route)
	}
	if _, ok := route.NewValue().(*reading); !ok {
		t.Errorf("NewValue() = %T, want *reading", route.NewValue())
	}
	if err := route.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestOn_DefaultsToBackground(t *testing.T) {
	route := OnRaw("a", func(context.Context, Delivery) error { return nil })
	if route.Mode != Background {
		t.Errorf("Mode = %v, want Background", route.Mode)
	}
	if route.NewValue != nil {
		t.Error("raw route should not decode")
	}
}

func TestOn_NilHandlerInvalid(t *testing.T) {
	route := On[reading]("a", nil)
	if err := route.Validate(); !errors.Is(err, ErrConfiguration) {
		t.Errorf("Validate() error = %v, want ErrConfiguration", err)
	}
}

func TestOn_HandlerConvertsDelivery(t *testing.T) {
	var got Message[reading]
	route := On("home/+/temp", func(_ context.Context, m Message[reading]) error {
		got = m
		return nil
	})

	err := route.Handler(context.Background(), Delivery{
		Topic:    "home/hall/temp",
		Pattern:  "home/+/temp",
		Captures: []string{"hall"},
		Payload:  []byte(`{"celsius":19}`),
		Value:    &reading{Celsius: 19},
	})
	if err != nil {
		t.Fatalf("Handler() error = %v", err)
	}
	if got.Value.Celsius != 19 || got.Topic != "home/hall/temp" || string(got.Payload) != `{"celsius":19}` {
		t.Errorf("message = %+v", got)
	}

	err = route.Handler(context.Background(), Delivery{Topic: "x", Value: "wrong"})
	if !errors.Is(err, ErrDecode) {
		t.Errorf("Handler() with wrong value type error = %v, want ErrDecode", err)
	}
}

func TestMessage_Bind(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		topic   string
		names   []string
		want    map[string]string
	}{
		{
			name:    "single levels",
			pattern: "site/+/room/+",
			topic:   "site/a/room/b",
			names:   []string{"site", "room"},
			want:    map[string]string{"site": "a", "room": "b"},
		},
		{
			name:    "no wildcards",
			pattern: "a/b",
			topic:   "a/b",
			want:    map[string]string{},
		},
		{
			name:    "topic does not match",
			pattern: "a/+",
			topic:   "b/c",
			names:   []string{"x"},
			want:    nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Message[reading]{Topic: tt.topic, Pattern: tt.pattern}
			got := m.Bind(tt.names...)
			if len(got) != len(tt.want) {
				t.Fatalf("Bind() = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("Bind()[%q] = %q, want %q", k, got[k], v)
				}
			}
		})
	}
}
