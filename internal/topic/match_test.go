package topic

import (
	"errors"
	"reflect"
	"testing"

	"github.com/nerrad567/skyroute/internal/errkind"
)

func TestMatches(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		topic   string
		want    bool
	}{
		{name: "exact", pattern: "a/b/c", topic: "a/b/c", want: true},
		{name: "literal mismatch", pattern: "a/b/c", topic: "a/x/c", want: false},
		{name: "single level", pattern: "a/+/c", topic: "a/b/c", want: true},
		{name: "single level needs content", pattern: "a/+/c", topic: "a//c", want: false},
		{name: "single level does not span", pattern: "a/+", topic: "a/b/c", want: false},
		{name: "multi level", pattern: "a/#", topic: "a/b/c", want: true},
		{name: "multi level zero remaining", pattern: "a/#", topic: "a", want: true},
		{name: "multi level alone", pattern: "#", topic: "a/b", want: true},
		{name: "overrun rejected", pattern: "a/b", topic: "a/b/c", want: false},
		{name: "topic too short", pattern: "a/b/c", topic: "a/b", want: false},
		{name: "hash not last never matches", pattern: "a/#/c", topic: "a/b/c", want: false},
		{name: "mixed wildcards", pattern: "+/b/#", topic: "x/b/y/z", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Matches(tt.pattern, tt.topic); got != tt.want {
				t.Errorf("Matches(%q, %q) = %v, want %v", tt.pattern, tt.topic, got, tt.want)
			}
		})
	}
}

func TestCaptures(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		topic   string
		want    []string
		wantOK  bool
	}{
		{name: "single plus", pattern: "a/+/c", topic: "a/b/c", want: []string{"b"}, wantOK: true},
		{name: "hash remainder", pattern: "a/#", topic: "a/b/c", want: []string{"b", "c"}, wantOK: true},
		{name: "hash empty remainder", pattern: "a/#", topic: "a", want: []string{}, wantOK: true},
		{name: "left to right", pattern: "+/x/+/#", topic: "1/x/2/3/4", want: []string{"1", "2", "3", "4"}, wantOK: true},
		{name: "no wildcards", pattern: "a/b", topic: "a/b", want: []string{}, wantOK: true},
		{name: "no match", pattern: "a/b", topic: "a/b/c", want: nil, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Captures(tt.pattern, tt.topic)
			if ok != tt.wantOK {
				t.Fatalf("Captures(%q, %q) ok = %v, want %v", tt.pattern, tt.topic, ok, tt.wantOK)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Captures(%q, %q) = %#v, want %#v", tt.pattern, tt.topic, got, tt.want)
			}
		})
	}
}

func TestValidatePattern(t *testing.T) {
	valid := []string{"a", "a/b", "+", "#", "a/+/c", "a/#", "+/+/#", "a//b"}
	for _, p := range valid {
		if err := ValidatePattern(p); err != nil {
			t.Errorf("ValidatePattern(%q) error = %v, want nil", p, err)
		}
	}

	invalid := []string{"", "a/#/b", "#/a", "a+/b", "a/b#", "a/+b"}
	for _, p := range invalid {
		err := ValidatePattern(p)
		if err == nil {
			t.Errorf("ValidatePattern(%q) = nil, want error", p)
			continue
		}
		if !errors.Is(err, errkind.ErrConfiguration) {
			t.Errorf("ValidatePattern(%q) error = %v, want ErrConfiguration", p, err)
		}
	}
}

func TestValidateTopic(t *testing.T) {
	if err := ValidateTopic("a/b"); err != nil {
		t.Errorf("ValidateTopic(a/b) error = %v", err)
	}
	if err := ValidateTopic(""); !errors.Is(err, ErrEmpty) {
		t.Errorf("ValidateTopic(\"\") error = %v, want ErrEmpty", err)
	}
	for _, name := range []string{"a/+", "a/#", "a/b#"} {
		if err := ValidateTopic(name); !errors.Is(err, ErrWildcardInTopic) {
			t.Errorf("ValidateTopic(%q) error = %v, want ErrWildcardInTopic", name, err)
		}
	}
}

func TestIsWildcard(t *testing.T) {
	tests := []struct {
		pattern string
		want    bool
	}{
		{"a/b/c", false},
		{"a/+/c", true},
		{"a/#", true},
		{"#", true},
		{"a/b+", true},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			if got := IsWildcard(tt.pattern); got != tt.want {
				t.Errorf("IsWildcard(%q) = %v, want %v", tt.pattern, got, tt.want)
			}
		})
	}
}

func TestBind(t *testing.T) {
	got, ok := Bind("site/+/sensor/#", "site/north/sensor/a/b", "site", "path")
	if !ok {
		t.Fatal("Bind() ok = false, want true")
	}
	want := map[string]string{"site": "north", "path": "a/b"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Bind() = %v, want %v", got, want)
	}

	if _, ok := Bind("a/+", "b/c", "x"); ok {
		t.Error("Bind() on non-matching topic ok = true, want false")
	}
}

func TestTopics(t *testing.T) {
	topics := Topics{}
	status := topics.ClientStatus("gw-01")
	if status != "skyroute/client/gw-01/status" {
		t.Errorf("ClientStatus() = %q", status)
	}
	if !Matches(topics.AllClientStatus(), status) {
		t.Errorf("AllClientStatus() does not match %q", status)
	}
	if !Matches(topics.AllSystem(), status) {
		t.Errorf("AllSystem() does not match %q", status)
	}
	if Join("a", "b", "c") != "a/b/c" {
		t.Errorf("Join() = %q", Join("a", "b", "c"))
	}
}
