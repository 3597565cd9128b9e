package topic

import (
	"fmt"
	"strings"
)

const (
	// Separator splits topic levels.
	Separator = "/"

	// SingleLevel matches exactly one level.
	SingleLevel = "+"

	// MultiLevel matches every remaining level. Only legal as the last level.
	MultiLevel = "#"
)

// Matches reports whether topic matches pattern.
func Matches(pattern, topic string) bool {
	_, ok := match(pattern, topic, false)
	return ok
}

// Captures returns the topic levels consumed by wildcards in pattern, in
// left-to-right order. A "+" contributes one entry; a trailing "#" contributes
// one entry per remaining level (possibly none).
//
// ok is false when topic does not match pattern.
func Captures(pattern, topic string) (captures []string, ok bool) {
	return match(pattern, topic, true)
}

func match(pattern, topic string, collect bool) ([]string, bool) {
	pl := strings.Split(pattern, Separator)
	tl := strings.Split(topic, Separator)

	var captures []string
	if collect {
		captures = make([]string, 0, 2)
	}

	for i, seg := range pl {
		if seg == MultiLevel {
			if i != len(pl)-1 {
				return nil, false
			}
			if collect && i < len(tl) {
				captures = append(captures, tl[i:]...)
			}
			return captures, true
		}

		if i >= len(tl) {
			return nil, false
		}

		switch seg {
		case SingleLevel:
			if tl[i] == "" {
				return nil, false
			}
			if collect {
				captures = append(captures, tl[i])
			}
		default:
			if seg != tl[i] {
				return nil, false
			}
		}
	}

	// Pattern exhausted: any leftover topic levels are an overrun.
	if len(tl) > len(pl) {
		return nil, false
	}
	return captures, true
}

// ValidatePattern checks that pattern is a well-formed subscription filter.
//
// Wildcards must occupy a whole level and "#" must be the final level.
func ValidatePattern(pattern string) error {
	if pattern == "" {
		return ErrEmpty
	}

	levels := strings.Split(pattern, Separator)
	for i, seg := range levels {
		switch {
		case seg == MultiLevel:
			if i != len(levels)-1 {
				return fmt.Errorf("%w: %q: %q must be the last level", ErrInvalidPattern, pattern, MultiLevel)
			}
		case seg == SingleLevel:
		case strings.ContainsAny(seg, SingleLevel+MultiLevel):
			return fmt.Errorf("%w: %q: wildcard must occupy a whole level", ErrInvalidPattern, pattern)
		}
	}
	return nil
}

// ValidateTopic checks that topic is usable as a publish destination.
func ValidateTopic(topic string) error {
	if topic == "" {
		return ErrEmpty
	}
	if IsWildcard(topic) {
		return fmt.Errorf("%w: %q", ErrWildcardInTopic, topic)
	}
	return nil
}

// IsWildcard reports whether pattern contains a wildcard character, so it
// can only be used as a subscription filter.
func IsWildcard(pattern string) bool {
	return strings.ContainsAny(pattern, SingleLevel+MultiLevel)
}

// Bind zips names against the wildcard levels of pattern and returns the
// values they captured in topic. A "#" binds the remaining levels re-joined
// with "/". Extra names are ignored; unnamed wildcards are skipped.
//
//	Bind("site/+/sensor/#", "site/north/sensor/a/b", "site", "path")
//	// map[site:north path:a/b], true
func Bind(pattern, topic string, names ...string) (map[string]string, bool) {
	captures, ok := Captures(pattern, topic)
	if !ok {
		return nil, false
	}

	bound := make(map[string]string, len(names))
	ci := 0
	ni := 0
	for _, seg := range strings.Split(pattern, Separator) {
		if ni >= len(names) {
			break
		}
		switch seg {
		case SingleLevel:
			bound[names[ni]] = captures[ci]
			ci++
			ni++
		case MultiLevel:
			bound[names[ni]] = strings.Join(captures[ci:], Separator)
			ni++
		}
	}
	return bound, true
}
