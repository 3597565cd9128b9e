// Package topic implements MQTT-style topic pattern matching for SkyRoute.
//
// Topics and patterns are "/"-separated level strings. Inside a pattern:
//   - "+" matches exactly one non-empty level
//   - "#" matches all remaining levels (including none) and must be the last level
//
// Matching is a pure function of (pattern, topic); nothing here holds state.
//
//	topic.Matches("sensors/+/temp", "sensors/kitchen/temp")     // true
//	topic.Captures("sensors/#", "sensors/kitchen/temp")         // ["kitchen" "temp"], true
//
// Patterns with "#" in a non-final position never match. Registration paths
// call ValidatePattern first so such patterns are rejected up front.
package topic
