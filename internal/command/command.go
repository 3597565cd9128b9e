// Package command holds the operations SkyRoute sends to a transport and the
// FIFO buffer that keeps them while no connection is available.
package command

import (
	"fmt"
	"time"

	"github.com/nerrad567/skyroute/internal/errkind"
)

// MaxQoS is the highest MQTT quality-of-service level.
const MaxQoS = 2

// ErrInvalidQoS is returned when a QoS level outside 0-2 is requested.
var ErrInvalidQoS = fmt.Errorf("%w: command: invalid QoS level (must be 0, 1, or 2)", errkind.ErrConfiguration)

// Kind identifies which operation a Command carries.
type Kind uint8

const (
	KindSubscribe Kind = iota + 1
	KindUnsubscribe
	KindPublish
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindSubscribe:
		return "subscribe"
	case KindUnsubscribe:
		return "unsubscribe"
	case KindPublish:
		return "publish"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Command is a subscribe, unsubscribe or publish request.
//
// Only the fields relevant to Kind are meaningful: Unsubscribe uses Topic only,
// Subscribe uses Topic and QoS.
type Command struct {
	Kind    Kind
	Topic   string
	Payload []byte
	QoS     byte
	Retain  bool
	TTL     time.Duration
}

// Subscribe creates a subscribe command for pattern.
func Subscribe(pattern string, qos byte) Command {
	return Command{Kind: KindSubscribe, Topic: pattern, QoS: qos}
}

// Unsubscribe creates an unsubscribe command for pattern.
func Unsubscribe(pattern string) Command {
	return Command{Kind: KindUnsubscribe, Topic: pattern}
}

// Publish creates a publish command.
func Publish(topic string, payload []byte, qos byte, retain bool, ttl time.Duration) Command {
	return Command{
		Kind:    KindPublish,
		Topic:   topic,
		Payload: payload,
		QoS:     qos,
		Retain:  retain,
		TTL:     ttl,
	}
}

// ValidateQoS checks that qos is 0, 1 or 2.
func ValidateQoS(qos byte) error {
	if qos > MaxQoS {
		return fmt.Errorf("%w: got %d", ErrInvalidQoS, qos)
	}
	return nil
}

// String renders the command without its payload, for logs.
func (c Command) String() string {
	if c.Kind == KindPublish {
		return fmt.Sprintf("%s %s qos=%d retain=%t bytes=%d", c.Kind, c.Topic, c.QoS, c.Retain, len(c.Payload))
	}
	return fmt.Sprintf("%s %s qos=%d", c.Kind, c.Topic, c.QoS)
}
