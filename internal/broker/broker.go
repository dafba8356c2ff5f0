// Package broker fans room broadcasts out to every relay instance serving the room.
package broker

import (
	"context"
	"errors"
)

const (
	InMemoryBrokerType = "in-memory"
	RedisBrokerType    = "redis"
)

var ErrClosed = errors.New("broker closed")

// Message is one broadcast frame for a room.
type Message struct {
	RoomID string `json:"roomId"`

	// Origin is the connection id of the sender.
	Origin string `json:"origin"`

	// ExcludeOrigin skips the sender on delivery.
	ExcludeOrigin bool `json:"excludeOrigin"`

	// Target, when set, restricts delivery to that connection id.
	Target string `json:"target,omitempty"`

	// Payload is the encoded envelope.
	Payload []byte `json:"payload"`
}

// Recipient reports whether a connection should receive m.
func (m Message) Recipient(connID string) bool {
	if m.Target != "" {
		return m.Target == connID
	}
	return !(m.ExcludeOrigin && m.Origin == connID)
}

// Handler consumes the messages of a subscribed room.
type Handler func(Message)

type Broker interface {
	Publish(ctx context.Context, msg Message) error
	// Subscribe delivers the room's messages to h until the returned cancel is called.
	Subscribe(ctx context.Context, roomID string, h Handler) (cancel func(), err error)
	Close() error
}
