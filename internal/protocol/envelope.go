package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Icerzack/codecollab/internal/models"
)

var (
	ErrInvalidMessage = errors.New("invalid message")
	ErrUnknownEvent   = errors.New("unknown event")
)

// Envelope is a single frame on the duplex channel.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope marshals payload into a frame for event.
func NewEnvelope(event string, payload interface{}) (Envelope, error) {
	if payload == nil {
		return Envelope{Event: event}, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("error marshaling %s payload: %w", event, err)
	}
	return Envelope{Event: event, Data: data}, nil
}

// Encode marshals payload into the wire form of a frame.
func Encode(event string, payload interface{}) ([]byte, error) {
	env, err := NewEnvelope(event, payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

// Parse decodes a raw frame and rejects events outside the protocol.
func Parse(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, ErrInvalidMessage
	}
	if !Known(env.Event) {
		return Envelope{}, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
	return env, nil
}

// Decode unmarshals the frame payload into v. A missing payload leaves v untouched.
func (e Envelope) Decode(v interface{}) error {
	if len(e.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("error unmarshaling %s payload: %w", e.Event, err)
	}
	return nil
}

// ParseExistingUsers accepts the roster snapshot either as a bare list or
// wrapped as {users: [...]}. Any other shape yields an empty list and false.
func ParseExistingUsers(data json.RawMessage) ([]models.Member, bool) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return []models.Member{}, false
	}
	switch trimmed[0] {
	case '[':
		var users []models.Member
		if err := json.Unmarshal(trimmed, &users); err != nil {
			return []models.Member{}, false
		}
		return nonNil(users), true
	case '{':
		var wrapped struct {
			Users *[]models.Member `json:"users"`
		}
		if err := json.Unmarshal(trimmed, &wrapped); err != nil || wrapped.Users == nil {
			return []models.Member{}, false
		}
		return nonNil(*wrapped.Users), true
	}
	return []models.Member{}, false
}

func nonNil(users []models.Member) []models.Member {
	if users == nil {
		return []models.Member{}
	}
	return users
}
