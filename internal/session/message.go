package session

import (
	"encoding/json"
	"fmt"

	"nuhub/internal/router"
)

// MessageType tags every envelope exchanged with a participant.
type MessageType string

const (
	TypeHello   MessageType = "hello"   // participant -> hub, first message
	TypeWelcome MessageType = "welcome" // hub -> participant, carries the assigned identity
	TypeFrame   MessageType = "frame"   // hub -> participant, module update
	TypePing    MessageType = "ping"
	TypePong    MessageType = "pong"
	TypeError   MessageType = "error"
)

// Envelope is the JSON object written per line (TCP) or per text message (WebSocket).
type Envelope struct {
	Type     MessageType    `json:"type"`
	ID       string         `json:"id,omitempty"`
	Identity *router.Token  `json:"identity,omitempty"`
	Role     string         `json:"role,omitempty"`
	Token    string         `json:"token,omitempty"`
	Channel  string         `json:"channel,omitempty"`
	Args     []router.Value `json:"args,omitempty"`
	Message  string         `json:"message,omitempty"`
}

// FrameEnvelope wraps a router frame for the wire.
func FrameEnvelope(f router.Frame) Envelope {
	args := f.Args
	if args == nil {
		args = []router.Value{}
	}
	return Envelope{Type: TypeFrame, Channel: f.Channel, Args: args}
}

func WelcomeEnvelope(id string, identity router.Token, role string) Envelope {
	return Envelope{Type: TypeWelcome, ID: id, Identity: &identity, Role: role}
}

func ErrorEnvelope(text string) Envelope {
	return Envelope{Type: TypeError, Message: text}
}

// Frame converts a frame envelope back to a router frame.
func (e Envelope) Frame() (router.Frame, error) {
	if e.Type != TypeFrame {
		return router.Frame{}, fmt.Errorf("envelope type %q is not a frame", e.Type)
	}
	return router.Frame{Channel: e.Channel, Args: e.Args}, nil
}

func (e Envelope) Marshal() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s envelope: %w", e.Type, err)
	}
	return data, nil
}

func ParseEnvelope(data []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return Envelope{}, fmt.Errorf("invalid envelope: %w", err)
	}
	if e.Type == "" {
		return Envelope{}, fmt.Errorf("invalid envelope: missing type")
	}
	return e, nil
}
