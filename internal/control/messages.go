package control

import (
	"encoding/json"
	"fmt"
)

// Type identifies the kind of control message.
type Type string

const (
	// TypeState is sent by the camera whenever its device opens or closes.
	TypeState     Type = "state"
	TypeOpen      Type = "open"
	TypeClose     Type = "close"
	TypePause     Type = "pause"
	TypeResume    Type = "resume"
	TypeFrequency Type = "frequency"
)

// Message is the wire format for messages sent over the control data channel.
type Message struct {
	Type   Type    `json:"type"`
	Open   bool    `json:"open,omitempty"`
	Width  int     `json:"width,omitempty"`
	Height int     `json:"height,omitempty"`
	Hz     float64 `json:"hz,omitempty"`
}

// State builds a state message.
func State(open bool, width, height int) Message {
	return Message{Type: TypeState, Open: open, Width: width, Height: height}
}

func Encode(m Message) ([]byte, error) {
	return json.Marshal(m)
}

func Decode(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("decode control message: %w", err)
	}
	switch m.Type {
	case TypeState, TypeOpen, TypeClose, TypePause, TypeResume, TypeFrequency:
		return m, nil
	default:
		return Message{}, fmt.Errorf("unknown control message type %q", m.Type)
	}
}
