// Package protocol defines the JSON frames exchanged over the signaling
// channel. The same types are used by the server router and by the client
// state machine, so both ends agree on what a well-formed frame is.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/pion/webrtc/v4"
)

// Type is the "type" tag of a signaling frame.
type Type string

// Frames sent by clients.
const (
	TypeCreate       Type = "create"
	TypeJoin         Type = "join"
	TypeOffer        Type = "offer"
	TypeAnswer       Type = "answer"
	TypeICECandidate Type = "ice-candidate"
)

// Frames sent by the server.
const (
	TypeConnectionEstablished Type = "connection-established"
	TypeRoomCreated           Type = "room-created"
	TypeJoined                Type = "joined"
	TypeGuestJoined           Type = "guest-joined"
	TypeHostLeft              Type = "host-left"
	TypeGuestLeft             Type = "guest-left"
	TypeError                 Type = "error"
)

// ClientOriginated reports whether a client is allowed to send frames of
// this type. Everything else is emitted by the server only.
func (t Type) ClientOriginated() bool {
	switch t {
	case TypeCreate, TypeJoin, TypeOffer, TypeAnswer, TypeICECandidate:
		return true
	}
	return false
}

// Relayed reports whether frames of this type are forwarded to the other
// member of a room rather than handled by the server.
func (t Type) Relayed() bool {
	return t == TypeOffer || t == TypeAnswer || t == TypeICECandidate
}

// Message is a single signaling frame. Exactly one of Description or
// Candidate is set for negotiation frames, matching the frame type; the
// JSON form carries either of them under "data".
type Message struct {
	Type Type
	Room string

	// From is stamped by the server when relaying. Whatever a client puts
	// there is overwritten.
	From string
	To   string

	// Description is the payload of offer and answer frames.
	Description *webrtc.SessionDescription

	// Candidate is the payload of ice-candidate frames.
	Candidate *webrtc.ICECandidateInit

	// Reason and Code describe error frames.
	Reason string
	Code   ErrorCode

	// ClientID is the participant id announced in connection-established.
	ClientID string
}

// wireMessage is the on-the-wire shape of Message.
type wireMessage struct {
	Type     Type            `json:"type"`
	Room     string          `json:"room,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
	From     string          `json:"from,omitempty"`
	To       string          `json:"to,omitempty"`
	Message  string          `json:"message,omitempty"`
	Code     ErrorCode       `json:"code,omitempty"`
	ClientID string          `json:"clientId,omitempty"`
}

// MarshalJSON encodes the frame, placing the negotiation payload under "data".
func (m Message) MarshalJSON() ([]byte, error) {
	w := wireMessage{
		Type:     m.Type,
		Room:     m.Room,
		From:     m.From,
		To:       m.To,
		Message:  m.Reason,
		Code:     m.Code,
		ClientID: m.ClientID,
	}

	var (
		data []byte
		err  error
	)
	switch {
	case m.Description != nil:
		data, err = json.Marshal(m.Description)
	case m.Candidate != nil:
		data, err = json.Marshal(m.Candidate)
	}
	if err != nil {
		return nil, err
	}
	w.Data = data

	return json.Marshal(w)
}

// UnmarshalJSON decodes a frame and resolves "data" into the variant the
// frame type calls for. Data attached to a frame type that carries none is
// rejected.
func (m *Message) UnmarshalJSON(b []byte) error {
	var w wireMessage
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}

	*m = Message{
		Type:     w.Type,
		Room:     w.Room,
		From:     w.From,
		To:       w.To,
		Reason:   w.Message,
		Code:     w.Code,
		ClientID: w.ClientID,
	}

	if len(w.Data) == 0 || string(w.Data) == "null" {
		return nil
	}

	switch w.Type {
	case TypeOffer, TypeAnswer:
		var desc webrtc.SessionDescription
		if err := json.Unmarshal(w.Data, &desc); err != nil {
			return fmt.Errorf("session description: %w", err)
		}
		m.Description = &desc
	case TypeICECandidate:
		var cand webrtc.ICECandidateInit
		if err := json.Unmarshal(w.Data, &cand); err != nil {
			return fmt.Errorf("ice candidate: %w", err)
		}
		m.Candidate = &cand
	default:
		return fmt.Errorf("frame type %q carries no data", w.Type)
	}
	return nil
}

// Validate checks that the frame has the fields its type requires.
func (m *Message) Validate() error {
	switch m.Type {
	case TypeCreate, TypeJoin, TypeRoomCreated, TypeJoined, TypeGuestJoined, TypeHostLeft, TypeGuestLeft:
		if m.Room == "" {
			return fmt.Errorf("%s frame without room", m.Type)
		}

	case TypeOffer, TypeAnswer:
		if m.Description == nil {
			return fmt.Errorf("%s frame without session description", m.Type)
		}
		want := webrtc.SDPTypeOffer
		if m.Type == TypeAnswer {
			want = webrtc.SDPTypeAnswer
		}
		if m.Description.Type != want {
			return fmt.Errorf("%s frame carries a %s description", m.Type, m.Description.Type)
		}
		if m.Description.SDP == "" {
			return fmt.Errorf("%s frame with empty sdp", m.Type)
		}

	case TypeICECandidate:
		if m.Candidate == nil {
			return fmt.Errorf("ice-candidate frame without candidate")
		}

	case TypeConnectionEstablished:
		if m.ClientID == "" {
			return fmt.Errorf("connection-established frame without clientId")
		}

	case TypeError:

	default:
		return fmt.Errorf("unknown frame type %q", m.Type)
	}
	return nil
}

// Decode parses and validates a raw frame. Every failure wraps
// ErrMalformedMessage.
func Decode(raw []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if err := msg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return &msg, nil
}

// Encode serializes a frame for the wire.
func Encode(msg *Message) ([]byte, error) {
	return json.Marshal(msg)
}

func NewCreate(room string) *Message { return &Message{Type: TypeCreate, Room: room} }

func NewJoin(room string) *Message { return &Message{Type: TypeJoin, Room: room} }

// NewDescription wraps a local offer or answer for the given room. The frame
// type follows the description type.
func NewDescription(room string, desc webrtc.SessionDescription) *Message {
	t := TypeOffer
	if desc.Type == webrtc.SDPTypeAnswer {
		t = TypeAnswer
	}
	return &Message{Type: t, Room: room, Description: &desc}
}

func NewICECandidate(room string, c webrtc.ICECandidateInit) *Message {
	return &Message{Type: TypeICECandidate, Room: room, Candidate: &c}
}

// NewError builds an error frame for err. Known protocol errors keep their
// code and canonical text.
func NewError(err error) *Message {
	code := CodeOf(err)
	text := err.Error()
	if code != "" {
		text = code.Text()
	}
	return &Message{Type: TypeError, Code: code, Reason: text}
}
