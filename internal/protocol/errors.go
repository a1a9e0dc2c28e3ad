package protocol

import "errors"

var (
	ErrRoomExists       = errors.New("room already exists")
	ErrRoomNotFound     = errors.New("room not found")
	ErrRoomFull         = errors.New("room is full")
	ErrAlreadyInRoom    = errors.New("participant is already in a room")
	ErrMalformedMessage = errors.New("malformed message")
)

// ErrorCode is the machine readable "code" of an error frame.
type ErrorCode string

const (
	CodeRoomExists       ErrorCode = "room-exists"
	CodeRoomNotFound     ErrorCode = "room-not-found"
	CodeRoomFull         ErrorCode = "room-full"
	CodeAlreadyInRoom    ErrorCode = "already-in-room"
	CodeMalformedMessage ErrorCode = "malformed-message"
)

var codeErrors = map[ErrorCode]error{
	CodeRoomExists:       ErrRoomExists,
	CodeRoomNotFound:     ErrRoomNotFound,
	CodeRoomFull:         ErrRoomFull,
	CodeAlreadyInRoom:    ErrAlreadyInRoom,
	CodeMalformedMessage: ErrMalformedMessage,
}

var codeTexts = map[ErrorCode]string{
	CodeRoomExists:       "Room already exists",
	CodeRoomNotFound:     "Room not found",
	CodeRoomFull:         "Room is full",
	CodeAlreadyInRoom:    "Already in a room",
	CodeMalformedMessage: "Invalid message format",
}

// CodeOf returns the code for a known protocol error, or "" otherwise.
func CodeOf(err error) ErrorCode {
	for code, sentinel := range codeErrors {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return ""
}

// Err maps a code back to its sentinel error. Unknown codes yield nil.
func (c ErrorCode) Err() error {
	return codeErrors[c]
}

// Text is the human readable message sent alongside the code.
func (c ErrorCode) Text() string {
	if t, ok := codeTexts[c]; ok {
		return t
	}
	return string(c)
}

// Err returns the error an error frame describes, preferring the sentinel
// for known codes.
func (m *Message) Err() error {
	if m.Type != TypeError {
		return nil
	}
	if err := m.Code.Err(); err != nil {
		return err
	}
	if m.Reason != "" {
		return errors.New(m.Reason)
	}
	return errors.New("unknown signaling error")
}
