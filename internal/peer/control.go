package peer

import "github.com/vmihailenco/msgpack/v5"

// ControlLabel is the label of the data channel carrying call control.
const ControlLabel = "call-control"

// Control message types.
const (
	ControlMute       = "mute"
	ControlDeviceInfo = "device-info"
)

// ControlMessage is one frame on the call-control data channel.
type ControlMessage struct {
	Type    string             `msgpack:"type"`
	Payload msgpack.RawMessage `msgpack:"payload"`
}

// MutePayload announces the sender's microphone state.
type MutePayload struct {
	Muted bool `msgpack:"muted"`
}

// DeviceInfoPayload is exchanged once the control channel opens.
type DeviceInfoPayload struct {
	DeviceName    string `msgpack:"deviceName"`
	DeviceVersion string `msgpack:"deviceVersion"`
}

// DecodePayload decodes the message payload into the provided struct
func (m ControlMessage) DecodePayload(v any) error {
	return msgpack.Unmarshal(m.Payload, v)
}

// NewControlMessage creates a ControlMessage with the given type and payload
func NewControlMessage(t string, payload any) (ControlMessage, error) {
	b, err := msgpack.Marshal(payload)
	if err != nil {
		return ControlMessage{}, err
	}

	return ControlMessage{
		Type:    t,
		Payload: b,
	}, nil
}

func encodeControl(m ControlMessage) ([]byte, error) {
	return msgpack.Marshal(m)
}

func decodeControl(b []byte) (ControlMessage, error) {
	var m ControlMessage
	err := msgpack.Unmarshal(b, &m)
	return m, err
}
