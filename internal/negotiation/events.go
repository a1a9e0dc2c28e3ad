package negotiation

import (
	"github.com/pion/webrtc/v4"

	"github.com/BioHazard786/Warpcall/internal/protocol"
)

// Event is anything the machine reacts to. All events go through
// Machine.Handle.
type Event interface {
	event()
}

// Started begins a call attempt: the session is opening the channel.
type Started struct{}

// ChannelOpened reports that the signaling channel is open. Sender is used
// for every outbound frame from then on.
type ChannelOpened struct {
	Sender Sender
}

// MediaAcquired reports that local audio is available.
type MediaAcquired struct{}

// MessageReceived carries one frame from the signaling server.
type MessageReceived struct {
	Message *protocol.Message
}

// CandidateDiscovered carries a local ICE candidate to trickle to the peer.
type CandidateDiscovered struct {
	Candidate webrtc.ICECandidateInit
}

// ConnectivityChanged reports an ICE connection state change.
type ConnectivityChanged struct {
	State webrtc.ICEConnectionState
}

// HangUp is the local user ending the call.
type HangUp struct{}

// ChannelClosed reports that the signaling channel closed. Err is nil for
// a clean close.
type ChannelClosed struct {
	Err error
}

func (Started) event()             {}
func (ChannelOpened) event()       {}
func (MediaAcquired) event()       {}
func (MessageReceived) event()     {}
func (CandidateDiscovered) event() {}
func (ConnectivityChanged) event() {}
func (HangUp) event()              {}
func (ChannelClosed) event()       {}
