package negotiation

// Phase is a step of the call negotiation.
type Phase int

const (
	Idle Phase = iota
	AwaitingChannel
	AwaitingMedia
	AwaitingPeerConnection
	// Offering is the host waiting to send its offer.
	Offering
	// AwaitingOffer is the guest waiting for the host's offer.
	AwaitingOffer
	Negotiating
	Connected
	Ended
)

var phaseNames = [...]string{
	Idle:                   "idle",
	AwaitingChannel:        "awaiting-channel",
	AwaitingMedia:          "awaiting-media",
	AwaitingPeerConnection: "awaiting-peer-connection",
	Offering:               "offering",
	AwaitingOffer:          "awaiting-offer",
	Negotiating:            "negotiating",
	Connected:              "connected",
	Ended:                  "ended",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "unknown"
	}
	return phaseNames[p]
}

// Status strings reported alongside phases.
const (
	StatusIdle               = "Not connected"
	StatusConnectingServer   = "Connecting to signaling server..."
	StatusAcquiringMedia     = "Starting microphone..."
	StatusCreatingRoom       = "Creating room..."
	StatusJoiningRoom        = "Joining room..."
	StatusWaitingForGuest    = "Waiting for someone to join"
	StatusWaitingForOffer    = "Waiting for the host"
	StatusIncomingCall       = "Incoming call"
	StatusConnectingCall     = "Connecting call"
	StatusChecking           = "Checking connection..."
	StatusConnected          = "Call connected"
	StatusInCall             = "In call"
	StatusFailed             = "Connection failed"
	StatusDisconnected       = "Disconnected"
	StatusClosed             = "Connection closed"
	StatusPeerLeft           = "The other side hung up"
	StatusSignalingLost      = "Disconnected from signaling server"
	StatusEnded              = "Call ended"
	StatusSignalingError     = "Signaling error"
	StatusNegotiationFailure = "Negotiation failed"
)
