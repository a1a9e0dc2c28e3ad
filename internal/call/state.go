package call

import (
	"time"

	"github.com/BioHazard786/Warpcall/internal/negotiation"
)

// State is a snapshot of a call attempt for the UI.
type State struct {
	Phase  negotiation.Phase
	Status string

	Muted       bool
	RemoteMuted bool

	// Err is set once the call ended with a failure.
	Err error

	Room   string
	IsHost bool

	// Which resources the attempt currently holds.
	LocalMedia     bool
	PeerConnection bool
	Channel        bool
}

// Ended reports whether the attempt is over.
func (s State) Ended() bool { return s.Phase == negotiation.Ended }

// Summary describes a finished call.
type Summary struct {
	Room   string
	IsHost bool
	Status string
	Err    error

	// Connected is the time spent with the media path up.
	Connected time.Duration

	RecordPath      string
	RecordedPackets int64
}
