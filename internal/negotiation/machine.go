// Package negotiation drives the offer/answer/ICE exchange of one call
// attempt. The Machine is a plain state machine: it performs no I/O of its
// own beyond the PeerConnection and Sender it is given, and every input
// arrives through Handle from a single goroutine.
package negotiation

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/pion/webrtc/v4"

	"github.com/BioHazard786/Warpcall/internal/protocol"
)

var (
	// ErrNegotiationFailure ends a call whose connectivity checks failed
	// or whose descriptions could not be applied.
	ErrNegotiationFailure = errors.New("negotiation failed")

	// ErrChannelClosed ends a call whose signaling channel closed before
	// the peers connected.
	ErrChannelClosed = errors.New("signaling channel closed")

	// ErrSignaling wraps error frames the server sent without a known code.
	ErrSignaling = errors.New("signaling server error")
)

// PeerConnection is the subset of a WebRTC peer connection the machine
// drives.
type PeerConnection interface {
	CreateOffer() (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(webrtc.SessionDescription) error
	SetRemoteDescription(webrtc.SessionDescription) error
	AddICECandidate(webrtc.ICECandidateInit) error

	// LocalDescription returns the applied local description including any
	// candidates gathered so far, or nil.
	LocalDescription() *webrtc.SessionDescription
}

// Sender delivers frames to the signaling server.
type Sender interface {
	Send(*protocol.Message) error
}

// Config describes one call attempt.
type Config struct {
	// Host selects the side of the call: the host creates Room, the guest
	// joins it.
	Host bool
	Room string

	// NewPeer creates the peer connection. It is called at most once.
	NewPeer func() (PeerConnection, error)

	Logger *slog.Logger
}

// Machine is the negotiation state of one call attempt.
type Machine struct {
	host    bool
	room    string
	newPeer func() (PeerConnection, error)
	logger  *slog.Logger

	phase  Phase
	status string
	err    error

	sender   Sender
	pc       PeerConnection
	clientID string

	// remoteApplied is set once a remote description has been applied;
	// inbound candidates wait in pendingRemote until then.
	remoteApplied bool
	pendingRemote []webrtc.ICECandidateInit

	// peerPresent is set once the other side is known to be in the room;
	// local candidates wait in pendingLocal until then.
	peerPresent  bool
	pendingLocal []webrtc.ICECandidateInit
}

// New creates a machine in the Idle phase.
func New(cfg Config) *Machine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{
		host:    cfg.Host,
		room:    cfg.Room,
		newPeer: cfg.NewPeer,
		logger:  logger.With("room", cfg.Room, "host", cfg.Host),
		phase:   Idle,
		status:  StatusIdle,
	}
}

func (m *Machine) Phase() Phase     { return m.phase }
func (m *Machine) Status() string   { return m.status }
func (m *Machine) Room() string     { return m.room }
func (m *Machine) IsHost() bool     { return m.host }
func (m *Machine) ClientID() string { return m.clientID }

// Err is the reason the call ended, nil while running or after a normal
// hang-up or departure.
func (m *Machine) Err() error { return m.err }

// PeerConnection returns the peer connection once it exists.
func (m *Machine) PeerConnection() PeerConnection { return m.pc }

// Handle applies one event. It returns the error that ended the call, if
// this event ended it with a failure. Events after Ended are ignored.
func (m *Machine) Handle(ev Event) error {
	if m.phase == Ended {
		m.logger.Debug("ignoring event after end", "event", fmt.Sprintf("%T", ev))
		return nil
	}

	var err error
	switch ev := ev.(type) {
	case Started:
		m.onStarted()
	case ChannelOpened:
		m.onChannelOpened(ev.Sender)
	case MediaAcquired:
		err = m.onMediaAcquired()
	case MessageReceived:
		err = m.onMessage(ev.Message)
	case CandidateDiscovered:
		err = m.onLocalCandidate(ev.Candidate)
	case ConnectivityChanged:
		m.onConnectivity(ev.State)
	case HangUp:
		m.end(StatusEnded, nil)
	case ChannelClosed:
		m.onChannelClosed(ev.Err)
	default:
		m.logger.Warn("unknown event", "event", fmt.Sprintf("%T", ev))
	}

	if err != nil {
		m.end(m.failureStatus(err), err)
	}
	if m.phase == Ended {
		return m.err
	}
	return nil
}

func (m *Machine) onStarted() {
	if m.phase != Idle {
		return
	}
	m.set(AwaitingChannel, StatusConnectingServer)
}

func (m *Machine) onChannelOpened(s Sender) {
	if m.phase != AwaitingChannel {
		m.logger.Debug("channel opened in unexpected phase", "phase", m.phase)
		return
	}
	m.sender = s
	m.set(AwaitingMedia, StatusAcquiringMedia)
}

// onMediaAcquired creates the peer connection and asks the server for the
// room.
func (m *Machine) onMediaAcquired() error {
	if m.phase != AwaitingMedia {
		m.logger.Debug("media acquired in unexpected phase", "phase", m.phase)
		return nil
	}
	m.set(AwaitingPeerConnection, m.status)

	if err := m.ensurePeer(); err != nil {
		return err
	}

	if m.host {
		m.set(Offering, StatusCreatingRoom)
		return m.send(protocol.NewCreate(m.room))
	}
	m.set(AwaitingOffer, StatusJoiningRoom)
	return m.send(protocol.NewJoin(m.room))
}

func (m *Machine) onMessage(msg *protocol.Message) error {
	if msg == nil {
		return nil
	}
	m.logger.Debug("signal received", "type", msg.Type, "phase", m.phase)

	switch msg.Type {
	case protocol.TypeConnectionEstablished:
		m.clientID = msg.ClientID

	case protocol.TypeRoomCreated:
		if !m.host {
			return nil
		}
		m.room = msg.Room
		m.status = StatusWaitingForGuest
		return m.offer()

	case protocol.TypeJoined:
		if m.host {
			return nil
		}
		m.room = msg.Room
		m.peerPresent = true
		m.status = StatusWaitingForOffer

	case protocol.TypeGuestJoined:
		if !m.host {
			return nil
		}
		m.peerPresent = true
		m.status = StatusConnectingCall
		if err := m.offer(); err != nil {
			return err
		}
		return m.flushLocal()

	case protocol.TypeOffer:
		return m.answer(msg.Description)

	case protocol.TypeAnswer:
		return m.applyAnswer(msg.Description)

	case protocol.TypeICECandidate:
		m.onRemoteCandidate(msg.Candidate)

	case protocol.TypeHostLeft, protocol.TypeGuestLeft:
		m.logger.Info("peer left", "type", msg.Type)
		m.end(StatusPeerLeft, nil)

	case protocol.TypeError:
		err := msg.Err()
		if protocol.CodeOf(err) == "" {
			err = fmt.Errorf("%w: %v", ErrSignaling, err)
		}
		return err

	default:
		m.logger.Debug("ignoring frame", "type", msg.Type)
	}
	return nil
}

// offer sends a local offer to the room. An offer still waiting for its
// answer is sent again as is; the peer connection cannot take a second
// local offer in have-local-offer.
func (m *Machine) offer() error {
	if err := m.ensurePeer(); err != nil {
		return err
	}

	if pending := m.pc.LocalDescription(); pending != nil && pending.Type == webrtc.SDPTypeOffer && !m.remoteApplied {
		if err := m.send(protocol.NewDescription(m.room, *pending)); err != nil {
			return err
		}
		m.advance(Negotiating)
		return nil
	}

	desc, err := m.pc.CreateOffer()
	if err != nil {
		return fmt.Errorf("%w: create offer: %v", ErrNegotiationFailure, err)
	}
	if err := m.pc.SetLocalDescription(desc); err != nil {
		return fmt.Errorf("%w: set local description: %v", ErrNegotiationFailure, err)
	}

	if err := m.send(protocol.NewDescription(m.room, m.localDescription(desc))); err != nil {
		return err
	}
	m.advance(Negotiating)
	return nil
}

// answer applies a remote offer and replies with an answer. The peer
// connection is created here if nothing created it yet.
func (m *Machine) answer(offer *webrtc.SessionDescription) error {
	if offer == nil {
		return nil
	}
	if err := m.ensurePeer(); err != nil {
		return err
	}
	m.peerPresent = true
	m.status = StatusIncomingCall

	if err := m.applyRemote(*offer); err != nil {
		return err
	}

	desc, err := m.pc.CreateAnswer()
	if err != nil {
		return fmt.Errorf("%w: create answer: %v", ErrNegotiationFailure, err)
	}
	if err := m.pc.SetLocalDescription(desc); err != nil {
		return fmt.Errorf("%w: set local description: %v", ErrNegotiationFailure, err)
	}

	if err := m.send(protocol.NewDescription(m.room, m.localDescription(desc))); err != nil {
		return err
	}
	m.advance(Negotiating)
	return m.flushLocal()
}

// applyAnswer applies the guest's answer. A late answer with no peer
// connection is ignored.
func (m *Machine) applyAnswer(answer *webrtc.SessionDescription) error {
	if answer == nil || m.pc == nil {
		m.logger.Debug("ignoring answer without peer connection")
		return nil
	}
	m.status = StatusConnectingCall
	return m.applyRemote(*answer)
}

func (m *Machine) applyRemote(desc webrtc.SessionDescription) error {
	if err := m.pc.SetRemoteDescription(desc); err != nil {
		return fmt.Errorf("%w: set remote description: %v", ErrNegotiationFailure, err)
	}
	m.remoteApplied = true

	pending := m.pendingRemote
	m.pendingRemote = nil
	for _, c := range pending {
		m.addCandidate(c)
	}
	return nil
}

// onRemoteCandidate adds a candidate from the peer. Candidates that arrive
// before any peer connection are dropped; candidates that arrive before
// the remote description wait for it.
func (m *Machine) onRemoteCandidate(c *webrtc.ICECandidateInit) {
	if c == nil {
		return
	}
	if m.pc == nil {
		m.logger.Debug("dropping candidate without peer connection")
		return
	}
	if !m.remoteApplied {
		m.pendingRemote = append(m.pendingRemote, *c)
		return
	}
	m.addCandidate(*c)
}

func (m *Machine) addCandidate(c webrtc.ICECandidateInit) {
	if err := m.pc.AddICECandidate(c); err != nil {
		m.logger.Warn("failed to add ICE candidate", "error", err)
	}
}

// onLocalCandidate trickles a local candidate, holding it until the other
// side is in the room.
func (m *Machine) onLocalCandidate(c webrtc.ICECandidateInit) error {
	if !m.peerPresent {
		m.pendingLocal = append(m.pendingLocal, c)
		return nil
	}
	return m.send(protocol.NewICECandidate(m.room, c))
}

func (m *Machine) flushLocal() error {
	pending := m.pendingLocal
	m.pendingLocal = nil
	for _, c := range pending {
		if err := m.send(protocol.NewICECandidate(m.room, c)); err != nil {
			return err
		}
	}
	return nil
}

func (m *Machine) onConnectivity(state webrtc.ICEConnectionState) {
	m.logger.Info("ICE connection state", "state", state.String())

	switch state {
	case webrtc.ICEConnectionStateChecking:
		m.status = StatusChecking
	case webrtc.ICEConnectionStateConnected:
		m.set(Connected, StatusConnected)
	case webrtc.ICEConnectionStateCompleted:
		m.set(Connected, StatusInCall)
	case webrtc.ICEConnectionStateFailed:
		m.end(StatusFailed, ErrNegotiationFailure)
	case webrtc.ICEConnectionStateDisconnected:
		m.status = StatusDisconnected
	case webrtc.ICEConnectionStateClosed:
		m.status = StatusClosed
	}
}

// onChannelClosed ends calls still negotiating. A connected call keeps
// its media path and only reports the lost server.
func (m *Machine) onChannelClosed(cause error) {
	if m.phase == Connected {
		m.status = StatusSignalingLost
		m.sender = nil
		return
	}

	err := ErrChannelClosed
	if cause != nil {
		err = fmt.Errorf("%w: %v", ErrChannelClosed, cause)
	}
	m.end(StatusSignalingLost, err)
}

func (m *Machine) ensurePeer() error {
	if m.pc != nil {
		return nil
	}
	if m.newPeer == nil {
		return fmt.Errorf("%w: no peer connection factory", ErrNegotiationFailure)
	}

	pc, err := m.newPeer()
	if err != nil {
		return fmt.Errorf("%w: create peer connection: %v", ErrNegotiationFailure, err)
	}
	m.pc = pc
	return nil
}

func (m *Machine) send(msg *protocol.Message) error {
	if m.sender == nil {
		return fmt.Errorf("send %s: %w", msg.Type, ErrChannelClosed)
	}
	if err := m.sender.Send(msg); err != nil {
		return fmt.Errorf("send %s: %w", msg.Type, err)
	}
	return nil
}

func (m *Machine) localDescription(created webrtc.SessionDescription) webrtc.SessionDescription {
	if ld := m.pc.LocalDescription(); ld != nil {
		return *ld
	}
	return created
}

// advance moves forward to p without leaving Connected.
func (m *Machine) advance(p Phase) {
	if m.phase < p {
		m.phase = p
	}
}

func (m *Machine) set(p Phase, status string) {
	if p != m.phase {
		m.logger.Debug("phase change", "from", m.phase, "to", p)
	}
	m.phase = p
	m.status = status
}

func (m *Machine) end(status string, err error) {
	m.set(Ended, status)
	m.err = err
	m.pendingLocal = nil
	m.pendingRemote = nil
	if err != nil {
		m.logger.Info("call ended", "error", err)
	} else {
		m.logger.Info("call ended", "status", status)
	}
}

func (m *Machine) failureStatus(err error) string {
	if protocol.CodeOf(err) != "" || errors.Is(err, ErrSignaling) {
		return StatusSignalingError
	}
	if errors.Is(err, ErrNegotiationFailure) {
		return StatusNegotiationFailure
	}
	return StatusSignalingLost
}
