// Package peer adapts a pion PeerConnection to the negotiation machine and
// carries the call-control data channel.
package peer

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/BioHazard786/Warpcall/internal/config"
)

// ErrControlNotOpen is returned when the call-control channel is not open.
var ErrControlNotOpen = errors.New("control channel not open")

// Handlers receives peer connection events. Callbacks run on pion's
// goroutines and must not block.
type Handlers struct {
	OnCandidate    func(webrtc.ICECandidateInit)
	OnConnectivity func(webrtc.ICEConnectionState)
	OnTrack        func(*webrtc.TrackRemote)
	OnControl      func(ControlMessage)

	// OnControlOpen fires once the call-control channel can carry frames.
	OnControlOpen func()
}

// Options configures a peer connection.
type Options struct {
	// Host creates the control data channel; the guest accepts it.
	Host bool

	// Track is the local audio sent to the peer. Nil receives only.
	Track webrtc.TrackLocal

	Handlers Handlers
	Logger   *slog.Logger
}

// Conn is one side of the call's peer connection.
type Conn struct {
	pc     *webrtc.PeerConnection
	logger *slog.Logger

	mu      sync.Mutex
	control *webrtc.DataChannel

	closeOnce sync.Once
	closeErr  error
}

// ICEConfiguration builds the pion configuration from cfg: STUN always,
// TURN when configured, and relay-only transport when forced or when the
// network looks like it needs it.
func ICEConfiguration(cfg *config.Config) webrtc.Configuration {
	var iceServers []webrtc.ICEServer
	if stun := cfg.GetSTUNServers(); len(stun) > 0 {
		iceServers = append(iceServers, webrtc.ICEServer{URLs: stun})
	}

	turnServers := cfg.GetTURNServers()
	if turnServers != nil {
		username, password := cfg.GetTURNCredentials()
		iceServers = append(iceServers, webrtc.ICEServer{
			URLs:       turnServers,
			Username:   username,
			Credential: password,
		})
	}

	policy := webrtc.ICETransportPolicyAll
	if turnServers != nil && (cfg.ForceRelay || ShouldForceRelay()) {
		policy = webrtc.ICETransportPolicyRelay
	}

	return webrtc.Configuration{
		ICEServers:         iceServers,
		ICETransportPolicy: policy,
	}
}

// New creates a peer connection with the local track attached and the
// event handlers wired.
func New(rtc webrtc.Configuration, opts Options) (*Conn, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	pc, err := webrtc.NewPeerConnection(rtc)
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	c := &Conn{pc: pc, logger: logger}
	if err := c.setup(opts); err != nil {
		pc.Close()
		return nil, err
	}
	return c, nil
}

func (c *Conn) setup(opts Options) error {
	h := opts.Handlers

	if opts.Track != nil {
		sender, err := c.pc.AddTrack(opts.Track)
		if err != nil {
			return fmt.Errorf("add track: %w", err)
		}
		// Drain RTCP so interceptors keep running.
		go func() {
			buf := make([]byte, 1500)
			for {
				if _, _, err := sender.Read(buf); err != nil {
					return
				}
			}
		}()
	} else {
		if _, err := c.pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionRecvonly,
		}); err != nil {
			return fmt.Errorf("add transceiver: %w", err)
		}
	}

	c.pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand == nil || h.OnCandidate == nil {
			return
		}
		h.OnCandidate(cand.ToJSON())
	})

	c.pc.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		c.logger.Debug("ICE connection state", "state", state.String())
		if h.OnConnectivity != nil {
			h.OnConnectivity(state)
		}
	})

	c.pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		c.logger.Debug("remote track", "kind", track.Kind().String(), "codec", track.Codec().MimeType)
		if track.Kind() == webrtc.RTPCodecTypeAudio && h.OnTrack != nil {
			h.OnTrack(track)
		}
	})

	if opts.Host {
		ordered := true
		dc, err := c.pc.CreateDataChannel(ControlLabel, &webrtc.DataChannelInit{Ordered: &ordered})
		if err != nil {
			return fmt.Errorf("create data channel: %w", err)
		}
		c.attachControl(dc, h)
	} else {
		c.pc.OnDataChannel(func(dc *webrtc.DataChannel) {
			if dc.Label() != ControlLabel {
				c.logger.Warn("ignoring unexpected data channel", "label", dc.Label())
				return
			}
			c.attachControl(dc, h)
		})
	}
	return nil
}

func (c *Conn) attachControl(dc *webrtc.DataChannel, h Handlers) {
	c.mu.Lock()
	c.control = dc
	c.mu.Unlock()

	dc.OnOpen(func() {
		if h.OnControlOpen != nil {
			h.OnControlOpen()
		}
	})

	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		m, err := decodeControl(msg.Data)
		if err != nil {
			c.logger.Warn("failed to parse control message", "error", err)
			return
		}
		if h.OnControl != nil {
			h.OnControl(m)
		}
	})
}

// SendControl sends m on the call-control channel.
func (c *Conn) SendControl(m ControlMessage) error {
	c.mu.Lock()
	dc := c.control
	c.mu.Unlock()

	if dc == nil || dc.ReadyState() != webrtc.DataChannelStateOpen {
		return ErrControlNotOpen
	}

	data, err := encodeControl(m)
	if err != nil {
		return err
	}
	return dc.Send(data)
}

func (c *Conn) CreateOffer() (webrtc.SessionDescription, error) {
	return c.pc.CreateOffer(nil)
}

func (c *Conn) CreateAnswer() (webrtc.SessionDescription, error) {
	return c.pc.CreateAnswer(nil)
}

func (c *Conn) SetLocalDescription(d webrtc.SessionDescription) error {
	return c.pc.SetLocalDescription(d)
}

func (c *Conn) SetRemoteDescription(d webrtc.SessionDescription) error {
	return c.pc.SetRemoteDescription(d)
}

func (c *Conn) AddICECandidate(cand webrtc.ICECandidateInit) error {
	return c.pc.AddICECandidate(cand)
}

func (c *Conn) LocalDescription() *webrtc.SessionDescription {
	return c.pc.LocalDescription()
}

// Close closes the peer connection. Later calls return the first result.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.pc.Close()
	})
	return c.closeErr
}
