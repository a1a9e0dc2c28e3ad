// Package call runs one audio call attempt end to end: it opens the
// signaling channel, acquires local audio, feeds every event through the
// negotiation machine and releases everything when the call ends.
package call

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/BioHazard786/Warpcall/internal/channel"
	"github.com/BioHazard786/Warpcall/internal/config"
	"github.com/BioHazard786/Warpcall/internal/media"
	"github.com/BioHazard786/Warpcall/internal/negotiation"
	"github.com/BioHazard786/Warpcall/internal/peer"
	"github.com/BioHazard786/Warpcall/internal/protocol"
	"github.com/BioHazard786/Warpcall/internal/version"
)

// recorderWait bounds how long teardown waits for the recording to be
// finalised.
const recorderWait = 2 * time.Second

// Channel is the signaling channel as the session uses it.
type Channel interface {
	Send(*protocol.Message) error
	Incoming() <-chan *protocol.Message
	IsOpen() bool
	Close() error
}

// Peer is the peer connection as the session uses it.
type Peer interface {
	negotiation.PeerConnection
	SendControl(peer.ControlMessage) error
	Close() error
}

// Dialer opens the signaling channel.
type Dialer func(ctx context.Context, serverURL string) (Channel, error)

// PeerFactory creates the peer connection for one side of the call.
type PeerFactory func(host bool, track webrtc.TrackLocal, h peer.Handlers) (Peer, error)

// Options wires a Session to its collaborators.
type Options struct {
	ServerURL string

	Media   media.Source
	Dial    Dialer
	NewPeer PeerFactory

	// RecordPath receives the remote audio when set.
	RecordPath string

	// DeviceName is announced to the peer when the control channel opens.
	DeviceName string

	Logger *slog.Logger
}

// OptionsFromConfig builds the production collaborators from cfg.
func OptionsFromConfig(cfg *config.Config, logger *slog.Logger) Options {
	if logger == nil {
		logger = slog.Default()
	}

	var src media.Source = media.SilenceSource{}
	if cfg.AudioFile != "" {
		src = media.OggSource{Path: cfg.AudioFile}
	}

	rtc := peer.ICEConfiguration(cfg)
	return Options{
		ServerURL: cfg.ServerURL,
		Media: media.SecureSource{
			Source:        src,
			ServerURL:     cfg.ServerURL,
			AllowInsecure: cfg.AllowInsecure,
		},
		Dial: func(ctx context.Context, serverURL string) (Channel, error) {
			c, err := channel.Dial(ctx, serverURL, cfg.ConnectTimeout, logger)
			if err != nil {
				return nil, err
			}
			return c, nil
		},
		NewPeer: func(host bool, track webrtc.TrackLocal, h peer.Handlers) (Peer, error) {
			c, err := peer.New(rtc, peer.Options{Host: host, Track: track, Handlers: h, Logger: logger})
			if err != nil {
				return nil, err
			}
			return c, nil
		},
		RecordPath: cfg.RecordPath,
		DeviceName: deviceName(),
		Logger:     logger,
	}
}

func deviceName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return runtime.GOOS
	}
	return host + " (" + runtime.GOOS + ")"
}

type command int

const (
	cmdToggleMute command = iota
)

// remoteTrack and remoteControl are peer events outside negotiation.
type remoteTrack struct{ track *webrtc.TrackRemote }

type remoteControl struct{ msg peer.ControlMessage }

type controlOpened struct{}

// attempt holds the queues of one Run. Peer callbacks may outlive the
// attempt; once done is closed their events are discarded.
type attempt struct {
	events   chan any
	commands chan command
	done     chan struct{}

	// cancel aborts the attempt, including a dial or media acquisition
	// still in flight.
	cancel context.CancelFunc
}

func (a *attempt) post(ev any) {
	select {
	case a.events <- ev:
	case <-a.done:
	}
}

// Session runs call attempts one at a time.
type Session struct {
	opts   Options
	logger *slog.Logger

	mu        sync.Mutex
	running   bool
	current   *attempt
	listeners []func(State)

	// Owned by the Run goroutine.
	machine     *negotiation.Machine
	ch          Channel
	pc          Peer
	local       *media.Handle
	recorder    *media.Recorder
	room        string
	host        bool
	muted       bool
	remoteMuted bool
	err         error
	connectedAt time.Time
	summary     Summary
}

// New creates a session. Dial, NewPeer and Media must be set.
func New(opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{opts: opts, logger: logger}
}

// OnStateChange registers fn to receive a snapshot after every change.
// fn runs on the Run goroutine and must not block.
func (s *Session) OnStateChange(fn func(State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// HangUp ends the running call. It does nothing when no call runs and
// never blocks.
func (s *Session) HangUp() {
	s.mu.Lock()
	a := s.current
	s.mu.Unlock()
	if a != nil {
		a.cancel()
	}
}

// ToggleMute flips the local microphone and tells the peer.
func (s *Session) ToggleMute() { s.command(cmdToggleMute) }

func (s *Session) command(c command) {
	s.mu.Lock()
	a := s.current
	s.mu.Unlock()
	if a == nil {
		return
	}
	select {
	case a.commands <- c:
	case <-a.done:
	default:
		s.logger.Debug("dropping command, call is busy", "command", c)
	}
}

// Run performs one call attempt as host (creating room) or guest (joining
// it) and blocks until the call ends. Every resource acquired is released
// before Run returns. A second Run while one is in progress fails with
// ErrCallInProgress.
func (s *Session) Run(ctx context.Context, host bool, room string) (Summary, error) {
	if room == "" {
		return Summary{}, NewError("start call", ErrNoRoom)
	}

	a, ctx, err := s.begin(ctx)
	if err != nil {
		return Summary{}, err
	}
	defer s.finish(a)

	s.host = host
	s.room = room
	s.summary = Summary{Room: room, IsHost: host, RecordPath: s.opts.RecordPath}
	s.machine = negotiation.New(negotiation.Config{
		Host: host,
		Room: room,
		NewPeer: func() (negotiation.PeerConnection, error) {
			return s.createPeer(a)
		},
		Logger: s.logger,
	})

	s.handle(negotiation.Started{})

	if err := s.start(ctx); err != nil {
		if ctx.Err() != nil {
			// Hung up while still connecting.
			s.handle(negotiation.HangUp{})
			return s.end(nil)
		}
		return s.end(err)
	}

	incoming := s.ch.Incoming()
	for s.machine.Phase() != negotiation.Ended {
		select {
		case <-ctx.Done():
			s.handle(negotiation.HangUp{})

		case msg, ok := <-incoming:
			if !ok {
				incoming = nil
				s.handle(negotiation.ChannelClosed{})
				continue
			}
			s.handle(negotiation.MessageReceived{Message: msg})

		case ev := <-a.events:
			s.dispatch(ev)

		case c := <-a.commands:
			s.apply(c)
		}
	}

	return s.end(nil)
}

// start opens the channel and acquires local audio.
func (s *Session) start(ctx context.Context) error {
	ch, err := s.opts.Dial(ctx, s.opts.ServerURL)
	if err != nil {
		return WrapError("connect to signaling server", err, "room "+s.room)
	}
	s.ch = ch
	s.handle(negotiation.ChannelOpened{Sender: ch})

	if err := s.acquireMedia(ctx); err != nil {
		return WrapError("acquire audio", err, "room "+s.room)
	}
	s.handle(negotiation.MediaAcquired{})
	return nil
}

// acquireMedia acquires local audio unless this attempt already holds it.
func (s *Session) acquireMedia(ctx context.Context) error {
	if s.local != nil {
		return nil
	}
	h, err := s.opts.Media.Acquire(ctx)
	if err != nil {
		return err
	}
	s.local = h
	return nil
}

func (s *Session) createPeer(a *attempt) (negotiation.PeerConnection, error) {
	var track webrtc.TrackLocal
	if s.local != nil {
		track = s.local.Track
	}

	pc, err := s.opts.NewPeer(s.host, track, peer.Handlers{
		OnCandidate: func(c webrtc.ICECandidateInit) {
			a.post(negotiation.CandidateDiscovered{Candidate: c})
		},
		OnConnectivity: func(state webrtc.ICEConnectionState) {
			a.post(negotiation.ConnectivityChanged{State: state})
		},
		OnTrack: func(t *webrtc.TrackRemote) {
			a.post(remoteTrack{track: t})
		},
		OnControl: func(m peer.ControlMessage) {
			a.post(remoteControl{msg: m})
		},
		OnControlOpen: func() {
			a.post(controlOpened{})
		},
	})
	if err != nil {
		return nil, err
	}
	s.pc = pc
	return pc, nil
}

func (s *Session) handle(ev negotiation.Event) {
	if err := s.machine.Handle(ev); err != nil {
		s.logger.Info("call failed", "error", err)
	}
	if s.machine.Phase() == negotiation.Connected && s.connectedAt.IsZero() {
		s.connectedAt = time.Now()
	}
	s.emit()
}

func (s *Session) dispatch(ev any) {
	switch ev := ev.(type) {
	case negotiation.Event:
		s.handle(ev)

	case remoteTrack:
		if s.opts.RecordPath == "" || s.recorder != nil {
			return
		}
		rec, err := media.Record(ev.track, s.opts.RecordPath)
		if err != nil {
			s.logger.Warn("failed to start recording", "path", s.opts.RecordPath, "error", err)
			return
		}
		s.recorder = rec

	case controlOpened:
		s.sendControl(peer.ControlDeviceInfo, peer.DeviceInfoPayload{
			DeviceName:    s.opts.DeviceName,
			DeviceVersion: version.Version,
		})
		if s.muted {
			s.sendControl(peer.ControlMute, peer.MutePayload{Muted: true})
		}

	case remoteControl:
		switch ev.msg.Type {
		case peer.ControlMute:
			var p peer.MutePayload
			if err := ev.msg.DecodePayload(&p); err != nil {
				s.logger.Warn("bad mute payload", "error", err)
				return
			}
			s.remoteMuted = p.Muted
			s.emit()
		case peer.ControlDeviceInfo:
			var p peer.DeviceInfoPayload
			if err := ev.msg.DecodePayload(&p); err == nil {
				s.logger.Info("peer device", "name", p.DeviceName, "version", p.DeviceVersion)
			}
		}
	}
}

func (s *Session) apply(c command) {
	switch c {

	case cmdToggleMute:
		if s.local == nil {
			return
		}
		s.muted = !s.muted
		s.local.SetMuted(s.muted)

		s.sendControl(peer.ControlMute, peer.MutePayload{Muted: s.muted})
		s.emit()
	}
}

// sendControl sends a control frame when the peer connection exists. A
// channel that is not open yet is not an error; the state is resent once it
// opens.
func (s *Session) sendControl(typ string, payload any) {
	if s.pc == nil {
		return
	}
	msg, err := peer.NewControlMessage(typ, payload)
	if err == nil {
		err = s.pc.SendControl(msg)
	}
	if err != nil && !errors.Is(err, peer.ErrControlNotOpen) {
		s.logger.Warn("failed to send control message", "type", typ, "error", err)
	}
}

// end records the outcome, releases everything and reports the result.
func (s *Session) end(err error) (Summary, error) {
	if err != nil {
		s.err = err
		s.machine.Handle(negotiation.HangUp{})
	} else if merr := s.machine.Err(); merr != nil {
		s.err = NewError("call", merr)
	}

	s.summary.Status = s.machine.Status()
	s.summary.Err = s.err
	if s.err != nil {
		s.summary.Status = failureStatus(s.err)
	}

	s.teardown()
	s.emit()
	return s.summary, s.summary.Err
}

// teardown stops local audio, closes the peer connection and the channel
// and forgets them. Calling it again does nothing.
func (s *Session) teardown() {
	if s.local != nil {
		s.local.Stop()
		s.local = nil
	}
	if s.pc != nil {
		if err := s.pc.Close(); err != nil {
			s.logger.Debug("closing peer connection", "error", err)
		}
		s.pc = nil
	}
	if s.ch != nil {
		s.ch.Close()
		s.ch = nil
	}
	if s.recorder != nil {
		if err := s.recorder.Wait(recorderWait); err != nil {
			s.logger.Warn("recording incomplete", "path", s.recorder.Path, "error", err)
		}
		s.summary.RecordedPackets = s.recorder.Packets()
		s.recorder = nil
	}
	if !s.connectedAt.IsZero() {
		s.summary.Connected = time.Since(s.connectedAt)
		s.connectedAt = time.Time{}
	}
	s.room = ""
	s.host = false
	s.muted = false
	s.remoteMuted = false
}

// begin claims the session for one attempt and derives the attempt's
// context from ctx.
func (s *Session) begin(ctx context.Context) (*attempt, context.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil, nil, ErrCallInProgress
	}
	s.running = true
	s.err = nil

	ctx, cancel := context.WithCancel(ctx)
	a := &attempt{
		events:   make(chan any, 64),
		commands: make(chan command, 8),
		done:     make(chan struct{}),
		cancel:   cancel,
	}
	s.current = a
	return a, ctx, nil
}

func (s *Session) finish(a *attempt) {
	s.teardown()
	a.cancel()
	close(a.done)

	s.mu.Lock()
	s.current = nil
	s.running = false
	s.mu.Unlock()
}

// snapshot builds the current State.
func (s *Session) snapshot() State {
	st := State{
		Muted:          s.muted,
		RemoteMuted:    s.remoteMuted,
		Room:           s.room,
		IsHost:         s.host,
		LocalMedia:     s.local != nil,
		PeerConnection: s.pc != nil,
		Channel:        s.ch != nil,
		Err:            s.err,
	}
	if s.machine != nil {
		st.Phase = s.machine.Phase()
		st.Status = s.machine.Status()
		if st.Err == nil {
			st.Err = s.machine.Err()
		}
	}
	if s.err != nil {
		st.Status = failureStatus(s.err)
	}
	return st
}

func (s *Session) emit() {
	st := s.snapshot()

	s.mu.Lock()
	listeners := append([]func(State){}, s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(st)
	}
}

func failureStatus(err error) string {
	switch {
	case errors.Is(err, channel.ErrChannelTimeout):
		return "Signaling server did not answer"
	case errors.Is(err, media.ErrMediaAcquisition):
		return "Microphone unavailable"
	case errors.Is(err, protocol.ErrRoomNotFound),
		errors.Is(err, protocol.ErrRoomExists),
		errors.Is(err, protocol.ErrRoomFull),
		errors.Is(err, protocol.ErrAlreadyInRoom):
		return protocol.CodeOf(err).Text()
	case errors.Is(err, negotiation.ErrNegotiationFailure):
		return negotiation.StatusFailed
	case errors.Is(err, negotiation.ErrChannelClosed):
		return negotiation.StatusSignalingLost
	}
	return "Call failed"
}
