// Package media provides the local audio of a call and records the remote
// one. Audio is Opus in Ogg containers, written to pion sample tracks.
package media

import (
	"context"
	"net"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/webrtc/v4"
	pionmedia "github.com/pion/webrtc/v4/pkg/media"
)

// frameDuration is the Opus frame length used for silence and pacing.
const frameDuration = 20 * time.Millisecond

// silenceFrame is an Opus packet that decodes to 20ms of silence.
var silenceFrame = []byte{0xf8, 0xff, 0xfe}

// Source acquires local audio for one call attempt.
type Source interface {
	Acquire(ctx context.Context) (*Handle, error)
}

// Handle is acquired local audio: a track fed by a background writer until
// Stop.
type Handle struct {
	Track *webrtc.TrackLocalStaticSample

	muted atomic.Bool

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewTrack creates the Opus track local audio is written to.
func NewTrack() (*webrtc.TrackLocalStaticSample, error) {
	return webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
		"audio",
		"warpcall",
	)
}

func newHandle(track *webrtc.TrackLocalStaticSample) *Handle {
	return &Handle{
		Track: track,
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// SetMuted replaces outgoing audio with silence while muted.
func (h *Handle) SetMuted(muted bool) { h.muted.Store(muted) }

func (h *Handle) Muted() bool { return h.muted.Load() }

// Stop ends the writer and waits for it. It is safe to call repeatedly.
func (h *Handle) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
	<-h.done
}

// Stopped reports whether Stop has been called.
func (h *Handle) Stopped() bool {
	select {
	case <-h.stop:
		return true
	default:
		return false
	}
}

// write sends one sample, substituting silence while muted.
func (h *Handle) write(data []byte, d time.Duration) error {
	if h.Muted() {
		data = silenceFrame
	}
	return h.Track.WriteSample(pionmedia.Sample{Data: data, Duration: d})
}

// SilenceSource sends silence. It stands in for a microphone when no
// audio file is configured.
type SilenceSource struct{}

func (SilenceSource) Acquire(ctx context.Context) (*Handle, error) {
	track, err := NewTrack()
	if err != nil {
		return nil, acquisitionError(ErrUnsupported, err)
	}

	h := newHandle(track)
	go func() {
		defer close(h.done)
		ticker := time.NewTicker(frameDuration)
		defer ticker.Stop()
		for {
			select {
			case <-h.stop:
				return
			case <-ticker.C:
				if err := h.write(silenceFrame, frameDuration); err != nil {
					return
				}
			}
		}
	}()
	return h, nil
}

// SecureSource refuses to capture audio when signaling runs over an
// unencrypted channel to anything but this machine.
type SecureSource struct {
	Source        Source
	ServerURL     string
	AllowInsecure bool
}

func (s SecureSource) Acquire(ctx context.Context) (*Handle, error) {
	if !s.AllowInsecure && !IsSecureURL(s.ServerURL) {
		return nil, acquisitionError(ErrInsecureContext, nil)
	}
	return s.Source.Acquire(ctx)
}

// IsSecureURL reports whether serverURL uses TLS or points at a loopback
// host.
func IsSecureURL(serverURL string) bool {
	u, err := url.Parse(serverURL)
	if err != nil {
		return false
	}
	if u.Scheme == "wss" || u.Scheme == "https" {
		return true
	}

	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
