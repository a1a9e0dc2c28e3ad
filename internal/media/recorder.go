package media

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"
)

// RTPReader yields RTP packets; *webrtc.TrackRemote satisfies it.
type RTPReader interface {
	ReadRTP() (*rtp.Packet, interceptor.Attributes, error)
}

// Recorder writes a remote audio track to an Ogg/Opus file.
type Recorder struct {
	Path string

	packets atomic.Int64
	done    chan struct{}
	err     error
}

// Record starts copying packets from track to a new Ogg file at path. The
// recorder stops when the track ends.
func Record(track RTPReader, path string) (*Recorder, error) {
	w, err := oggwriter.New(path, 48000, 2)
	if err != nil {
		return nil, err
	}

	r := &Recorder{Path: path, done: make(chan struct{})}
	go func() {
		defer close(r.done)
		r.err = r.copy(track, w)
		if cerr := w.Close(); r.err == nil {
			r.err = cerr
		}
	}()
	return r, nil
}

func (r *Recorder) copy(track RTPReader, w *oggwriter.OggWriter) error {
	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			// The track ends when the peer connection closes.
			return nil
		}
		if err := w.WriteRTP(pkt); err != nil {
			return err
		}
		r.packets.Add(1)
	}
}

// Packets is the number of packets written so far.
func (r *Recorder) Packets() int64 { return r.packets.Load() }

// Wait blocks until the recording is finalised or timeout passes.
func (r *Recorder) Wait(timeout time.Duration) error {
	select {
	case <-r.done:
		return r.err
	case <-time.After(timeout):
		return errors.New("recorder did not finish")
	}
}
