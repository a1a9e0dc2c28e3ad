package media

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"github.com/pion/webrtc/v4/pkg/media/oggreader"
)

// OggSource plays an Ogg/Opus file as the microphone, looping at the end.
type OggSource struct {
	Path string
}

func (s OggSource) Acquire(ctx context.Context) (*Handle, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, classifyOpen(err)
	}

	reader, _, err := oggreader.NewWith(f)
	if err != nil {
		f.Close()
		return nil, acquisitionError(ErrUnsupported, err)
	}

	track, err := NewTrack()
	if err != nil {
		f.Close()
		return nil, acquisitionError(ErrUnsupported, err)
	}

	h := newHandle(track)
	go func() {
		defer close(h.done)
		defer f.Close()
		s.play(h, f, reader)
	}()
	return h, nil
}

// play paces pages out at the rate their granule positions describe.
func (s OggSource) play(h *Handle, f *os.File, reader *oggreader.OggReader) {
	ticker := time.NewTicker(frameDuration)
	defer ticker.Stop()

	var lastGranule uint64
	for {
		select {
		case <-h.stop:
			return
		case <-ticker.C:
		}

		page, header, err := reader.ParseNextPage()
		if errors.Is(err, io.EOF) {
			if reader, err = rewind(f); err != nil {
				return
			}
			lastGranule = 0
			continue
		}
		if err != nil {
			return
		}

		// Header pages carry no audio.
		if header.GranulePosition == 0 {
			continue
		}

		samples := header.GranulePosition - lastGranule
		lastGranule = header.GranulePosition
		duration := time.Duration(float64(samples)/48000*1000) * time.Millisecond
		if duration <= 0 {
			duration = frameDuration
		}

		if err := h.write(page, duration); err != nil {
			return
		}
	}
}

func rewind(f *os.File) (*oggreader.OggReader, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	reader, _, err := oggreader.NewWith(f)
	return reader, err
}
