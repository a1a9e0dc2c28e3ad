package media

import (
	"errors"
	"fmt"
	"os"
	"syscall"
)

// ErrMediaAcquisition is wrapped by every failure to obtain local audio,
// together with one of the more specific kinds below.
var ErrMediaAcquisition = errors.New("could not acquire local audio")

var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrDeviceNotFound   = errors.New("no audio device found")
	ErrDeviceBusy       = errors.New("audio device is busy")
	ErrInsecureContext  = errors.New("audio capture requires a secure connection")
	ErrUnsupported      = errors.New("audio source not supported")
)

func acquisitionError(kind, cause error) error {
	if cause == nil {
		return fmt.Errorf("%w: %w", ErrMediaAcquisition, kind)
	}
	return fmt.Errorf("%w: %w: %v", ErrMediaAcquisition, kind, cause)
}

// classifyOpen maps a failure to open an audio input to its acquisition
// kind.
func classifyOpen(err error) error {
	switch {
	case errors.Is(err, os.ErrNotExist):
		return acquisitionError(ErrDeviceNotFound, err)
	case errors.Is(err, os.ErrPermission):
		return acquisitionError(ErrPermissionDenied, err)
	case errors.Is(err, syscall.EBUSY):
		return acquisitionError(ErrDeviceBusy, err)
	}
	return acquisitionError(ErrUnsupported, err)
}
