package audio

import (
	"context"
	"errors"
	"time"
)

// ErrDeviceUnavailable is returned when no capture device can be acquired,
// either because none exists or because access was denied.
var ErrDeviceUnavailable = errors.New("audio: capture device unavailable")

// Frame is one fixed-size block of mono PCM samples in [-1.0, 1.0].
type Frame []float32

// Duration returns how much audio the frame holds at the given sample rate.
func (f Frame) Duration(sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(len(f)) * time.Second / time.Duration(sampleRate)
}

// Source opens capture sessions on a microphone or a substitute for one.
type Source interface {
	// Open acquires the device and starts producing frames.
	// Returns an error matching ErrDeviceUnavailable if the device cannot
	// be acquired.
	Open(ctx context.Context) (Capture, error)
}

// Capture is one acquired capture session.
type Capture interface {
	// Frames delivers captured frames in order. The channel is closed
	// once the capture ends, whether by Close or by a device failure.
	Frames() <-chan Frame

	// Close releases the device. It is safe to call more than once and
	// on a capture that was only partially opened.
	Close() error
}

// Config holds capture parameters.
type Config struct {
	// Backend selects the capture implementation: "portaudio" or "mock".
	Backend string

	// SampleRate in Hz. Default: 16000
	SampleRate int

	// FrameSize is the number of samples per frame. Default: 4096
	FrameSize int
}

// GetDefaultConfig returns the capture configuration used by the client.
func GetDefaultConfig() Config {
	return Config{
		Backend:    BackendPortaudio,
		SampleRate: 16000,
		FrameSize:  4096,
	}
}
