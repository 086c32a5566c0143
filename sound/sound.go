package sound

import (
	"errors"
	"io"
)

// ErrInvalidAudioPayload is returned when reply audio cannot be played:
// it is empty, too small, undecodable, or the output device failed.
var ErrInvalidAudioPayload = errors.New("sound: invalid audio payload")

// MinBlobSize is the smallest announcement blob worth playing.
const MinBlobSize = 1000

// Output opens playback streams on a speaker or a substitute for one.
type Output interface {
	// Open acquires the device for interleaved 16-bit PCM at the given
	// format.
	Open(sampleRate, channels int) (OutputStream, error)
}

// OutputStream is one acquired playback session.
type OutputStream interface {
	// Write plays interleaved samples, blocking while the device buffer
	// is full.
	Write(samples []int16) error

	// Close plays out what is buffered and releases the device. It is
	// safe to call more than once.
	Close() error
}

// ChunkSource yields successive chunks of a compressed audio stream and
// io.EOF at its end.
type ChunkSource interface {
	Next() ([]byte, error)
}

// PCMStream is decoded audio: interleaved little-endian int16 bytes.
type PCMStream interface {
	io.Reader
	SampleRate() int
	Channels() int
}

// DecodeFunc starts decoding a compressed stream. It may block until enough
// input has arrived to know the stream format.
type DecodeFunc func(r io.Reader) (PCMStream, error)
