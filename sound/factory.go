package sound

import (
	"fmt"
	"log/slog"

	"github.com/d1nch8g/aiwine/audio"
)

// NewOutput creates the output device for the given audio backend.
func NewOutput(backend string, framesPerBuffer int, logger *slog.Logger) (Output, error) {
	switch backend {
	case audio.BackendPortaudio, "":
		return NewPortaudioOutput(framesPerBuffer, logger), nil
	case audio.BackendMock:
		return NewMockOutput(logger), nil
	default:
		return nil, fmt.Errorf("unsupported audio backend: %s", backend)
	}
}
