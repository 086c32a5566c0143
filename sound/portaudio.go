package sound

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/d1nch8g/aiwine/audio"
)

// PortaudioOutput plays through the default output device.
type PortaudioOutput struct {
	framesPerBuffer int
	logger          *slog.Logger
}

var _ Output = (*PortaudioOutput)(nil)

func NewPortaudioOutput(framesPerBuffer int, logger *slog.Logger) *PortaudioOutput {
	if framesPerBuffer <= 0 {
		framesPerBuffer = 1024
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PortaudioOutput{
		framesPerBuffer: framesPerBuffer,
		logger:          logger.With("component", "sound.portaudio"),
	}
}

func (o *PortaudioOutput) Open(sampleRate, channels int) (OutputStream, error) {
	s := &portaudioStream{logger: o.logger}

	if err := portaudio.Initialize(); err != nil {
		s.Close()
		return nil, fmt.Errorf("initialize portaudio: %w", err)
	}
	s.initialized = true

	s.buffer = make([]int16, o.framesPerBuffer*channels)
	stream, err := portaudio.OpenDefaultStream(
		0,
		channels,
		float64(sampleRate),
		o.framesPerBuffer,
		s.buffer,
	)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("open output stream: %w", err)
	}
	s.stream = stream

	if err := stream.Start(); err != nil {
		s.Close()
		return nil, fmt.Errorf("start output stream: %w", err)
	}
	s.started = true

	o.logger.Debug("output opened", "sample_rate", sampleRate, "channels", channels)
	return s, nil
}

type portaudioStream struct {
	logger *slog.Logger
	stream *portaudio.Stream
	buffer []int16
	filled int

	initialized bool
	started     bool
	once        sync.Once
}

// Write fills the device buffer and hands it over each time it is full.
func (s *portaudioStream) Write(samples []int16) error {
	for len(samples) > 0 {
		n := copy(s.buffer[s.filled:], samples)
		s.filled += n
		samples = samples[n:]

		if s.filled == len(s.buffer) {
			if err := s.flush(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *portaudioStream) flush() error {
	// Zero-fill the remainder of a partial last buffer.
	for i := s.filled; i < len(s.buffer); i++ {
		s.buffer[i] = 0
	}
	s.filled = 0

	if err := s.stream.Write(); err != nil && err != portaudio.OutputUnderflowed {
		return err
	}
	return nil
}

// Close flushes the partial buffer, waits for playback to drain and releases
// the device.
func (s *portaudioStream) Close() error {
	s.once.Do(func() {
		audio.Teardown(s.logger,
			audio.Step{Name: "flush", Fn: func() error {
				if !s.started || s.filled == 0 {
					return nil
				}
				return s.flush()
			}},
			audio.Step{Name: "stop stream", Fn: func() error {
				if !s.started {
					return nil
				}
				return s.stream.Stop()
			}},
			audio.Step{Name: "close stream", Fn: func() error {
				if s.stream == nil {
					return nil
				}
				return s.stream.Close()
			}},
			audio.Step{Name: "terminate", Fn: func() error {
				if !s.initialized {
					return nil
				}
				return portaudio.Terminate()
			}},
		)
	})
	return nil
}
