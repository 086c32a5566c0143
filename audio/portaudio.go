package audio

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
)

// PortaudioSource captures mono float32 frames from the default input device.
type PortaudioSource struct {
	config Config
	logger *slog.Logger
}

var _ Source = (*PortaudioSource)(nil)

func NewPortaudioSource(config Config, logger *slog.Logger) *PortaudioSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &PortaudioSource{
		config: config,
		logger: logger.With("component", "audio.portaudio"),
	}
}

// Open initializes PortAudio, opens the default input stream and starts the
// capture loop. Every failure releases whatever was acquired so far.
func (s *PortaudioSource) Open(ctx context.Context) (Capture, error) {
	c := &portaudioCapture{
		logger: s.logger,
		frames: make(chan Frame, 16),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		period: Frame(make([]float32, s.config.FrameSize)).Duration(s.config.SampleRate),
	}

	if err := portaudio.Initialize(); err != nil {
		c.Close()
		return nil, fmt.Errorf("%w: initialize portaudio: %v", ErrDeviceUnavailable, err)
	}
	c.initialized = true

	c.buffer = make([]float32, s.config.FrameSize)
	stream, err := portaudio.OpenDefaultStream(
		1,
		0,
		float64(s.config.SampleRate),
		s.config.FrameSize,
		c.buffer,
	)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("%w: open input stream: %v", ErrDeviceUnavailable, err)
	}
	c.stream = stream

	if err := stream.Start(); err != nil {
		c.Close()
		return nil, fmt.Errorf("%w: start input stream: %v", ErrDeviceUnavailable, err)
	}
	c.started = true

	c.looping = true
	go c.captureLoop(ctx)

	s.logger.Debug("capture opened",
		"sample_rate", s.config.SampleRate,
		"frame_size", s.config.FrameSize,
	)
	return c, nil
}

type portaudioCapture struct {
	logger *slog.Logger
	stream *portaudio.Stream
	buffer []float32
	period time.Duration

	initialized bool
	started     bool
	looping     bool

	frames chan Frame
	stop   chan struct{}
	done   chan struct{}
	once   sync.Once
}

func (c *portaudioCapture) Frames() <-chan Frame {
	return c.frames
}

func (c *portaudioCapture) captureLoop(ctx context.Context) {
	defer close(c.done)
	defer close(c.frames)

	for {
		select {
		case <-c.stop:
			return
		case <-ctx.Done():
			return
		default:
		}

		if err := c.stream.Read(); err != nil {
			if err == portaudio.InputOverflowed {
				c.logger.Debug("input overflowed, frame dropped")
				continue
			}
			c.logger.Warn("capture read failed", "error", err)
			return
		}

		frame := make(Frame, len(c.buffer))
		copy(frame, c.buffer)

		select {
		case c.frames <- frame:
		case <-c.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Close stops the capture loop, then the stream, then PortAudio itself.
// Release happens exactly once; later calls are no-ops.
func (c *portaudioCapture) Close() error {
	c.once.Do(func() {
		Teardown(c.logger,
			Step{Name: "capture loop", Fn: c.stopLoop},
			Step{Name: "stop stream", Fn: func() error {
				if !c.started {
					return nil
				}
				return c.stream.Stop()
			}},
			Step{Name: "close stream", Fn: func() error {
				if c.stream == nil {
					return nil
				}
				return c.stream.Close()
			}},
			Step{Name: "terminate", Fn: func() error {
				if !c.initialized {
					return nil
				}
				return portaudio.Terminate()
			}},
		)
		c.logger.Debug("capture released")
	})
	return nil
}

func (c *portaudioCapture) stopLoop() error {
	close(c.stop)
	if !c.looping {
		close(c.frames)
		return nil
	}

	// A blocked Read returns within one frame period.
	select {
	case <-c.done:
		return nil
	case <-time.After(2*c.period + time.Second):
		return fmt.Errorf("capture loop did not stop within %v", 2*c.period+time.Second)
	}
}
