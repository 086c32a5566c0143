package audio

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// MockSource generates synthetic frames instead of reading a microphone.
// By default it produces silence as fast as the consumer reads.
type MockSource struct {
	config Config
	logger *slog.Logger

	generate    func(i int) Frame
	realtime    bool
	unavailable bool

	opens  atomic.Int64
	closes atomic.Int64
}

var _ Source = (*MockSource)(nil)

// MockOption configures a MockSource.
type MockOption func(*MockSource)

// WithGenerator makes the mock emit generate(i) as its i-th frame of every
// capture. Frames shorter or longer than FrameSize are passed through as is.
func WithGenerator(generate func(i int) Frame) MockOption {
	return func(m *MockSource) {
		m.generate = generate
	}
}

// WithTone makes the mock emit a continuous 440 Hz sine at the given amplitude.
func WithTone(amplitude float64) MockOption {
	return func(m *MockSource) {
		m.generate = func(i int) Frame {
			return Tone(m.config.FrameSize, m.config.SampleRate, 440, amplitude, i*m.config.FrameSize)
		}
	}
}

// WithRealtime paces frames at the rate a real device would deliver them.
func WithRealtime() MockOption {
	return func(m *MockSource) {
		m.realtime = true
	}
}

// WithUnavailable makes every Open fail with ErrDeviceUnavailable.
func WithUnavailable() MockOption {
	return func(m *MockSource) {
		m.unavailable = true
	}
}

func NewMockSource(config Config, logger *slog.Logger, opts ...MockOption) *MockSource {
	if logger == nil {
		logger = slog.Default()
	}

	m := &MockSource{
		config: config,
		logger: logger.With("component", "audio.mock"),
	}
	m.generate = func(int) Frame {
		return make(Frame, m.config.FrameSize)
	}

	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Tone returns n samples of a sine wave starting at sample offset.
func Tone(n, sampleRate int, frequency, amplitude float64, offset int) Frame {
	frame := make(Frame, n)
	for i := range frame {
		t := float64(offset+i) / float64(sampleRate)
		frame[i] = float32(amplitude * math.Sin(2*math.Pi*frequency*t))
	}
	return frame
}

func (m *MockSource) Open(ctx context.Context) (Capture, error) {
	if m.unavailable {
		return nil, fmt.Errorf("%w: mock device disabled", ErrDeviceUnavailable)
	}
	m.opens.Add(1)

	c := &mockCapture{
		source: m,
		frames: make(chan Frame),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go c.generateLoop(ctx)

	return c, nil
}

// Opens returns how many captures have been opened.
func (m *MockSource) Opens() int {
	return int(m.opens.Load())
}

// Closes returns how many captures have been released.
func (m *MockSource) Closes() int {
	return int(m.closes.Load())
}

type mockCapture struct {
	source *MockSource
	frames chan Frame
	stop   chan struct{}
	done   chan struct{}
	once   sync.Once
}

func (c *mockCapture) Frames() <-chan Frame {
	return c.frames
}

func (c *mockCapture) generateLoop(ctx context.Context) {
	defer close(c.done)
	defer close(c.frames)

	var tick <-chan time.Time
	if c.source.realtime {
		period := Frame(make([]float32, c.source.config.FrameSize)).Duration(c.source.config.SampleRate)
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		tick = ticker.C
	}

	for i := 0; ; i++ {
		if tick != nil {
			select {
			case <-tick:
			case <-c.stop:
				return
			case <-ctx.Done():
				return
			}
		}

		select {
		case c.frames <- c.source.generate(i):
		case <-c.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (c *mockCapture) Close() error {
	c.once.Do(func() {
		close(c.stop)
		<-c.done
		c.source.closes.Add(1)
	})
	return nil
}
