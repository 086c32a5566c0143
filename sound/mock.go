package sound

import (
	"fmt"
	"log/slog"
	"sync"
)

// MockOutput is an output for tests and hardware-less runs. It discards
// audio but records what was played.
type MockOutput struct {
	logger *slog.Logger

	mu       sync.Mutex
	opens    int
	closes   int
	samples  int
	writes   int
	formats  [][2]int
	openErr  error
	writeErr error
	onWrite  func(samples []int16)
}

var _ Output = (*MockOutput)(nil)

func NewMockOutput(logger *slog.Logger) *MockOutput {
	if logger == nil {
		logger = slog.Default()
	}
	return &MockOutput{logger: logger.With("component", "sound.mock")}
}

// FailOpen makes every Open return err.
func (m *MockOutput) FailOpen(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openErr = err
}

// FailWrite makes every Write return err.
func (m *MockOutput) FailWrite(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErr = err
}

// OnWrite registers a hook called for every write, outside the lock.
func (m *MockOutput) OnWrite(fn func(samples []int16)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onWrite = fn
}

func (m *MockOutput) Open(sampleRate, channels int) (OutputStream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.openErr != nil {
		return nil, fmt.Errorf("mock output: %w", m.openErr)
	}
	m.opens++
	m.formats = append(m.formats, [2]int{sampleRate, channels})
	m.logger.Debug("mock output opened", "sample_rate", sampleRate, "channels", channels)

	return &mockStream{output: m}, nil
}

// Opens returns how many streams were opened.
func (m *MockOutput) Opens() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opens
}

// Closes returns how many streams were released.
func (m *MockOutput) Closes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closes
}

// Samples returns the total number of samples written.
func (m *MockOutput) Samples() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.samples
}

// Writes returns the number of Write calls.
func (m *MockOutput) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// Formats returns the (sample rate, channels) of every opened stream.
func (m *MockOutput) Formats() [][2]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][2]int(nil), m.formats...)
}

type mockStream struct {
	output *MockOutput
	once   sync.Once
}

func (s *mockStream) Write(samples []int16) error {
	m := s.output
	m.mu.Lock()
	if m.writeErr != nil {
		err := m.writeErr
		m.mu.Unlock()
		return err
	}
	m.writes++
	m.samples += len(samples)
	hook := m.onWrite
	m.mu.Unlock()

	if hook != nil {
		hook(samples)
	}
	return nil
}

func (s *mockStream) Close() error {
	s.once.Do(func() {
		s.output.mu.Lock()
		s.output.closes++
		s.output.mu.Unlock()
	})
	return nil
}
