package audio

import (
	"fmt"
	"log/slog"
)

// Capture backends.
const (
	BackendPortaudio = "portaudio"
	BackendMock      = "mock"
)

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", c.SampleRate)
	}
	if c.FrameSize <= 0 {
		return fmt.Errorf("frame size must be positive, got %d", c.FrameSize)
	}
	return nil
}

// NewSource creates the capture source selected by config.Backend.
func NewSource(config Config, logger *slog.Logger) (Source, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid audio config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("creating audio source",
		"backend", config.Backend,
		"sample_rate", config.SampleRate,
		"frame_size", config.FrameSize,
	)

	switch config.Backend {
	case BackendPortaudio, "":
		return NewPortaudioSource(config, logger), nil
	case BackendMock:
		return NewMockSource(config, logger, WithRealtime()), nil
	default:
		return nil, fmt.Errorf("unsupported audio backend: %s", config.Backend)
	}
}
