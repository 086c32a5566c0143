package tts

import "context"

// Synthesizer turns announcement text into a complete audio blob
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
	Close() error
}

// Announcer names accepted by configuration.
const (
	AnnouncerBackend = "backend"
	AnnouncerYandex  = "yandex"
)

// SynthesisOptions represents the configuration for speech synthesis
type SynthesisOptions struct {
	Voice  string
	Speed  float64
	Volume float64
	Model  string
}
