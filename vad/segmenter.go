// Package vad turns a live frame stream into one bounded utterance using
// RMS energy gating with a trailing-silence timeout and a hard ceiling.
package vad

import (
	"math"
	"time"

	"github.com/d1nch8g/aiwine/audio"
)

// Outcome is the segmenter's decision after a frame.
type Outcome int

const (
	// Continue means the utterance is still open.
	Continue Outcome = iota
	// Speech means the utterance is complete and holds speech.
	Speech
	// NoSpeech means the ceiling was hit without any speech.
	NoSpeech
)

func (o Outcome) String() string {
	switch o {
	case Continue:
		return "continue"
	case Speech:
		return "speech"
	case NoSpeech:
		return "no_speech"
	default:
		return "unknown"
	}
}

// Config holds the segmentation thresholds.
type Config struct {
	SampleRate      int
	SpeechThreshold float64
	SilenceTimeout  time.Duration
	MaxDuration     time.Duration
}

// GetDefaultConfig returns 16 kHz, threshold 0.015, 1200ms trailing silence
// and a 6000ms ceiling.
func GetDefaultConfig() Config {
	return Config{
		SampleRate:      16000,
		SpeechThreshold: 0.015,
		SilenceTimeout:  1200 * time.Millisecond,
		MaxDuration:     6000 * time.Millisecond,
	}
}

// Result is a finalized utterance.
type Result struct {
	Outcome Outcome
	// Utterance is every sample observed up to finalization, or nil when
	// nothing usable was captured.
	Utterance []float32
	Elapsed   time.Duration
	Frames    int
}

// HasSpeech reports whether the result carries an utterance.
func (r Result) HasSpeech() bool {
	return r.Outcome == Speech && len(r.Utterance) > 0
}

// Segmenter decides utterance boundaries frame by frame. Time is measured
// on the media clock: the amount of audio observed, taken at frame end.
// It is not safe for concurrent use.
type Segmenter struct {
	config Config

	hasSpoken    bool
	silenceStart time.Duration
	silent       bool
	elapsed      time.Duration
	samples      int

	frames []audio.Frame
}

func New(config Config) *Segmenter {
	return &Segmenter{config: config}
}

// HasSpoken reports whether any frame so far exceeded the speech threshold.
func (s *Segmenter) HasSpoken() bool {
	return s.hasSpoken
}

// Elapsed returns the media time observed so far.
func (s *Segmenter) Elapsed() time.Duration {
	return s.elapsed
}

// Process records the frame and returns the decision it leads to.
// Once a non-Continue outcome is returned the caller must call Finish.
func (s *Segmenter) Process(frame audio.Frame) Outcome {
	s.frames = append(s.frames, frame)
	s.samples += len(frame)
	s.elapsed = time.Duration(s.samples) * time.Second / time.Duration(s.config.SampleRate)
	now := s.elapsed

	if RMS(frame) > s.config.SpeechThreshold {
		s.hasSpoken = true
		s.silent = false
	} else if s.hasSpoken {
		if !s.silent {
			s.silent = true
			s.silenceStart = now
		}
		if now-s.silenceStart > s.config.SilenceTimeout {
			return Speech
		}
	}

	if now > s.config.MaxDuration {
		return s.ceilingOutcome()
	}
	return Continue
}

// Expire is the outcome when the ceiling is reached on the wall clock
// rather than through observed frames.
func (s *Segmenter) Expire() Outcome {
	return s.ceilingOutcome()
}

func (s *Segmenter) ceilingOutcome() Outcome {
	if s.hasSpoken {
		return Speech
	}
	return NoSpeech
}

// Finish builds the result for the given outcome.
func (s *Segmenter) Finish(outcome Outcome) Result {
	result := Result{
		Outcome: outcome,
		Elapsed: s.elapsed,
		Frames:  len(s.frames),
	}
	if outcome != Speech || s.samples == 0 {
		return result
	}

	utterance := make([]float32, 0, s.samples)
	for _, frame := range s.frames {
		utterance = append(utterance, frame...)
	}
	result.Utterance = utterance
	s.frames = nil
	return result
}

// RMS returns the root-mean-square amplitude of the frame.
func RMS(frame audio.Frame) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, x := range frame {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum / float64(len(frame)))
}
