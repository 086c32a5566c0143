package vad

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/d1nch8g/aiwine/audio"
)

// Listen captures one utterance from src. The capture is always released
// before Listen returns, and before the utterance is assembled.
//
// Besides the media clock, a wall-clock timer bounds the capture at
// MaxDuration so a device that stops delivering frames cannot stall the turn.
func Listen(ctx context.Context, src audio.Source, config Config, logger *slog.Logger) (Result, error) {
	if logger == nil {
		logger = slog.Default()
	}

	capture, err := src.Open(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("open capture: %w", err)
	}
	defer capture.Close()

	seg := New(config)
	ceiling := time.NewTimer(config.MaxDuration)
	defer ceiling.Stop()

	finish := func(outcome Outcome, reason string) Result {
		capture.Close()
		result := seg.Finish(outcome)
		logger.Debug("utterance finalized",
			"outcome", outcome,
			"reason", reason,
			"elapsed_ms", result.Elapsed.Milliseconds(),
			"frames", result.Frames,
		)
		return result
	}

	frames := capture.Frames()
	for {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()

		case <-ceiling.C:
			return finish(seg.Expire(), "ceiling"), nil

		case frame, ok := <-frames:
			if !ok {
				logger.Warn("capture ended early", "elapsed_ms", seg.Elapsed().Milliseconds())
				return finish(seg.Expire(), "capture ended"), nil
			}
			if outcome := seg.Process(frame); outcome != Continue {
				return finish(outcome, "frames"), nil
			}
		}
	}
}
