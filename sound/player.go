package sound

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// renderBlock is how many PCM bytes go to the device per write.
const renderBlock = 8192

// Player renders announcement blobs and streamed replies to an Output.
// It plays one thing at a time; callers must not overlap calls.
type Player struct {
	output      Output
	decode      DecodeFunc
	minBlobSize int
	logger      *slog.Logger
}

type Option func(*Player)

// WithStreamDecoder replaces the MP3 decoder used for streamed replies.
func WithStreamDecoder(decode DecodeFunc) Option {
	return func(p *Player) {
		p.decode = decode
	}
}

// WithMinBlobSize overrides MinBlobSize.
func WithMinBlobSize(n int) Option {
	return func(p *Player) {
		p.minBlobSize = n
	}
}

func NewPlayer(output Output, logger *slog.Logger, opts ...Option) *Player {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Player{
		output:      output,
		decode:      DecodeMP3,
		minBlobSize: MinBlobSize,
		logger:      logger.With("component", "sound.player"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PlayStream plays a compressed stream while it is still arriving and
// returns the number of chunks appended.
//
// The pipe between feeder and renderer is the playback buffer: a Write on
// it returns only after the decoder has consumed the whole chunk, so a
// chunk is never appended while the previous one is still being processed.
// End of the source closes the pipe, which the decoder sees as end of
// stream.
func (p *Player) PlayStream(ctx context.Context, src ChunkSource) (int, error) {
	pr, pw := io.Pipe()
	g, gctx := errgroup.WithContext(ctx)

	appended := 0
	g.Go(func() error {
		for {
			chunk, err := src.Next()
			if errors.Is(err, io.EOF) {
				return pw.Close()
			}
			if err != nil {
				err = fmt.Errorf("read reply stream: %w", err)
				pw.CloseWithError(err)
				return err
			}
			if err := gctx.Err(); err != nil {
				pw.CloseWithError(err)
				return err
			}

			if _, err := pw.Write(chunk); err != nil {
				// The renderer stopped and reports why.
				return nil
			}
			appended++
		}
	})

	g.Go(func() error {
		err := p.renderStream(gctx, pr)
		if err != nil {
			pr.CloseWithError(err)
			return err
		}
		// Trailing bytes the decoder did not need.
		_, _ = io.Copy(io.Discard, pr)
		return nil
	})

	err := g.Wait()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return appended, ctxErr
	}
	if err != nil {
		p.logger.Debug("stream playback failed", "chunks", appended, "error", err)
		return appended, err
	}

	p.logger.Debug("stream playback finished", "chunks", appended)
	return appended, nil
}

func (p *Player) renderStream(ctx context.Context, r io.Reader) error {
	pcm, err := p.decode(r)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAudioPayload, err)
	}
	return p.render(ctx, pcm)
}

// PlayAudio plays a complete announcement. Blobs under the minimum size are
// skipped, and decode or device failures are logged; neither is returned.
// Only cancellation of ctx is reported.
func (p *Player) PlayAudio(ctx context.Context, blob []byte) error {
	if len(blob) < p.minBlobSize {
		p.logger.Warn("invalid audio blob, skipping", "bytes", len(blob))
		return nil
	}

	pcm, err := decodeBlob(blob)
	if err != nil {
		p.logger.Warn("undecodable audio blob, skipping", "bytes", len(blob), "error", err)
		return nil
	}

	if err := p.render(ctx, pcm); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		p.logger.Warn("audio playback failed", "error", err)
	}
	return nil
}

// render copies decoded PCM to a freshly opened output stream and closes the
// stream before returning.
func (p *Player) render(ctx context.Context, pcm PCMStream) error {
	channels := pcm.Channels()
	stream, err := p.output.Open(pcm.SampleRate(), channels)
	if err != nil {
		return fmt.Errorf("%w: open output: %v", ErrInvalidAudioPayload, err)
	}
	defer stream.Close()

	frameBytes := 2 * channels
	buf := make([]byte, renderBlock-renderBlock%frameBytes)
	samples := make([]int16, len(buf)/2)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := io.ReadFull(pcm, buf)
		n -= n % frameBytes
		if n > 0 {
			for i := 0; i < n/2; i++ {
				samples[i] = int16(binary.LittleEndian.Uint16(buf[i*2:]))
			}
			if werr := stream.Write(samples[:n/2]); werr != nil {
				return fmt.Errorf("%w: write output: %v", ErrInvalidAudioPayload, werr)
			}
		}

		switch {
		case err == nil:
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			return stream.Close()
		default:
			return fmt.Errorf("%w: decode: %v", ErrInvalidAudioPayload, err)
		}
	}
}
