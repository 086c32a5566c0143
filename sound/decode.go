package sound

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
)

type mp3Stream struct {
	*mp3.Decoder
}

// go-mp3 always decodes to 16-bit stereo.
func (s mp3Stream) Channels() int {
	return 2
}

// DecodeMP3 decodes an MPEG audio stream. It reads the first frame before
// returning, so an empty stream fails here.
func DecodeMP3(r io.Reader) (PCMStream, error) {
	d, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("decode mp3: %w", err)
	}
	return mp3Stream{d}, nil
}

type pcmBuffer struct {
	*bytes.Reader
	sampleRate int
	channels   int
}

func (b pcmBuffer) SampleRate() int { return b.sampleRate }
func (b pcmBuffer) Channels() int   { return b.channels }

// DecodeWAV decodes a complete PCM WAV file held in memory.
func DecodeWAV(blob []byte) (PCMStream, error) {
	dec := wav.NewDecoder(bytes.NewReader(blob))
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("decode wav: not a valid wav file")
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode wav: %w", err)
	}
	if buf.Format == nil || buf.Format.SampleRate <= 0 || buf.Format.NumChannels <= 0 {
		return nil, fmt.Errorf("decode wav: missing format")
	}

	depth := int(dec.BitDepth)
	pcm := make([]byte, len(buf.Data)*2)
	for i, v := range buf.Data {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(to16(v, depth)))
	}

	return pcmBuffer{
		Reader:     bytes.NewReader(pcm),
		sampleRate: buf.Format.SampleRate,
		channels:   buf.Format.NumChannels,
	}, nil
}

func to16(v, depth int) int16 {
	switch {
	case depth == 8:
		// 8-bit WAV is unsigned.
		return int16((v - 128) << 8)
	case depth > 16:
		return int16(v >> (depth - 16))
	default:
		return int16(v)
	}
}

// decodeBlob picks the decoder from the blob's magic bytes: WAV for RIFF
// containers, MP3 otherwise.
func decodeBlob(blob []byte) (PCMStream, error) {
	if bytes.HasPrefix(blob, []byte("RIFF")) {
		return DecodeWAV(blob)
	}
	return DecodeMP3(bytes.NewReader(blob))
}
