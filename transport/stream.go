package transport

import (
	"io"
	"sync"
)

// ChunkStream reads a response body one chunk at a time, as the network
// delivers it, without buffering the whole body.
type ChunkStream struct {
	body   io.ReadCloser
	buf    []byte
	chunks int
	bytes  int64

	closeOnce sync.Once
	closeErr  error
}

func NewChunkStream(body io.ReadCloser, chunkSize int) *ChunkStream {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &ChunkStream{
		body: body,
		buf:  make([]byte, chunkSize),
	}
}

// Next returns the next chunk. The slice is owned by the caller. At the end
// of the body it returns io.EOF.
func (s *ChunkStream) Next() ([]byte, error) {
	for {
		n, err := s.body.Read(s.buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, s.buf[:n])
			s.chunks++
			s.bytes += int64(n)
			return chunk, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// Chunks returns how many chunks have been read.
func (s *ChunkStream) Chunks() int {
	return s.chunks
}

// Bytes returns how many bytes have been read.
func (s *ChunkStream) Bytes() int64 {
	return s.bytes
}

// Close closes the underlying body once.
func (s *ChunkStream) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.body.Close()
	})
	return s.closeErr
}
