package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := GetDefaultConfig()
	cfg.BaseURL = srv.URL + "/"
	cfg.ChunkSize = 4
	return NewClient(cfg, nil)
}

func TestSend_UploadsMultipartAndDecodesHeaders(t *testing.T) {
	wavData := []byte("RIFF....WAVEfmt fake")

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat", r.URL.Path)

		file, header, err := r.FormFile("audio")
		if !assert.NoError(t, err) {
			return
		}
		defer file.Close()

		assert.Equal(t, "speech.wav", header.Filename)
		assert.Equal(t, "audio/wav", header.Header.Get("Content-Type"))
		got, _ := io.ReadAll(file)
		assert.Equal(t, wavData, got)

		w.Header().Set(UserTextHeader, url.PathEscape("有什麼紅酒推薦？"))
		w.Header().Set(ReplyTextHeader, url.PathEscape("I'd suggest a Pinot Noir"))
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("0123456789"))
	})

	reply, err := client.Send(context.Background(), wavData)
	require.NoError(t, err)
	defer reply.Audio.Close()

	assert.Equal(t, "有什麼紅酒推薦？", reply.UserText)
	assert.Equal(t, "I'd suggest a Pinot Noir", reply.ReplyText)

	var chunks [][]byte
	for {
		chunk, err := reply.Audio.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		require.LessOrEqual(t, len(chunk), 4)
		chunks = append(chunks, chunk)
	}

	var joined []byte
	for _, c := range chunks {
		joined = append(joined, c...)
	}
	assert.Equal(t, "0123456789", string(joined))
	assert.Equal(t, len(chunks), reply.Audio.Chunks())
	assert.Equal(t, int64(10), reply.Audio.Bytes())
}

func TestSend_MissingHeadersDecodeToEmpty(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})

	reply, err := client.Send(context.Background(), []byte("x"))
	require.NoError(t, err)
	defer reply.Audio.Close()

	assert.Equal(t, "", reply.UserText)
	assert.Equal(t, "", reply.ReplyText)

	_, err = reply.Audio.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestSend_MalformedEscapeKeepsRawValue(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(UserTextHeader, "100%sure")
	})

	reply, err := client.Send(context.Background(), []byte("x"))
	require.NoError(t, err)
	defer reply.Audio.Close()

	assert.Equal(t, "100%sure", reply.UserText)
}

func TestSend_NonSuccessStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "speech recognizer offline", http.StatusBadGateway)
	})

	_, err := client.Send(context.Background(), []byte("x"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)

	var terr *Error
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, "/chat", terr.Endpoint)
	assert.Equal(t, http.StatusBadGateway, terr.StatusCode)
	assert.Equal(t, "speech recognizer offline", terr.Body)
	assert.True(t, terr.IsServerError())
	assert.Contains(t, err.Error(), "status 502")
}

func TestSend_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	cfg := GetDefaultConfig()
	cfg.BaseURL = srv.URL
	client := NewClient(cfg, nil)

	_, err := client.Send(context.Background(), []byte("x"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)

	var terr *Error
	require.True(t, errors.As(err, &terr))
	assert.Zero(t, terr.StatusCode)
}

func TestSynthesize(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tts", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]string{"text": "Welcome"}, body)

		w.Write([]byte(strings.Repeat("a", 2048)))
	})

	blob, err := client.Synthesize(context.Background(), "Welcome")
	require.NoError(t, err)
	assert.Len(t, blob, 2048)
}

func TestSynthesize_Error(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})

	_, err := client.Synthesize(context.Background(), "")
	require.Error(t, err)

	var terr *Error
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, "/tts", terr.Endpoint)
	assert.Equal(t, http.StatusBadRequest, terr.StatusCode)
	assert.Equal(t, "transport /tts: status 400", err.Error())
}

func TestChunkStream_CloseOnce(t *testing.T) {
	body := &countingCloser{Reader: strings.NewReader("abc")}
	s := NewChunkStream(body, 0)

	chunk, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, "abc", string(chunk))

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, 1, body.closes)
}

type countingCloser struct {
	io.Reader
	closes int
}

func (c *countingCloser) Close() error {
	c.closes++
	return nil
}
