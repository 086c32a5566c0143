// Package transport talks to the conversational backend: it uploads an
// utterance and hands back the reply texts together with a lazily read
// audio stream, and it fetches short synthesized announcements.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "http://localhost:8000"

	ChatPath = "/chat"
	TTSPath  = "/tts"

	// UserTextHeader carries the recognized utterance, percent-encoded.
	UserTextHeader = "X-User-Text"
	// ReplyTextHeader carries the generated reply, percent-encoded.
	ReplyTextHeader = "X-AI-Text"

	// FileField and FileName name the multipart upload.
	FileField = "audio"
	FileName  = "speech.wav"

	DefaultChunkSize = 16 * 1024

	// Error bodies are kept for diagnostics only.
	maxErrorBody = 64 * 1024
)

// Dial and header timeouts. The client has no overall request timeout since
// reply bodies stream for as long as playback runs.
const (
	DefaultConnectTimeout  = 10 * time.Second
	DefaultKeepAlive       = 30 * time.Second
	DefaultIdleConnTimeout = 90 * time.Second
	DefaultHeaderTimeout   = 60 * time.Second
)

type Config struct {
	BaseURL   string
	ChatPath  string
	TTSPath   string
	ChunkSize int
}

func GetDefaultConfig() Config {
	return Config{
		BaseURL:   DefaultBaseURL,
		ChatPath:  ChatPath,
		TTSPath:   TTSPath,
		ChunkSize: DefaultChunkSize,
	}
}

// Reply is a successful answer from the conversational endpoint.
type Reply struct {
	UserText  string
	ReplyText string
	Audio     *ChunkStream
}

// Client is a client for the conversational backend.
type Client struct {
	config     Config
	HTTPClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a backend client. Zero config fields take defaults.
func NewClient(config Config, logger *slog.Logger) *Client {
	defaults := GetDefaultConfig()
	if config.BaseURL == "" {
		config.BaseURL = defaults.BaseURL
	}
	if config.ChatPath == "" {
		config.ChatPath = defaults.ChatPath
	}
	if config.TTSPath == "" {
		config.TTSPath = defaults.TTSPath
	}
	if config.ChunkSize <= 0 {
		config.ChunkSize = defaults.ChunkSize
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		config:     config,
		HTTPClient: newHTTPClient(),
		logger:     logger.With("component", "transport"),
	}
}

func newHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   DefaultConnectTimeout,
				KeepAlive: DefaultKeepAlive,
			}).DialContext,
			MaxIdleConns:          10,
			MaxIdleConnsPerHost:   2,
			IdleConnTimeout:       DefaultIdleConnTimeout,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: DefaultHeaderTimeout,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

// Send uploads a WAV utterance. On success the caller owns Reply.Audio and
// must close it.
func (c *Client) Send(ctx context.Context, wavData []byte) (*Reply, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, FileField, FileName))
	header.Set("Content-Type", "audio/wav")

	part, err := mw.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("failed to create multipart part: %w", err)
	}
	if _, err := part.Write(wavData); err != nil {
		return nil, fmt.Errorf("failed to write multipart part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+c.config.ChatPath, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	start := time.Now()
	resp, err := c.do(req, c.config.ChatPath)
	if err != nil {
		return nil, err
	}

	reply := &Reply{
		UserText:  decodeHeader(resp.Header, UserTextHeader),
		ReplyText: decodeHeader(resp.Header, ReplyTextHeader),
		Audio:     NewChunkStream(resp.Body, c.config.ChunkSize),
	}

	c.logger.Debug("chat reply received",
		"upload_bytes", len(wavData),
		"latency_ms", time.Since(start).Milliseconds(),
		"content_type", resp.Header.Get("Content-Type"),
	)
	return reply, nil
}

type synthesisRequest struct {
	Text string `json:"text"`
}

// Synthesize fetches speech for a short fixed text as one buffered blob.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	payload, err := json.Marshal(synthesisRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+c.config.TTSPath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req, c.config.TTSPath)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Endpoint: c.config.TTSPath, Err: fmt.Errorf("read body: %w", err)}
	}

	c.logger.Debug("synthesized announcement", "chars", len(text), "bytes", len(audio))
	return audio, nil
}

// do performs the request and turns network failures and non-2xx statuses
// into *Error. On success the response body is left open.
func (c *Client) do(req *http.Request, endpoint string) (*http.Response, error) {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, &Error{Endpoint: endpoint, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &Error{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}
	return resp, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.HTTPClient.CloseIdleConnections()
	return nil
}

// decodeHeader percent-decodes a text header. Absent headers yield "" and
// malformed escapes leave the value as sent.
func decodeHeader(h http.Header, name string) string {
	v := h.Get(name)
	if v == "" {
		return ""
	}
	decoded, err := url.PathUnescape(v)
	if err != nil {
		return v
	}
	return decoded
}
