package tts

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/metadata"

	ttsv3 "github.com/yandex-cloud/go-genproto/yandex/cloud/ai/tts/v3"
)

const (
	YandexTTSEndpoint = "tts.api.cloud.yandex.net:443"
)

var errEmptySynthesis = errors.New("synthesis returned no audio")

type YandexConfig struct {
	ApiKey   string
	FolderID string
	Options  SynthesisOptions
}

// utteranceClient is the part of the generated client the announcer uses.
type utteranceClient interface {
	UtteranceSynthesis(ctx context.Context, in *ttsv3.UtteranceSynthesisRequest, opts ...grpc.CallOption) (ttsv3.Synthesizer_UtteranceSynthesisClient, error)
}

// YandexTTSClient synthesizes announcements with Yandex SpeechKit instead of
// the conversational backend. Audio is requested as WAV.
type YandexTTSClient struct {
	client   utteranceClient
	conn     *grpc.ClientConn
	apiKey   string
	folderID string
	options  SynthesisOptions
	logger   *slog.Logger
}

// Ensure YandexTTSClient implements Synthesizer interface
var _ Synthesizer = (*YandexTTSClient)(nil)

func GetDefaultSynthesisOptions() SynthesisOptions {
	return SynthesisOptions{
		Voice:  "marina",
		Speed:  1.0,
		Volume: 0.0,
		Model:  "general",
	}
}

func NewYandexTTSClient(config YandexConfig, logger *slog.Logger) (*YandexTTSClient, error) {
	if config.ApiKey == "" {
		return nil, fmt.Errorf("yandex tts: api key is required")
	}

	creds := credentials.NewTLS(&tls.Config{})

	conn, err := grpc.NewClient(YandexTTSEndpoint, grpc.WithTransportCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to TTS service: %w", err)
	}

	c := newYandexTTSClient(ttsv3.NewSynthesizerClient(conn), config, logger)
	c.conn = conn
	return c, nil
}

func newYandexTTSClient(client utteranceClient, config YandexConfig, logger *slog.Logger) *YandexTTSClient {
	if logger == nil {
		logger = slog.Default()
	}
	options := config.Options
	if options == (SynthesisOptions{}) {
		options = GetDefaultSynthesisOptions()
	}
	return &YandexTTSClient{
		client:   client,
		apiKey:   config.ApiKey,
		folderID: config.FolderID,
		options:  options,
		logger:   logger.With("component", "tts.yandex"),
	}
}

// Synthesize collects the whole utterance stream into one WAV blob.
func (c *YandexTTSClient) Synthesize(ctx context.Context, text string) ([]byte, error) {
	ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Api-Key "+c.apiKey)
	if c.folderID != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "x-folder-id", c.folderID)
	}

	stream, err := c.client.UtteranceSynthesis(ctx, c.buildRequest(text))
	if err != nil {
		return nil, fmt.Errorf("failed to start synthesis: %w", err)
	}

	var blob bytes.Buffer
	chunks := 0
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to receive audio data: %w", err)
		}

		if audioChunk := resp.GetAudioChunk(); audioChunk != nil {
			blob.Write(audioChunk.GetData())
			chunks++
		}
	}

	if blob.Len() == 0 {
		return nil, fmt.Errorf("yandex tts: %w", errEmptySynthesis)
	}

	c.logger.Debug("announcement synthesized", "chunks", chunks, "bytes", blob.Len())
	return blob.Bytes(), nil
}

func (c *YandexTTSClient) buildRequest(text string) *ttsv3.UtteranceSynthesisRequest {
	req := &ttsv3.UtteranceSynthesisRequest{}
	req.SetModel(c.options.Model)
	req.SetText(text)

	voiceHint := &ttsv3.Hints{}
	voiceHint.SetVoice(c.options.Voice)

	speedHint := &ttsv3.Hints{}
	speedHint.SetSpeed(c.options.Speed)

	volumeHint := &ttsv3.Hints{}
	volumeHint.SetVolume(c.options.Volume)

	req.SetHints([]*ttsv3.Hints{voiceHint, speedHint, volumeHint})

	// The player recognizes RIFF blobs and decodes them as WAV.
	containerAudio := &ttsv3.ContainerAudio{}
	containerAudio.SetContainerAudioType(ttsv3.ContainerAudio_WAV)

	audioSpec := &ttsv3.AudioFormatOptions{}
	audioSpec.SetContainerAudio(containerAudio)
	req.SetOutputAudioSpec(audioSpec)

	req.SetLoudnessNormalizationType(ttsv3.UtteranceSynthesisRequest_LUFS)

	return req
}

func (c *YandexTTSClient) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
