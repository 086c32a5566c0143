package tts

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	ttsv3 "github.com/yandex-cloud/go-genproto/yandex/cloud/ai/tts/v3"
)

type fakeStream struct {
	grpc.ClientStream
	chunks [][]byte
	err    error
}

func (s *fakeStream) Recv() (*ttsv3.UtteranceSynthesisResponse, error) {
	if len(s.chunks) == 0 {
		if s.err != nil {
			return nil, s.err
		}
		return nil, io.EOF
	}
	chunk := &ttsv3.AudioChunk{}
	chunk.SetData(s.chunks[0])
	s.chunks = s.chunks[1:]

	resp := &ttsv3.UtteranceSynthesisResponse{}
	resp.SetAudioChunk(chunk)
	return resp, nil
}

type fakeClient struct {
	stream   *fakeStream
	startErr error

	req *ttsv3.UtteranceSynthesisRequest
	md  metadata.MD
}

func (f *fakeClient) UtteranceSynthesis(ctx context.Context, in *ttsv3.UtteranceSynthesisRequest, _ ...grpc.CallOption) (ttsv3.Synthesizer_UtteranceSynthesisClient, error) {
	f.req = in
	f.md, _ = metadata.FromOutgoingContext(ctx)
	if f.startErr != nil {
		return nil, f.startErr
	}
	return f.stream, nil
}

func TestYandexSynthesize_CollectsChunks(t *testing.T) {
	fake := &fakeClient{stream: &fakeStream{chunks: [][]byte{[]byte("RIFF"), []byte("....WAVE"), []byte("data")}}}
	c := newYandexTTSClient(fake, YandexConfig{ApiKey: "secret", FolderID: "b1g"}, nil)

	blob, err := c.Synthesize(context.Background(), "Hello there")
	require.NoError(t, err)
	assert.Equal(t, "RIFF....WAVEdata", string(blob))

	require.NotNil(t, fake.req)
	assert.Equal(t, "Hello there", fake.req.GetText())
	assert.Equal(t, "general", fake.req.GetModel())
	assert.Equal(t, ttsv3.ContainerAudio_WAV, fake.req.GetOutputAudioSpec().GetContainerAudio().GetContainerAudioType())
	require.Len(t, fake.req.GetHints(), 3)
	assert.Equal(t, "marina", fake.req.GetHints()[0].GetVoice())

	assert.Equal(t, []string{"Api-Key secret"}, fake.md.Get("authorization"))
	assert.Equal(t, []string{"b1g"}, fake.md.Get("x-folder-id"))
}

func TestYandexSynthesize_CustomOptions(t *testing.T) {
	fake := &fakeClient{stream: &fakeStream{chunks: [][]byte{[]byte("x")}}}
	c := newYandexTTSClient(fake, YandexConfig{
		ApiKey:  "k",
		Options: SynthesisOptions{Voice: "alena", Speed: 1.2, Model: "general"},
	}, nil)

	_, err := c.Synthesize(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "alena", fake.req.GetHints()[0].GetVoice())
	assert.InDelta(t, 1.2, fake.req.GetHints()[1].GetSpeed(), 1e-9)
	assert.Empty(t, fake.md.Get("x-folder-id"))
}

func TestYandexSynthesize_Errors(t *testing.T) {
	t.Run("start", func(t *testing.T) {
		fake := &fakeClient{startErr: errors.New("unavailable")}
		c := newYandexTTSClient(fake, YandexConfig{ApiKey: "k"}, nil)

		_, err := c.Synthesize(context.Background(), "hi")
		assert.ErrorContains(t, err, "failed to start synthesis")
	})

	t.Run("receive", func(t *testing.T) {
		fake := &fakeClient{stream: &fakeStream{chunks: [][]byte{[]byte("a")}, err: errors.New("reset")}}
		c := newYandexTTSClient(fake, YandexConfig{ApiKey: "k"}, nil)

		_, err := c.Synthesize(context.Background(), "hi")
		assert.ErrorContains(t, err, "failed to receive audio data")
	})

	t.Run("empty", func(t *testing.T) {
		fake := &fakeClient{stream: &fakeStream{}}
		c := newYandexTTSClient(fake, YandexConfig{ApiKey: "k"}, nil)

		_, err := c.Synthesize(context.Background(), "hi")
		assert.ErrorIs(t, err, errEmptySynthesis)
	})
}

func TestNewYandexTTSClient_RequiresKey(t *testing.T) {
	_, err := NewYandexTTSClient(YandexConfig{}, nil)
	assert.Error(t, err)
}

func TestYandexClose_WithoutConnection(t *testing.T) {
	c := newYandexTTSClient(&fakeClient{}, YandexConfig{ApiKey: "k"}, nil)
	assert.NoError(t, c.Close())
}
