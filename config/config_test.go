package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d1nch8g/aiwine/audio"
	"github.com/d1nch8g/aiwine/tts"
)

var allEnv = []string{
	EnvBackendURL, EnvAudioBackend, EnvAnnouncer, EnvYandexAPIKey,
	EnvYandexFolderID, EnvLogLevel, EnvConfigFile, EnvOutputFrames,
}

// isolate runs the test in an empty directory with none of our variables set.
func isolate(t *testing.T) string {
	t.Helper()
	for _, key := range allEnv {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestLoadConfig_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8000", cfg.Transport.BaseURL)
	assert.Equal(t, audio.BackendPortaudio, cfg.Audio.Backend)
	assert.Equal(t, 16000, cfg.Audio.SampleRate)
	assert.Equal(t, 4096, cfg.Audio.FrameSize)
	assert.Equal(t, tts.AnnouncerBackend, cfg.Announcer)

	assert.InDelta(t, 0.015, cfg.Engine.Listen.SpeechThreshold, 1e-12)
	assert.Equal(t, 1200*time.Millisecond, cfg.Engine.Listen.SilenceTimeout)
	assert.Equal(t, 6000*time.Millisecond, cfg.Engine.Listen.MaxDuration)
	assert.Equal(t, 16000, cfg.Engine.Listen.SampleRate)

	assert.Equal(t, 300*time.Millisecond, cfg.Engine.SettleDelay)
	assert.Equal(t, 1000*time.Millisecond, cfg.Engine.RetryDelay)
	assert.Equal(t, 1200*time.Millisecond, cfg.Engine.Cooldown)
	assert.Equal(t, 1500*time.Millisecond, cfg.Engine.GreetingPause)
	assert.Equal(t, 2, cfg.Engine.NoSpeechLimit)
	assert.NotEmpty(t, cfg.Engine.Greeting)
	assert.NotEmpty(t, cfg.Engine.Farewell)
}

func TestLoadConfig_Environment(t *testing.T) {
	isolate(t)
	t.Setenv(EnvBackendURL, "http://wine.local:9000")
	t.Setenv(EnvAudioBackend, "mock")
	t.Setenv(EnvAnnouncer, "yandex")
	t.Setenv(EnvYandexAPIKey, "key")
	t.Setenv(EnvYandexFolderID, "folder")
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvOutputFrames, "512")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "http://wine.local:9000", cfg.Transport.BaseURL)
	assert.Equal(t, audio.BackendMock, cfg.Audio.Backend)
	assert.Equal(t, tts.AnnouncerYandex, cfg.Announcer)
	assert.Equal(t, "key", cfg.Yandex.ApiKey)
	assert.Equal(t, "folder", cfg.Yandex.FolderID)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 512, cfg.OutputFramesPerBuffer)
}

func TestLoadConfig_DotEnv(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("AUDIO_BACKEND=mock\nVOICE_BACKEND_URL=http://from-dotenv\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv(EnvAudioBackend)
		os.Unsetenv(EnvBackendURL)
	})

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, audio.BackendMock, cfg.Audio.Backend)
	assert.Equal(t, "http://from-dotenv", cfg.Transport.BaseURL)
}

func TestLoadConfig_YAMLOverlay(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "voice.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
backend:
  url: http://from-file
audio:
  sample_rate: 22050
  frame_size: 2048
vad:
  speech_threshold: 0.02
  silence_timeout: 900ms
session:
  cooldown: 2s
  no_speech_limit: 3
  greeting: Hello
announcer:
  voice: alena
`), 0o600))
	t.Setenv(EnvConfigFile, path)
	t.Setenv(EnvBackendURL, "http://from-env")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	// The environment wins over the file.
	assert.Equal(t, "http://from-env", cfg.Transport.BaseURL)

	assert.Equal(t, 22050, cfg.Audio.SampleRate)
	assert.Equal(t, 22050, cfg.Engine.Listen.SampleRate)
	assert.Equal(t, 2048, cfg.Audio.FrameSize)
	assert.InDelta(t, 0.02, cfg.Engine.Listen.SpeechThreshold, 1e-12)
	assert.Equal(t, 900*time.Millisecond, cfg.Engine.Listen.SilenceTimeout)
	assert.Equal(t, 6000*time.Millisecond, cfg.Engine.Listen.MaxDuration)
	assert.Equal(t, 2*time.Second, cfg.Engine.Cooldown)
	assert.Equal(t, 300*time.Millisecond, cfg.Engine.SettleDelay)
	assert.Equal(t, 3, cfg.Engine.NoSpeechLimit)
	assert.Equal(t, "Hello", cfg.Engine.Greeting)
	assert.Equal(t, "alena", cfg.Yandex.Options.Voice)
	assert.Equal(t, "general", cfg.Yandex.Options.Model)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	isolate(t)
	t.Setenv(EnvConfigFile, "/nonexistent/voice.yaml")

	_, err := LoadConfig()
	assert.ErrorContains(t, err, "open")
}

func TestApplyYAML_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"unknown key", "vad:\n  threshold: 0.1\n", "threshold"},
		{"bad duration", "vad:\n  max_duration: soon\n", "vad.max_duration"},
		{"bad session duration", "session:\n  retry_delay: 10 parsecs\n", "session.retry_delay"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Default().ApplyYAML(strings.NewReader(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestApplyYAML_Empty(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.ApplyYAML(strings.NewReader("")))
	assert.Equal(t, Default(), cfg)
}

func TestValidate(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		assert.NoError(t, Default().Validate())
	})

	t.Run("yandex needs key", func(t *testing.T) {
		cfg := Default()
		cfg.Announcer = tts.AnnouncerYandex
		assert.ErrorContains(t, cfg.Validate(), EnvYandexAPIKey)
	})

	t.Run("all failures reported", func(t *testing.T) {
		cfg := Default()
		cfg.Audio.Backend = "alsa"
		cfg.Announcer = "espeak"
		cfg.Engine.NoSpeechLimit = 0
		cfg.Engine.Cooldown = -time.Second

		err := cfg.Validate()
		require.Error(t, err)
		for _, want := range []string{"alsa", "espeak", "no_speech_limit", "cooldown"} {
			assert.Contains(t, err.Error(), want)
		}
	})
}
