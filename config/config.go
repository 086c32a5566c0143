package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/d1nch8g/aiwine/audio"
	"github.com/d1nch8g/aiwine/engine"
	"github.com/d1nch8g/aiwine/transport"
	"github.com/d1nch8g/aiwine/tts"
)

// Environment variables read by LoadConfig.
const (
	EnvBackendURL     = "VOICE_BACKEND_URL"
	EnvAudioBackend   = "AUDIO_BACKEND"
	EnvAnnouncer      = "ANNOUNCER"
	EnvYandexAPIKey   = "YANDEX_API_KEY"
	EnvYandexFolderID = "YANDEX_FOLDER_ID"
	EnvLogLevel       = "LOG_LEVEL"
	EnvConfigFile     = "VOICE_CONFIG"
	EnvOutputFrames   = "OUTPUT_FRAMES_PER_BUFFER"
)

type Config struct {
	LogLevel  string
	Announcer string

	Audio     audio.Config
	Transport transport.Config
	Engine    engine.Config
	Yandex    tts.YandexConfig

	// OutputFramesPerBuffer sizes the playback device buffer.
	OutputFramesPerBuffer int
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		LogLevel:              "info",
		Announcer:             tts.AnnouncerBackend,
		Audio:                 audio.GetDefaultConfig(),
		Transport:             transport.GetDefaultConfig(),
		Engine:                engine.GetDefaultConfig(),
		Yandex:                tts.YandexConfig{Options: tts.GetDefaultSynthesisOptions()},
		OutputFramesPerBuffer: 1024,
	}
}

// LoadConfig reads an optional .env file, the YAML file named by
// VOICE_CONFIG and then the environment. Later sources win.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	cfg := Default()

	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := cfg.ApplyFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	// Capture and segmentation share one clock.
	cfg.Engine.Listen.SampleRate = cfg.Audio.SampleRate

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Transport.BaseURL, EnvBackendURL)
	setString(&c.Audio.Backend, EnvAudioBackend)
	setString(&c.Announcer, EnvAnnouncer)
	setString(&c.Yandex.ApiKey, EnvYandexAPIKey)
	setString(&c.Yandex.FolderID, EnvYandexFolderID)
	setString(&c.LogLevel, EnvLogLevel)

	if v := os.Getenv(EnvOutputFrames); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", EnvOutputFrames, err)
		}
		c.OutputFramesPerBuffer = n
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Validate checks that c contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func (c *Config) Validate() error {
	var errs []error

	if err := c.Audio.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("audio: %w", err))
	}
	switch c.Audio.Backend {
	case audio.BackendPortaudio, audio.BackendMock:
	default:
		errs = append(errs, fmt.Errorf("audio backend %q is invalid; valid values: portaudio, mock", c.Audio.Backend))
	}

	switch c.Announcer {
	case tts.AnnouncerBackend:
	case tts.AnnouncerYandex:
		if c.Yandex.ApiKey == "" {
			errs = append(errs, fmt.Errorf("announcer yandex requires %s", EnvYandexAPIKey))
		}
	default:
		errs = append(errs, fmt.Errorf("announcer %q is invalid; valid values: backend, yandex", c.Announcer))
	}

	if c.Transport.BaseURL == "" {
		errs = append(errs, fmt.Errorf("backend url is required"))
	}

	listen := c.Engine.Listen
	if listen.SpeechThreshold <= 0 || listen.SpeechThreshold >= 1 {
		errs = append(errs, fmt.Errorf("speech_threshold %.4f is out of range (0, 1)", listen.SpeechThreshold))
	}
	if listen.SilenceTimeout <= 0 {
		errs = append(errs, fmt.Errorf("silence_timeout must be positive"))
	}
	if listen.MaxDuration <= 0 {
		errs = append(errs, fmt.Errorf("max_duration must be positive"))
	}
	if c.Engine.NoSpeechLimit < 1 {
		errs = append(errs, fmt.Errorf("no_speech_limit must be at least 1, got %d", c.Engine.NoSpeechLimit))
	}
	for _, d := range []struct {
		name  string
		value time.Duration
	}{
		{"settle_delay", c.Engine.SettleDelay},
		{"retry_delay", c.Engine.RetryDelay},
		{"cooldown", c.Engine.Cooldown},
		{"greeting_pause", c.Engine.GreetingPause},
	} {
		if d.value < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative", d.name))
		}
	}
	if c.OutputFramesPerBuffer <= 0 {
		errs = append(errs, fmt.Errorf("output frames per buffer must be positive, got %d", c.OutputFramesPerBuffer))
	}

	return errors.Join(errs...)
}
