package config

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig is the YAML tuning overlay. Absent keys keep their current
// value. Durations are Go duration strings such as "1200ms".
type fileConfig struct {
	Backend *struct {
		URL       *string `yaml:"url"`
		ChunkSize *int    `yaml:"chunk_size"`
	} `yaml:"backend"`

	Audio *struct {
		Backend          *string `yaml:"backend"`
		SampleRate       *int    `yaml:"sample_rate"`
		FrameSize        *int    `yaml:"frame_size"`
		OutputFrameCount *int    `yaml:"output_frames_per_buffer"`
	} `yaml:"audio"`

	VAD *struct {
		SpeechThreshold *float64 `yaml:"speech_threshold"`
		SilenceTimeout  *string  `yaml:"silence_timeout"`
		MaxDuration     *string  `yaml:"max_duration"`
	} `yaml:"vad"`

	Session *struct {
		SettleDelay    *string `yaml:"settle_delay"`
		RetryDelay     *string `yaml:"retry_delay"`
		Cooldown       *string `yaml:"cooldown"`
		GreetingPause  *string `yaml:"greeting_pause"`
		NoSpeechLimit  *int    `yaml:"no_speech_limit"`
		MaxHistorySize *int    `yaml:"max_history"`
		Greeting       *string `yaml:"greeting"`
		Farewell       *string `yaml:"farewell"`
	} `yaml:"session"`

	Announcer *struct {
		Name   *string  `yaml:"name"`
		Voice  *string  `yaml:"voice"`
		Speed  *float64 `yaml:"speed"`
		Volume *float64 `yaml:"volume"`
		Model  *string  `yaml:"model"`
	} `yaml:"announcer"`

	LogLevel *string `yaml:"log_level"`
}

// ApplyFile overlays the YAML file at path onto c.
func (c *Config) ApplyFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	if err := c.ApplyYAML(f); err != nil {
		return fmt.Errorf("config: parse %q: %w", path, err)
	}
	return nil
}

// ApplyYAML overlays a YAML document onto c. Unknown keys are rejected.
func (c *Config) ApplyYAML(r io.Reader) error {
	var fc fileConfig
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil && err != io.EOF {
		return fmt.Errorf("decode yaml: %w", err)
	}

	if b := fc.Backend; b != nil {
		set(&c.Transport.BaseURL, b.URL)
		set(&c.Transport.ChunkSize, b.ChunkSize)
	}

	if a := fc.Audio; a != nil {
		set(&c.Audio.Backend, a.Backend)
		set(&c.Audio.SampleRate, a.SampleRate)
		set(&c.Audio.FrameSize, a.FrameSize)
		set(&c.OutputFramesPerBuffer, a.OutputFrameCount)
	}

	if v := fc.VAD; v != nil {
		set(&c.Engine.Listen.SpeechThreshold, v.SpeechThreshold)
		if err := setDuration(&c.Engine.Listen.SilenceTimeout, "vad.silence_timeout", v.SilenceTimeout); err != nil {
			return err
		}
		if err := setDuration(&c.Engine.Listen.MaxDuration, "vad.max_duration", v.MaxDuration); err != nil {
			return err
		}
	}

	if s := fc.Session; s != nil {
		for _, d := range []struct {
			dst  *time.Duration
			name string
			val  *string
		}{
			{&c.Engine.SettleDelay, "session.settle_delay", s.SettleDelay},
			{&c.Engine.RetryDelay, "session.retry_delay", s.RetryDelay},
			{&c.Engine.Cooldown, "session.cooldown", s.Cooldown},
			{&c.Engine.GreetingPause, "session.greeting_pause", s.GreetingPause},
		} {
			if err := setDuration(d.dst, d.name, d.val); err != nil {
				return err
			}
		}
		set(&c.Engine.NoSpeechLimit, s.NoSpeechLimit)
		set(&c.Engine.MaxHistorySize, s.MaxHistorySize)
		set(&c.Engine.Greeting, s.Greeting)
		set(&c.Engine.Farewell, s.Farewell)
	}

	if a := fc.Announcer; a != nil {
		set(&c.Announcer, a.Name)
		set(&c.Yandex.Options.Voice, a.Voice)
		set(&c.Yandex.Options.Speed, a.Speed)
		set(&c.Yandex.Options.Volume, a.Volume)
		set(&c.Yandex.Options.Model, a.Model)
	}

	set(&c.LogLevel, fc.LogLevel)
	return nil
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, name string, v *string) error {
	if v == nil {
		return nil
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = d
	return nil
}
