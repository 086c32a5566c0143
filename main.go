package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/eiannone/keyboard"

	"github.com/d1nch8g/aiwine/audio"
	"github.com/d1nch8g/aiwine/config"
	"github.com/d1nch8g/aiwine/engine"
	"github.com/d1nch8g/aiwine/log"
	"github.com/d1nch8g/aiwine/sound"
	"github.com/d1nch8g/aiwine/transport"
	"github.com/d1nch8g/aiwine/tts"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log.Init(cfg.LogLevel)
	logger := log.L()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		log.Error("voice client stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	source, err := audio.NewSource(cfg.Audio, logger)
	if err != nil {
		return fmt.Errorf("failed to create audio source: %w", err)
	}

	output, err := sound.NewOutput(cfg.Audio.Backend, cfg.OutputFramesPerBuffer, logger)
	if err != nil {
		return fmt.Errorf("failed to create audio output: %w", err)
	}
	player := sound.NewPlayer(output, logger)

	client := transport.NewClient(cfg.Transport, logger)
	defer client.Close()

	announcer, err := newAnnouncer(cfg, client, logger)
	if err != nil {
		return fmt.Errorf("failed to create announcer: %w", err)
	}
	defer announcer.Close()

	ui := newShell(os.Stdout)
	eng := engine.NewEngine(cfg.Engine, source, client, announcer, player, ui, logger)

	logger.Info("voice client ready",
		"backend", cfg.Transport.BaseURL,
		"audio", cfg.Audio.Backend,
		"announcer", cfg.Announcer,
	)
	return ui.Run(ctx, eng, logger)
}

// newAnnouncer picks who synthesizes the greeting and farewell.
func newAnnouncer(cfg *config.Config, client *transport.Client, logger *slog.Logger) (tts.Synthesizer, error) {
	switch cfg.Announcer {
	case tts.AnnouncerYandex:
		return tts.NewYandexTTSClient(cfg.Yandex, logger)
	case tts.AnnouncerBackend, "":
		return client, nil
	default:
		return nil, fmt.Errorf("unsupported announcer: %s", cfg.Announcer)
	}
}

// Run reads key presses until Esc, Ctrl-C or ctx is done: "a" arms the
// engine and Enter begins a session. A running session is cancelled and
// waited for before Run returns.
func (s *shell) Run(ctx context.Context, eng *engine.Engine, logger *slog.Logger) error {
	if err := keyboard.Open(); err != nil {
		return fmt.Errorf("failed to open keyboard: %w", err)
	}
	defer keyboard.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	keys := make(chan keyPress)
	go readKeys(ctx, keys)

	var sessions sync.WaitGroup
	defer sessions.Wait()

	s.Status(engine.StatusLocked)
	s.Hint("press a to arm, Enter to start, Esc to quit")

	for {
		select {
		case <-ctx.Done():
			return nil

		case k := <-keys:
			if k.err != nil {
				logger.Warn("keyboard read failed", "error", k.err)
				continue
			}

			switch {
			case k.key == keyboard.KeyEsc || k.key == keyboard.KeyCtrlC:
				s.Hint("exiting")
				cancel()
				return nil

			case k.char == 'a' || k.char == 'A':
				if !eng.Arm() {
					logger.Debug("arm ignored", "state", eng.State())
				}

			case k.key == keyboard.KeyEnter:
				if eng.State() != engine.Armed {
					logger.Debug("begin ignored", "state", eng.State())
					continue
				}
				sessions.Add(1)
				go func() {
					defer sessions.Done()
					err := eng.Begin(ctx)
					switch {
					case err == nil, errors.Is(err, context.Canceled):
					case errors.Is(err, engine.ErrSessionActive), errors.Is(err, engine.ErrNotArmed):
						logger.Debug("begin rejected", "error", err)
					default:
						logger.Error("session failed", "error", err)
					}
				}()
			}
		}
	}
}

type keyPress struct {
	char rune
	key  keyboard.Key
	err  error
}

func readKeys(ctx context.Context, out chan<- keyPress) {
	for {
		char, key, err := keyboard.GetKey()
		select {
		case out <- keyPress{char: char, key: key, err: err}:
		case <-ctx.Done():
			return
		}
	}
}
