package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/d1nch8g/aiwine/audio"
	"github.com/d1nch8g/aiwine/sound"
	"github.com/d1nch8g/aiwine/transport"
	"github.com/d1nch8g/aiwine/vad"
	"github.com/d1nch8g/aiwine/wav"
)

var (
	// ErrNotArmed is returned by Begin unless the engine is armed.
	ErrNotArmed = errors.New("engine: not armed")
	// ErrSessionActive is returned by Begin while a session is running.
	ErrSessionActive = errors.New("engine: session already active")
)

// Speaker labels passed to UI.Transcript.
const (
	SpeakerUser      = "user"
	SpeakerAssistant = "assistant"
)

// Status texts shown on phase transitions.
const (
	StatusLocked            = "not started"
	StatusArmed             = "standby: press Enter to start"
	StatusStarting          = "starting"
	StatusListening         = "listening"
	StatusRetry             = "no speech heard, please try again"
	StatusFarewell          = "ending session"
	StatusThinking          = "thinking"
	StatusWaiting           = "waiting"
	StatusDeviceUnavailable = "microphone unavailable"
)

// UI receives everything the engine wants to show.
type UI interface {
	Status(text string)
	Transcript(speaker, text string)
}

// Transport uploads an utterance and returns the reply.
type Transport interface {
	Send(ctx context.Context, wavData []byte) (*transport.Reply, error)
}

// Announcer synthesizes the greeting and farewell.
type Announcer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Player renders announcements and streamed replies.
type Player interface {
	PlayAudio(ctx context.Context, blob []byte) error
	PlayStream(ctx context.Context, src sound.ChunkSource) (int, error)
}

// Turn is one completed exchange with the backend.
type Turn struct {
	SessionID string
	Utterance time.Duration
	UserText  string
	ReplyText string
	Chunks    int
	Timestamp time.Time
}

// Engine sequences capture, upload and playback across a conversation.
type Engine struct {
	config    Config
	source    audio.Source
	transport Transport
	announcer Announcer
	player    Player
	ui        UI
	logger    *slog.Logger

	state      State
	stateMutex sync.RWMutex

	history      []Turn
	historyMutex sync.RWMutex
}

// NewEngine creates an engine in the Locked state.
func NewEngine(
	config Config,
	source audio.Source,
	transport Transport,
	announcer Announcer,
	player Player,
	ui UI,
	logger *slog.Logger,
) *Engine {
	if config.MaxHistorySize == 0 {
		config.MaxHistorySize = 10
	}
	if config.NoSpeechLimit <= 0 {
		config.NoSpeechLimit = 2
	}
	if config.Listen.SampleRate == 0 {
		config.Listen = vad.GetDefaultConfig()
	}
	if ui == nil {
		ui = nopUI{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		config:    config,
		source:    source,
		transport: transport,
		announcer: announcer,
		player:    player,
		ui:        ui,
		logger:    logger.With("component", "engine"),
		state:     Locked,
		history:   make([]Turn, 0),
	}
}

// State returns the current system state.
func (e *Engine) State() State {
	e.stateMutex.RLock()
	defer e.stateMutex.RUnlock()
	return e.state
}

// Arm moves a locked engine to Armed. It reports whether anything changed.
func (e *Engine) Arm() bool {
	e.stateMutex.Lock()
	if e.state != Locked {
		e.stateMutex.Unlock()
		return false
	}
	e.state = Armed
	e.stateMutex.Unlock()

	e.logger.Info("engine armed")
	e.ui.Status(StatusArmed)
	return true
}

// Begin runs one session and blocks until it ends. Whatever way the session
// ends, the engine is left Armed.
//
// The returned error is nil after the farewell, the device error when the
// microphone could not be opened, or ctx.Err() when ctx was cancelled.
func (e *Engine) Begin(ctx context.Context) error {
	e.stateMutex.Lock()
	switch e.state {
	case Locked:
		e.stateMutex.Unlock()
		return ErrNotArmed
	case Session:
		e.stateMutex.Unlock()
		return ErrSessionActive
	}
	e.state = Session
	e.stateMutex.Unlock()

	sessionID := uuid.NewString()
	logger := e.logger.With("session_id", sessionID)
	logger.Info("session started")

	defer func() {
		e.stateMutex.Lock()
		e.state = Armed
		e.stateMutex.Unlock()
		e.ui.Status(StatusArmed)
	}()

	err := e.runSession(ctx, sessionID, logger)
	if err != nil {
		logger.Info("session ended", "error", err)
	} else {
		logger.Info("session ended")
	}
	return err
}

func (e *Engine) runSession(ctx context.Context, sessionID string, logger *slog.Logger) error {
	e.ui.Status(StatusStarting)
	if err := e.announce(ctx, logger, e.config.Greeting); err != nil {
		return err
	}
	if err := sleep(ctx, e.config.GreetingPause); err != nil {
		return err
	}

	strikes := 0
	for {
		e.ui.Status(StatusListening)
		if err := sleep(ctx, e.config.SettleDelay); err != nil {
			return err
		}

		result, err := vad.Listen(ctx, e.source, e.config.Listen, logger)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			logger.Error("capture failed", "error", err)
			e.ui.Status(StatusDeviceUnavailable)
			return err
		}

		if !result.HasSpeech() {
			strikes++
			logger.Info("no speech detected", "strikes", strikes)
			if strikes < e.config.NoSpeechLimit {
				e.ui.Status(StatusRetry)
				if err := sleep(ctx, e.config.RetryDelay); err != nil {
					return err
				}
				continue
			}

			e.ui.Status(StatusFarewell)
			return e.announce(ctx, logger, e.config.Farewell)
		}

		strikes = 0
		e.ui.Status(StatusThinking)

		err = e.converse(ctx, sessionID, logger, result)
		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case err != nil:
			logger.Warn("turn aborted", "error", err)
			e.ui.Status(fmt.Sprintf("request failed: %v", err))
		default:
			e.ui.Status(StatusWaiting)
		}

		if err := sleep(ctx, e.config.Cooldown); err != nil {
			return err
		}
	}
}

// converse uploads one utterance, surfaces the texts and plays the reply.
// Only transport errors and ctx errors are returned; a reply that cannot be
// played still counts as a completed turn.
func (e *Engine) converse(ctx context.Context, sessionID string, logger *slog.Logger, result vad.Result) error {
	wavData := wav.Encode(result.Utterance, e.config.Listen.SampleRate)
	logger.Debug("sending utterance", "elapsed_ms", result.Elapsed.Milliseconds(), "bytes", len(wavData))

	reply, err := e.transport.Send(ctx, wavData)
	if err != nil {
		return fmt.Errorf("send utterance: %w", err)
	}
	defer reply.Audio.Close()

	if reply.UserText != "" {
		e.ui.Transcript(SpeakerUser, reply.UserText)
	}
	if reply.ReplyText != "" {
		e.ui.Transcript(SpeakerAssistant, reply.ReplyText)
	}

	chunks, err := e.player.PlayStream(ctx, reply.Audio)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		logger.Warn("reply not played", "chunks", chunks, "error", err)
	}

	e.addToHistory(Turn{
		SessionID: sessionID,
		Utterance: result.Elapsed,
		UserText:  reply.UserText,
		ReplyText: reply.ReplyText,
		Chunks:    chunks,
		Timestamp: time.Now(),
	})
	return nil
}

// announce synthesizes and plays text. Synthesis failures are shown and
// otherwise ignored; only ctx errors are returned.
func (e *Engine) announce(ctx context.Context, logger *slog.Logger, text string) error {
	if text == "" {
		return nil
	}

	blob, err := e.announcer.Synthesize(ctx, text)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		logger.Warn("announcement synthesis failed", "error", err)
		e.ui.Status(fmt.Sprintf("announcement failed: %v", err))
		return nil
	}

	return e.player.PlayAudio(ctx, blob)
}

// addToHistory adds a turn to the history
func (e *Engine) addToHistory(turn Turn) {
	e.historyMutex.Lock()
	defer e.historyMutex.Unlock()

	e.history = append(e.history, turn)

	// Trim history if it exceeds max size
	if len(e.history) > e.config.MaxHistorySize {
		e.history = e.history[len(e.history)-e.config.MaxHistorySize:]
	}
}

// History returns a copy of the most recent turns, oldest first.
func (e *Engine) History() []Turn {
	e.historyMutex.RLock()
	defer e.historyMutex.RUnlock()

	history := make([]Turn, len(e.history))
	copy(history, e.history)
	return history
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type nopUI struct{}

func (nopUI) Status(string)             {}
func (nopUI) Transcript(string, string) {}
