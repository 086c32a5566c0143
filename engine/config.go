package engine

import (
	"time"

	"github.com/d1nch8g/aiwine/vad"
)

// State is the system state exposed to the UI.
type State int

const (
	Locked State = iota
	Armed
	Session
)

func (s State) String() string {
	switch s {
	case Locked:
		return "LOCKED"
	case Armed:
		return "ARMED"
	case Session:
		return "SESSION"
	default:
		return "UNKNOWN"
	}
}

// Config holds session timing and announcements.
type Config struct {
	// SettleDelay precedes every listen so playback echo has died down.
	SettleDelay time.Duration
	// RetryDelay follows a turn without speech.
	RetryDelay time.Duration
	// Cooldown follows a completed reply.
	Cooldown time.Duration
	// GreetingPause follows the greeting.
	GreetingPause time.Duration

	// NoSpeechLimit consecutive turns without speech end the session.
	NoSpeechLimit int
	// MaxHistorySize bounds History.
	MaxHistorySize int

	Greeting string
	Farewell string

	Listen vad.Config
}

func GetDefaultConfig() Config {
	return Config{
		SettleDelay:    300 * time.Millisecond,
		RetryDelay:     1000 * time.Millisecond,
		Cooldown:       1200 * time.Millisecond,
		GreetingPause:  1500 * time.Millisecond,
		NoSpeechLimit:  2,
		MaxHistorySize: 10,
		Greeting:       "歡迎光臨 AI 紅酒櫃，請問需要什麼協助？",
		Farewell:       "謝謝光臨，有需要可以再叫我",
		Listen:         vad.GetDefaultConfig(),
	}
}
