package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/d1nch8g/aiwine/engine"
)

// shell is the terminal UI. The keyboard puts the terminal in raw mode, so
// every line ends in CRLF.
type shell struct {
	mu  sync.Mutex
	out io.Writer
	now func() time.Time
}

var _ engine.UI = (*shell)(nil)

func newShell(out io.Writer) *shell {
	return &shell{out: out, now: time.Now}
}

func (s *shell) Status(text string) {
	s.printf("[%s] %s", s.now().Format("15:04:05"), text)
}

func (s *shell) Transcript(speaker, text string) {
	label := speaker
	switch speaker {
	case engine.SpeakerUser:
		label = "You"
	case engine.SpeakerAssistant:
		label = "AI"
	}
	s.printf("%s: %s", label, text)
}

// Hint prints an instruction that is not a status change.
func (s *shell) Hint(text string) {
	s.printf("  %s", text)
}

func (s *shell) printf(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	line = strings.ReplaceAll(line, "\r\n", "\n")
	line = strings.ReplaceAll(line, "\n", "\r\n")

	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprint(s.out, line+"\r\n")
}
