package tui

import (
	"sync"

	"edubot/internal/widget"
)

// Screen is the widget.View behind the terminal UI. The controller writes to
// it from any goroutine; the bubbletea model reads it on every change signal.
type Screen struct {
	*widget.Transcript

	mu         sync.Mutex
	clearInput bool
	followTail bool
	changed    chan struct{}
}

var _ widget.View = (*Screen)(nil)

func NewScreen() *Screen {
	s := &Screen{
		Transcript: widget.NewTranscript(),
		changed:    make(chan struct{}, 1),
	}
	s.Transcript.OnChange(s.signal)
	return s
}

func (s *Screen) ClearInput() {
	s.mu.Lock()
	s.clearInput = true
	s.mu.Unlock()
	s.Transcript.ClearInput()
}

func (s *Screen) ScrollToBottom() {
	s.mu.Lock()
	s.followTail = true
	s.mu.Unlock()
	s.Transcript.ScrollToBottom()
}

// Changed fires at least once after any number of mutations.
func (s *Screen) Changed() <-chan struct{} {
	return s.changed
}

// takeRequests returns and resets the pending clear-input and scroll requests.
func (s *Screen) takeRequests() (clearInput, scroll bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	clearInput, scroll = s.clearInput, s.followTail
	s.clearInput, s.followTail = false, false
	return clearInput, scroll
}

func (s *Screen) signal() {
	select {
	case s.changed <- struct{}{}:
	default:
	}
}
