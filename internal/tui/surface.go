package tui

import (
	"sync"

	"atlas-widget/internal/widget"
)

// surface holds the element state the controller mutates. The bubbletea
// model reads it back on every update; mutations coming from request
// goroutines nudge the program to repaint through notify.
type surface struct {
	mu       sync.Mutex
	open     bool
	typing   bool
	messages []widget.Message
	clear    bool
	focus    bool
	scroll   bool
	notify   func()
}

type surfaceState struct {
	open     bool
	typing   bool
	messages []widget.Message
	clear    bool
	focus    bool
	scroll   bool
}

func (s *surface) elements() widget.Elements {
	return widget.Elements{
		Panel:    panelHandle{s},
		Input:    inputHandle{s},
		Messages: listHandle{s},
		Typing:   typingHandle{s},
	}
}

func (s *surface) setNotify(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notify = fn
}

// take returns the current state and resets the one-shot requests.
func (s *surface) take() surfaceState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := surfaceState{
		open:     s.open,
		typing:   s.typing,
		messages: append([]widget.Message(nil), s.messages...),
		clear:    s.clear,
		focus:    s.focus,
		scroll:   s.scroll,
	}
	s.clear, s.focus, s.scroll = false, false, false
	return st
}

func (s *surface) mutate(fn func()) {
	s.mu.Lock()
	fn()
	notify := s.notify
	s.mu.Unlock()
	if notify != nil {
		notify()
	}
}

type panelHandle struct{ s *surface }
type inputHandle struct{ s *surface }
type listHandle struct{ s *surface }
type typingHandle struct{ s *surface }

func (h panelHandle) SetOpen(open bool) {
	h.s.mutate(func() { h.s.open = open })
}

func (h inputHandle) Clear() {
	h.s.mutate(func() { h.s.clear = true })
}

func (h inputHandle) Focus() {
	h.s.mutate(func() { h.s.focus = true })
}

func (h listHandle) Append(msg widget.Message) {
	h.s.mutate(func() { h.s.messages = append(h.s.messages, msg) })
}

func (h listHandle) Reset() {
	h.s.mutate(func() { h.s.messages = nil })
}

func (h listHandle) ScrollToBottom() {
	h.s.mutate(func() { h.s.scroll = true })
}

func (h typingHandle) SetVisible(visible bool) {
	h.s.mutate(func() { h.s.typing = visible })
}
