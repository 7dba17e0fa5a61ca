package widget

import "github.com/pkg/errors"

// Panel is the container whose visibility toggles between open and closed.
type Panel interface {
	SetOpen(open bool)
}

// Input is the text field the user types into.
type Input interface {
	Clear()
	Focus()
}

// MessageList holds the rendered bubbles in insertion order.
type MessageList interface {
	Append(msg Message)
	Reset()
	ScrollToBottom()
}

// TypingIndicator is shown while a request is outstanding.
type TypingIndicator interface {
	SetVisible(visible bool)
}

// Elements is the fixed set of UI handles a Controller binds to. The bubble
// trigger, close button, form and clear button are event sources: hosts call
// the matching Controller method when they fire.
type Elements struct {
	Panel    Panel
	Input    Input
	Messages MessageList
	Typing   TypingIndicator
}

func (e Elements) validate() error {
	switch {
	case e.Panel == nil:
		return errors.New("widget: panel element must not be nil")
	case e.Input == nil:
		return errors.New("widget: input element must not be nil")
	case e.Messages == nil:
		return errors.New("widget: message list element must not be nil")
	case e.Typing == nil:
		return errors.New("widget: typing indicator element must not be nil")
	}
	return nil
}
