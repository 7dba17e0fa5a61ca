package widget

import (
	"context"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// Greeting is the only message left after the history is cleared.
	Greeting = "Terminal cleared. Welcome back. I am Atlas, your intelligence layer. How can I assist your trading today?"
	// ConnectionFailed is rendered when a request could not be completed.
	ConnectionFailed = "Error: Connection failed. Please check the terminal."

	errorPrefix = "Error: "
)

// Transport delivers one user message to the chat endpoint.
type Transport interface {
	Send(ctx context.Context, message string) (Reply, error)
}

// Controller mediates between UI events and the chat endpoint. All methods
// are safe to call from any goroutine; element mutations are serialized.
type Controller struct {
	el        Elements
	transport Transport
	logger    zerolog.Logger

	mu       sync.Mutex
	open     bool
	inFlight int
	pending  sync.WaitGroup
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger used for transport failures and empty replies.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// New binds a Controller to its elements and puts them in the initial
// state: panel closed, typing indicator hidden.
func New(el Elements, transport Transport, opts ...Option) (*Controller, error) {
	if err := el.validate(); err != nil {
		return nil, err
	}
	if transport == nil {
		return nil, errors.New("widget: transport must not be nil")
	}
	c := &Controller{
		el:        el,
		transport: transport,
		logger:    log.Logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.el.Panel.SetOpen(false)
	c.el.Typing.SetVisible(false)
	return c, nil
}

// OpenPanel handles a click on the bubble trigger.
func (c *Controller) OpenPanel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = true
	c.el.Panel.SetOpen(true)
	c.el.Input.Focus()
}

// ClosePanel handles a click on the close button.
func (c *Controller) ClosePanel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = false
	c.el.Panel.SetOpen(false)
}

// Visible reports whether the panel is open.
func (c *Controller) Visible() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

// Typing reports whether at least one request is outstanding.
func (c *Controller) Typing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight > 0
}

// AppendMessage adds a bubble and scrolls the list to the bottom.
func (c *Controller) AppendMessage(text string, sender Sender) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.appendLocked(text, sender)
}

// SetTyping shows or hides the typing indicator directly, outside the
// in-flight accounting Submit does.
func (c *Controller) SetTyping(visible bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setTypingLocked(visible)
}

// Submit handles the form submission. The user message is echoed, the input
// cleared and the typing indicator shown before Submit returns; the request
// itself completes on its own goroutine. Submissions never cancel each other
// and their replies render in completion order. It reports whether a request
// was started.
func (c *Controller) Submit(ctx context.Context, raw string) bool {
	text := strings.TrimSpace(raw)
	if text == "" {
		return false
	}

	c.mu.Lock()
	c.appendLocked(text, SenderUser)
	c.el.Input.Clear()
	c.inFlight++
	c.setTypingLocked(true)
	c.pending.Add(1)
	c.mu.Unlock()

	go c.exchange(ctx, text)
	return true
}

// ClearHistory removes every message and leaves only the greeting.
func (c *Controller) ClearHistory() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.el.Messages.Reset()
	c.appendLocked(Greeting, SenderBot)
}

// Wait blocks until every submitted request has rendered its outcome.
func (c *Controller) Wait() {
	c.pending.Wait()
}

func (c *Controller) exchange(ctx context.Context, text string) {
	defer c.pending.Done()

	reply, err := c.send(ctx, text)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight--
	c.setTypingLocked(c.inFlight > 0)

	switch {
	case err != nil:
		c.logger.Debug().Err(err).Msg("chat request failed")
		c.appendLocked(ConnectionFailed, SenderBot)
	case reply.Response != "":
		c.appendLocked(reply.Response, SenderBot)
	case reply.Error != "":
		c.appendLocked(errorPrefix+reply.Error, SenderBot)
	default:
		c.logger.Debug().Msg("chat reply carried neither response nor error")
	}
}

func (c *Controller) send(ctx context.Context, text string) (reply Reply, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("widget: transport panicked: %v", r)
		}
	}()
	return c.transport.Send(ctx, text)
}

func (c *Controller) appendLocked(text string, sender Sender) {
	c.el.Messages.Append(Message{Text: text, Sender: sender})
	c.el.Messages.ScrollToBottom()
}

func (c *Controller) setTypingLocked(visible bool) {
	c.el.Typing.SetVisible(visible)
	c.el.Messages.ScrollToBottom()
}
