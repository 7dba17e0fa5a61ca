// Package console renders the widget as a line-oriented terminal session.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"atlas-widget/internal/widget"
)

const (
	prompt       = "You: "
	clearCommand = "/clear"
	rule         = "============================================================"
	goodbye      = "\nGoodbye! Thanks for chatting!\n\n"
)

var quitWords = map[string]bool{"quit": true, "exit": true, "bye": true, "q": true}

// View writes every element mutation to out. It is safe for concurrent use.
type View struct {
	mu     sync.Mutex
	out    io.Writer
	open   bool
	typing bool
}

func New(out io.Writer) *View {
	return &View{out: out}
}

func (v *View) Elements() widget.Elements {
	return widget.Elements{
		Panel:    panel{v},
		Input:    input{v},
		Messages: messages{v},
		Typing:   typing{v},
	}
}

type panel struct{ v *View }
type input struct{ v *View }
type messages struct{ v *View }
type typing struct{ v *View }

func (p panel) SetOpen(open bool) {
	p.v.mu.Lock()
	defer p.v.mu.Unlock()
	p.v.open = open
}

func (input) Clear() {}
func (input) Focus() {}

func (m messages) Append(msg widget.Message) {
	m.v.mu.Lock()
	defer m.v.mu.Unlock()
	label := "You"
	if msg.Sender == widget.SenderBot {
		label = "Atlas"
	}
	lines := widget.Lines(msg.Text)
	fmt.Fprintf(m.v.out, "%s: %s\n", label, lines[0])
	pad := strings.Repeat(" ", len(label)+2)
	for _, line := range lines[1:] {
		fmt.Fprintf(m.v.out, "%s%s\n", pad, line)
	}
}

func (m messages) Reset() {
	m.v.mu.Lock()
	defer m.v.mu.Unlock()
	fmt.Fprintln(m.v.out, rule)
}

func (messages) ScrollToBottom() {}

func (t typing) SetVisible(visible bool) {
	t.v.mu.Lock()
	defer t.v.mu.Unlock()
	if visible && !t.v.typing {
		fmt.Fprintln(t.v.out, "Atlas is typing...")
	}
	t.v.typing = visible
}

// Run reads lines from in until EOF, a quit word, or ctx ends. Each line is
// submitted and its reply awaited before the next prompt. Input is read on
// its own goroutine so a cancelled ctx returns even while in is blocked.
func (v *View) Run(ctx context.Context, ctrl *widget.Controller, in io.Reader, endpoint string) error {
	v.header(endpoint)
	ctrl.OpenPanel()
	defer ctrl.ClosePanel()

	done := make(chan struct{})
	defer close(done)
	lines, readErr := readLines(in, done)

	for {
		v.write(prompt)
		var (
			raw string
			ok  bool
		)
		select {
		case <-ctx.Done():
			v.write(goodbye)
			return nil
		case raw, ok = <-lines:
		}
		if !ok {
			if err := <-readErr; err != nil {
				return errors.Wrap(err, "console: read input")
			}
			return nil
		}

		line := strings.TrimSpace(raw)
		switch {
		case quitWords[strings.ToLower(line)]:
			v.write(goodbye)
			return nil
		case line == clearCommand:
			ctrl.ClearHistory()
			continue
		}

		if ctrl.Submit(ctx, line) {
			ctrl.Wait()
		}
	}
}

// readLines scans in until EOF or done is closed. The error channel receives
// the scanner error before lines is closed.
func readLines(in io.Reader, done <-chan struct{}) (<-chan string, <-chan error) {
	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				errc <- nil
				return
			}
		}
		errc <- scanner.Err()
	}()
	return lines, errc
}

func (v *View) header(endpoint string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintf(v.out, "\n%s\nAtlas Crypto Intelligence Agent\n%s\n", rule, rule)
	if endpoint != "" {
		fmt.Fprintf(v.out, "Endpoint: %s\n", endpoint)
	}
	fmt.Fprintf(v.out, "Type 'quit', 'exit', or 'bye' to end the conversation, %q to clear it\n%s\n\n", clearCommand, rule)
}

func (v *View) write(s string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	_, _ = io.WriteString(v.out, s)
}
