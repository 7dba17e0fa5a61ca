// Package logging configures the process-wide zerolog logger.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Options struct {
	Level string
	// Output defaults to stderr.
	Output io.Writer
	// Console forces the human readable writer. When unset it is used only if
	// Output is a terminal.
	Console *bool
}

// Init builds the logger, installs it as log.Logger and sets the global level.
func Init(opts Options) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if s := strings.TrimSpace(opts.Level); s != "" {
		l, err := zerolog.ParseLevel(strings.ToLower(s))
		if err != nil {
			return zerolog.Nop(), errors.Wrapf(err, "logging: level %q", s)
		}
		level = l
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	console := isTerminal(out)
	if opts.Console != nil {
		console = *opts.Console
	}
	if console {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}

	zerolog.SetGlobalLevel(level)
	logger := zerolog.New(out).With().Timestamp().Logger()
	log.Logger = logger
	zerolog.DefaultContextLogger = &log.Logger
	return logger, nil
}

// ToFile sends logs to path, for full-screen programs that own the terminal.
// An empty path discards logs. The returned closer must be called on exit.
func ToFile(level, path string) (io.Closer, error) {
	if strings.TrimSpace(path) == "" {
		off := false
		_, err := Init(Options{Level: level, Output: io.Discard, Console: &off})
		return io.NopCloser(nil), err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, errors.Wrap(err, "logging: open log file")
	}
	off := false
	if _, err := Init(Options{Level: level, Output: f, Console: &off}); err != nil {
		_ = f.Close()
		return nil, err
	}
	return f, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
