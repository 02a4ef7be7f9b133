package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

type Format string

const (
	TextFormat Format = "text"
	JSONFormat Format = "json"
)

// New builds a logger writing to w (stderr if nil) in the given format.
func New(format Format, level slog.Level, w io.Writer) (*slog.Logger, error) {
	if w == nil {
		w = os.Stderr
	}
	ho := &slog.HandlerOptions{Level: level}
	switch format {
	case JSONFormat:
		return slog.New(slog.NewJSONHandler(w, ho)), nil
	case TextFormat, "":
		return slog.New(slog.NewTextHandler(w, ho)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

// Configure installs a logger built by New as the slog default.
func Configure(format Format, level slog.Level, w io.Writer) (*slog.Logger, error) {
	l, err := New(format, level, w)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(l)
	return l, nil
}

// ParseLevel accepts debug, info, warn and error.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("unknown log level %q", s)
	}
	return l, nil
}
