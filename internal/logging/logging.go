package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Settings is the subset of configuration the logger needs.
type Settings interface {
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
}

// New builds the process logger. DEV gets a human readable console writer,
// every other environment gets JSON lines. A nil writer means stderr.
func New(s Settings, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	if s.GetEnv() == "DEV" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).
		Level(ParseLevel(s.GetLogLevel())).
		With().
		Timestamp().
		Str("app", s.GetAppName()).
		Logger()
}

// ParseLevel maps a config string to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	l, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		return zerolog.InfoLevel
	}
	return l
}
