package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// TimeLayout renders record timestamps, e.g. "19-10-2026 14:30:00.000000 -03".
const TimeLayout = "02-01-2006 15:04:05.000000 MST"

// Options configures New. Zero values get defaults.
type Options struct {
	Dir      string // default "logs"
	File     string // default "serpwalk.log"
	Timezone string // IANA name, default "America/Sao_Paulo"
	Level    string // debug, info, warn or error; default info
	// Stdout receives a copy of every line. Default os.Stdout.
	Stdout io.Writer
}

// Logger is an slog.Logger bound to an open log file.
type Logger struct {
	*slog.Logger
	file *os.File
}

// Close closes the log file.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// New opens (appending) the log file under opts.Dir, creating the directory,
// and returns a redacting text logger writing to stdout and the file.
func New(opts Options) (*Logger, error) {
	if opts.Dir == "" {
		opts.Dir = "logs"
	}
	if opts.File == "" {
		opts.File = "serpwalk.log"
	}
	if opts.Timezone == "" {
		opts.Timezone = "America/Sao_Paulo"
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}

	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	loc, err := time.LoadLocation(opts.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", opts.Timezone, err)
	}

	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(opts.Dir, opts.File), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	h := NewHandler(io.MultiWriter(opts.Stdout, f), level, loc)
	return &Logger{Logger: slog.New(h), file: f}, nil
}

// NewHandler returns a redacting text handler that renders the time in loc
// with TimeLayout.
func NewHandler(w io.Writer, level slog.Leveler, loc *time.Location) slog.Handler {
	if loc == nil {
		loc = time.Local
	}
	return NewSecureHandler(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) == 0 && a.Key == slog.TimeKey && a.Value.Kind() == slog.KindTime {
				return slog.String(slog.TimeKey, a.Value.Time().In(loc).Format(TimeLayout))
			}
			return a
		},
	}))
}

// ParseLevel maps a level name to an slog.Level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if strings.TrimSpace(s) == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("log level %q: %w", s, err)
	}
	return l, nil
}
