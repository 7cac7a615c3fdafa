// Package logging writes the JSONL runtime log under the XDG state directory.
package logging

import (
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/rbright/hifz/internal/version"
)

const (
	logName = "log.jsonl"
	// DefaultMaxBytes caps log.jsonl before it is rotated to log.1.jsonl.
	DefaultMaxBytes = 4 << 20
)

type Options struct {
	// Debug logs every applied segment.
	Debug bool
	// MaxBytes overrides DefaultMaxBytes; negative disables rotation.
	MaxBytes int64
}

// Runtime is the process logger and the file behind it.
type Runtime struct {
	Logger *slog.Logger
	Path   string
	closer io.Closer
}

func (r Runtime) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// New opens (or rotates and reopens) the state log.
func New(opts Options) (Runtime, error) {
	dir, err := StateDir()
	if err != nil {
		return Runtime{}, err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return Runtime{}, err
	}
	path := filepath.Join(dir, logName)

	limit := opts.MaxBytes
	if limit == 0 {
		limit = DefaultMaxBytes
	}
	if err := rotate(path, limit); err != nil {
		return Runtime{}, err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return Runtime{}, err
	}

	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level})).
		With("pid", os.Getpid(), "version", version.Version)
	return Runtime{Logger: logger, Path: path, closer: f}, nil
}

// rotate keeps one previous generation once path reaches limit bytes.
func rotate(path string, limit int64) error {
	if limit < 0 {
		return nil
	}
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if info.Size() < limit {
		return nil
	}
	old := strings.TrimSuffix(path, ".jsonl") + ".1.jsonl"
	return os.Rename(path, old)
}

// StateDir holds the log and gRPC dumps: $XDG_STATE_HOME/hifz or ~/.local/state/hifz.
func StateDir() (string, error) {
	if xdg := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); xdg != "" {
		return filepath.Join(xdg, "hifz"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "state", "hifz"), nil
}
