package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/emilianohg/internhub/internal/apperr"
)

// Open returns a logger appending to the diagnostics file at path.
// Closing the returned closer flushes nothing; slog writes synchronously.
func Open(path string) (*slog.Logger, io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, nil, err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, err
	}

	return New(f), f, nil
}

func New(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

// Discard is used where diagnostics are not wanted, mostly tests.
func Discard() *slog.Logger {
	return New(io.Discard)
}

// Error logs err with its classification.
func Error(logger *slog.Logger, op string, err error, attrs ...any) {
	if logger == nil || err == nil {
		return
	}
	args := append([]any{"op", op, "kind", apperr.KindOf(err).String(), "err", err.Error()}, attrs...)
	logger.Error("operation failed", args...)
}
