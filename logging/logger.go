package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jrick/logrotate/rotator"
)

// Setup installs a JSON slog logger on stdout at the given level. When
// logFile is set, output is also written to a rotating file. The returned
// func closes the rotator.
func Setup(level, logFile string) (func(), error) {
	var w io.Writer = os.Stdout
	closeFn := func() {}

	if logFile != "" {
		if dir := filepath.Dir(logFile); dir != "" {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return closeFn, fmt.Errorf("create log directory: %w", err)
			}
		}
		r, err := rotator.New(logFile, 10*1024, false, 30)
		if err != nil {
			return closeFn, fmt.Errorf("create file rotator: %w", err)
		}
		w = io.MultiWriter(os.Stdout, r)
		closeFn = func() { r.Close() }
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(level),
	})
	slog.SetDefault(slog.New(handler))
	return closeFn, nil
}

// ParseLevel maps a LOG_LEVEL value to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
