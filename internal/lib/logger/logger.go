package logger

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/lmittmann/tint"
)

// SetupLogger builds the process logger. Local and dev environments get
// colorized text output on stdout; anything else logs JSON to a file under
// logPath, falling back to stdout when the file cannot be opened.
func SetupLogger(env, logPath string) *slog.Logger {
	switch env {
	case "local", "dev":
		return slog.New(tint.NewHandler(os.Stdout, &tint.Options{
			Level:      slog.LevelDebug,
			TimeFormat: time.Kitchen,
		}))
	default:
		out := os.Stdout
		file, err := os.OpenFile(
			filepath.Join(logPath, "shoptalk.log"),
			os.O_CREATE|os.O_WRONLY|os.O_APPEND,
			0o644,
		)
		if err == nil {
			out = file
		}
		return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}
}
