package sl

import "log/slog"

// Module tags log records with the originating module name.
func Module(name string) slog.Attr {
	return slog.String("module", name)
}

// Err wraps an error value as a log attribute.
func Err(err error) slog.Attr {
	return slog.String("error", err.Error())
}

// Secret logs a sensitive value keeping only a short prefix and suffix.
func Secret(key, value string) slog.Attr {
	masked := "***"
	if len(value) > 10 {
		masked = value[:4] + "..." + value[len(value)-2:]
	}
	if value == "" {
		masked = ""
	}
	return slog.String(key, masked)
}
