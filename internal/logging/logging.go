package logging

import (
	"log/slog"
	"os"
	"strings"
)

func NewLogger(level string) *slog.Logger {
	lvl := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	return slog.New(h)
}

// MaskToken redacts a credential for logging, keeping a short prefix so the
// operator can tell which token is in use.
func MaskToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 6 {
		return "[masked]"
	}
	return token[:6] + "[masked]"
}
