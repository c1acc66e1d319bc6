package logger

import (
	"log/slog"
	"os"
	"strings"

	"github.com/AxialDev/faq-mapping-gladly-shopify/internal/infra/config"
)

// New constructs a JSON slog logger at the configured level.
func New(cfg *config.Config) *slog.Logger {
	level := parseLevel(cfg.Log.Level)
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(handler).With("service", "faqsync")
}

func parseLevel(level string) slog.Leveler {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
