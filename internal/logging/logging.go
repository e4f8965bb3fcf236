package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/Domenick1991/parking/config"
	"github.com/Domenick1991/parking/internal/domain"
)

func ParseLevel(level string) slog.Level {
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

// New builds a logger writing to w (stdout when nil) in the configured format.
func New(cfg config.LogConfig, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler)
}

// Setup builds the logger and installs it as the slog default.
func Setup(cfg config.LogConfig) *slog.Logger {
	logger := New(cfg, nil)
	slog.SetDefault(logger)
	return logger
}

// Err renders an error together with its stable kind.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Group("error",
		slog.String("message", err.Error()),
		slog.String("kind", string(domain.KindOf(err))),
	)
}
