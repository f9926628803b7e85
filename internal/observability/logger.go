// Package observability builds the loggers used across the stack. Each
// protocol layer gets its own child logger with an independently
// configured level, so a noisy layer can be turned up without drowning
// the rest.
package observability

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger builds the root logger and installs it as the global default.
// session identifies one run of the stack across log lines and metrics
// rows.
func InitLogger(app, session string) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	logger := zerolog.New(output).With().Timestamp().Str("app", app).Str("session", session).Logger()
	log.Logger = logger
	return logger
}

// LayerLogger derives a per-layer child from the root logger at the given
// level. Unknown level strings fall back to info with a warning; an
// unreadable log should never stop the stack from starting.
func LayerLogger(root zerolog.Logger, layer, level string) zerolog.Logger {
	lvl, err := ParseLevel(level)
	if err != nil {
		root.Warn().Str("layer", layer).Str("level", level).Msg("unknown log level, using info")
		lvl = zerolog.InfoLevel
	}
	return root.With().Str("layer", layer).Logger().Level(lvl)
}

// ParseLevel maps a config level string onto a zerolog level. Accepted:
// debug, info, warn/warning, error, none/off.
func ParseLevel(s string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zerolog.DebugLevel, nil
	case "", "info":
		return zerolog.InfoLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	case "none", "off":
		return zerolog.Disabled, nil
	}
	return zerolog.InfoLevel, &UnknownLevelError{Level: s}
}

// UnknownLevelError reports an unrecognized level string.
type UnknownLevelError struct {
	Level string
}

func (e *UnknownLevelError) Error() string {
	return "unknown log level " + e.Level
}
