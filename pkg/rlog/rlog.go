// Package rlog provides structured logging for the room engine using zerolog.
package rlog

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the global logger instance used by packages that have not been
// handed a component logger explicitly.
var Logger zerolog.Logger

// Level is a logging verbosity threshold.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config controls the global logger.
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer // defaults to os.Stdout
}

// Init configures the global logger. Safe to call more than once; later
// calls replace the previous configuration. Tests typically pass an
// in-memory Output and InfoLevel or above to keep output deterministic.
func Init(cfg Config) {
	var level zerolog.Level
	switch cfg.Level {
	case DebugLevel:
		level = zerolog.DebugLevel
	case InfoLevel:
		level = zerolog.InfoLevel
	case WarnLevel:
		level = zerolog.WarnLevel
	case ErrorLevel:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	if cfg.JSONOutput {
		Logger = zerolog.New(output).With().Timestamp().Logger()
	} else {
		Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	}
}

func init() {
	// Sane default so packages that log before Init (e.g. in tests that
	// never call it) don't panic on a zero-value Logger.
	Init(Config{Level: InfoLevel, JSONOutput: true})
}

// WithComponent returns a child logger tagged with a component name, e.g.
// "autobase", "swarm", "blockstore".
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithRoomID returns a child logger tagged with a room identifier.
func WithRoomID(roomID string) zerolog.Logger {
	return Logger.With().Str("room_id", roomID).Logger()
}

// WithWriterKey returns a child logger tagged with a writer's public key,
// hex-encoded and truncated for readability.
func WithWriterKey(hexKey string) zerolog.Logger {
	if len(hexKey) > 12 {
		hexKey = hexKey[:12]
	}
	return Logger.With().Str("writer", hexKey).Logger()
}
