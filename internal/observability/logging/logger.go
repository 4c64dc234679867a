// Package logging provides structured logging with zerolog.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds logging configuration.
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json, console
	TimeFormat string // RFC3339, Unix, etc.
}

// DefaultConfig returns sensible default logging configuration.
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "json",
		TimeFormat: time.RFC3339,
	}
}

// Init initializes the global zerolog logger.
func Init(cfg Config) {
	InitWriter(cfg, os.Stdout)
}

// InitWriter is Init with an explicit output.
func InitWriter(cfg Config, out io.Writer) {
	zerolog.TimeFieldFormat = cfg.TimeFormat

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	output := out
	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.Kitchen,
		}
	}

	log.Logger = zerolog.New(output).
		With().
		Timestamp().
		Caller().
		Logger()
}

// WithComponent returns a logger with a component tag.
func WithComponent(component string) zerolog.Logger {
	return log.With().
		Str("component", component).
		Logger()
}

// WithSession returns a logger with session context. The phone number is
// only attached when debug logging is enabled.
func WithSession(sessionID, phone string) zerolog.Logger {
	ctx := log.With().Str("sessionId", sessionID)
	if zerolog.GlobalLevel() <= zerolog.DebugLevel {
		ctx = ctx.Str("phone", phone)
	}
	return ctx.Logger()
}

// WithTurn returns a logger with turn context.
func WithTurn(sessionID, phone, turnID string) zerolog.Logger {
	l := WithSession(sessionID, phone)
	return l.With().
		Str("turnId", turnID).
		Logger()
}

// WithSpecialist returns a logger with specialist context.
func WithSpecialist(sessionID, phone, specialist string) zerolog.Logger {
	l := WithSession(sessionID, phone)
	return l.With().
		Str("specialist", specialist).
		Logger()
}
