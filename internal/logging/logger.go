// Watchgate - Trakt Mediation Layer for Media Catalogs
// Copyright 2026 Watchgate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchgate/watchgate

// Package logging wraps zerolog behind a process-global logger.
//
// The logger works with sane defaults before configuration, so packages may
// log during early startup; main reconfigures it once the config is loaded:
//
//	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
//
//	logging.Info().Str("username", u).Msg("History sync started")
//	logging.Error().Err(err).Msg("Token refresh failed")
//
// Every chain must end in .Msg() or .Send(); zerolog drops unterminated
// chains without a trace.
package logging

import (
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logging configuration.
type Config struct {
	// Level is the minimum level emitted: trace, debug, info, warn, error,
	// fatal, panic, or disabled. Unknown values fall back to info.
	Level string

	// Format is "json" or "console". Console output is for development;
	// everything else should stay on json.
	Format string

	// Caller adds the emitting file:line to each entry.
	Caller bool

	// Output defaults to os.Stderr.
	Output io.Writer
}

// DefaultConfig returns the configuration used before Init is called.
func DefaultConfig() Config {
	return Config{Level: "info", Format: "json", Output: os.Stderr}
}

// global holds the current *zerolog.Logger. Swapped wholesale on Init so
// readers never need a lock.
var global atomic.Pointer[zerolog.Logger]

//nolint:gochecknoinits // the logger must work before main runs Init
func init() {
	Init(DefaultConfig())
}

// Init builds the global logger from cfg. Safe to call again to
// reconfigure; in-flight events keep the logger they started with.
func Init(cfg Config) {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}

	zerolog.SetGlobalLevel(parseLevel(cfg.Level))
	zerolog.TimeFieldFormat = time.RFC3339

	logger := zerolog.New(out).With().Timestamp().Logger()
	if cfg.Caller {
		logger = logger.With().Caller().Logger()
	}
	global.Store(&logger)
}

var levelNames = map[string]zerolog.Level{
	"trace":    zerolog.TraceLevel,
	"debug":    zerolog.DebugLevel,
	"info":     zerolog.InfoLevel,
	"warn":     zerolog.WarnLevel,
	"warning":  zerolog.WarnLevel,
	"error":    zerolog.ErrorLevel,
	"fatal":    zerolog.FatalLevel,
	"panic":    zerolog.PanicLevel,
	"disabled": zerolog.Disabled,
}

func parseLevel(level string) zerolog.Level {
	if l, ok := levelNames[strings.ToLower(level)]; ok {
		return l
	}
	return zerolog.InfoLevel
}

// Logger returns the current global logger.
func Logger() zerolog.Logger {
	return *global.Load()
}

// Debug starts a debug-level event.
func Debug() *zerolog.Event { return global.Load().Debug() }

// Info starts an info-level event.
func Info() *zerolog.Event { return global.Load().Info() }

// Warn starts a warn-level event.
func Warn() *zerolog.Event { return global.Load().Warn() }

// Error starts an error-level event.
func Error() *zerolog.Event { return global.Load().Error() }

// Fatal starts a fatal-level event; the process exits after it is written.
func Fatal() *zerolog.Event { return global.Load().Fatal() }
