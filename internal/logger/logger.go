// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

// Package logger provides structured logging for inscriber components.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// timeFormat defines console timestamp layout.
const timeFormat = "15:04:05"

// Logger is the global logger instance.
var Logger zerolog.Logger

// Component loggers.
var (
	Orchestrator zerolog.Logger
	Tracker      zerolog.Logger
	Ledger       zerolog.Logger
	TokenInfo    zerolog.Logger
)

func init() {
	Logger = NewConsoleLogger(os.Stderr, "info")
	initComponentLoggers()
}

// Init configures global logger. Console output goes to stderr, colored or JSON.
// When file is not empty logs are also appended to it as JSON, returned closer releases it.
func Init(level string, jsonOutput bool, file string) (io.Closer, error) {
	var console io.Writer = os.Stderr
	if !jsonOutput {
		console = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: timeFormat}
	}

	var closer io.Closer = nopCloser{}
	output := console
	if file != "" {
		f, err := os.OpenFile(file, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, err
		}

		output = zerolog.MultiLevelWriter(console, f)
		closer = f
	}

	Logger = New(output, level)
	initComponentLoggers()

	return closer, nil
}

// New creates logger writing to w as is.
func New(w io.Writer, level string) zerolog.Logger {
	return zerolog.New(w).
		Level(ParseLevel(level)).
		With().
		Timestamp().
		Logger()
}

// NewConsoleLogger creates a colored console logger.
func NewConsoleLogger(w io.Writer, level string) zerolog.Logger {
	return New(zerolog.ConsoleWriter{Out: w, TimeFormat: timeFormat}, level)
}

// ParseLevel converts level name to zerolog.Level, info by default.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// WithComponent returns a logger with a component field.
func WithComponent(name string) zerolog.Logger {
	return Logger.With().Str("component", name).Logger()
}

// initComponentLoggers initializes loggers for each component.
func initComponentLoggers() {
	Orchestrator = WithComponent("orchestrator")
	Tracker = WithComponent("tracker")
	Ledger = WithComponent("ledger")
	TokenInfo = WithComponent("tokeninfo")
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
