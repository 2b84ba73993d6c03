// Package log provides structured logging utilities for the gostake daemon.
// It wraps the standard library's slog package with additional convenience methods.
package log

import (
	"log/slog"
	"os"
	"strings"
)

// Logger wraps slog.Logger with additional context and convenience methods
type Logger struct {
	*slog.Logger
	service string
	version string
}

// New creates a new logger with the specified configuration
func New(service, version, level, format string) *Logger {
	var handler slog.Handler

	// Parse log level
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn", "warning":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     logLevel,
		AddSource: logLevel == slog.LevelDebug,
	}

	switch strings.ToLower(format) {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	baseLogger := slog.New(handler).With(
		"service", service,
		"version", version,
	)

	return &Logger{
		Logger:  baseLogger,
		service: service,
		version: version,
	}
}

// WithFields returns a logger with additional fields
func (l *Logger) WithFields(fields ...any) *Logger {
	return &Logger{
		Logger:  l.With(fields...),
		service: l.service,
		version: l.version,
	}
}

// WithComponent returns a logger with a component field
func (l *Logger) WithComponent(component string) *Logger {
	return l.WithFields("component", component)
}

// WithJob returns a logger with job-specific fields
func (l *Logger) WithJob(height int64, prevBlock string) *Logger {
	return l.WithFields("height", height, "prev_block", prevBlock)
}

// WithCoin returns a logger with stake-coin fields
func (l *Logger) WithCoin(outpoint string, value int64) *Logger {
	return l.WithFields("outpoint", outpoint, "value", value)
}

// WithError returns a logger with error context
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return l.WithFields("error", err.Error())
}

// Staking-specific logging helpers

// LogBlockMinted logs acceptance of a block produced by this staker
func (l *Logger) LogBlockMinted(blockHash string, height int64, proofType string) {
	l.Info("block minted",
		"block_hash", blockHash,
		"height", height,
		"proof_type", proofType,
	)
}

// LogKernelFound logs a successful stake kernel
func (l *Logger) LogKernelFound(outpoint string, value int64, stakeTime uint32) {
	l.Info("stake kernel found",
		"outpoint", outpoint,
		"value", value,
		"stake_time", stakeTime,
	)
}

// LogSearchStatus logs periodic search progress
func (l *Logger) LogSearchStatus(hashes float64, rate float64, elapsed float64) {
	l.Debug("search status",
		"hashes", hashes,
		"rate_hps", rate,
		"elapsed_sec", elapsed,
	)
}

// LogSubmitRejected logs a block the chain refused, with its raw serialization
// so a rejected block is never silently dropped.
func (l *Logger) LogSubmitRejected(blockHash string, height int64, reason string, rawHex string) {
	l.Warn("block rejected",
		"block_hash", blockHash,
		"height", height,
		"reason", reason,
		"raw_block", rawHex,
	)
}
