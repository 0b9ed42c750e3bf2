package logger

import (
	"log/slog"
	"os"

	"pdf-rag-chatbot/internal/config"
)

var Logger *slog.Logger

// InitLogger sets up JSON structured logging. Debug mode lowers the level
// and annotates records with their source location.
func InitLogger(cfg *config.Config) {
	debug := cfg.GinMode == "debug"

	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     level,
		AddSource: debug,
	})

	Logger = slog.New(handler)
	slog.SetDefault(Logger)

	Logger.Info("structured logging initialized", "level", level.String())
}

// Package-level helpers so callers do not need to thread the logger around.
// Safe to call before InitLogger; they fall back to slog's default.

func Info(msg string, args ...any) {
	active().Info(msg, args...)
}

func Error(msg string, args ...any) {
	active().Error(msg, args...)
}

func Debug(msg string, args ...any) {
	active().Debug(msg, args...)
}

func Warn(msg string, args ...any) {
	active().Warn(msg, args...)
}

func active() *slog.Logger {
	if Logger != nil {
		return Logger
	}
	return slog.Default()
}
