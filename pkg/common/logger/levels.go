package logger

import "log/slog"

// A Level is the importance or severity of a log event.
type Level slog.Level

// The set of possible log levels.
const (
	LevelDebug = Level(slog.LevelDebug)
	LevelInfo  = Level(slog.LevelInfo)
	LevelWarn  = Level(slog.LevelWarn)
	LevelError = Level(slog.LevelError)
)
