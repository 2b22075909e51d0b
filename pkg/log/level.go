package log

import (
	"strings"

	cyerrors "github.com/YuminosukeSato/cropyield/pkg/errors"
)

// ParseLevel converts "debug", "info", "warn" or "error" (any case) to a Level.
func ParseLevel(level string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return 0, cyerrors.NewValidationError("log.level", "must be one of debug, info, warn, error", level)
	}
}

// ToLogLevel is ParseLevel for hard-coded values; it panics on an invalid level.
func ToLogLevel(level string) Level {
	l, err := ParseLevel(level)
	if err != nil {
		panic(err)
	}
	return l
}
