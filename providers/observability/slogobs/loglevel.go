package slogobs

import (
	"log/slog"
	"strings"
)

// LevelTrace sits below DEBUG and is only emitted when explicitly enabled.
const LevelTrace = slog.LevelDebug - 4

// Environment variables consulted when no level or format option is given.
// LOG_LEVEL and LOG_FORMAT are read only when the graphyte names are unset.
const (
	EnvLogLevel  = "GRAPHYTE_LOG_LEVEL"
	EnvLogFormat = "GRAPHYTE_LOG_FORMAT"
)

// Lookup reads one environment variable. os.LookupEnv satisfies it.
type Lookup func(key string) (string, bool)

// first returns the first non-blank value among keys.
func (lookup Lookup) first(keys ...string) string {
	if lookup == nil {
		return ""
	}
	for _, key := range keys {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// LevelFromEnv resolves GRAPHYTE_LOG_LEVEL, then LOG_LEVEL. Default: INFO.
func LevelFromEnv(lookup Lookup) slog.Level {
	return ParseLogLevel(lookup.first(EnvLogLevel, "LOG_LEVEL"))
}

// ParseLogLevel parses TRACE, DEBUG, INFO, WARN, WARNING or ERROR
// (case-insensitive). Anything else maps to INFO.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "TRACE":
		return LevelTrace
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
