package batch

import (
	"fmt"
	"log"
	"strings"
	"time"
)

type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

// ParseLogLevel maps a config string to a LogLevel, defaulting to info.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToLower(s) {
	case "debug":
		return LogLevelDebug
	case "info":
		return LogLevelInfo
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

func levelString(level LogLevel) string {
	switch level {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func logf(logger *log.Logger, threshold, level LogLevel, component, format string, args ...any) {
	if logger == nil || level < threshold {
		return
	}
	msg := fmt.Sprintf(format, args...)
	logger.Printf("%s %s %s: %s", time.Now().Format(time.RFC3339), levelString(level), component, msg)
}
