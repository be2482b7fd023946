// Package logger is the structured-logging facade every other package in
// this module goes through instead of fmt/log. It wraps logrus the way
// the corpus's own logger package does, with a level type, field
// injection, an io.Writer bridge with its own independent level, and an
// optional syslog hook (see SyslogHook).
package logger

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// Level mirrors logrus's level set under the node runtime's own name, so
// call sites never import logrus directly.
type Level uint8

const (
	PanicLevel Level = iota
	FatalLevel
	ErrorLevel
	WarnLevel
	InfoLevel
	DebugLevel
)

func (l Level) logrus() logrus.Level {
	switch l {
	case PanicLevel:
		return logrus.PanicLevel
	case FatalLevel:
		return logrus.FatalLevel
	case ErrorLevel:
		return logrus.ErrorLevel
	case WarnLevel:
		return logrus.WarnLevel
	case InfoLevel:
		return logrus.InfoLevel
	case DebugLevel:
		return logrus.DebugLevel
	default:
		return logrus.InfoLevel
	}
}

// String renders the level name in lowercase, e.g. "debug".
func (l Level) String() string {
	switch l {
	case PanicLevel:
		return "panic"
	case FatalLevel:
		return "fatal"
	case ErrorLevel:
		return "error"
	case WarnLevel:
		return "warn"
	case InfoLevel:
		return "info"
	case DebugLevel:
		return "debug"
	default:
		return "info"
	}
}

// ParseLevel parses a case-insensitive level name, defaulting to Info.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "panic":
		return PanicLevel
	case "fatal":
		return FatalLevel
	case "error":
		return ErrorLevel
	case "warn", "warning":
		return WarnLevel
	case "debug":
		return DebugLevel
	default:
		return InfoLevel
	}
}
