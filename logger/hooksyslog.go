package logger

import (
	"log/syslog"

	"github.com/sirupsen/logrus"
)

// SyslogHook forwards log entries at or above a configured level to a
// syslog endpoint. Unlike the corpus's own logger/hooksyslog (a shared,
// buffered, reconnecting aggregator with its own cross-platform dialer),
// this is a direct logrus.Hook built on the standard library's
// log/syslog — see DESIGN.md for why the fuller aggregator wasn't
// ported, and note log/syslog itself is Unix-only.
type SyslogHook struct {
	writer *syslog.Writer
	levels []logrus.Level
}

// NewSyslogHook dials network/addr (an empty network dials the local
// syslog daemon) and returns a hook that fires for minLevel and every
// level more severe than it.
func NewSyslogHook(network, addr, tag string, minLevel Level) (*SyslogHook, error) {
	w, err := syslog.Dial(network, addr, syslog.LOG_INFO, tag)
	if err != nil {
		return nil, err
	}
	return &SyslogHook{writer: w, levels: levelsAtOrAbove(minLevel)}, nil
}

func levelsAtOrAbove(min Level) []logrus.Level {
	var out []logrus.Level
	for _, l := range []Level{PanicLevel, FatalLevel, ErrorLevel, WarnLevel, InfoLevel, DebugLevel} {
		if l <= min {
			out = append(out, l.logrus())
		}
	}
	return out
}

// Levels reports which logrus levels this hook fires on.
func (h *SyslogHook) Levels() []logrus.Level {
	return h.levels
}

// Fire writes e to the syslog endpoint at the matching severity.
func (h *SyslogHook) Fire(e *logrus.Entry) error {
	line, err := e.String()
	if err != nil {
		return err
	}
	switch e.Level {
	case logrus.PanicLevel, logrus.FatalLevel:
		return h.writer.Crit(line)
	case logrus.ErrorLevel:
		return h.writer.Err(line)
	case logrus.WarnLevel:
		return h.writer.Warning(line)
	case logrus.DebugLevel:
		return h.writer.Debug(line)
	default:
		return h.writer.Info(line)
	}
}

// Close releases the underlying syslog connection.
func (h *SyslogHook) Close() error {
	return h.writer.Close()
}
