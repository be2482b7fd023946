package logger_test

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/openrobots-dev/rosnode/logger"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := logger.New("n1", logger.WarnLevel, &buf)

	l.Info("should not appear")
	if buf.Len() != 0 {
		t.Fatalf("info should be filtered at warn level, got %q", buf.String())
	}

	l.Warn("should appear")
	if !strings.Contains(buf.String(), "should appear") {
		t.Fatalf("expected warn line, got %q", buf.String())
	}
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	l := logger.New("n1", logger.DebugLevel, &buf)
	l.WithFields(logger.Fields{"topic": "/chatter"}).Info("published")

	out := buf.String()
	if !strings.Contains(out, "topic") || !strings.Contains(out, "/chatter") {
		t.Fatalf("expected topic field in output, got %q", out)
	}
}

func TestParseLevelRoundTrip(t *testing.T) {
	for _, lv := range []logger.Level{logger.PanicLevel, logger.FatalLevel, logger.ErrorLevel, logger.WarnLevel, logger.InfoLevel, logger.DebugLevel} {
		if got := logger.ParseLevel(lv.String()); got != lv {
			t.Fatalf("roundtrip mismatch for %v: got %v", lv, got)
		}
	}
}

type levelRecorder struct {
	levels []logrus.Level
}

func (r *levelRecorder) Levels() []logrus.Level { return logrus.AllLevels }

func (r *levelRecorder) Fire(e *logrus.Entry) error {
	r.levels = append(r.levels, e.Level)
	return nil
}

func TestIOWriterLevelIndependentOfLogLevel(t *testing.T) {
	l := logger.New("n1", logger.DebugLevel, io.Discard)
	rec := &levelRecorder{}
	l.AddHook(rec)

	l.SetIOWriterLevel(logger.ErrorLevel)
	if _, err := l.Write([]byte("boom")); err != nil {
		t.Fatalf("write: %v", err)
	}

	l.SetIOWriterLevel(logger.DebugLevel)
	if _, err := l.Write([]byte("trace")); err != nil {
		t.Fatalf("write: %v", err)
	}

	if len(rec.levels) != 2 {
		t.Fatalf("expected 2 fired entries, got %d", len(rec.levels))
	}
	if rec.levels[0] != logrus.ErrorLevel {
		t.Fatalf("expected first write at error level, got %v", rec.levels[0])
	}
	if rec.levels[1] != logrus.DebugLevel {
		t.Fatalf("expected second write at debug level, got %v", rec.levels[1])
	}
	if l.GetIOWriterLevel() != logger.DebugLevel {
		t.Fatalf("expected GetIOWriterLevel to report the last set level, got %v", l.GetIOWriterLevel())
	}
	if l.GetLevel() != logger.DebugLevel {
		t.Fatalf("SetIOWriterLevel must not affect the structured level, got %v", l.GetLevel())
	}
}

func TestSyslogHookLevelsAtOrAboveWarn(t *testing.T) {
	h, err := logger.NewSyslogHook("udp", "127.0.0.1:65535", "rosnode-test", logger.WarnLevel)
	if err != nil {
		t.Skipf("syslog dial unavailable in this sandbox: %v", err)
	}
	defer h.Close()

	if got := len(h.Levels()); got != 4 {
		t.Fatalf("expected panic/fatal/error/warn (4 levels), got %d", got)
	}
}
