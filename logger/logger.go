package logger

import (
	"io"
	"os"
	"sync/atomic"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
)

// Fields attaches structured key/value context to a log entry, e.g. the
// topic name, session id or XMLRPC method of the call site.
type Fields map[string]interface{}

// Logger is the facade every node-runtime package logs through. Its
// shape — level get/set, field injection, io.Writer compatibility for
// integrating third-party libraries that expect a plain writer — follows
// the corpus's own logger interface.
type Logger interface {
	io.Writer

	SetLevel(lvl Level)
	GetLevel() Level

	// SetIOWriterLevel and GetIOWriterLevel set the level each Write
	// call is logged at, separately from SetLevel/GetLevel. The
	// structured level still filters those entries, so a library
	// writing noisy output through the io.Writer bridge can be tagged
	// DebugLevel and stay hidden while the logger runs at InfoLevel.
	// Write logs PanicLevel and FatalLevel settings at InfoLevel.
	SetIOWriterLevel(lvl Level)
	GetIOWriterLevel() Level

	WithFields(f Fields) Logger

	// AddHook attaches a logrus hook (e.g. a SyslogHook) to the
	// underlying logger shared by every Logger derived via WithFields.
	AddHook(h logrus.Hook)

	Debug(args ...interface{})
	Info(args ...interface{})
	Warn(args ...interface{})
	Error(args ...interface{})
	Fatal(args ...interface{})
}

type entryLogger struct {
	e       *logrus.Entry
	ioLevel *atomic.Int32
}

// New creates a Logger writing colorized, leveled entries to out (or
// os.Stderr when out is nil), with name attached as a permanent field —
// typically the node name, so every log line up to the Master is
// traceable to its emitting node.
func New(name string, lvl Level, out io.Writer) Logger {
	if out == nil {
		out = os.Stderr
	}

	l := logrus.New()
	l.SetOutput(out)
	l.SetLevel(lvl.logrus())
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		ForceColors:     color.NoColor == false,
		DisableColors:   color.NoColor,
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	})

	ioLevel := &atomic.Int32{}
	ioLevel.Store(int32(InfoLevel))
	return &entryLogger{e: l.WithField("node", name), ioLevel: ioLevel}
}

func (g *entryLogger) Write(p []byte) (int, error) {
	switch Level(g.ioLevel.Load()) {
	case DebugLevel:
		g.e.Debug(string(p))
	case WarnLevel:
		g.e.Warn(string(p))
	case ErrorLevel:
		g.e.Error(string(p))
	default:
		g.e.Info(string(p))
	}
	return len(p), nil
}

func (g *entryLogger) SetIOWriterLevel(lvl Level) {
	g.ioLevel.Store(int32(lvl))
}

func (g *entryLogger) GetIOWriterLevel() Level {
	return Level(g.ioLevel.Load())
}

func (g *entryLogger) AddHook(h logrus.Hook) {
	g.e.Logger.AddHook(h)
}

func (g *entryLogger) SetLevel(lvl Level) {
	g.e.Logger.SetLevel(lvl.logrus())
}

func (g *entryLogger) GetLevel() Level {
	switch g.e.Logger.GetLevel() {
	case logrus.PanicLevel:
		return PanicLevel
	case logrus.FatalLevel:
		return FatalLevel
	case logrus.ErrorLevel:
		return ErrorLevel
	case logrus.WarnLevel:
		return WarnLevel
	case logrus.DebugLevel:
		return DebugLevel
	default:
		return InfoLevel
	}
}

func (g *entryLogger) WithFields(f Fields) Logger {
	return &entryLogger{e: g.e.WithFields(logrus.Fields(f)), ioLevel: g.ioLevel}
}

func (g *entryLogger) Debug(args ...interface{}) { g.e.Debug(args...) }
func (g *entryLogger) Info(args ...interface{})  { g.e.Info(args...) }
func (g *entryLogger) Warn(args ...interface{})  { g.e.Warn(args...) }
func (g *entryLogger) Error(args ...interface{}) { g.e.Error(args...) }
func (g *entryLogger) Fatal(args ...interface{}) { g.e.Fatal(args...) }

// FuncLog is a lazily-resolved Logger provider, used for dependency
// injection of a default logger across packages that are constructed
// before the node's own logger exists.
type FuncLog func() Logger

// Discard is a Logger that drops everything, used in tests and as a
// safe default before boot step 2 installs the real logger.
func Discard() Logger {
	return New("discard", InfoLevel, io.Discard)
}
