// Package pixellog provides the daemon's structured logging facade.
package pixellog

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger wraps logrus.Logger so call sites depend on one small type
// instead of the logrus package directly.
type Logger struct {
	*logrus.Logger
}

// Config controls level/format/output of a Logger.
type Config struct {
	Level  string
	Format string
}

// New builds a Logger from Config. Unrecognized levels fall back to Info;
// unrecognized formats fall back to text.
func New(cfg Config) *Logger {
	l := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	l.SetOutput(os.Stdout)

	return &Logger{Logger: l}
}

// NewDefault returns an info-level, text-format logger. The name argument is
// not attached to the entries the returned logger writes.
func NewDefault(name string) *Logger {
	l := New(Config{Level: "info", Format: "text"})
	return &Logger{Logger: l.WithField("component", name).Logger}
}

// WithField returns a new log entry carrying key.
func (l *Logger) WithField(key string, value interface{}) *logrus.Entry {
	return l.Logger.WithField(key, value)
}

// WithFields returns a new log entry carrying fields.
func (l *Logger) WithFields(fields logrus.Fields) *logrus.Entry {
	return l.Logger.WithFields(fields)
}

// deviceLevel maps the scheduler's per-device LoggingLevel enum onto a
// logrus level, used by scene ctx.Log() to filter calls below the
// device's configured minimum.
func deviceLevel(level string) (logrus.Level, bool) {
	switch strings.ToLower(level) {
	case "debug":
		return logrus.DebugLevel, true
	case "info":
		return logrus.InfoLevel, true
	case "warning", "warn":
		return logrus.WarnLevel, true
	case "error":
		return logrus.ErrorLevel, true
	case "silent":
		return logrus.PanicLevel, true // above Error; nothing logs through it
	default:
		return logrus.InfoLevel, false
	}
}

// Allowed reports whether a message at msgLevel should be emitted given a
// device's configured minimum logging level.
func Allowed(minLevel, msgLevel string) bool {
	min, ok := deviceLevel(minLevel)
	if !ok {
		min = logrus.WarnLevel
	}
	msg, ok := deviceLevel(msgLevel)
	if !ok {
		msg = logrus.InfoLevel
	}
	return msg <= min
}
