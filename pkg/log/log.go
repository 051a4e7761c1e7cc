package log

import (
	"context"
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

// StandardLogger returns the global logrus logger, configured by Setup.
func StandardLogger() *Logger {
	return logrus.StandardLogger()
}

func SetOutput(out io.Writer) {
	logrus.SetOutput(out)
}

func SetFormatter(formatter Formatter) {
	logrus.SetFormatter(formatter)
}

func SetLevel(level Level) {
	logrus.SetLevel(level)
}

func WithField(key string, value interface{}) *Entry {
	return logrus.WithField(key, value)
}

func WithFields(fields Fields) *Entry {
	return logrus.WithFields(fields)
}

func WithContext(ctx context.Context) *Entry {
	return logrus.WithContext(ctx)
}

func WithError(err error) *Entry {
	return logrus.WithError(err)
}

func WithTime(t time.Time) *Entry {
	return logrus.WithTime(t)
}

// WithComponent tags the log entry with the subsystem it came from
// (e.g. "main", "pasteserver", "expiry.scheduler", "reconcile",
// "monitor.service").
func WithComponent(component string) *Entry {
	return logrus.WithField("component", component)
}

func WithComponentAndFields(component string, fields Fields) *Entry {
	return logrus.WithFields(fields).WithField("component", component)
}

var (
	Trace = logrus.Trace
	Debug = logrus.Debug
	Info  = logrus.Info
	Warn  = logrus.Warn
	Error = logrus.Error
	Fatal = logrus.Fatal
	Panic = logrus.Panic

	Tracef = logrus.Tracef
	Debugf = logrus.Debugf
	Infof  = logrus.Infof
	Warnf  = logrus.Warnf
	Errorf = logrus.Errorf
	Fatalf = logrus.Fatalf
	Panicf = logrus.Panicf
)
