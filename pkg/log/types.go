package log

import (
	"github.com/sirupsen/logrus"
)

// Level is an alias for logrus.Level.
type Level = logrus.Level

const (
	// PanicLevel is the highest severity. Logs the message then calls panic(),
	// unwinding the current goroutine. Reserved for unrecoverable internal errors.
	PanicLevel Level = logrus.PanicLevel

	// FatalLevel logs the message then calls os.Exit(1). Used for startup
	// failures and conditions the process cannot continue past.
	FatalLevel Level = logrus.FatalLevel

	// ErrorLevel does not stop the process, but indicates a condition that
	// needs operator attention or a bug fix.
	ErrorLevel Level = logrus.ErrorLevel

	// WarnLevel flags something that isn't yet an error but deserves attention.
	WarnLevel Level = logrus.WarnLevel

	// InfoLevel records normal operational flow and state changes.
	InfoLevel Level = logrus.InfoLevel

	// DebugLevel carries detail useful while developing or diagnosing issues.
	DebugLevel Level = logrus.DebugLevel

	// TraceLevel is the finest granularity, below Debug.
	TraceLevel Level = logrus.TraceLevel
)

// AllLevels is an alias for logrus.AllLevels.
var AllLevels = logrus.AllLevels

// Fields is an alias for logrus.Fields.
type Fields = logrus.Fields

// Entry is an alias for logrus.Entry.
type Entry = logrus.Entry

// Hook is an alias for logrus.Hook.
type Hook = logrus.Hook

// Logger is an alias for logrus.Logger.
type Logger = logrus.Logger

// Formatter is an alias for logrus.Formatter.
type Formatter = logrus.Formatter

// JSONFormatter is an alias for logrus.JSONFormatter.
type JSONFormatter = logrus.JSONFormatter

// TextFormatter is an alias for logrus.TextFormatter.
type TextFormatter = logrus.TextFormatter
