// Package errors provides notesock's error taxonomy: a typed AppError that
// can be wrapped to accumulate context while preserving the original cause
// and a short stack trace.
//
// Creating an error:
//
//	err := errors.New(errors.IO, "socket directory missing")
//
// Wrapping one (adding context as it travels up the call stack):
//
//	if err != nil {
//	    return errors.Wrap(err, errors.IO, "write paste to disk")
//	}
//
// Checking a type:
//
//	if errors.Is(err, errors.Fatal) {
//	    // terminate the process
//	}
package errors

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"strings"
)

// ErrorType classifies an AppError by the kind of failure it represents.
type ErrorType int

const (
	// Unknown is the zero value: an error that isn't an AppError, or one
	// whose type was never set.
	Unknown ErrorType = iota

	// Configuration marks a bad or missing configuration value (flag,
	// config file, environment variable, or a cross-field invariant such
	// as id-lower >= id-upper).
	Configuration

	// IO marks a filesystem or socket operation failure: creating the
	// paste directory, writing index.txt, binding the unix socket,
	// removing an expired paste.
	IO

	// Protocol marks a malformed request on the wire: a PROXY header that
	// doesn't parse, a payload that isn't valid UTF-8, a read that never
	// completes before the deadline.
	Protocol

	// Capacity marks identifier-space exhaustion: the generator could not
	// allocate an id within its retry/pregen budget.
	Capacity

	// Internal marks a programming error or an invariant violation that
	// should never happen in a correctly running process.
	Internal

	// Fatal marks a condition the process cannot recover from and should
	// exit after (best-effort, bounded) cleanup and alerting.
	Fatal
)

func (t ErrorType) String() string {
	switch t {
	case Configuration:
		return "Configuration"
	case IO:
		return "IO"
	case Protocol:
		return "Protocol"
	case Capacity:
		return "Capacity"
	case Internal:
		return "Internal"
	case Fatal:
		return "Fatal"
	default:
		return "Unknown"
	}
}

// StackFrame is one entry of a captured call stack.
type StackFrame struct {
	File     string
	Line     int
	Function string
}

// defaultCallerSkip skips over captureStack itself and the New/Wrap
// constructor that calls it, landing on the actual call site.
const defaultCallerSkip = 3

func captureStack(skip int) []StackFrame {
	const maxFrames = 5
	pc := make([]uintptr, maxFrames)
	n := runtime.Callers(skip, pc)
	if n == 0 {
		return nil
	}

	callersFrames := runtime.CallersFrames(pc[:n])

	frames := make([]StackFrame, 0, n)
	for {
		frame, more := callersFrames.Next()
		frames = append(frames, StackFrame{
			File:     filepath.Base(frame.File),
			Line:     frame.Line,
			Function: frame.Function,
		})
		if !more {
			break
		}
	}

	return frames
}

// AppError is notesock's error type: a classification, a message meant for
// logs or an operator alert, an optional wrapped cause, and a short stack
// captured at construction time.
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Stack   []StackFrame
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Format implements fmt.Formatter; %+v prints the full cause chain and
// stack trace, anything else falls back to Error().
func (e *AppError) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			fmt.Fprintf(s, "[%s] %s", e.Type, e.Message)

			if len(e.Stack) > 0 {
				fmt.Fprint(s, "\nStack trace:")
				for _, frame := range e.Stack {
					funcName := frame.Function
					if idx := strings.LastIndex(funcName, "/"); idx != -1 {
						funcName = funcName[idx+1:]
					}
					fmt.Fprintf(s, "\n\t%s:%d %s", frame.File, frame.Line, funcName)
				}
			}

			if e.Cause != nil {
				fmt.Fprint(s, "\nCaused by:\n")
				if formatter, ok := e.Cause.(fmt.Formatter); ok {
					formatter.Format(s, verb)
				} else {
					fmt.Fprintf(s, "\t%v", e.Cause)
				}
			}
			return
		}
		fallthrough
	case 's':
		io.WriteString(s, e.Error())
	case 'q':
		fmt.Fprintf(s, "%q", e.Error())
	}
}

// New creates an AppError with no cause.
func New(errType ErrorType, message string) error {
	return &AppError{
		Type:    errType,
		Message: message,
		Stack:   captureStack(defaultCallerSkip),
	}
}

// Newf is New with fmt.Sprintf-style formatting.
func Newf(errType ErrorType, format string, args ...interface{}) error {
	return &AppError{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(defaultCallerSkip),
	}
}

// Wrap attaches a type and message to an existing error. Returns nil if err
// is nil, so callers can write `return errors.Wrap(err, ...)` unconditionally.
func Wrap(err error, errType ErrorType, message string) error {
	if err == nil {
		return nil
	}
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   err,
		Stack:   captureStack(defaultCallerSkip),
	}
}

// Wrapf is Wrap with fmt.Sprintf-style formatting.
func Wrapf(err error, errType ErrorType, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &AppError{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Cause:   err,
		Stack:   captureStack(defaultCallerSkip),
	}
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is reports whether err, or any error in its chain, is an AppError of the
// given type.
func Is(err error, errType ErrorType) bool {
	for err != nil {
		var appErr *AppError
		if errors.As(err, &appErr) && appErr.Type == errType {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// As wraps the standard library's errors.As.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// RootCause unwraps err all the way down and returns the innermost error.
func RootCause(err error) error {
	if err == nil {
		return nil
	}
	for {
		unwrapped := errors.Unwrap(err)
		if unwrapped == nil {
			return err
		}
		err = unwrapped
	}
}

// GetType returns err's ErrorType, or Unknown if err is nil or not an
// AppError.
func GetType(err error) ErrorType {
	if err == nil {
		return Unknown
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return Unknown
}
