package log

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// hook fans a single log event out to the main, critical, verbose and
// console writers based on level, keeping noisy debug output out of the
// main operational log.
type hook struct {
	mainWriter     io.Writer // INFO/WARN/ERROR/FATAL/PANIC
	criticalWriter io.Writer // ERROR/FATAL/PANIC, isolated for incident response
	verboseWriter  io.Writer // DEBUG/TRACE
	consoleWriter  io.Writer // everything, mirrored to stdout

	formatter Formatter

	mu sync.RWMutex

	closed bool
}

func (h *hook) Levels() []Level {
	return AllLevels
}

func (h *hook) Fire(entry *Entry) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return nil
	}

	msg, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}

	var firstErr error

	if h.consoleWriter != nil {
		if _, err := h.consoleWriter.Write(msg); err != nil {
			fmt.Fprintf(os.Stderr, "log: console write failed: %v\n", err)
		}
	}

	// Critical: error and above. A failure here is deferred rather than
	// returned immediately so the main log still gets a chance to record it.
	if entry.Level <= ErrorLevel {
		if h.criticalWriter != nil {
			if _, err := h.criticalWriter.Write(msg); err != nil {
				firstErr = err
				fmt.Fprintf(os.Stderr, "log: critical log write failed: %v\n", err)
			}
		}
	}

	// Verbose: debug and below. Returns early so debug/trace noise never
	// reaches the main writer.
	if entry.Level >= DebugLevel {
		if h.verboseWriter != nil {
			if _, err := h.verboseWriter.Write(msg); err != nil {
				if firstErr == nil {
					firstErr = err
				}
				fmt.Fprintf(os.Stderr, "log: verbose log write failed: %v\n", err)
			}
		}
		return firstErr
	}

	// Main: info and above, always attempted regardless of the critical
	// writer's outcome.
	if h.mainWriter != nil {
		if _, err := h.mainWriter.Write(msg); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			fmt.Fprintf(os.Stderr, "log: main log write failed: %v\n", err)
		}
	}

	return firstErr
}

// Close stops the hook from accepting further writes.
func (h *hook) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true

	return nil
}
