package log

import (
	"fmt"
	"os"
)

// Options configures the logger.
type Options struct {
	Name  string // application identifier used to name log files
	Dir   string // directory log files are written to
	Level Level  // minimum level

	MaxAge     int // days to retain rotated files (0: keep forever)
	MaxSizeMB  int // max size per file in MB (0: default 100MB)
	MaxBackups int // max rotated files retained (0: default 20)

	EnableCriticalLog bool // mirror ERROR/FATAL/PANIC into a dedicated file
	EnableVerboseLog  bool // mirror DEBUG/TRACE into a dedicated file
	EnableConsoleLog  bool // also write to stdout (useful in development)

	// ReportCaller records the function and line the log call originated from.
	ReportCaller bool

	// CallerPathPrefix is cut from the front of the reported caller's fully
	// qualified function name and replaced with "...", e.g.
	// "github.com/acme/svc/pkg/server.Run(line:12)" -> ".../pkg/server.Run(line:12)".
	// The caller's file path is not reported.
	CallerPathPrefix string
}

// Validate checks Options for invalid values.
func (opts *Options) Validate() error {
	if opts.Name == "" {
		return fmt.Errorf("log: Name must be set")
	}

	if opts.Dir != "" {
		if info, err := os.Stat(opts.Dir); err == nil && !info.IsDir() {
			return fmt.Errorf("log: Dir %q already exists as a file", opts.Dir)
		}
	}

	if opts.MaxAge < 0 {
		return fmt.Errorf("log: MaxAge must be >= 0, got %d", opts.MaxAge)
	}
	if opts.MaxSizeMB < 0 {
		return fmt.Errorf("log: MaxSizeMB must be >= 0, got %d", opts.MaxSizeMB)
	}
	if opts.MaxBackups < 0 {
		return fmt.Errorf("log: MaxBackups must be >= 0, got %d", opts.MaxBackups)
	}

	return nil
}
