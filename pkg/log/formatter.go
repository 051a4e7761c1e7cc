package log

import "github.com/sirupsen/logrus"

// silentFormatter discards every entry without formatting it. Logrus still
// runs the configured formatter even when the output is io.Discard, so the
// standard logger is pointed at this no-op and the hook does the real
// formatting once per entry.
type silentFormatter struct{}

func (f *silentFormatter) Format(_ *logrus.Entry) ([]byte, error) {
	return nil, nil
}
