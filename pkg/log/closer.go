package log

import (
	"errors"
	"io"
	"sync/atomic"
)

// closer releases the log files opened by Setup. Close is idempotent and
// disables the hook before closing files, so an in-flight Fire can't write
// to an already-closed handle.
type closer struct {
	closers []io.Closer

	hook *hook

	closed int32
}

func (c *closer) Close() error {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}

	if c.hook != nil {
		c.hook.Close()
	}

	var errs error
	for _, closer := range c.closers {
		if closer == nil {
			continue
		}

		if s, ok := closer.(interface{ Sync() error }); ok {
			_ = s.Sync()
		}

		if err := closer.Close(); err != nil {
			errs = errors.Join(errs, err)
		}
	}

	return errs
}
