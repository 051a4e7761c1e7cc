package pasteserver

import (
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"
	"unicode/utf8"

	proxyproto "github.com/pires/go-proxyproto"

	"github.com/sir-photch/notesock/internal/expiry"
	"github.com/sir-photch/notesock/internal/idgen"
	applog "github.com/sir-photch/notesock/pkg/log"
)

// Exact reply strings, matched byte-for-byte against the wire protocol.
const (
	replyInvalidUTF8  = "invalid utf-8\n"
	replyExhausted    = "server is currently not accepting new pastes. try again later.\n"
	replyInternal     = "an internal error has occurred" // no trailing newline, matches source
	indexFileName     = "index.txt"
)

func replyExceeded(limitKiB int) string {
	return fmt.Sprintf("Exceeded limit of %d kiB\n", limitKiB)
}

// worker is one paste-server goroutine from the fixed pool: it pulls
// connections off the shared queue and runs each one to completion before
// taking the next: one worker handles one connection end-to-end.
type worker struct {
	id  int
	cfg Config

	generator   idgen.Generator
	generatorMu *sync.Mutex

	expirySched *expiry.Scheduler
}

func (w *worker) handle(conn net.Conn) {
	defer conn.Close()

	fields := applog.Fields{"worker": w.id}
	log := applog.WithComponentAndFields(component, fields)

	var reader io.Reader = conn
	var wrapped *proxyproto.Conn
	if w.cfg.TalkProxy {
		wrapped = proxyproto.NewConn(conn)
		defer wrapped.Close()
		reader = wrapped
	}

	timeout := w.cfg.timeout()
	_ = conn.SetReadDeadline(time.Now().Add(timeout))
	_ = conn.SetWriteDeadline(time.Now().Add(timeout))

	limit := w.cfg.limitBytes()
	payload, err := readBounded(reader, limit)
	if err != nil {
		if err == errSizeExceeded {
			w.reply(conn, replyExceeded(w.cfg.MaxSizeKiB))
			log.Debug("rejected oversized payload")
			return
		}
		// Any other read error (timeout, reset, or a malformed PROXY
		// header surfaced by the wrapped reader's first Read) aborts the
		// connection silently, without a reply.
		log.WithError(err).Debug("connection aborted before a complete read")
		return
	}

	if w.cfg.TalkProxy && wrapped != nil {
		if hdr := wrapped.ProxyHeader(); hdr != nil {
			log = log.WithField("proxy_src", hdr.SourceAddr)
		}
	}

	if !utf8.Valid(payload) {
		w.reply(conn, replyInvalidUTF8)
		log.Debug("rejected invalid utf-8 payload")
		return
	}

	// A panic here while the lock is held is the "poisoned generator
	// lock" condition. Service.handleWithFatalAlert recovers it one frame
	// up only long enough to fire an operator alert, then re-panics so
	// the process still crashes rather than leaving generatorMu locked
	// forever.
	w.generatorMu.Lock()
	id, ok := w.generator.Allocate()
	w.generatorMu.Unlock()

	if !ok {
		w.reply(conn, replyExhausted)
		log.Warn("identifier space exhausted")
		return
	}

	fields["id"] = id
	log = log.WithField("id", id)

	dir := filepath.Join(w.cfg.PasteDir, id)
	if err := persist(dir, payload); err != nil {
		w.generatorMu.Lock()
		w.generator.Release(id)
		w.generatorMu.Unlock()

		log.WithError(err).Error("failed to persist paste; id released")
		w.reply(conn, replyInternal)
		return
	}

	expiresAt := time.Now().Add(w.cfg.expiry())
	w.expirySched.Enqueue(expiry.Job{Deadline: expiresAt, Dir: dir, ID: id})

	url := fmt.Sprintf("%s/%s | \U0001F9E6 expires in %s\n", w.cfg.Host, id, humanDuration(w.cfg.CleanupAfterSec))
	w.reply(conn, url)

	log.Debug("paste stored")
}

// persist creates <dir>/index.txt with payload. Any failure (directory
// creation or write) is reported as-is; the caller releases the id.
func persist(dir string, payload []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, indexFileName), payload, 0o644)
}

// reply writes msg and shuts the connection down: the read side first,
// then the write side once the reply has gone out. Write errors past
// that point are logged, never propagated.
func (w *worker) reply(conn net.Conn, msg string) {
	if tcp, ok := conn.(interface{ CloseRead() error }); ok {
		_ = tcp.CloseRead()
	}

	_ = conn.SetWriteDeadline(time.Now().Add(w.cfg.timeout()))
	if _, err := io.WriteString(conn, msg); err != nil {
		applog.WithComponent(component).WithError(err).Debug("failed to write reply")
	}

	if unix, ok := conn.(interface{ CloseWrite() error }); ok {
		_ = unix.CloseWrite()
	}
}

var errSizeExceeded = fmt.Errorf("payload exceeds configured limit")

// readBounded reads all of r into memory until EOF, stopping and returning
// errSizeExceeded the instant more than limit bytes have been seen, so a
// payload of exactly limit bytes is accepted and limit+1 is rejected.
func readBounded(r io.Reader, limit int) ([]byte, error) {
	buf := make([]byte, 0, limit+1)
	chunk := make([]byte, 4096)

	for {
		n, err := r.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			if len(buf) > limit {
				return nil, errSizeExceeded
			}
		}
		if err == io.EOF {
			return buf, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// humanDuration formats seconds as a short operator-facing duration:
//
//	seconds <= 60               -> "<x>s"
//	seconds > 60, x%60==0       -> "<x/60>m"
//	seconds > 60, x%60>0        -> "<x/60>m <x%60>s"
func humanDuration(seconds int) string {
	if seconds <= 60 {
		return fmt.Sprintf("%ds", seconds)
	}
	minutes := seconds / 60
	remainder := seconds % 60
	if remainder == 0 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%dm %ds", minutes, remainder)
}
