// Package pasteserver implements notesock's paste-ingest pipeline: the
// acceptor/dispatcher and the per-connection paste worker state
// machine.
package pasteserver

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/net/netutil"
	"golang.org/x/time/rate"

	"github.com/sir-photch/notesock/internal/alert"
	"github.com/sir-photch/notesock/internal/expiry"
	"github.com/sir-photch/notesock/internal/idgen"
	apperrors "github.com/sir-photch/notesock/internal/pkg/errors"
	applog "github.com/sir-photch/notesock/pkg/log"
)

const component = "pasteserver"

// Config holds every paste-server tunable, all sourced from the CLI
// flags plus the domain-stack's accept-rate and pending-connection limits.
type Config struct {
	SockDir    string
	SocketName string
	Mode       os.FileMode

	Host            string
	Workers         int
	MaxSizeKiB      int
	TimeoutMS       int
	PasteDir        string
	TalkProxy       bool
	CleanupAfterSec int

	// AcceptRate caps accepted connections per second; <= 0 means
	// unlimited.
	AcceptRate float64

	// MaxPendingConns bounds, via netutil.LimitListener, how many accepted
	// connections may be open at once, whether still queued or being
	// handled by a worker; <= 0 means unlimited.
	MaxPendingConns int

	// Notifier receives a best-effort alert when a worker panics on a
	// fatal runtime condition (expiry queue send failure, poisoned
	// generator lock), fired just before the panic is allowed to crash
	// the process. Nil is treated as alert.NoOp{}.
	Notifier alert.Notifier
}

// Service owns the listening socket, the fixed worker pool, and the
// single-producer/multi-consumer connection queue between them.
type Service struct {
	cfg Config

	generator   idgen.Generator
	generatorMu *sync.Mutex

	expirySched *expiry.Scheduler

	listener net.Listener
	conns    chan net.Conn

	limiter  *rate.Limiter
	notifier alert.Notifier

	wg sync.WaitGroup
}

// NewService constructs a Service. generator/generatorMu must be the same
// handle shared with internal/expiry.
func NewService(cfg Config, generator idgen.Generator, generatorMu *sync.Mutex, expirySched *expiry.Scheduler) *Service {
	var limiter *rate.Limiter
	if cfg.AcceptRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.AcceptRate), int(cfg.AcceptRate)+1)
	}

	notifier := cfg.Notifier
	if notifier == nil {
		notifier = alert.NoOp{}
	}

	return &Service{
		cfg:         cfg,
		generator:   generator,
		generatorMu: generatorMu,
		expirySched: expirySched,
		conns:       make(chan net.Conn, 2*cfg.Workers),
		limiter:     limiter,
		notifier:    notifier,
	}
}

// Start binds the unix socket, applies its permission mode, and launches
// the acceptor plus the fixed worker pool. It returns once the socket is
// bound and listening; the acceptor keeps running on its own goroutine,
// tracked by wg, and the workers on theirs, tracked by the Service itself
// (see Wait).
//
// The accept loop feeds an SPMC queue buffered to 2*workers connections.
// net.Listen applies the operating system's default listen backlog; no
// backlog is set from the worker count. ctx is test-only scaffolding: the shipped main never
// cancels it, since there is no graceful shutdown in production.
func (s *Service) Start(ctx context.Context, wg *sync.WaitGroup) error {
	socketPath := filepath.Join(s.cfg.SockDir, s.cfg.SocketName)

	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		return apperrors.Wrapf(err, apperrors.IO, "bind unix socket %q", socketPath)
	}

	if err := os.Chmod(socketPath, s.cfg.Mode); err != nil {
		ln.Close()
		return apperrors.Wrapf(err, apperrors.IO, "chmod unix socket %q", socketPath)
	}

	if s.cfg.MaxPendingConns > 0 {
		ln = netutil.LimitListener(ln, s.cfg.MaxPendingConns)
	}
	s.listener = ln

	for i := 0; i < s.cfg.Workers; i++ {
		s.wg.Add(1)
		go s.runWorker(i)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.acceptLoop(ctx)
	}()

	applog.WithComponentAndFields(component, applog.Fields{
		"socket":  socketPath,
		"workers": s.cfg.Workers,
		"backlog": 2 * s.cfg.Workers,
	}).Info("paste server listening")

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// Stop closes the listener; the acceptor then returns and closes the
// connection queue, which lets every worker return. Test-only scaffolding; production
// main never calls it directly (ctx cancellation in tests triggers it).
func (s *Service) Stop() {
	if s.listener != nil {
		_ = s.listener.Close()
	}
}

// Wait blocks until every worker goroutine has returned.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) acceptLoop(ctx context.Context) {
	defer close(s.conns)

	for {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return
			}
		}

		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if isClosedErr(err) {
				return
			}
			applog.WithComponent(component).WithError(err).Warn("accept failed")
			continue
		}

		select {
		case s.conns <- conn:
		case <-ctx.Done():
			_ = conn.Close()
			return
		}
	}
}

func (s *Service) runWorker(id int) {
	defer s.wg.Done()

	w := &worker{
		id:          id,
		cfg:         s.cfg,
		generator:   s.generator,
		generatorMu: s.generatorMu,
		expirySched: s.expirySched,
	}

	for conn := range s.conns {
		s.handleWithFatalAlert(w, conn)
	}
}

// handleWithFatalAlert runs one connection through w.handle. If it panics
// on a fatal runtime condition (an expiry-queue send past Close, or a
// poisoned generatorMu critical section), the panic is recovered only long
// enough to fire a best-effort operator alert, then re-raised so it still
// crashes the process.
func (s *Service) handleWithFatalAlert(w *worker, conn net.Conn) {
	defer func() {
		if r := recover(); r != nil {
			alertCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := s.notifier.Notify(alertCtx, "notesock fatal", fmt.Sprintf("worker %d panicked: %v", w.id, r)); err != nil {
				applog.WithComponent(component).WithError(err).Warn("failed to deliver fatal alert")
			}
			cancel()
			panic(r)
		}
	}()
	w.handle(conn)
}

func isClosedErr(err error) bool {
	var netErr *net.OpError
	if ok := apperrors.As(err, &netErr); ok {
		return netErr.Err.Error() == "use of closed network connection"
	}
	return false
}

// timeout returns the configured per-connection read/write timeout as a
// time.Duration.
func (c Config) timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// limitBytes is the maximum payload size in bytes.
func (c Config) limitBytes() int {
	return c.MaxSizeKiB * 1024
}

// expiry is the configured paste lifetime as a time.Duration.
func (c Config) expiry() time.Duration {
	return time.Duration(c.CleanupAfterSec) * time.Second
}
