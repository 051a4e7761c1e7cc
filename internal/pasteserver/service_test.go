package pasteserver

import (
	"bufio"
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/sir-photch/notesock/internal/expiry"
	"github.com/sir-photch/notesock/internal/idgen"
	"github.com/sir-photch/notesock/internal/reconcile"
	"github.com/sir-photch/notesock/internal/testutil"
)

// recordingNotifier counts Notify calls, for asserting alerting fired
// without depending on a real Telegram backend.
type recordingNotifier struct {
	calls int
}

func (n *recordingNotifier) Notify(_ context.Context, _, _ string) error {
	n.calls++
	return nil
}

// TestMain verifies that canceling a test-scoped Service leaves no worker,
// acceptor, or expiry-scheduler goroutine running behind it.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func startTestService(t *testing.T, cfg *Config) (*Service, context.CancelFunc) {
	t.Helper()

	gen, err := idgen.NewRandomGenerator("0", idgen.Encode(100000), nil, 64)
	require.NoError(t, err)

	var mu sync.Mutex
	sched := expiry.NewScheduler(16, gen, &mu)
	go sched.Run()
	t.Cleanup(func() {
		sched.Close()
		sched.Wait()
	})

	cfg.PasteDir = t.TempDir()
	cfg.SockDir = filepath.Dir(testutil.SocketPath(t.Name()))
	cfg.SocketName = filepath.Base(testutil.SocketPath(t.Name()))
	if cfg.Workers == 0 {
		cfg.Workers = 2
	}
	if cfg.Mode == 0 {
		cfg.Mode = 0o660
	}
	if cfg.Host == "" {
		cfg.Host = "http://x"
	}
	if cfg.TimeoutMS == 0 {
		cfg.TimeoutMS = 2000
	}

	svc := NewService(*cfg, gen, &mu, sched)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	require.NoError(t, svc.Start(ctx, &wg))

	socketPath := filepath.Join(cfg.SockDir, cfg.SocketName)
	require.NoError(t, testutil.WaitForSocket(socketPath, 2*time.Second))

	t.Cleanup(func() {
		cancel()
		svc.Wait()
		wg.Wait()
	})

	return svc, cancel
}

func dialAndSend(t *testing.T, socketPath string, payload []byte) string {
	t.Helper()

	conn, err := net.Dial("unix", socketPath)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write(payload)
	require.NoError(t, err)

	if unixConn, ok := conn.(*net.UnixConn); ok {
		require.NoError(t, unixConn.CloseWrite())
	}

	reply, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil && len(reply) == 0 {
		return ""
	}
	return reply
}

func TestPasteServerAcceptsAndStoresPaste(t *testing.T) {
	t.Parallel()

	cfg := Config{MaxSizeKiB: 512, CleanupAfterSec: 60, Host: "http://x"}
	svc, _ := startTestService(t, &cfg)

	socketPath := filepath.Join(cfg.SockDir, cfg.SocketName)
	reply := dialAndSend(t, socketPath, []byte("hello\n"))

	assert.Regexp(t, `^http://x/[a-z0-9]+ \| `+"\U0001F9E6"+` expires in 1m\n$`, reply)

	entries, err := os.ReadDir(cfg.PasteDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	data, err := os.ReadFile(filepath.Join(cfg.PasteDir, entries[0].Name(), "index.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(data))

	_ = svc
}

func TestPasteServerRejectsOversizedPayload(t *testing.T) {
	t.Parallel()

	cfg := Config{MaxSizeKiB: 1, CleanupAfterSec: 60}
	startTestService(t, &cfg)

	socketPath := filepath.Join(cfg.SockDir, cfg.SocketName)
	payload := bytes.Repeat([]byte("a"), 1025)
	reply := dialAndSend(t, socketPath, payload)

	assert.Equal(t, "Exceeded limit of 1 kiB\n", reply)

	entries, err := os.ReadDir(cfg.PasteDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPasteServerAcceptsPayloadAtExactLimit(t *testing.T) {
	t.Parallel()

	cfg := Config{MaxSizeKiB: 1, CleanupAfterSec: 60, Host: "http://x"}
	startTestService(t, &cfg)

	socketPath := filepath.Join(cfg.SockDir, cfg.SocketName)
	payload := bytes.Repeat([]byte("a"), 1024)
	reply := dialAndSend(t, socketPath, payload)

	assert.Contains(t, reply, "http://x/")
}

func TestPasteServerRejectsInvalidUTF8(t *testing.T) {
	t.Parallel()

	cfg := Config{MaxSizeKiB: 512, CleanupAfterSec: 60}
	startTestService(t, &cfg)

	socketPath := filepath.Join(cfg.SockDir, cfg.SocketName)
	reply := dialAndSend(t, socketPath, []byte{0xff, 0xfe})

	assert.Equal(t, "invalid utf-8\n", reply)

	entries, err := os.ReadDir(cfg.PasteDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPasteServerStripsProxyHeader(t *testing.T) {
	t.Parallel()

	cfg := Config{MaxSizeKiB: 512, CleanupAfterSec: 60, Host: "http://x", TalkProxy: true}
	startTestService(t, &cfg)

	socketPath := filepath.Join(cfg.SockDir, cfg.SocketName)
	header := "PROXY TCP4 127.0.0.1 127.0.0.2 443 12345\r\n"
	reply := dialAndSend(t, socketPath, []byte(header+"hello\n"))

	assert.Contains(t, reply, "http://x/")

	entries, err := os.ReadDir(cfg.PasteDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	data, err := os.ReadFile(filepath.Join(cfg.PasteDir, entries[0].Name(), "index.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(data), "the PROXY header line must not end up in the stored paste")
}

func TestPasteServerRejectsMalformedProxyHeader(t *testing.T) {
	t.Parallel()

	cfg := Config{MaxSizeKiB: 512, CleanupAfterSec: 60, Host: "http://x", TalkProxy: true}
	startTestService(t, &cfg)

	socketPath := filepath.Join(cfg.SockDir, cfg.SocketName)
	reply := dialAndSend(t, socketPath, []byte("NOTPROXY garbage\r\nhello\n"))

	assert.Empty(t, reply, "a malformed PROXY header aborts the connection without a reply")

	entries, err := os.ReadDir(cfg.PasteDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestHumanDuration(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "1s", humanDuration(1))
	assert.Equal(t, "60s", humanDuration(60))
	assert.Equal(t, "1m 1s", humanDuration(61))
}

func TestHumanDurationExactMinuteBoundary(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "2m", humanDuration(120))
	assert.Equal(t, "2m 5s", humanDuration(125))
}

// TestPasteServerExhaustsSmallRange: a two-id range accepts exactly two
// pastes before the third receives the exhaustion reply.
func TestPasteServerExhaustsSmallRange(t *testing.T) {
	t.Parallel()

	gen, err := idgen.NewRandomGenerator("0", idgen.Encode(2), nil, 64)
	require.NoError(t, err)

	var mu sync.Mutex
	sched := expiry.NewScheduler(16, gen, &mu)
	go sched.Run()
	t.Cleanup(func() {
		sched.Close()
		sched.Wait()
	})

	cfg := Config{
		MaxSizeKiB:      512,
		CleanupAfterSec: 60,
		Host:            "http://x",
		Workers:         1,
		Mode:            0o660,
		TimeoutMS:       2000,
		PasteDir:        t.TempDir(),
	}
	cfg.SockDir = filepath.Dir(testutil.SocketPath(t.Name()))
	cfg.SocketName = filepath.Base(testutil.SocketPath(t.Name()))

	svc := NewService(cfg, gen, &mu, sched)
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	require.NoError(t, svc.Start(ctx, &wg))
	t.Cleanup(func() { cancel(); svc.Wait(); wg.Wait() })

	socketPath := filepath.Join(cfg.SockDir, cfg.SocketName)
	require.NoError(t, testutil.WaitForSocket(socketPath, 2*time.Second))

	reply1 := dialAndSend(t, socketPath, []byte("a\n"))
	reply2 := dialAndSend(t, socketPath, []byte("b\n"))
	reply3 := dialAndSend(t, socketPath, []byte("c\n"))

	assert.Contains(t, reply1, "http://x/")
	assert.Contains(t, reply2, "http://x/")
	assert.Equal(t, replyExhausted, reply3)
}

// TestPasteServerExpiresPaste: a short-lived paste is deleted and its id
// released after the configured lifetime elapses.
func TestPasteServerExpiresPaste(t *testing.T) {
	t.Parallel()

	cfg := Config{MaxSizeKiB: 512, CleanupAfterSec: 1, Host: "http://x"}
	startTestService(t, &cfg)

	socketPath := filepath.Join(cfg.SockDir, cfg.SocketName)
	reply := dialAndSend(t, socketPath, []byte("bye\n"))
	assert.Contains(t, reply, "http://x/")

	entries, err := os.ReadDir(cfg.PasteDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	assert.Eventually(t, func() bool {
		remaining, err := os.ReadDir(cfg.PasteDir)
		return err == nil && len(remaining) == 0
	}, 3*time.Second, 50*time.Millisecond)
}

// TestPasteServerDoesNotLeakIDOnPersistFailure: when the directory a paste
// would be written into cannot be created, the allocated id is released
// back to the generator rather than staying stuck as live forever.
func TestPasteServerDoesNotLeakIDOnPersistFailure(t *testing.T) {
	t.Parallel()

	gen, err := idgen.NewRandomGenerator("0", idgen.Encode(1000), nil, 64)
	require.NoError(t, err)
	counter, ok := gen.(interface{ LiveCount() int })
	require.True(t, ok)

	var mu sync.Mutex
	sched := expiry.NewScheduler(16, gen, &mu)
	go sched.Run()
	t.Cleanup(func() {
		sched.Close()
		sched.Wait()
	})

	// A regular file standing where the paste directory's root should be
	// guarantees os.MkdirAll(dir, ...) fails for every allocated id, since
	// no directory component past a file can ever be created.
	brokenRoot := filepath.Join(t.TempDir(), "not-a-directory")
	require.NoError(t, os.WriteFile(brokenRoot, []byte("x"), 0o644))

	cfg := Config{
		MaxSizeKiB:      512,
		CleanupAfterSec: 60,
		Host:            "http://x",
		Workers:         1,
		Mode:            0o660,
		TimeoutMS:       2000,
		PasteDir:        brokenRoot,
	}
	cfg.SockDir = filepath.Dir(testutil.SocketPath(t.Name()))
	cfg.SocketName = filepath.Base(testutil.SocketPath(t.Name()))

	svc := NewService(cfg, gen, &mu, sched)
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	require.NoError(t, svc.Start(ctx, &wg))
	t.Cleanup(func() { cancel(); svc.Wait(); wg.Wait() })

	socketPath := filepath.Join(cfg.SockDir, cfg.SocketName)
	require.NoError(t, testutil.WaitForSocket(socketPath, 2*time.Second))

	reply := dialAndSend(t, socketPath, []byte("hello\n"))
	assert.Equal(t, replyInternal, reply)

	mu.Lock()
	live := counter.LiveCount()
	mu.Unlock()
	assert.Zero(t, live, "id allocated for the failed paste must be released, not leaked")
}

// TestPasteServerHonorsReconciledPresentIDs ties the startup reconciler to
// the generator end to end: a survivor directory kept by --no-cleanup must
// never be handed out again, and must survive untouched.
func TestPasteServerHonorsReconciledPresentIDs(t *testing.T) {
	t.Parallel()

	pasteDir := t.TempDir()
	sockDir := t.TempDir()

	survivorDir := filepath.Join(pasteDir, "1")
	require.NoError(t, os.MkdirAll(survivorDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(survivorDir, "index.txt"), []byte("old\n"), 0o644))

	result, err := reconcile.Run(sockDir, pasteDir, "note.sock", "0", true)
	require.NoError(t, err)
	require.Equal(t, []string{"1"}, result.Present)
	require.Zero(t, result.Purged)

	// Range {0, 1, 2}; "1" is already live, leaving exactly two allocatable
	// ids for fresh pastes.
	gen, err := idgen.NewRandomGenerator("0", idgen.Encode(3), result.Present, 64)
	require.NoError(t, err)

	var mu sync.Mutex
	sched := expiry.NewScheduler(16, gen, &mu)
	go sched.Run()
	t.Cleanup(func() {
		sched.Close()
		sched.Wait()
	})

	cfg := Config{
		MaxSizeKiB:      512,
		CleanupAfterSec: 60,
		Host:            "http://x",
		Workers:         1,
		Mode:            0o660,
		TimeoutMS:       2000,
		PasteDir:        pasteDir,
		SockDir:         sockDir,
		SocketName:      "note.sock",
	}

	svc := NewService(cfg, gen, &mu, sched)
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	require.NoError(t, svc.Start(ctx, &wg))
	t.Cleanup(func() { cancel(); svc.Wait(); wg.Wait() })

	socketPath := filepath.Join(sockDir, "note.sock")
	require.NoError(t, testutil.WaitForSocket(socketPath, 2*time.Second))

	reply1 := dialAndSend(t, socketPath, []byte("a\n"))
	reply2 := dialAndSend(t, socketPath, []byte("b\n"))
	reply3 := dialAndSend(t, socketPath, []byte("c\n"))

	assert.Contains(t, reply1, "http://x/")
	assert.Contains(t, reply2, "http://x/")
	assert.Equal(t, replyExhausted, reply3, "the survivor id must not be handed out, leaving only two free ids")

	assert.NotContains(t, reply1, "http://x/1 ")
	assert.NotContains(t, reply2, "http://x/1 ")

	data, err := os.ReadFile(filepath.Join(survivorDir, "index.txt"))
	require.NoError(t, err)
	assert.Equal(t, "old\n", string(data), "the survivor directory must be left untouched")
}

// TestHandleWithFatalAlertNotifiesBeforeCrashing exercises the fatal-runtime
// alert wiring directly: a worker with a nil generatorMu panics the instant
// it reaches the allocate stage, standing in for a poisoned generator lock.
// handleWithFatalAlert must fire exactly one alert before letting the panic
// propagate.
func TestHandleWithFatalAlertNotifiesBeforeCrashing(t *testing.T) {
	t.Parallel()

	notifier := &recordingNotifier{}
	svc := &Service{notifier: notifier}
	w := &worker{id: 7, cfg: Config{TimeoutMS: 2000, MaxSizeKiB: 512}}

	server, client := net.Pipe()
	go func() {
		_, _ = client.Write([]byte("ok\n"))
		client.Close()
	}()

	func() {
		defer func() {
			r := recover()
			require.NotNil(t, r, "handleWithFatalAlert must re-panic after alerting")
		}()
		svc.handleWithFatalAlert(w, server)
	}()

	assert.Equal(t, 1, notifier.calls)
}
