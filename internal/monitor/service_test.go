package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sir-photch/notesock/internal/alert"
)

type fakeCounter struct {
	mu   sync.Mutex
	live int
}

func (f *fakeCounter) set(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.live = n
}

func (f *fakeCounter) LiveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.live
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeNotifier) Notify(context.Context, string, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return nil
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestMonitorAlertsOnceOnWatermarkCrossing(t *testing.T) {
	t.Parallel()

	counter := &fakeCounter{live: 95}
	notifier := &fakeNotifier{}
	var mu sync.Mutex

	svc := NewService("* * * * * *", counter, &mu, 100, notifier)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	require.NoError(t, svc.Start(ctx, &wg))

	assert.Eventually(t, func() bool { return notifier.count() >= 1 }, 3*time.Second, 50*time.Millisecond)

	// Later ticks while still above the watermark must not alert again.
	time.Sleep(1200 * time.Millisecond)
	assert.Equal(t, 1, notifier.count())

	cancel()
	wg.Wait()
}

func TestMonitorResetsAlertBelowWatermark(t *testing.T) {
	t.Parallel()

	counter := &fakeCounter{live: 95}
	notifier := &fakeNotifier{}
	var mu sync.Mutex

	svc := NewService("* * * * * *", counter, &mu, 100, notifier)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	require.NoError(t, svc.Start(ctx, &wg))

	assert.Eventually(t, func() bool { return notifier.count() == 1 }, 3*time.Second, 50*time.Millisecond)

	// Dropping below the watermark fires nothing but re-arms the alert.
	counter.set(10)
	time.Sleep(1200 * time.Millisecond)
	assert.Equal(t, 1, notifier.count())

	counter.set(95)
	assert.Eventually(t, func() bool { return notifier.count() == 2 }, 3*time.Second, 50*time.Millisecond)

	cancel()
	wg.Wait()
}

func TestMonitorUsesNoOpWhenNotifierNil(t *testing.T) {
	t.Parallel()

	counter := &fakeCounter{live: 0}
	var mu sync.Mutex

	svc := NewService("@every 1h", counter, &mu, 100, nil)
	assert.IsType(t, alert.NoOp{}, svc.notifier)
}
