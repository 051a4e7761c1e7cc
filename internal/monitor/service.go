// Package monitor implements notesock's capacity monitor: a supplemental,
// cron-scheduled task that logs identifier-space utilization and alerts
// once it crosses a fixed watermark. It never allocates or releases
// identifiers itself.
package monitor

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/sir-photch/notesock/internal/alert"
	"github.com/sir-photch/notesock/pkg/cronx"
	applog "github.com/sir-photch/notesock/pkg/log"
)

const component = "monitor.service"

// watermark is the utilization fraction at which an alert fires. Edge
// triggered: one alert per crossing, reset once utilization drops back
// under it.
const watermark = 0.9

// Counter reports how many identifiers are currently live, so the monitor
// can compute utilization without depending on idgen.Generator's
// Allocate/Release contract. *idgen.RandomGenerator and
// *idgen.PartitionGenerator both satisfy it via LiveCount.
type Counter interface {
	LiveCount() int
}

// Service polls a Counter on a cron schedule and logs/alerts on capacity.
type Service struct {
	schedule  string
	counter   Counter
	counterMu *sync.Mutex
	rangeSize int
	notifier  alert.Notifier

	cron *cron.Cron

	running   bool
	runningMu sync.Mutex

	crossed bool
}

// NewService constructs the monitor. counterMu must be the same mutex the
// paste-server Service and expiry.Scheduler use to guard the generator, so
// a LiveCount read during a cron tick never races an Allocate/Release.
func NewService(schedule string, counter Counter, counterMu *sync.Mutex, rangeSize int, notifier alert.Notifier) *Service {
	if notifier == nil {
		notifier = alert.NoOp{}
	}
	return &Service{
		schedule:  schedule,
		counter:   counter,
		counterMu: counterMu,
		rangeSize: rangeSize,
		notifier:  notifier,
	}
}

// Start registers the cron job and begins ticking. Mirrors the
// Start/Stop/runningMu shape used elsewhere in the codebase for
// long-lived background services.
func (s *Service) Start(ctx context.Context, wg *sync.WaitGroup) error {
	s.runningMu.Lock()
	defer s.runningMu.Unlock()

	if s.running {
		wg.Done()
		return nil
	}

	s.cron = cron.New(
		cron.WithParser(cronx.StandardParser()),
		cron.WithLogger(cron.VerbosePrintfLogger(applog.StandardLogger())),
		cron.WithChain(
			cron.Recover(cron.VerbosePrintfLogger(applog.StandardLogger())),
			cron.SkipIfStillRunning(cron.VerbosePrintfLogger(applog.StandardLogger())),
		),
	)

	if _, err := s.cron.AddFunc(s.schedule, func() { s.tick(ctx) }); err != nil {
		wg.Done()
		return err
	}

	s.cron.Start()
	s.running = true

	go func() {
		defer wg.Done()
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// Stop halts the cron engine and waits for any in-flight tick.
func (s *Service) Stop() {
	s.runningMu.Lock()
	defer s.runningMu.Unlock()

	if !s.running {
		return
	}

	if s.cron != nil {
		stopCtx := s.cron.Stop()
		<-stopCtx.Done()
	}

	s.cron = nil
	s.running = false
}

func (s *Service) tick(ctx context.Context) {
	s.counterMu.Lock()
	live := s.counter.LiveCount()
	s.counterMu.Unlock()

	utilization := float64(live) / float64(s.rangeSize)

	applog.WithComponentAndFields(component, applog.Fields{
		"live":        live,
		"range":       s.rangeSize,
		"utilization": utilization,
	}).Info("identifier space utilization")

	if utilization >= watermark && !s.crossed {
		s.crossed = true
		if err := s.notifier.Notify(ctx, "notesock: identifier space nearly exhausted",
			formatUtilization(live, s.rangeSize, utilization)); err != nil {
			applog.WithComponent(component).WithError(err).Warn("failed to deliver capacity alert")
		}
	} else if utilization < watermark {
		s.crossed = false
	}
}

func formatUtilization(live, rangeSize int, utilization float64) string {
	return fmt.Sprintf("%d/%d identifiers live (%.1f%% utilization)", live, rangeSize, utilization*100)
}
