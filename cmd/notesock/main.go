package main

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sir-photch/notesock/internal/alert"
	"github.com/sir-photch/notesock/internal/config"
	"github.com/sir-photch/notesock/internal/expiry"
	"github.com/sir-photch/notesock/internal/idgen"
	"github.com/sir-photch/notesock/internal/monitor"
	"github.com/sir-photch/notesock/internal/pasteserver"
	"github.com/sir-photch/notesock/internal/pkg/version"
	"github.com/sir-photch/notesock/internal/reconcile"
	applog "github.com/sir-photch/notesock/pkg/log"
)

const (
	logMaxAge = 30

	// expiryQueueSize bounds how many deletion jobs can be pending before
	// a worker enqueuing one blocks; generous enough that a burst of
	// pastes never stalls the paste server on the scheduler's goroutine.
	expiryQueueSize = 4096
)

const banner = `
              _                          _
  _ __   ___ | |_  ___  ___   ___   ___ | | __
 | '_ \ / _ \| __|/ _ \/ __| / _ \ / __|| |/ /
 | | | | (_) | |_|  __/\__ \| (_) | (__ |   <
 |_| |_|\___/ \__|\___||___/ \___/ \___||_|\_\  %s
--------------------------------------------------------------------------------
`

func main() {
	root := &cobra.Command{
		Use:           "notesock",
		Short:         "a pastebin server reachable over a unix domain socket",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}
	config.RegisterFlags(root.Flags())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "[FATAL] %v\n", err)
		os.Exit(1)
	}
}

// generatorWithCount is what main needs from an idgen.Generator: the
// allocate/release contract plus the live-count introspection
// internal/monitor polls. Both concrete generators satisfy it.
type generatorWithCount interface {
	idgen.Generator
	monitor.Counter
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}

	appLogCloser, err := applog.Setup(applog.Options{
		Name:              config.AppName,
		Level:             verbosityToLevel(cfg.Verbosity),
		MaxAge:            logMaxAge,
		EnableCriticalLog: true,
		EnableVerboseLog:  cfg.Verbosity > 0,
		EnableConsoleLog:  true,
		ReportCaller:      true,
		CallerPathPrefix:  "github.com/sir-photch/notesock",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "[FATAL] log system init failed, aborting startup: %v\n", err)
		os.Exit(1)
	}
	defer appLogCloser.Close()

	fmt.Printf(banner, version.Get().String())

	applog.WithComponentAndFields("main", applog.Fields{
		"version": version.Get().String(),
	}).Info("build info")

	reconciled, err := reconcile.Run(cfg.SockDir, cfg.Directory, config.SocketName, cfg.IDLower, cfg.NoCleanup)
	if err != nil {
		applog.WithComponent("main").WithError(err).Error("startup reconciliation failed")
		return err
	}
	applog.WithComponentAndFields("main", applog.Fields{
		"present": len(reconciled.Present),
		"purged":  reconciled.Purged,
	}).Info("startup reconciliation complete")

	generator, rangeSize, err := buildGenerator(cfg, reconciled.Present)
	if err != nil {
		applog.WithComponent("main").WithError(err).Error("identifier generator init failed")
		return err
	}
	generatorMu := &sync.Mutex{}

	notifier := buildNotifier(cfg)

	expirySched := expiry.NewScheduler(expiryQueueSize, generator, generatorMu)
	var expiryGroup errgroup.Group
	expiryGroup.Go(func() error {
		expirySched.Run()
		return nil
	})

	pasteSvc := pasteserver.NewService(pasteserver.Config{
		SockDir:         cfg.SockDir,
		SocketName:      config.SocketName,
		Mode:            os.FileMode(cfg.Mode),
		Host:            cfg.Host,
		Workers:         cfg.Workers,
		MaxSizeKiB:      cfg.MaxSizeKiB,
		TimeoutMS:       cfg.TimeoutMS,
		PasteDir:        cfg.Directory,
		TalkProxy:       cfg.TalkProxy,
		CleanupAfterSec: cfg.CleanupAfterSec,
		AcceptRate:      cfg.AcceptRate,
		MaxPendingConns: cfg.MaxPendingConns,
		Notifier:        notifier,
	}, generator, generatorMu, expirySched)

	monitorSvc := monitor.NewService(cfg.MonitorSchedule, generator, generatorMu, rangeSize, notifier)

	ctx, cancel := context.WithCancel(context.Background())
	wg := &sync.WaitGroup{}

	for name, svc := range map[string]interface {
		Start(context.Context, *sync.WaitGroup) error
	}{
		"pasteserver": pasteSvc,
		"monitor":     monitorSvc,
	} {
		wg.Add(1)
		if err := svc.Start(ctx, wg); err != nil {
			applog.WithComponentAndFields("main", applog.Fields{"service": name}).WithError(err).Error("service failed to start")

			cancel()
			wg.Wait()
			expirySched.Close()
			expiryGroup.Wait()

			return err
		}
	}

	// There is no graceful shutdown: the process runs until killed. ctx is
	// never canceled outside the startup-failure path above, so this
	// blocks forever.
	select {}
}

// buildGenerator picks Strategy B for a small identifier space, where a
// gap-refining prefetch buffer keeps ids maximally spread out, and falls
// back to Strategy A's plain random-with-retry once the range is large
// enough that collisions are rare and a prefetch buffer buys little.
func buildGenerator(cfg *config.AppConfig, present []string) (generatorWithCount, int, error) {
	lo, err := idgen.Decode(cfg.IDLower)
	if err != nil {
		return nil, 0, err
	}
	hi, err := idgen.Decode(cfg.IDUpper)
	if err != nil {
		return nil, 0, err
	}
	rangeSize := int(hi - lo)

	const strategyBThreshold = 10_000

	if rangeSize <= strategyBThreshold {
		gen, err := idgen.NewPartitionGenerator(cfg.IDLower, cfg.IDUpper, present, cfg.MonitorMaxPregen, idgen.CandidateRandom)
		if err != nil {
			return nil, 0, err
		}
		return gen, rangeSize, nil
	}

	gen, err := idgen.NewRandomGenerator(cfg.IDLower, cfg.IDUpper, present, 0)
	if err != nil {
		return nil, 0, err
	}
	return gen, rangeSize, nil
}

func buildNotifier(cfg *config.AppConfig) alert.Notifier {
	if cfg.TelegramBotToken == "" || cfg.TelegramChatID == 0 {
		return alert.NoOp{}
	}

	notifier, err := alert.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID)
	if err != nil {
		applog.WithComponent("main").WithError(err).Warn("telegram notifier init failed, alerting disabled")
		return alert.NoOp{}
	}
	return notifier
}

func verbosityToLevel(verbosity int) applog.Level {
	switch {
	case verbosity >= 2:
		return applog.TraceLevel
	case verbosity == 1:
		return applog.DebugLevel
	default:
		return applog.InfoLevel
	}
}
