// Package app wires feedbot together: config, logging, storage, the
// scheduler core, the broadcast sink and the Telegram transport. Everything
// is constructed once and passed explicitly; there are no package-level
// service singletons.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"feedbot/internal/config"
	"feedbot/internal/services/broadcast"
	"feedbot/internal/services/feeding"
	"feedbot/internal/services/maintenance"
	"feedbot/internal/storage"
	kit "feedbot/internal/transport"
	"feedbot/internal/transport/telegram"
	logx "feedbot/pkg/logx"
)

type App struct {
	cfgPath string
	cfgm    *config.Manager

	log  logx.Logger
	logs *logx.Service

	store   *storage.Store
	adapter kit.Adapter

	bcast *broadcast.Service
	sched *feeding.Service
	maint *maintenance.Service

	loc *time.Location

	updates   chan kit.Update
	runCancel context.CancelFunc
	wg        sync.WaitGroup
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	bootLog := logx.NewConsole("INFO").With(logx.String("comp", "telegram"))
	ad, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, bootLog)
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLoggingConfig(cfg))
	log = log.With(logx.String("comp", "app"))

	busyTimeout, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(storage.Config{
		Path:        cfg.Storage.Path,
		BusyTimeout: busyTimeout,
	}, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}

	loc := time.Local
	if tz := cfg.Feeding.Timezone; tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			log.Warn("invalid feeding.timezone; falling back to Local", logx.String("tz", tz), logx.Err(err))
		} else {
			loc = l
		}
	}

	bcast := broadcast.New(broadcast.Config{
		Workers:    cfg.Broadcast.Workers,
		RatePerSec: cfg.Broadcast.RatePerSec,
		RetryMax:   cfg.Broadcast.RetryMax,
	}, ad, store, log.With(logx.String("comp", "broadcast")))

	fcfg, err := mapFeedingConfig(cfg)
	if err != nil {
		return nil, err
	}
	sched := feeding.New(fcfg, store, bcast, log.With(logx.String("comp", "feeding")))

	mcfg, err := mapCleanupConfig(cfg)
	if err != nil {
		return nil, err
	}
	maint := maintenance.New(mcfg, store, log.With(logx.String("comp", "maintenance")))

	return &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		store:   store,
		adapter: ad,
		bcast:   bcast,
		sched:   sched,
		maint:   maint,
		loc:     loc,
		updates: make(chan kit.Update, 256),
	}, nil
}

// Start brings everything up in dependency order. The scheduler restores
// persisted reminders before the transport starts accepting commands, so a
// caller can never observe the pre-Initialize state.
func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.runCancel = cancel

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return validateConfig(cfg)
	})
	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		_ = a.cfgm.Watch(runCtx)
	}()
	sub := a.cfgm.Subscribe(4)
	go func() {
		defer a.wg.Done()
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-runCtx.Done():
				return
			case cfg, ok := <-sub:
				if !ok {
					return
				}
				a.applyConfig(cfg)
			}
		}
	}()

	a.bcast.Start(runCtx)
	a.sched.Initialize(runCtx)
	if err := a.maint.Start(); err != nil {
		cancel()
		return fmt.Errorf("start maintenance: %w", err)
	}
	if err := a.adapter.Start(runCtx, a.updates); err != nil {
		cancel()
		return fmt.Errorf("start transport: %w", err)
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.updateLoop(runCtx)
	}()

	// Tell systemd we're ready (no-op outside a unit).
	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	a.log.Info("started")
	return nil
}

// Stop tears down in reverse order. Timers are disarmed before the store and
// transport go away so no fire callback hits a closed collaborator.
func (a *App) Stop(ctx context.Context) error {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	_ = a.adapter.Stop(ctx)
	a.sched.Shutdown()
	a.maint.Stop(ctx)
	a.bcast.Stop(ctx)

	if a.runCancel != nil {
		a.runCancel()
	}
	a.wg.Wait()

	if err := a.store.Close(); err != nil {
		a.log.Warn("store close failed", logx.Err(err))
	}
	a.log.Info("stopped")
	_ = a.logs.Close()
	return nil
}

// applyConfig pushes a hot-reloaded config into the live services. The
// Telegram token and storage path need a restart; everything else applies.
func (a *App) applyConfig(cfg *config.Config) {
	if cfg == nil {
		return
	}
	a.logs.Apply(mapLoggingConfig(cfg))

	if fcfg, err := mapFeedingConfig(cfg); err == nil {
		a.sched.Apply(fcfg)
	}
	a.bcast.Apply(broadcast.Config{
		Workers:    cfg.Broadcast.Workers,
		RatePerSec: cfg.Broadcast.RatePerSec,
		RetryMax:   cfg.Broadcast.RetryMax,
	})
	a.log.Info("config reloaded")
}

func mapLoggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapFeedingConfig(cfg *config.Config) (feeding.Config, error) {
	minLead, err := config.ParseDurationOrDefault("feeding.min_lead", cfg.Feeding.MinLead, 5*time.Minute)
	if err != nil {
		return feeding.Config{}, err
	}
	maxHorizon, err := config.ParseDurationOrDefault("feeding.max_horizon", cfg.Feeding.MaxHorizon, 7*24*time.Hour)
	if err != nil {
		return feeding.Config{}, err
	}
	return feeding.Config{
		MaxActive:  cfg.Feeding.MaxActive,
		MinLead:    minLead,
		MaxHorizon: maxHorizon,
	}, nil
}

func mapCleanupConfig(cfg *config.Config) (maintenance.Config, error) {
	// Omitted section: sweep daily with the default window.
	if cfg.Cleanup == nil {
		return maintenance.Config{Enabled: true}, nil
	}
	retention, err := config.ParseDurationField("cleanup.retention", cfg.Cleanup.Retention)
	if err != nil {
		return maintenance.Config{}, err
	}
	return maintenance.Config{
		Enabled:   cfg.Cleanup.Enabled,
		Schedule:  cfg.Cleanup.Schedule,
		Retention: retention,
	}, nil
}

func validateConfig(cfg *config.Config) error {
	if cfg.Feeding.MaxActive < 0 {
		return fmt.Errorf("feeding.max_active must be >= 0")
	}
	if _, err := config.ParseDurationField("feeding.min_lead", cfg.Feeding.MinLead); err != nil {
		return err
	}
	if _, err := config.ParseDurationField("feeding.max_horizon", cfg.Feeding.MaxHorizon); err != nil {
		return err
	}
	if _, err := config.ParseDurationField("telegram.poll_timeout", cfg.Telegram.PollTimeout); err != nil {
		return err
	}
	if cfg.Broadcast.Workers < 0 {
		return fmt.Errorf("broadcast.workers must be >= 0")
	}
	if cfg.Cleanup != nil {
		if _, err := config.ParseDurationField("cleanup.retention", cfg.Cleanup.Retention); err != nil {
			return err
		}
	}
	return nil
}
