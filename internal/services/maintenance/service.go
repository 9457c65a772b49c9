// Package maintenance runs periodic housekeeping over the reminder store.
//
// Today that is a single job: deleting inactive reminders older than the
// retention window, so the table stays small on long-lived installs.
package maintenance

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "feedbot/pkg/logx"
)

type Config struct {
	Enabled   bool
	Schedule  string        // cron spec or descriptor; default "@daily"
	Retention time.Duration // default 30 days
}

func (c Config) withDefaults() Config {
	if c.Schedule == "" {
		c.Schedule = "@daily"
	}
	if c.Retention <= 0 {
		c.Retention = 30 * 24 * time.Hour
	}
	return c
}

// Cleaner is the slice of the store this service needs.
type Cleaner interface {
	CleanupOldScheduledEvents(ctx context.Context, olderThan time.Time) (int64, error)
}

type Service struct {
	mu sync.Mutex

	cfg     Config
	cleaner Cleaner
	log     logx.Logger

	parser cron.Parser
	c      *cron.Cron
}

func New(cfg Config, cleaner Cleaner, log logx.Logger) *Service {
	return &Service{
		cfg:     cfg.withDefaults(),
		cleaner: cleaner,
		log:     log,
		// SecondOptional allows both 5-field and 6-field (with seconds) cron specs.
		parser: cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.cfg.Enabled || s.c != nil {
		return nil
	}

	c := cron.New(cron.WithParser(s.parser))
	if _, err := c.AddFunc(s.cfg.Schedule, s.sweep); err != nil {
		return err
	}
	c.Start()
	s.c = c
	s.log.Info("service started", logx.String("schedule", s.cfg.Schedule), logx.Duration("retention", s.cfg.Retention))
	return nil
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
		s.log.Info("service stopped")
	case <-ctx.Done():
		// stop continues in background
	}
}

func (s *Service) sweep() {
	s.mu.Lock()
	retention := s.cfg.Retention
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cutoff := time.Now().Add(-retention)
	n, err := s.cleaner.CleanupOldScheduledEvents(ctx, cutoff)
	if err != nil {
		s.log.Warn("retention sweep failed", logx.Err(err))
		return
	}
	if n > 0 {
		s.log.Info("retention sweep removed old reminders", logx.Int64("removed", n), logx.Time("cutoff", cutoff))
	}
}
