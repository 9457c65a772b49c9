package maintenance

import (
	"context"
	"sync"
	"testing"
	"time"

	logx "feedbot/pkg/logx"
)

type fakeCleaner struct {
	mu      sync.Mutex
	cutoffs []time.Time
	removed int64
}

func (f *fakeCleaner) CleanupOldScheduledEvents(_ context.Context, olderThan time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cutoffs = append(f.cutoffs, olderThan)
	return f.removed, nil
}

func TestSweepUsesRetentionCutoff(t *testing.T) {
	t.Parallel()
	fc := &fakeCleaner{removed: 2}
	s := New(Config{Enabled: true, Retention: 48 * time.Hour}, fc, logx.Nop())

	before := time.Now().Add(-48 * time.Hour)
	s.sweep()
	after := time.Now().Add(-48 * time.Hour)

	fc.mu.Lock()
	defer fc.mu.Unlock()
	if len(fc.cutoffs) != 1 {
		t.Fatalf("cleaner called %d times, want 1", len(fc.cutoffs))
	}
	got := fc.cutoffs[0]
	if got.Before(before) || got.After(after) {
		t.Fatalf("cutoff %v outside [%v, %v]", got, before, after)
	}
}

func TestStartDisabledIsNoop(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: false}, &fakeCleaner{}, logx.Nop())
	if err := s.Start(); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	if s.c != nil {
		t.Fatal("disabled service started a cron loop")
	}
}

func TestStartRejectsBadSchedule(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true, Schedule: "not a cron spec"}, &fakeCleaner{}, logx.Nop())
	if err := s.Start(); err == nil {
		s.Stop(context.Background())
		t.Fatal("expected error for invalid schedule")
	}
}

func TestDefaults(t *testing.T) {
	t.Parallel()
	cfg := Config{}.withDefaults()
	if cfg.Schedule != "@daily" {
		t.Fatalf("Schedule = %q, want @daily", cfg.Schedule)
	}
	if cfg.Retention != 30*24*time.Hour {
		t.Fatalf("Retention = %v, want 720h", cfg.Retention)
	}
}
