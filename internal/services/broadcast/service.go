package broadcast

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"golang.org/x/time/rate"

	"feedbot/internal/storage"
	kit "feedbot/internal/transport"
	logx "feedbot/pkg/logx"
)

// ErrNotRunning is returned by SendToAll before Start() or after Stop().
var ErrNotRunning = errors.New("broadcast service is not running")

func New(cfg Config, adapter kit.Adapter, recipients Recipients, log logx.Logger) *Service {
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 10
	}
	return &Service{
		cfg:        cfg,
		adapter:    adapter,
		recipients: recipients,
		log:        log,
		limiter:    rate.NewLimiter(rate.Limit(rps), rps),
	}
}

func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	rps := s.cfg.RatePerSec
	if rps <= 0 {
		rps = 10
	}
	s.limiter = rate.NewLimiter(rate.Limit(rps), rps)
}

func (s *Service) Start(ctx context.Context) {
	// If a Stop() is in progress, wait for it to complete (prevents double worker pools).
	for {
		s.mu.Lock()
		if s.stopCh == nil {
			break
		}
		done := s.stopDone
		if done == nil {
			// already running
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()
		select {
		case <-done:
			// loop
		case <-ctx.Done():
			return
		}
	}
	defer s.mu.Unlock()
	s.stopCh = make(chan struct{})
	s.runCtx, s.runCancel = context.WithCancel(ctx)

	workers := s.cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	// Fresh queue per run so a stop/start cycle drops stale payloads.
	s.queue = make(chan job, 64)

	queue := s.queue
	stopCh := s.stopCh
	runCtx := s.runCtx

	s.workerWG.Add(workers)
	for i := 0; i < workers; i++ {
		idx := i
		go func() {
			defer s.workerWG.Done()
			defer func() {
				if r := recover(); r != nil {
					s.log.Error("panic in broadcast worker", logx.Int("worker", idx), logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
				}
			}()
			s.worker(runCtx, stopCh, queue)
		}()
	}

	s.log.Info("service started", logx.Int("workers", workers))
}

func (s *Service) Stop(ctx context.Context) {
	start := time.Now()
	s.mu.Lock()
	if s.stopCh == nil {
		s.mu.Unlock()
		return
	}
	// If a stop is already in progress, just wait for it.
	if s.stopDone != nil {
		done := s.stopDone
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
		}
		return
	}

	done := make(chan struct{})
	s.stopDone = done
	stopCh := s.stopCh
	cancel := s.runCancel
	s.runCancel = nil
	s.queue = nil
	s.mu.Unlock()

	close(stopCh)
	if cancel != nil {
		cancel()
	}

	go func() {
		s.workerWG.Wait()
		s.mu.Lock()
		s.stopCh = nil
		s.runCtx = nil
		s.stopDone = nil
		s.mu.Unlock()
		close(done)
		s.log.Info("service stopped", logx.Duration("took", time.Since(start)))
	}()

	select {
	case <-done:
	case <-ctx.Done():
		// stop continues in background
	}
}

// SendToAll enqueues one broadcast of text to every subscriber, minus the
// excluded actor. The send itself happens on the worker pool; per-recipient
// failures are logged there and never surface here.
func (s *Service) SendToAll(ctx context.Context, text string, opt Options) error {
	subs, err := s.recipients.Subscribers(ctx)
	if err != nil {
		return fmt.Errorf("load subscribers: %w", err)
	}
	targets := make([]kit.ChatTarget, 0, len(subs))
	for _, sub := range subs {
		if opt.ExcludeUserID != 0 && sub.UserID == opt.ExcludeUserID {
			continue
		}
		targets = append(targets, kit.ChatTarget{ChatID: sub.ChatID})
	}
	if len(targets) == 0 {
		s.log.Debug("broadcast skipped (no recipients)")
		return nil
	}

	j := job{
		id:      fmt.Sprintf("bc:%d", time.Now().UnixNano()),
		targets: targets,
		text:    text,
	}

	s.mu.Lock()
	queue := s.queue
	s.mu.Unlock()
	if queue == nil {
		return ErrNotRunning
	}
	select {
	case queue <- j:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ Recipients = (*storage.Store)(nil)
