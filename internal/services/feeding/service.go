package feeding

import (
	"context"
	"fmt"
	"time"

	"feedbot/internal/services/broadcast"
	"feedbot/internal/storage"
	logx "feedbot/pkg/logx"
)

// fireTimeout bounds the store/sink calls made from a timer callback.
const fireTimeout = 30 * time.Second

func New(cfg Config, store Store, sink Sink, log logx.Logger) *Service {
	return &Service{
		cfg:    cfg.withDefaults(),
		store:  store,
		sink:   sink,
		log:    log,
		now:    time.Now,
		timers: map[int64]*time.Timer{},
	}
}

// Apply swaps the admission policy at runtime. Already-armed reminders are
// not re-validated; the new limits apply to subsequent Schedule calls.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.cfg = cfg.withDefaults()
	s.mu.Unlock()
}

// Initialize reconciles persisted reminders with the (empty) timer arena.
// Run exactly once at startup, before any Schedule/Cancel call.
//
// Past-due rows are retired silently: no notification is sent for reminders
// missed while the process was down. Per-record store failures are logged and
// skipped; Initialize never fails startup.
func (s *Service) Initialize(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		s.log.Warn("initialize called twice; ignoring")
		return
	}
	s.initialized = true

	events, err := s.store.ActiveScheduledEvents(ctx)
	if err != nil {
		s.log.Error("restore failed; starting with no armed reminders", logx.Err(err))
		return
	}

	now := s.now()
	missed, armed := 0, 0
	for _, ev := range events {
		if !ev.ScheduledAt.After(now) {
			if err := s.store.DeactivateScheduledEvent(ctx, ev.ID); err != nil {
				s.log.Error("failed to retire missed reminder", logx.Int64("id", ev.ID), logx.Err(err))
				continue
			}
			missed++
			s.log.Warn("reminder missed while down; retired without notifying",
				logx.Int64("id", ev.ID), logx.Time("at", ev.ScheduledAt))
			continue
		}
		s.armLocked(ev)
		armed++
	}
	s.log.Info("restore complete", logx.Int("armed", armed), logx.Int("missed", missed))
}

// Schedule validates at against the admission policy, persists the reminder
// and arms its timer. Validation order is fixed: past, too soon, too far,
// capacity. The whole sequence runs under the admission mutex.
func (s *Service) Schedule(ctx context.Context, at time.Time, createdBy int64) (storage.ScheduledEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return storage.ScheduledEvent{}, ErrNotInitialized
	}

	now := s.now()
	if !at.After(now) {
		return storage.ScheduledEvent{}, ErrPastTime
	}
	if at.Sub(now) < s.cfg.MinLead {
		return storage.ScheduledEvent{}, fmt.Errorf("%w: need at least %s lead", ErrTooSoon, s.cfg.MinLead)
	}
	if at.Sub(now) > s.cfg.MaxHorizon {
		return storage.ScheduledEvent{}, fmt.Errorf("%w: max %s ahead", ErrTooFar, s.cfg.MaxHorizon)
	}

	active, err := s.store.ActiveScheduledEvents(ctx)
	if err != nil {
		return storage.ScheduledEvent{}, fmt.Errorf("count active reminders: %w", err)
	}
	if len(active) >= s.cfg.MaxActive {
		return storage.ScheduledEvent{}, fmt.Errorf("%w: limit %d", ErrCapacityExceeded, s.cfg.MaxActive)
	}

	ev, err := s.store.CreateScheduledEvent(ctx, at, createdBy)
	if err != nil {
		return storage.ScheduledEvent{}, fmt.Errorf("persist reminder: %w", err)
	}
	s.armLocked(ev)
	s.log.Info("reminder scheduled",
		logx.Int64("id", ev.ID), logx.Time("at", ev.ScheduledAt), logx.Int64("by", createdBy),
		logx.Int("active", len(active)+1))
	return ev, nil
}

// Cancel disarms and deactivates one reminder. Idempotent: a second cancel,
// or a cancel with no armed handle (restart lost it), still deactivates the
// row without error.
func (s *Service) Cancel(ctx context.Context, id int64) error {
	s.mu.Lock()
	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()

	if err := s.store.DeactivateScheduledEvent(ctx, id); err != nil {
		return fmt.Errorf("deactivate reminder %d: %w", id, err)
	}
	s.log.Info("reminder cancelled", logx.Int64("id", id))
	return nil
}

// CancelStrict is Cancel for lookup-then-act flows: it reports ErrNotFound
// and ErrAlreadyInactive instead of succeeding silently.
func (s *Service) CancelStrict(ctx context.Context, id int64) error {
	ev, ok, err := s.store.ScheduledEventByID(ctx, id)
	if err != nil {
		return fmt.Errorf("lookup reminder %d: %w", id, err)
	}
	if !ok {
		return ErrNotFound
	}
	if !ev.IsActive {
		return ErrAlreadyInactive
	}
	return s.Cancel(ctx, id)
}

// CancelAll cancels every reminder active at call time and returns the count.
// It works from one snapshot: anything scheduled concurrently after the
// snapshot stays active.
func (s *Service) CancelAll(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	events, err := s.store.ActiveScheduledEvents(ctx)
	if err != nil {
		return 0, fmt.Errorf("snapshot active reminders: %w", err)
	}
	for _, ev := range events {
		if t, ok := s.timers[ev.ID]; ok {
			t.Stop()
			delete(s.timers, ev.ID)
		}
		if err := s.store.DeactivateScheduledEvent(ctx, ev.ID); err != nil {
			s.log.Error("cancel-all: deactivate failed", logx.Int64("id", ev.ID), logx.Err(err))
		}
	}
	if len(events) > 0 {
		s.log.Info("all reminders cancelled", logx.Int("count", len(events)))
	}
	return len(events), nil
}

func (s *Service) ListActive(ctx context.Context) ([]storage.ScheduledEvent, error) {
	return s.store.ActiveScheduledEvents(ctx)
}

func (s *Service) ListAll(ctx context.Context) ([]storage.ScheduledEvent, error) {
	return s.store.AllScheduledEvents(ctx)
}

// NextUpcoming returns the active reminder with the earliest scheduled time;
// equal timestamps tie-break on the smaller id. ok is false when none exist.
func (s *Service) NextUpcoming(ctx context.Context) (storage.ScheduledEvent, bool, error) {
	events, err := s.store.ActiveScheduledEvents(ctx)
	if err != nil {
		return storage.ScheduledEvent{}, false, err
	}
	if len(events) == 0 {
		return storage.ScheduledEvent{}, false, nil
	}
	// Store ordering is (scheduled_at, id), which is exactly the tie-break.
	return events[0], true, nil
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	active, err := s.store.ActiveScheduledEvents(ctx)
	if err != nil {
		return Stats{}, err
	}
	all, err := s.store.AllScheduledEvents(ctx)
	if err != nil {
		return Stats{}, err
	}

	st := Stats{Active: len(active), Total: len(all)}
	if len(active) > 0 {
		next := active[0]
		st.Next = &next
	}

	s.mu.Lock()
	st.RunningTimers = len(s.timers)
	s.mu.Unlock()
	return st, nil
}

// Shutdown disarms every timer without touching the store. The next process
// start re-arms from persisted state via Initialize.
func (s *Service) Shutdown() {
	s.mu.Lock()
	n := len(s.timers)
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()
	s.log.Info("scheduler shut down", logx.Int("disarmed", n))
}

// armLocked registers the timer handle for ev. Call with s.mu held.
func (s *Service) armLocked(ev storage.ScheduledEvent) {
	delay := ev.ScheduledAt.Sub(s.now())
	if delay < 0 {
		delay = 0
	}
	s.timers[ev.ID] = time.AfterFunc(delay, func() { s.fire(ev) })
}

// fire runs in the timer goroutine when a reminder elapses.
func (s *Service) fire(ev storage.ScheduledEvent) {
	s.mu.Lock()
	if _, ok := s.timers[ev.ID]; !ok {
		// Cancelled (or shut down) before the callback claimed the handle.
		s.mu.Unlock()
		return
	}
	delete(s.timers, ev.ID)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), fireTimeout)
	defer cancel()

	// Delivery failure does not keep the reminder alive: it fired, the
	// broadcast just didn't land. Report and move on, no retry here.
	if err := s.sink.SendToAll(ctx, fireText(ev), broadcast.Options{}); err != nil {
		s.log.Warn("reminder delivery failed", logx.Int64("id", ev.ID), logx.Err(err))
	}
	if err := s.store.DeactivateScheduledEvent(ctx, ev.ID); err != nil {
		s.log.Error("failed to deactivate fired reminder", logx.Int64("id", ev.ID), logx.Err(err))
	}
	s.log.Info("reminder fired", logx.Int64("id", ev.ID), logx.Time("at", ev.ScheduledAt))
}

func fireText(ev storage.ScheduledEvent) string {
	return fmt.Sprintf("🐶 Time to feed! (reminder #%d, set for %s)",
		ev.ID, ev.ScheduledAt.Format("02.01 15:04"))
}
