package feeding

import (
	"context"
	"sync"
	"time"

	"feedbot/internal/services/broadcast"
	"feedbot/internal/storage"
	logx "feedbot/pkg/logx"
)

// Config is the admission policy.
type Config struct {
	MaxActive  int           // max simultaneously active reminders
	MinLead    time.Duration // minimum distance from now
	MaxHorizon time.Duration // maximum distance from now
}

func (c Config) withDefaults() Config {
	if c.MaxActive <= 0 {
		c.MaxActive = 10
	}
	if c.MinLead <= 0 {
		c.MinLead = 5 * time.Minute
	}
	if c.MaxHorizon <= 0 {
		c.MaxHorizon = 7 * 24 * time.Hour
	}
	return c
}

// Store is the durable half of the scheduler. Implemented by storage.Store.
type Store interface {
	CreateScheduledEvent(ctx context.Context, at time.Time, createdBy int64) (storage.ScheduledEvent, error)
	ActiveScheduledEvents(ctx context.Context) ([]storage.ScheduledEvent, error)
	AllScheduledEvents(ctx context.Context) ([]storage.ScheduledEvent, error)
	ScheduledEventByID(ctx context.Context, id int64) (storage.ScheduledEvent, bool, error)
	DeactivateScheduledEvent(ctx context.Context, id int64) error
}

// Sink delivers the reminder payload. Implemented by broadcast.Service.
type Sink interface {
	SendToAll(ctx context.Context, text string, opt broadcast.Options) error
}

// Stats is a point-in-time view of scheduler state. RunningTimers counts the
// armed in-process handles; comparing it with Active exposes drift between
// store state and timer state after a crash or a missed Initialize.
type Stats struct {
	Active        int
	Total         int
	Next          *storage.ScheduledEvent
	RunningTimers int
}

type Service struct {
	// mu serializes admission (capacity check + insert + arm) and guards the
	// timer arena. Timer callbacks take it too, which is what decides
	// cancel-vs-fire races.
	mu sync.Mutex

	cfg   Config
	store Store
	sink  Sink
	log   logx.Logger

	// now is replaceable in tests.
	now func() time.Time

	timers      map[int64]*time.Timer
	initialized bool
}
