package storage

import "time"

// Config configures storage. Path is required.
type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means default
}

// ScheduledEvent is one persisted feeding reminder.
//
// ScheduledAt and CreatedAt are immutable after creation; IsActive flips to
// false exactly once (fired, cancelled, or missed on restart) and never back.
type ScheduledEvent struct {
	ID          int64
	ScheduledAt time.Time
	IsActive    bool
	CreatedBy   int64
	CreatedAt   time.Time
}

// Subscriber is a chat that receives reminder broadcasts.
type Subscriber struct {
	UserID    int64
	ChatID    int64
	Username  string
	CreatedAt time.Time
}
