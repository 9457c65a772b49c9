package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "feedbot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// Store is the sqlite-backed persistence layer.
type Store struct {
	db  *sql.DB
	log logx.Logger
}

// Open initializes the sqlite store, creating the database file and schema
// when missing.
func Open(cfg Config, log logx.Logger) (*Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &Store{db: db, log: log}

	// Basic pragmas.
	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *Store) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// ---- scheduled events ----

const eventCols = `id, scheduled_at, is_active, created_by, created_at`

// CreateScheduledEvent inserts an active reminder and returns it with the
// store-assigned id.
func (s *Store) CreateScheduledEvent(ctx context.Context, at time.Time, createdBy int64) (ScheduledEvent, error) {
	now := time.Now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO scheduled_events(scheduled_at, is_active, created_by, created_at)
		 VALUES(?, 1, ?, ?)`,
		at.UnixMilli(), createdBy, now.UnixMilli(),
	)
	if err != nil {
		return ScheduledEvent{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return ScheduledEvent{}, err
	}
	return ScheduledEvent{
		ID:          id,
		ScheduledAt: at,
		IsActive:    true,
		CreatedBy:   createdBy,
		CreatedAt:   now,
	}, nil
}

// ActiveScheduledEvents returns active reminders ordered by scheduled time,
// then id (the order the scheduler fires and reports them in).
func (s *Store) ActiveScheduledEvents(ctx context.Context) ([]ScheduledEvent, error) {
	return s.queryEvents(ctx,
		`SELECT `+eventCols+` FROM scheduled_events WHERE is_active = 1 ORDER BY scheduled_at, id`)
}

func (s *Store) AllScheduledEvents(ctx context.Context) ([]ScheduledEvent, error) {
	return s.queryEvents(ctx,
		`SELECT `+eventCols+` FROM scheduled_events ORDER BY scheduled_at, id`)
}

func (s *Store) ScheduledEventByID(ctx context.Context, id int64) (ScheduledEvent, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+eventCols+` FROM scheduled_events WHERE id = ?`, id)
	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ScheduledEvent{}, false, nil
	}
	if err != nil {
		return ScheduledEvent{}, false, err
	}
	return ev, true, nil
}

// DeactivateScheduledEvent flips is_active off. Idempotent: deactivating a
// missing or already-inactive row is a no-op.
func (s *Store) DeactivateScheduledEvent(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE scheduled_events SET is_active = 0 WHERE id = ?`, id)
	return err
}

// CleanupOldScheduledEvents deletes inactive reminders older than the cutoff
// and reports how many rows were removed.
func (s *Store) CleanupOldScheduledEvents(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM scheduled_events WHERE is_active = 0 AND scheduled_at < ?`,
		olderThan.UnixMilli(),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(r rowScanner) (ScheduledEvent, error) {
	var (
		ev       ScheduledEvent
		schedMS  int64
		activeI  int64
		createMS int64
	)
	if err := r.Scan(&ev.ID, &schedMS, &activeI, &ev.CreatedBy, &createMS); err != nil {
		return ScheduledEvent{}, err
	}
	ev.ScheduledAt = time.UnixMilli(schedMS)
	ev.IsActive = activeI != 0
	ev.CreatedAt = time.UnixMilli(createMS)
	return ev, nil
}

func (s *Store) queryEvents(ctx context.Context, q string, args ...any) ([]ScheduledEvent, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ScheduledEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// ---- subscribers ----

// UpsertSubscriber registers (or refreshes) a broadcast recipient.
func (s *Store) UpsertSubscriber(ctx context.Context, sub Subscriber) error {
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO subscribers(user_id, chat_id, username, created_at)
		 VALUES(?,?,?,?)
		 ON CONFLICT(user_id) DO UPDATE SET chat_id=excluded.chat_id, username=excluded.username`,
		sub.UserID, sub.ChatID, nullStr(sub.Username), sub.CreatedAt.UnixMilli(),
	)
	return err
}

func (s *Store) Subscribers(ctx context.Context) ([]Subscriber, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, chat_id, COALESCE(username, ''), created_at FROM subscribers ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Subscriber
	for rows.Next() {
		var (
			sub Subscriber
			ms  int64
		)
		if err := rows.Scan(&sub.UserID, &sub.ChatID, &sub.Username, &ms); err != nil {
			return nil, err
		}
		sub.CreatedAt = time.UnixMilli(ms)
		out = append(out, sub)
	}
	return out, rows.Err()
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
