// Package feeding is the reminder-scheduling core.
//
// # Overview
//
// A reminder is a one-shot future event: it is persisted immediately on
// admission and armed as an in-process timer. The database row is the durable
// half (it survives restarts); the timer handle is the runtime half (it does
// not). Initialize() reconciles the two on startup: past-due rows are retired
// silently, future rows get fresh timers.
//
// # Admission policy
//
// Schedule() validates in order: the time must be in the future, at least
// MinLead away, at most MaxHorizon away, and the active count must be under
// MaxActive. The capacity check and the insert run under one mutex so two
// concurrent calls can never both squeeze past the cap.
//
// # Cancel vs fire
//
// The timer callback and Cancel() contend on the same mutex for the handle.
// Whoever removes the handle first wins: a cancel that gets there before the
// callback suppresses the notification entirely; once the callback has
// claimed the handle the reminder ends up fired even if delivery fails.
package feeding
