// Package storage persists feedbot state in sqlite.
//
// It owns two tables:
//   - scheduled_events: one-shot feeding reminders (the durable half of the
//     scheduler; timer handles never touch the database)
//   - subscribers: chats that receive reminder broadcasts
package storage
