// Package broadcast fans a text payload out to every subscribed chat.
//
// Delivery is best-effort: sends run on a small worker pool behind a rate
// limiter with bounded retry, and a failing recipient never aborts the rest
// of the broadcast. Callers that need stronger guarantees don't exist in this
// bot; a reminder is considered fired once it is handed to this service.
package broadcast
