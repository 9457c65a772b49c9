package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"feedbot/internal/services/feeding"
	"feedbot/internal/storage"
	"feedbot/internal/timeparse"
	kit "feedbot/internal/transport"
	logx "feedbot/pkg/logx"
)

const helpText = `Commands:
/feed <time> — schedule a feeding reminder
    10:00            today (or tomorrow if already past)
    24.12 18:30      this year (or next if already past)
    24.12.2026 18:30 exact date
/feedings — list pending reminders
/next — the nearest reminder
/cancel <id> — cancel one reminder
/cancelall — cancel every pending reminder
/stats — scheduler state`

// updateLoop drains the transport channel. One update at a time: command
// handling is quick (sqlite + timer bookkeeping), and serial handling is what
// keeps the admission path free of surprises from the transport side.
func (a *App) updateLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case up := <-a.updates:
			if up.Message == nil {
				continue
			}
			a.handleMessage(ctx, up.Message)
		}
	}
}

func (a *App) handleMessage(ctx context.Context, m *kit.Message) {
	// Anyone who talks to the bot becomes a broadcast recipient.
	err := a.store.UpsertSubscriber(ctx, storage.Subscriber{
		UserID:   m.FromID,
		ChatID:   m.ChatID,
		Username: m.FromUsername,
	})
	if err != nil {
		a.log.Warn("subscriber upsert failed", logx.Int64("user", m.FromID), logx.Err(err))
	}

	text := strings.TrimSpace(m.Text)
	if !strings.HasPrefix(text, "/") {
		return
	}
	cmd, args := splitCommand(text)

	switch cmd {
	case "/start":
		a.reply(ctx, m, "Hi! I remind everyone here when it's feeding time.\n\n"+helpText)
	case "/help":
		a.reply(ctx, m, helpText)
	case "/feed":
		a.cmdFeed(ctx, m, args)
	case "/feedings":
		a.cmdFeedings(ctx, m)
	case "/next":
		a.cmdNext(ctx, m)
	case "/cancel":
		a.cmdCancel(ctx, m, args)
	case "/cancelall":
		a.cmdCancelAll(ctx, m)
	case "/stats":
		a.cmdStats(ctx, m)
	default:
		// Unknown slash commands are ignored (group chats see plenty).
	}
}

func (a *App) cmdFeed(ctx context.Context, m *kit.Message, args string) {
	if args == "" {
		a.reply(ctx, m, "When? Try /feed 18:30")
		return
	}
	at, err := timeparse.Parse(args, time.Now().In(a.loc))
	if err != nil {
		a.reply(ctx, m, "I don't understand that time. Use HH:MM, DD.MM HH:MM or DD.MM.YYYY HH:MM.")
		return
	}

	ev, err := a.sched.Schedule(ctx, at, m.FromID)
	if err != nil {
		a.reply(ctx, m, scheduleErrText(err))
		return
	}
	a.reply(ctx, m, fmt.Sprintf("Reminder #%d set for %s.", ev.ID, formatAt(ev.ScheduledAt, a.loc)))
}

func (a *App) cmdFeedings(ctx context.Context, m *kit.Message) {
	events, err := a.sched.ListActive(ctx)
	if err != nil {
		a.replyErr(ctx, m, err)
		return
	}
	if len(events) == 0 {
		a.reply(ctx, m, "No pending reminders.")
		return
	}
	var b strings.Builder
	b.WriteString("Pending reminders:\n")
	for _, ev := range events {
		fmt.Fprintf(&b, "#%d — %s\n", ev.ID, formatAt(ev.ScheduledAt, a.loc))
	}
	a.reply(ctx, m, strings.TrimRight(b.String(), "\n"))
}

func (a *App) cmdNext(ctx context.Context, m *kit.Message) {
	ev, ok, err := a.sched.NextUpcoming(ctx)
	if err != nil {
		a.replyErr(ctx, m, err)
		return
	}
	if !ok {
		a.reply(ctx, m, "No pending reminders.")
		return
	}
	a.reply(ctx, m, fmt.Sprintf("Next: #%d at %s.", ev.ID, formatAt(ev.ScheduledAt, a.loc)))
}

func (a *App) cmdCancel(ctx context.Context, m *kit.Message, args string) {
	id, err := strconv.ParseInt(strings.TrimSpace(args), 10, 64)
	if err != nil {
		a.reply(ctx, m, "Which one? Try /cancel 3 (see /feedings for ids).")
		return
	}
	switch err := a.sched.CancelStrict(ctx, id); {
	case err == nil:
		a.reply(ctx, m, fmt.Sprintf("Reminder #%d cancelled.", id))
	case errors.Is(err, feeding.ErrNotFound):
		a.reply(ctx, m, fmt.Sprintf("There is no reminder #%d.", id))
	case errors.Is(err, feeding.ErrAlreadyInactive):
		a.reply(ctx, m, fmt.Sprintf("Reminder #%d already fired or was cancelled.", id))
	default:
		a.replyErr(ctx, m, err)
	}
}

func (a *App) cmdCancelAll(ctx context.Context, m *kit.Message) {
	n, err := a.sched.CancelAll(ctx)
	if err != nil {
		a.replyErr(ctx, m, err)
		return
	}
	if n == 0 {
		a.reply(ctx, m, "Nothing to cancel.")
		return
	}
	a.reply(ctx, m, fmt.Sprintf("Cancelled %d reminder(s).", n))
}

func (a *App) cmdStats(ctx context.Context, m *kit.Message) {
	st, err := a.sched.Stats(ctx)
	if err != nil {
		a.replyErr(ctx, m, err)
		return
	}
	next := "none"
	if st.Next != nil {
		next = fmt.Sprintf("#%d at %s", st.Next.ID, formatAt(st.Next.ScheduledAt, a.loc))
	}
	a.reply(ctx, m, fmt.Sprintf("Active: %d\nTotal: %d\nArmed timers: %d\nNext: %s",
		st.Active, st.Total, st.RunningTimers, next))
}

// scheduleErrText names the limit that was hit; admission failures are the
// user's to fix, so the message must say which rule rejected the time.
func scheduleErrText(err error) string {
	switch {
	case errors.Is(err, feeding.ErrPastTime):
		return "That time is already in the past."
	case errors.Is(err, feeding.ErrTooSoon):
		return "That's too soon — give me at least a few minutes of lead time."
	case errors.Is(err, feeding.ErrTooFar):
		return "That's too far ahead — I only plan one week out."
	case errors.Is(err, feeding.ErrCapacityExceeded):
		return "Too many pending reminders. Cancel one first (/feedings, /cancel <id>)."
	default:
		return "Something went wrong, try again later."
	}
}

func (a *App) reply(ctx context.Context, m *kit.Message, text string) {
	_, err := a.adapter.SendText(ctx, kit.ChatTarget{ChatID: m.ChatID}, text, nil)
	if err != nil {
		a.log.Warn("reply failed", logx.Int64("chat_id", m.ChatID), logx.Err(err))
	}
}

func (a *App) replyErr(ctx context.Context, m *kit.Message, err error) {
	a.log.Error("command failed", logx.Int64("chat_id", m.ChatID), logx.Err(err))
	a.reply(ctx, m, "Something went wrong, try again later.")
}

// splitCommand separates the command word from its argument tail and strips
// the @botname suffix Telegram appends in groups.
func splitCommand(text string) (cmd, args string) {
	cmd, args, _ = strings.Cut(text, " ")
	if i := strings.IndexByte(cmd, '@'); i > 0 {
		cmd = cmd[:i]
	}
	return strings.ToLower(cmd), strings.TrimSpace(args)
}

func formatAt(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("02.01.2006 15:04")
}
