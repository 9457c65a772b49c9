package broadcast

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"feedbot/internal/storage"
	kit "feedbot/internal/transport"
	logx "feedbot/pkg/logx"
)

type fakeAdapter struct {
	mu   sync.Mutex
	sent []kit.ChatTarget

	failChat int64 // sends to this chat always fail
}

func (f *fakeAdapter) Start(context.Context, chan<- kit.Update) error { return nil }
func (f *fakeAdapter) Stop(context.Context) error                    { return nil }

func (f *fakeAdapter) SendText(_ context.Context, to kit.ChatTarget, _ string, _ *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failChat != 0 && to.ChatID == f.failChat {
		return kit.MessageRef{}, errors.New("chat unreachable")
	}
	f.sent = append(f.sent, to)
	return kit.MessageRef{ChatID: to.ChatID}, nil
}

func (f *fakeAdapter) targets() []kit.ChatTarget {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]kit.ChatTarget(nil), f.sent...)
}

type fakeRecipients struct{ subs []storage.Subscriber }

func (f *fakeRecipients) Subscribers(context.Context) ([]storage.Subscriber, error) {
	return f.subs, nil
}

func TestSendToAllNotRunning(t *testing.T) {
	t.Parallel()
	s := New(Config{}, &fakeAdapter{}, &fakeRecipients{}, logx.Nop())
	err := s.SendToAll(context.Background(), "hi", Options{})
	if !errors.Is(err, ErrNotRunning) {
		t.Fatalf("SendToAll = %v, want ErrNotRunning", err)
	}
}

func TestSendToAllFansOutAndExcludes(t *testing.T) {
	t.Parallel()
	ad := &fakeAdapter{}
	rec := &fakeRecipients{subs: []storage.Subscriber{
		{UserID: 1, ChatID: 100},
		{UserID: 2, ChatID: 200},
		{UserID: 3, ChatID: 300},
	}}
	s := New(Config{Workers: 1, RatePerSec: 1000}, ad, rec, logx.Nop())

	ctx := context.Background()
	s.Start(ctx)
	defer s.Stop(ctx)

	if err := s.SendToAll(ctx, "feeding time", Options{ExcludeUserID: 2}); err != nil {
		t.Fatalf("SendToAll error: %v", err)
	}

	waitFor(t, func() bool { return len(ad.targets()) == 2 })
	for _, tgt := range ad.targets() {
		if tgt.ChatID == 200 {
			t.Fatal("excluded user still received the broadcast")
		}
	}
}

func TestFailingRecipientDoesNotAbort(t *testing.T) {
	t.Parallel()
	ad := &fakeAdapter{failChat: 100}
	rec := &fakeRecipients{subs: []storage.Subscriber{
		{UserID: 1, ChatID: 100},
		{UserID: 2, ChatID: 200},
	}}
	// RetryMax 0 keeps the failing send quick.
	s := New(Config{Workers: 1, RatePerSec: 1000, RetryMax: 0}, ad, rec, logx.Nop())

	ctx := context.Background()
	s.Start(ctx)
	defer s.Stop(ctx)

	if err := s.SendToAll(ctx, "feeding time", Options{}); err != nil {
		t.Fatalf("SendToAll error: %v", err)
	}

	waitFor(t, func() bool {
		ts := ad.targets()
		return len(ts) == 1 && ts[0].ChatID == 200
	})
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within 2s")
}
