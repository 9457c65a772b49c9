package broadcast

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"feedbot/internal/storage"
	kit "feedbot/internal/transport"
	logx "feedbot/pkg/logx"
)

type Config struct {
	Workers    int
	RatePerSec int
	RetryMax   int
}

// Recipients supplies the current subscriber set. Implemented by storage.Store.
type Recipients interface {
	Subscribers(ctx context.Context) ([]storage.Subscriber, error)
}

// Options narrows a broadcast. ExcludeUserID drops one recipient (e.g. the
// actor who triggered the message); 0 excludes nobody.
type Options struct {
	ExcludeUserID int64
}

type job struct {
	id      string
	targets []kit.ChatTarget
	text    string
}

type Service struct {
	mu sync.Mutex

	cfg        Config
	adapter    kit.Adapter
	recipients Recipients
	log        logx.Logger

	limiter *rate.Limiter
	queue   chan job
	stopCh  chan struct{}
	// stopDone is non-nil while a Stop() is in progress; it is closed when
	// workers fully exit.
	stopDone chan struct{}

	runCtx    context.Context
	runCancel context.CancelFunc
	workerWG  sync.WaitGroup
}
