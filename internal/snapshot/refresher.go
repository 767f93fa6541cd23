package snapshot

import (
	"context"
	"sync"
	"time"

	"github.com/danielolaszy/prism/internal/logging"
)

// DefaultInterval is how often a Refresher reloads when none is configured.
const DefaultInterval = 60 * time.Second

// Refresher reloads a Cache periodically until stopped.
type Refresher struct {
	cache    *Cache
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRefresher creates a refresher for cache.
func NewRefresher(cache *Cache, interval time.Duration) *Refresher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Refresher{cache: cache, interval: interval}
}

// Start begins refreshing in the background. It is a no-op when already running.
func (r *Refresher) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	go r.run(ctx, r.done)
}

// Stop halts the refresher and waits for it to exit. Safe to call repeatedly.
func (r *Refresher) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (r *Refresher) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Refresher) tick(ctx context.Context) {
	if r.cache.Refreshing() {
		logging.Debug("skipping refresh tick, load in flight")
		return
	}
	if _, err := r.cache.Refresh(ctx); err != nil && ctx.Err() == nil {
		logging.Warn("background refresh failed", "error", err)
	}
}
