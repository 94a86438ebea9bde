package presence

import (
	"context"
	"time"

	"github.com/ABTechWorks/TinyLittleHelper/internal/logs"
)

// Sweeper периодически перелейбливает протухшие записи в offline.
// Полностью развязан с обработкой запросов; persisted-статус — advisory,
// ground truth остаётся last_seen.
type Sweeper struct {
	store    Store
	timeout  time.Duration
	interval time.Duration
}

func NewSweeper(store Store, timeout, interval time.Duration) *Sweeper {
	if timeout <= 0 {
		timeout = DefaultOfflineAfter
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Sweeper{store: store, timeout: timeout, interval: interval}
}

// Run блокируется до отмены ctx.
func (s *Sweeper) Run(ctx context.Context) {
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			cutoff := time.Now().UTC().Add(-s.timeout)
			n, err := s.store.SweepStale(ctx, cutoff)
			if err != nil {
				if ctx.Err() == nil {
					logs.Logger.Errorf("presence sweep: %v", err)
				}
				continue
			}
			if n > 0 {
				logs.Logger.Debugf("presence sweep: %d device(s) relabeled offline", n)
			}
		}
	}
}
