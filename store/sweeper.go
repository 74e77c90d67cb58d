package store

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sweeper periodically moves active requests past their expiry time to the
// expired status, so stale requests stop appearing in matching queries
// without the query layer having to compare against the clock.
type Sweeper struct {
	store    RequestStore
	interval time.Duration
	logger   *zap.Logger
}

func NewSweeper(store RequestStore, interval time.Duration, logger *zap.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{store: store, interval: interval, logger: logger}
}

// Run blocks until ctx is cancelled, sweeping once per interval. A failed
// sweep is logged and retried on the next tick; it never stops the loop.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.store.ExpireOverdue(ctx, time.Now())
			if err != nil {
				s.logger.Warn("expiry sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				s.logger.Info("expired overdue requests", zap.Int64("count", n))
			}
		}
	}
}
