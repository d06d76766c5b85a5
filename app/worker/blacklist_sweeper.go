package worker

import (
	"context"
	"time"

	"github.com/vibast-solutions/ms-go-nengtul/app/metrics"

	"github.com/sirupsen/logrus"
)

type expiredTokenPruner interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// BlacklistSweeper deletes blacklist rows whose access token has expired.
// Expired rows are already ignored by lookups, so a late sweep only costs space.
type BlacklistSweeper struct {
	tokens   expiredTokenPruner
	interval time.Duration
	metrics  metrics.Recorder
	now      func() time.Time
}

func NewBlacklistSweeper(tokens expiredTokenPruner, interval time.Duration, recorder metrics.Recorder) *BlacklistSweeper {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &BlacklistSweeper{
		tokens:   tokens,
		interval: interval,
		metrics:  recorder,
		now:      time.Now,
	}
}

// Run sweeps once immediately, then on every tick until ctx is done.
func (s *BlacklistSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
			logrus.WithError(err).Error("Blacklist sweep failed")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *BlacklistSweeper) Sweep(ctx context.Context) (int64, error) {
	deleted, err := s.tokens.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}

	s.metrics.RecordBlacklistPruned(deleted)
	if deleted > 0 {
		logrus.WithField("deleted", deleted).Info("Pruned expired blacklist tokens")
	}
	return deleted, nil
}
