// Package worker runs the delivery sweep: a periodic pass that pushes due
// scheduled items to their streamers and repairs donations whose status flip
// was lost. Every pass derives its decisions from the queue and the database,
// so running it twice, or on several instances at once, changes nothing.
package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/streamlance/backend/internal/donations"
)

// Sweeper drives the periodic delivery pass.
type Sweeper struct {
	service  *donations.Service
	repo     *donations.Repository
	interval time.Duration
	playback time.Duration
	logger   *zap.Logger
}

// NewSweeper creates a sweeper. interval is the pass cadence; playback is the
// fixed per-item playback duration, used to decide when an undelivered
// donation counts as stuck.
func NewSweeper(service *donations.Service, repo *donations.Repository, interval, playback time.Duration, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{service: service, repo: repo, interval: interval, playback: playback, logger: logger}
}

// Run executes sweep passes until ctx is cancelled. One pass runs immediately
// on start so a restart never waits a full interval to catch up.
func (s *Sweeper) Run(ctx context.Context) {
	s.pass(ctx)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopping")
			return
		case <-ticker.C:
			s.pass(ctx)
		}
	}
}

func (s *Sweeper) pass(ctx context.Context) {
	now := time.Now()

	streamerIDs, err := s.repo.ListStreamersWithScheduledDue(ctx, now)
	if err != nil {
		s.logger.Warn("due-streamer scan failed", zap.Error(err))
	}
	delivered := 0
	for _, id := range streamerIDs {
		n, err := s.service.DeliverDue(ctx, id)
		if err != nil {
			s.logger.Warn("deliver pass failed", zap.Error(err), zap.String("streamer_id", id.String()))
			continue
		}
		delivered += n
	}

	// A donation still undelivered one playback plus one full interval after
	// its due time has lost its status flip somewhere; re-derive from the
	// queue and repair.
	cutoff := now.Add(-s.playback - s.interval)
	fixed, err := s.service.RetryStuck(ctx, cutoff)
	if err != nil {
		s.logger.Warn("stuck retry pass failed", zap.Error(err))
	}

	if delivered > 0 || fixed > 0 {
		s.logger.Info("sweep pass complete",
			zap.Int("delivered", delivered),
			zap.Int("repaired", fixed),
		)
	}
}
