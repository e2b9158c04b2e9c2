package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"docex/internal/metrics"
	"docex/internal/repository"
)

// Reaper evicts jobs older than the retention window, measured from CreatedAt.
// It holds no state of its own and may be called concurrently.
type Reaper struct {
	repo      repository.JobRepository
	retention time.Duration
	metrics   *metrics.JobMetrics
	log       logrus.FieldLogger
}

func NewReaper(repo repository.JobRepository, retention time.Duration, m *metrics.JobMetrics, log logrus.FieldLogger) *Reaper {
	return &Reaper{
		repo:      repo,
		retention: retention,
		metrics:   m,
		log:       log.WithField("component", "reaper"),
	}
}

// Sweep removes expired jobs and returns how many were removed.
func (r *Reaper) Sweep(ctx context.Context) (int, error) {
	n, err := r.repo.RemoveExpired(ctx, r.retention)
	if err != nil {
		return 0, err
	}
	r.metrics.Reaped(n)
	if n > 0 {
		r.log.WithField("removed", n).Info("expired_jobs_removed")
	}
	return n, nil
}

// Run sweeps every interval until ctx is cancelled. A non-positive interval
// disables the loop and Run returns immediately.
func (r *Reaper) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return nil
	}
	r.log.WithField("interval", interval.String()).Info("reaper_started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info("reaper_stopped")
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.Sweep(ctx); err != nil {
				r.log.WithError(err).Error("reaper_sweep_failed")
			}
		}
	}
}
