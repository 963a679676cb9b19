package chathub

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"roomchat/backend/internal/metrics"
	"roomchat/backend/internal/storage"

	"github.com/robfig/cron/v3"
)

// SweeperService deletes rooms whose expiry time has passed, on a cron
// schedule and on demand. It never touches live connections.
type SweeperService struct {
	Storage storage.Storage

	log  *slog.Logger
	now  func() time.Time
	cron *cron.Cron
}

func NewSweeperService(s storage.Storage, log *slog.Logger, now func() time.Time) *SweeperService {
	if now == nil {
		now = time.Now
	}
	return &SweeperService{Storage: s, log: log, now: now}
}

// Sweep deletes every expired room and returns how many were removed.
// Safe to run repeatedly and concurrently with chat traffic.
func (s *SweeperService) Sweep(ctx context.Context) (int64, error) {
	start := s.now()
	deleted, err := s.Storage.DeleteExpiredRooms(ctx, start)
	if deleted > 0 {
		metrics.RoomsSwept.Add(float64(deleted))
	}
	if err != nil {
		metrics.SweepFailures.Inc()
		s.log.Error("sweep.failed", "deleted", deleted, "err", err)
		return deleted, err
	}
	s.log.Info("sweep.completed", "deleted", deleted, "took", time.Since(start))
	return deleted, nil
}

// Start schedules Sweep with a standard five-field cron expression. A failed run
// is logged; the next scheduled run simply tries again.
func (s *SweeperService) Start(ctx context.Context, schedule string) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(schedule, func() {
		s.log.Info("sweep.scheduled")
		_, _ = s.Sweep(ctx)
	})
	if err != nil {
		return fmt.Errorf("invalid cleanup schedule %q: %w", schedule, err)
	}
	s.cron = c
	c.Start()
	s.log.Info("sweep.scheduler.started", "schedule", schedule)
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish or ctx to end.
func (s *SweeperService) Stop(ctx context.Context) error {
	if s.cron == nil {
		return nil
	}
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
