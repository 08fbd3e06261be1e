package service

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper is the slice of a cache driver the housekeeping worker needs.
// Only the sqlite driver implements it; redis expires keys server-side.
type Sweeper interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// HousekeepingService periodically sweeps expired cache rows so an embedded
// backend doesn't grow without bound. Lookup correctness never depends on
// the sweep; rows past their deadline are invisible either way.
type HousekeepingService struct {
	Sweeper  Sweeper
	Logger   *slog.Logger
	Interval time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a housekeeping service with the given
// interval. If interval is 0 or negative, defaults to 1 hour.
func NewHousekeepingService(sweeper Sweeper, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}

	return &HousekeepingService{
		Sweeper:  sweeper,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the background worker. Non-blocking; call Stop to shut down.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop gracefully shuts down the worker, blocking until any in-progress
// sweep finishes.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// Sweep immediately on startup to clear anything left from a past run.
	s.sweep()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopCh:
			return
		}
	}
}

func (s *HousekeepingService) sweep() {
	purged, err := s.Sweeper.PurgeExpired(context.Background())
	if err != nil {
		s.Logger.Error("failed to purge expired cache entries", "error", err)
		return
	}
	s.Logger.Debug("housekeeping sweep completed", "purged", purged)
}
