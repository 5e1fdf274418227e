package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/tokenguard/internal/auth/metrics"
	"github.com/aussiebroadwan/tokenguard/internal/auth/store"
)

// HousekeepingService periodically removes expired token records so the
// blacklist and abandoned refresh tokens do not grow without bound.
type HousekeepingService struct {
	Tokens   store.Tokens
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Interval time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a housekeeping service. A non-positive
// interval defaults to 1 hour.
func NewHousekeepingService(tokens store.Tokens, logger *slog.Logger, m *metrics.Metrics, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &HousekeepingService{
		Tokens:   tokens,
		Logger:   logger,
		Metrics:  m,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the background worker. Call Stop to shut it down.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop blocks until any in-progress cleanup has finished.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// Run cleanup immediately on startup
	s.RunOnce(context.Background())

	for {
		select {
		case <-ticker.C:
			s.RunOnce(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// RunOnce performs a single cleanup pass and returns how many records it
// removed.
func (s *HousekeepingService) RunOnce(ctx context.Context) int64 {
	s.Logger.Debug("starting housekeeping cleanup")

	n, err := s.Tokens.CleanupExpired(ctx)
	if err != nil {
		s.Logger.Error("failed to delete expired tokens", "error", err)
		return 0
	}

	s.Metrics.HousekeepingDeleted(n)
	s.Logger.Info("housekeeping cleanup completed", "deleted", n)
	return n
}
