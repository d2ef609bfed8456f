package application

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/aliuygur/instol-panel/internal/domain/port/driven"
)

// PollService keeps the instance listing converging toward the backend's
// truth: hosted instances move from "provisioning" to "running" server-side
// and the panel only observes that by re-fetching. It refreshes on a fixed
// interval and on manual triggers.
type PollService struct {
	instances *InstanceService
	interval  time.Duration
	refreshCh chan chan error
	logger    *slog.Logger
}

// NewPollService creates a PollService refreshing at the given interval.
func NewPollService(instances *InstanceService, interval time.Duration, logger *slog.Logger) *PollService {
	return &PollService{
		instances: instances,
		interval:  interval,
		refreshCh: make(chan chan error),
		logger:    logger,
	}
}

// Start begins the polling loop: an immediate refresh, then one per
// interval, interleaved with manual refresh requests. Blocks until the
// context is canceled.
func (s *PollService) Start(ctx context.Context) {
	if err := s.refreshOnce(ctx); err != nil {
		s.logger.Error("initial listing refresh failed", "error", err)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("poll service stopped")
			return
		case <-ticker.C:
			if err := s.refreshOnce(ctx); err != nil {
				s.logger.Error("listing refresh failed", "error", err)
			}
		case done := <-s.refreshCh:
			done <- s.refreshOnce(ctx)
		}
	}
}

// Refresh triggers a manual listing refresh, bypassing the interval. It
// blocks until the refresh completes or the context is canceled.
func (s *PollService) Refresh(ctx context.Context) error {
	done := make(chan error, 1)

	select {
	case s.refreshCh <- done:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// refreshOnce fetches the listing with bounded exponential-backoff retries
// for transient failures. A rejected credential stops retrying immediately:
// the session is gone, not the network.
func (s *PollService) refreshOnce(ctx context.Context) error {
	start := time.Now()

	op := func() error {
		_, err := s.instances.Refresh(ctx)
		if errors.Is(err, driven.ErrUnauthorized) {
			return backoff.Permanent(err)
		}
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return err
	}

	s.logger.Debug("listing refreshed",
		"instances", len(s.instances.Instances()),
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return nil
}
