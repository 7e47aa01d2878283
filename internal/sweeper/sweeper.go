// Package sweeper periodically closes out bookings whose slot has ended.
package sweeper

import (
	"context"
	"time"

	"go.uber.org/zap"

	"laundrylink-backend/config"
)

// BookingCompleter marks every upcoming booking that ended before now as completed.
type BookingCompleter interface {
	CompletePastBookings(ctx context.Context, now time.Time, loc *time.Location) (int, error)
}

// Service runs the sweep loop.
type Service struct {
	cfg   config.SweeperConfig
	loc   *time.Location
	store BookingCompleter
	log   *zap.SugaredLogger
	now   func() time.Time
}

// NewService creates a sweeper that evaluates slot times in loc.
func NewService(cfg config.SweeperConfig, loc *time.Location, s BookingCompleter, log *zap.SugaredLogger) *Service {
	return &Service{
		cfg:   cfg,
		loc:   loc,
		store: s,
		log:   log,
		now:   time.Now,
	}
}

// Run sweeps once immediately and then on every interval until ctx ends.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.Enabled {
		s.log.Info("sweeper is disabled; not starting")
		return
	}
	s.log.Infow("starting booking sweeper", "interval", s.cfg.Interval)

	s.SweepOnce(ctx)

	timer := time.NewTimer(s.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("sweeper shutting down")
			return
		case <-timer.C:
			s.SweepOnce(ctx)
			timer.Reset(s.cfg.Interval)
		}
	}
}

// SweepOnce performs a single pass and returns how many bookings it completed.
func (s *Service) SweepOnce(ctx context.Context) int {
	n, err := s.store.CompletePastBookings(ctx, s.now().In(s.loc), s.loc)
	if err != nil {
		s.log.Errorw("sweep failed", "error", err)
		return 0
	}
	if n > 0 {
		s.log.Infow("completed past bookings", "count", n)
	}
	return n
}
