package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/Domenick1991/parking/internal/clock"
	"github.com/Domenick1991/parking/internal/logging"
)

const DefaultInterval = time.Minute

// Expirer is the part of the reservation engine the sweeper drives.
type Expirer interface {
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// Sweeper periodically expires reservations whose hold lapsed.
type Sweeper struct {
	target   Expirer
	clock    clock.Clock
	interval time.Duration
	logger   *slog.Logger
}

type Option func(*Sweeper)

func WithClock(c clock.Clock) Option {
	return func(s *Sweeper) { s.clock = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Sweeper) { s.logger = l }
}

func New(target Expirer, interval time.Duration, opts ...Option) *Sweeper {
	if interval <= 0 {
		interval = DefaultInterval
	}
	s := &Sweeper{
		target:   target,
		clock:    clock.NewRealClock(),
		interval: interval,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunOnce performs a single pass.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	expired, err := s.target.Sweep(ctx, s.clock.Now())
	if err != nil {
		s.logger.ErrorContext(ctx, "expiration sweep failed", "expired", expired, logging.Err(err))
		return expired, err
	}
	if expired > 0 {
		s.logger.InfoContext(ctx, "expiration sweep finished", "expired", expired)
	}
	return expired, nil
}

// Run sweeps on every tick until ctx is done. A failed pass is logged and
// the loop keeps going.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.InfoContext(ctx, "expiration sweeper started", "interval", s.interval)
	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "expiration sweeper stopped")
			return nil
		case <-ticker.C:
			_, _ = s.RunOnce(ctx)
		}
	}
}
