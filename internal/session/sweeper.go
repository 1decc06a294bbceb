package session

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

type idleSweeper interface {
	SweepIdle(now time.Time) int
}

type historyPruner interface {
	Prune(ctx context.Context, now time.Time) (int64, error)
}

// Sweeper periodically expires idle sessions and prunes old history.
type Sweeper struct {
	registry idleSweeper
	pruner   historyPruner
	clock    clockwork.Clock
	interval time.Duration
	logger   zerolog.Logger
}

// NewSweeper creates a sweeper. pruner may be nil when history is disabled.
func NewSweeper(registry idleSweeper, pruner historyPruner, clock clockwork.Clock, interval time.Duration, logger zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Sweeper{
		registry: registry,
		pruner:   pruner,
		clock:    clock,
		interval: interval,
		logger:   logger.With().Str("component", "session_sweeper").Logger(),
	}
}

// Run blocks until context cancellation.
func (w *Sweeper) Run(ctx context.Context) error {
	ticker := w.clock.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			w.tick(ctx)
		}
	}
}

func (w *Sweeper) tick(ctx context.Context) {
	now := w.clock.Now()
	w.registry.SweepIdle(now)

	if w.pruner == nil {
		return
	}
	if _, err := w.pruner.Prune(ctx, now); err != nil {
		w.logger.Warn().Err(err).Msg("history prune failed")
	}
}
