package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

type sessionStore interface {
	SaveSession(ctx context.Context, rec SessionRecord) (int64, error)
	DeleteEndedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Repository persists finished sessions for later reporting.
type Repository struct {
	store     sessionStore
	retention time.Duration
	logger    zerolog.Logger
}

// NewRepository constructs a repository. A zero retention keeps history forever.
func NewRepository(store sessionStore, retention time.Duration, logger zerolog.Logger) *Repository {
	return &Repository{
		store:     store,
		retention: retention,
		logger:    logger.With().Str("component", "history").Logger(),
	}
}

var ErrIncompleteRecord = errors.New("session record is missing its code")

// RecordSession stores a finished session. Sessions that never started are skipped.
func (r *Repository) RecordSession(ctx context.Context, rec SessionRecord) error {
	if rec.Code == "" {
		return ErrIncompleteRecord
	}
	if rec.StartedAt.IsZero() || len(rec.Players) == 0 {
		r.logger.Debug().Str("code", rec.Code).Msg("skipping history for session that never started")
		return nil
	}

	id, err := r.store.SaveSession(ctx, rec)
	if err != nil {
		return fmt.Errorf("save session %s: %w", rec.Code, err)
	}

	r.logger.Info().
		Int64("game_id", id).
		Str("code", rec.Code).
		Int("players", len(rec.Players)).
		Str("reason", rec.EndReason).
		Msg("session history saved")
	return nil
}

// Prune deletes sessions that ended before the retention window.
func (r *Repository) Prune(ctx context.Context, now time.Time) (int64, error) {
	if r.retention <= 0 {
		return 0, nil
	}
	n, err := r.store.DeleteEndedBefore(ctx, now.Add(-r.retention))
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	if n > 0 {
		r.logger.Info().Int64("deleted", n).Msg("old session history pruned")
	}
	return n, nil
}
