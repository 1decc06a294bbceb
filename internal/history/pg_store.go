package history

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type pgxConn interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PGStore writes session history to Postgres.
type PGStore struct {
	db pgxConn
}

// NewPGStore wraps a pgx pool or connection.
func NewPGStore(db pgxConn) *PGStore {
	return &PGStore{db: db}
}

const (
	insertGameSQL = `INSERT INTO games (code, quiz_title, question_count, team_mode, created_at, started_at, ended_at, end_reason)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`
	insertPlayerSQL = `INSERT INTO players (game_id, name, team, score, rank)
VALUES ($1, $2, NULLIF($3, ''), $4, $5) RETURNING id`
	insertResponseSQL = `INSERT INTO question_responses (player_id, question_index, answer_index, is_correct, score_delta, elapsed_ms)
VALUES ($1, $2, $3, $4, $5, $6)`
	deleteGamesSQL = `DELETE FROM games WHERE ended_at < $1`
)

// SaveSession inserts the game, its players and their responses in one transaction.
func (s *PGStore) SaveSession(ctx context.Context, rec SessionRecord) (int64, error) {
	var gameID int64
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, insertGameSQL,
			rec.Code, rec.QuizTitle, rec.QuestionCount, rec.TeamMode,
			rec.CreatedAt, rec.StartedAt, rec.EndedAt, rec.EndReason,
		).Scan(&gameID); err != nil {
			return fmt.Errorf("insert game: %w", err)
		}

		players := &pgx.Batch{}
		for _, p := range rec.Players {
			players.Queue(insertPlayerSQL, gameID, p.Name, p.Team, p.Score, p.Rank)
		}
		playerIDs := make([]int64, len(rec.Players))
		br := tx.SendBatch(ctx, players)
		for i := range rec.Players {
			if err := br.QueryRow().Scan(&playerIDs[i]); err != nil {
				br.Close()
				return fmt.Errorf("insert player %q: %w", rec.Players[i].Name, err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("close player batch: %w", err)
		}

		responses := &pgx.Batch{}
		for i, p := range rec.Players {
			for _, r := range p.Responses {
				responses.Queue(insertResponseSQL, playerIDs[i], r.QuestionIndex, r.AnswerIndex, r.Correct, r.ScoreDelta, r.Elapsed.Milliseconds())
			}
		}
		if responses.Len() == 0 {
			return nil
		}
		if err := tx.SendBatch(ctx, responses).Close(); err != nil {
			return fmt.Errorf("insert responses: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return gameID, nil
}

// DeleteEndedBefore removes games (and cascaded rows) that ended before cutoff.
func (s *PGStore) DeleteEndedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, deleteGamesSQL, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete games: %w", err)
	}
	return tag.RowsAffected(), nil
}
