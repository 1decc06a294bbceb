package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sqlCall struct {
	sql  string
	args []any
}

// recordingDB hands out a recordingTx and logs every statement in order.
type recordingDB struct {
	calls     []sqlCall
	tx        *recordingTx
	playerErr error
	deleted   int64
}

func (d *recordingDB) Begin(ctx context.Context) (pgx.Tx, error) {
	d.tx = &recordingTx{db: d, nextID: 100}
	return d.tx, nil
}

func (d *recordingDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	d.calls = append(d.calls, sqlCall{sql: sql, args: args})
	return pgconn.NewCommandTag("DELETE 3"), nil
}

type recordingTx struct {
	pgx.Tx

	db         *recordingDB
	nextID     int64
	committed  bool
	rolledBack bool
}

func (t *recordingTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	t.db.calls = append(t.db.calls, sqlCall{sql: sql, args: args})
	return idRow{id: 7}
}

func (t *recordingTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	for _, q := range b.QueuedQueries {
		t.db.calls = append(t.db.calls, sqlCall{sql: q.SQL, args: q.Arguments})
	}
	return &recordingBatch{tx: t}
}

func (t *recordingTx) Commit(ctx context.Context) error {
	t.committed = true
	return nil
}

func (t *recordingTx) Rollback(ctx context.Context) error {
	if t.committed {
		return pgx.ErrTxClosed
	}
	t.rolledBack = true
	return nil
}

type recordingBatch struct {
	pgx.BatchResults
	tx *recordingTx
}

func (b *recordingBatch) QueryRow() pgx.Row {
	if b.tx.db.playerErr != nil {
		return idRow{err: b.tx.db.playerErr}
	}
	id := b.tx.nextID
	b.tx.nextID++
	return idRow{id: id}
}

func (b *recordingBatch) Close() error { return nil }

type idRow struct {
	id  int64
	err error
}

func (r idRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*int64) = r.id
	return nil
}

func TestPGStore_SaveSessionOrdersInserts(t *testing.T) {
	db := &recordingDB{}
	store := NewPGStore(db)
	rec := finishedRecord()
	one := 1
	rec.Players = []PlayerRecord{
		{Name: "Anna", Team: "Red", Score: 1500, Rank: 1, Responses: []ResponseRecord{
			{QuestionIndex: 0, AnswerIndex: &one, Correct: true, ScoreDelta: 900, Elapsed: 1500 * time.Millisecond},
			{QuestionIndex: 1, AnswerIndex: &one, Correct: true, ScoreDelta: 600, Elapsed: 4 * time.Second},
		}},
		{Name: "Ben", Score: 0, Rank: 2, Responses: []ResponseRecord{
			{QuestionIndex: 0},
		}},
	}

	id, err := store.SaveSession(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	assert.True(t, db.tx.committed)
	assert.False(t, db.tx.rolledBack)

	require.Len(t, db.calls, 6)
	assert.Equal(t, insertGameSQL, db.calls[0].sql)
	assert.Equal(t, rec.Code, db.calls[0].args[0])

	assert.Equal(t, insertPlayerSQL, db.calls[1].sql)
	assert.Equal(t, []any{int64(7), "Anna", "Red", 1500, 1}, db.calls[1].args)
	assert.Equal(t, []any{int64(7), "Ben", "", 0, 2}, db.calls[2].args)

	for _, c := range db.calls[3:] {
		assert.Equal(t, insertResponseSQL, c.sql)
	}
	assert.Equal(t, []any{int64(100), 0, &one, true, 900, int64(1500)}, db.calls[3].args)
	assert.Equal(t, int64(100), db.calls[4].args[0])
	assert.Equal(t, int64(101), db.calls[5].args[0], "responses follow their player's id")
	assert.Nil(t, db.calls[5].args[2])
}

func TestPGStore_SaveSessionWithoutResponses(t *testing.T) {
	db := &recordingDB{}
	rec := finishedRecord()
	rec.Players = []PlayerRecord{{Name: "Anna", Score: 0, Rank: 1}}

	_, err := NewPGStore(db).SaveSession(context.Background(), rec)
	require.NoError(t, err)
	assert.Len(t, db.calls, 2)
	assert.True(t, db.tx.committed)
}

func TestPGStore_SaveSessionRollsBack(t *testing.T) {
	db := &recordingDB{playerErr: errors.New("unique violation")}
	rec := finishedRecord()
	rec.Players = []PlayerRecord{{Name: "Anna", Rank: 1}}

	_, err := NewPGStore(db).SaveSession(context.Background(), rec)
	assert.ErrorContains(t, err, `insert player "Anna"`)
	assert.True(t, db.tx.rolledBack)
	assert.False(t, db.tx.committed)
}

func TestPGStore_DeleteEndedBefore(t *testing.T) {
	db := &recordingDB{}
	cutoff := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	n, err := NewPGStore(db).DeleteEndedBefore(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	require.Len(t, db.calls, 1)
	assert.Equal(t, []any{cutoff}, db.calls[0].args)
}
