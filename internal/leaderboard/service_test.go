package leaderboard

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/live-quiz/internal/history"
)

// memoryArchive keeps sorted sets and hashes in memory. Only the commands
// the archive issues are implemented; anything else panics on the nil embed.
type memoryArchive struct {
	redis.Cmdable

	zsets   map[string]map[string]float64
	hashes  map[string]map[string]string
	ttls    map[string]time.Duration
	execErr error
}

func newMemoryArchive() *memoryArchive {
	return &memoryArchive{
		zsets:  make(map[string]map[string]float64),
		hashes: make(map[string]map[string]string),
		ttls:   make(map[string]time.Duration),
	}
}

func (m *memoryArchive) TxPipeline() redis.Pipeliner {
	return &memoryTx{store: m}
}

func (m *memoryArchive) ZRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd {
	set := m.zsets[key]
	members := make([]string, 0, len(set))
	for member := range set {
		members = append(members, member)
	}
	sort.Slice(members, func(i, j int) bool {
		if set[members[i]] != set[members[j]] {
			return set[members[i]] < set[members[j]]
		}
		return members[i] < members[j]
	})
	if stop >= int64(len(members)) {
		stop = int64(len(members)) - 1
	}
	if start > stop {
		return redis.NewStringSliceResult(nil, nil)
	}
	return redis.NewStringSliceResult(members[start:stop+1], nil)
}

func (m *memoryArchive) HMGet(ctx context.Context, key string, fields ...string) *redis.SliceCmd {
	out := make([]interface{}, len(fields))
	for i, f := range fields {
		if v, ok := m.hashes[key][f]; ok {
			out[i] = v
		}
	}
	return redis.NewSliceResult(out, nil)
}

// memoryTx queues writes and applies them on Exec.
type memoryTx struct {
	redis.Pipeliner

	store *memoryArchive
	ops   []func()
}

func (t *memoryTx) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	t.ops = append(t.ops, func() {
		for _, k := range keys {
			delete(t.store.zsets, k)
			delete(t.store.hashes, k)
		}
	})
	return redis.NewIntCmd(ctx)
}

func (t *memoryTx) ZAdd(ctx context.Context, key string, members ...redis.Z) *redis.IntCmd {
	t.ops = append(t.ops, func() {
		if t.store.zsets[key] == nil {
			t.store.zsets[key] = make(map[string]float64)
		}
		for _, z := range members {
			t.store.zsets[key][z.Member.(string)] = z.Score
		}
	})
	return redis.NewIntCmd(ctx)
}

func (t *memoryTx) HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	t.ops = append(t.ops, func() {
		if t.store.hashes[key] == nil {
			t.store.hashes[key] = make(map[string]string)
		}
		for field, v := range values[0].(map[string]interface{}) {
			t.store.hashes[key][field] = string(v.([]byte))
		}
	})
	return redis.NewIntCmd(ctx)
}

func (t *memoryTx) Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	t.ops = append(t.ops, func() { t.store.ttls[key] = expiration })
	return redis.NewBoolCmd(ctx)
}

func (t *memoryTx) Exec(ctx context.Context) ([]redis.Cmder, error) {
	if t.store.execErr != nil {
		return nil, t.store.execErr
	}
	for _, op := range t.ops {
		op()
	}
	return nil, nil
}

func finalRecord(code string, players ...history.PlayerRecord) history.SessionRecord {
	return history.SessionRecord{Code: code, QuizTitle: "Capitals", Players: players}
}

func TestService_ArchiveRoundTrip(t *testing.T) {
	store := newMemoryArchive()
	svc := NewService(store, zerolog.Nop(), ServiceOptions{TopN: 2, EntryTTL: time.Hour})
	ctx := context.Background()

	require.NoError(t, svc.RecordSession(ctx, finalRecord("abcd",
		history.PlayerRecord{Name: "Carl", Score: 300, Rank: 3},
		history.PlayerRecord{Name: "Anna", Team: "Red", Score: 1500, Rank: 1},
		history.PlayerRecord{Name: "Ben", Score: 900, Rank: 2},
	)))

	assert.Equal(t, time.Hour, store.ttls["lb:session:ABCD"])
	assert.Equal(t, time.Hour, store.ttls["lb:session:ABCD:entries"])

	entries, err := svc.SessionTop(ctx, "ABCD", 10)
	require.NoError(t, err)
	assert.Equal(t, []Entry{
		{Rank: 1, Name: "Anna", Team: "Red", Score: 1500},
		{Rank: 2, Name: "Ben", Score: 900},
	}, entries, "limit is capped at TopN")

	entries, err = svc.SessionTop(ctx, "abcd", 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Anna", entries[0].Name)
}

func TestService_RecordReplacesPreviousArchive(t *testing.T) {
	store := newMemoryArchive()
	svc := NewService(store, zerolog.Nop(), ServiceOptions{})
	ctx := context.Background()

	require.NoError(t, svc.RecordSession(ctx, finalRecord("ABCD",
		history.PlayerRecord{Name: "Old", Score: 10, Rank: 1},
	)))
	require.NoError(t, svc.RecordSession(ctx, finalRecord("ABCD",
		history.PlayerRecord{Name: "New", Score: 20, Rank: 1},
	)))

	entries, err := svc.SessionTop(ctx, "ABCD", 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "New", entries[0].Name)
	assert.Equal(t, 7*24*time.Hour, store.ttls["lb:session:ABCD"], "default TTL")
}

func TestService_EmptyAndMissing(t *testing.T) {
	store := newMemoryArchive()
	svc := NewService(store, zerolog.Nop(), ServiceOptions{})
	ctx := context.Background()

	require.NoError(t, svc.RecordSession(ctx, finalRecord("ABCD")))
	assert.Empty(t, store.zsets, "sessions without players are not archived")

	entries, err := svc.SessionTop(ctx, "ZZZZ", 5)
	require.NoError(t, err)
	assert.Nil(t, entries)
}

func TestService_ArchiveFailure(t *testing.T) {
	store := newMemoryArchive()
	store.execErr = errors.New("connection reset")
	svc := NewService(store, zerolog.Nop(), ServiceOptions{})

	err := svc.RecordSession(context.Background(), finalRecord("ABCD",
		history.PlayerRecord{Name: "Anna", Score: 10, Rank: 1},
	))
	assert.ErrorContains(t, err, "archive session leaderboard ABCD")
	assert.Empty(t, store.hashes)
}
