package leaderboard

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/live-quiz/internal/history"
)

// Entry represents an archived leaderboard record sent to clients.
type Entry struct {
	Rank  int    `json:"rank"`
	Name  string `json:"name"`
	Team  string `json:"team,omitempty"`
	Score int    `json:"score"`
}

// ServiceOptions configures leaderboard archive behavior.
type ServiceOptions struct {
	TopN           int
	EntryTTL       time.Duration
	RedisKeyPrefix string
}

// Service archives final session leaderboards in Redis so they can be
// fetched after the in-memory session is gone.
type Service struct {
	redis    redis.Cmdable
	logger   zerolog.Logger
	topN     int
	entryTTL time.Duration
	prefix   string
}

// NewService constructs a leaderboard archive.
func NewService(redis redis.Cmdable, logger zerolog.Logger, opts ServiceOptions) *Service {
	topN := opts.TopN
	if topN <= 0 {
		topN = 50
	}
	ttl := opts.EntryTTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	prefix := opts.RedisKeyPrefix
	if prefix == "" {
		prefix = "lb"
	}

	return &Service{
		redis:    redis,
		logger:   logger.With().Str("component", "leaderboard").Logger(),
		topN:     topN,
		entryTTL: ttl,
		prefix:   prefix,
	}
}

// RecordSession stores the final ranking of a session.
func (s *Service) RecordSession(ctx context.Context, rec history.SessionRecord) error {
	if len(rec.Players) == 0 {
		return nil
	}

	rankKey := s.rankKey(rec.Code)
	entriesKey := s.entriesKey(rec.Code)

	members := make([]redis.Z, 0, len(rec.Players))
	fields := make(map[string]interface{}, len(rec.Players))
	for _, p := range rec.Players {
		data, err := json.Marshal(Entry{Rank: p.Rank, Name: p.Name, Team: p.Team, Score: p.Score})
		if err != nil {
			return fmt.Errorf("marshal leaderboard entry: %w", err)
		}
		member := strings.ToLower(p.Name)
		members = append(members, redis.Z{Score: float64(p.Rank), Member: member})
		fields[member] = data
	}

	pipe := s.redis.TxPipeline()
	pipe.Del(ctx, rankKey, entriesKey)
	pipe.ZAdd(ctx, rankKey, members...)
	pipe.HSet(ctx, entriesKey, fields)
	pipe.Expire(ctx, rankKey, s.entryTTL)
	pipe.Expire(ctx, entriesKey, s.entryTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("archive session leaderboard %s: %w", rec.Code, err)
	}

	s.logger.Debug().Str("code", rec.Code).Int("entries", len(members)).Msg("session leaderboard archived")
	return nil
}

// SessionTop retrieves the top N entries of an archived session.
func (s *Service) SessionTop(ctx context.Context, code string, limit int) ([]Entry, error) {
	if limit <= 0 || limit > s.topN {
		limit = s.topN
	}

	members, err := s.redis.ZRange(ctx, s.rankKey(code), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("fetch session leaderboard: %w", err)
	}
	if len(members) == 0 {
		return nil, nil
	}

	raw, err := s.redis.HMGet(ctx, s.entriesKey(code), members...).Result()
	if err != nil {
		return nil, fmt.Errorf("fetch session leaderboard entries: %w", err)
	}

	entries := make([]Entry, 0, len(raw))
	for i, v := range raw {
		str, ok := v.(string)
		if !ok {
			s.logger.Warn().Str("code", code).Str("member", members[i]).Msg("leaderboard entry missing")
			continue
		}
		var e Entry
		if err := json.Unmarshal([]byte(str), &e); err != nil {
			s.logger.Warn().Err(err).Str("code", code).Msg("failed to decode leaderboard entry")
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (s *Service) rankKey(code string) string {
	return fmt.Sprintf("%s:session:%s", s.prefix, strings.ToUpper(code))
}

func (s *Service) entriesKey(code string) string {
	return fmt.Sprintf("%s:session:%s:entries", s.prefix, strings.ToUpper(code))
}
