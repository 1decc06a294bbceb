package config

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "live-quiz", cfg.Name)
	assert.False(t, cfg.Postgres.Enabled())
	assert.False(t, cfg.Redis.Enabled())
	assert.Equal(t, 6, cfg.Session.CodeLength)
	assert.Equal(t, 3*time.Second, cfg.Session.Countdown)
	assert.Equal(t, 60*time.Second, cfg.Session.HostGracePeriod)
	assert.Equal(t, 24*time.Hour, cfg.Session.MaxIdle)
	assert.Equal(t, 500, cfg.Scoring.BaseScore)
	assert.InDelta(t, 0.5, cfg.Scoring.MaxStreakBonus, 1e-9)
	assert.Equal(t, 7*24*time.Hour, cfg.Leaderboard.ArchiveTTL)
	assert.Equal(t, []string{"http://localhost:3000", "http://127.0.0.1:3000"}, cfg.CORS.AllowedOrigins)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PG_HOST", "db")
	t.Setenv("PG_USER", "quiz")
	t.Setenv("PG_PASSWORD", "secret")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("SESSION_HOST_GRACE", "30s")
	t.Setenv("SESSION_DEFAULT_READING_SECONDS", "5s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://quiz.example.com")

	cfg, err := Load(context.Background())
	require.NoError(t, err)

	assert.True(t, cfg.Postgres.Enabled())
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, 30*time.Second, cfg.Session.HostGracePeriod)
	assert.Equal(t, 5*time.Second, cfg.Session.DefaultReadingTime)
	assert.Equal(t, []string{"https://quiz.example.com"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t,
		"host=db port=5432 user=quiz password=secret dbname=live_quiz sslmode=disable pool_max_conns=10",
		cfg.Postgres.ConnString())
}

func TestLoad_Invalid(t *testing.T) {
	t.Run("code length", func(t *testing.T) {
		t.Setenv("SESSION_CODE_LENGTH", "2")
		_, err := Load(context.Background())
		assert.ErrorContains(t, err, "SESSION_CODE_LENGTH")
	})
	t.Run("postgres without user", func(t *testing.T) {
		t.Setenv("PG_HOST", "db")
		_, err := Load(context.Background())
		assert.ErrorContains(t, err, "PG_USER")
	})
	t.Run("unparsable duration", func(t *testing.T) {
		t.Setenv("SESSION_MAX_IDLE", "forever")
		_, err := Load(context.Background())
		assert.ErrorContains(t, err, "parse config")
	})
}
