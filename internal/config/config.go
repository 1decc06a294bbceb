package config

import (
	"context"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// App holds core runtime configuration shared across services.
type App struct {
	Name                    string        `env:"APP_NAME" envDefault:"live-quiz"`
	Env                     string        `env:"APP_ENV" envDefault:"development"`
	HTTPAddr                string        `env:"HTTP_ADDR" envDefault:"0.0.0.0:8080"`
	PublicBaseURL           string        `env:"PUBLIC_BASE_URL"`
	GracefulShutdownTimeout time.Duration `env:"GRACEFUL_SHUTDOWN_SECONDS" envDefault:"20s"`

	Postgres    Postgres
	Redis       Redis
	Security    Security
	Session     Session
	Scoring     Scoring
	Leaderboard Leaderboard
	Quiz        Quiz
	CORS        CORS
}

// Postgres captures connection info for the history database.
// History is disabled when Host is empty.
type Postgres struct {
	Host      string        `env:"PG_HOST"`
	Port      int           `env:"PG_PORT" envDefault:"5432"`
	User      string        `env:"PG_USER"`
	Password  string        `env:"PG_PASSWORD"`
	Database  string        `env:"PG_DATABASE" envDefault:"live_quiz"`
	SSLMode   string        `env:"PG_SSL_MODE" envDefault:"disable"`
	MaxConns  int           `env:"PG_MAX_CONNS" envDefault:"10"`
	Retention time.Duration `env:"HISTORY_RETENTION" envDefault:"720h"`
}

// Enabled reports whether a database is configured.
func (p Postgres) Enabled() bool { return p.Host != "" }

// ConnString renders a pgx keyword/value connection string.
func (p Postgres) ConnString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s pool_max_conns=%d",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode, p.MaxConns)
}

// Redis holds the archive and code reservation backend. Disabled when Addr is empty.
type Redis struct {
	Addr     string `env:"REDIS_ADDR"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	PoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"20"`
}

func (r Redis) Enabled() bool { return r.Addr != "" }

// Security stores secrets for signing host reconnect tokens.
type Security struct {
	HostTokenSecret string        `env:"HOST_TOKEN_SECRET"`
	HostTokenTTL    time.Duration `env:"HOST_TOKEN_TTL" envDefault:"24h"`
}

// Session groups live session timing and limits.
type Session struct {
	CodeLength          int           `env:"SESSION_CODE_LENGTH" envDefault:"6"`
	Countdown           time.Duration `env:"SESSION_COUNTDOWN" envDefault:"3s"`
	DefaultReadingTime  time.Duration `env:"SESSION_DEFAULT_READING_SECONDS" envDefault:"0s"`
	HostGracePeriod     time.Duration `env:"SESSION_HOST_GRACE" envDefault:"60s"`
	AutoplayDelay       time.Duration `env:"SESSION_AUTOPLAY_DELAY" envDefault:"10s"`
	TimeUpTolerance     time.Duration `env:"SESSION_TIME_UP_TOLERANCE" envDefault:"2s"`
	SweepInterval       time.Duration `env:"SESSION_SWEEP_INTERVAL" envDefault:"1m"`
	MaxIdle             time.Duration `env:"SESSION_MAX_IDLE" envDefault:"24h"`
	MaxParticipants     int           `env:"SESSION_MAX_PARTICIPANTS" envDefault:"200"`
	InactivityThreshold int           `env:"SESSION_INACTIVITY_THRESHOLD" envDefault:"3"`
	TopNPlayers         int           `env:"SESSION_TOP_N_PLAYERS" envDefault:"3"`
}

// Scoring tunes per-answer points.
type Scoring struct {
	BaseScore      int     `env:"SCORING_BASE" envDefault:"500"`
	MaxTimeBonus   int     `env:"SCORING_MAX_TIME_BONUS" envDefault:"500"`
	StreakStep     float64 `env:"SCORING_STREAK_STEP" envDefault:"0.1"`
	MaxStreakBonus float64 `env:"SCORING_STREAK_CAP" envDefault:"0.5"`
}

// Leaderboard governs the archive of finished sessions.
type Leaderboard struct {
	ArchiveTTL time.Duration `env:"LEADERBOARD_ARCHIVE_TTL" envDefault:"168h"`
	ArchiveTop int           `env:"LEADERBOARD_ARCHIVE_TOP" envDefault:"50"`
}

// Quiz points at the quiz catalog document.
type Quiz struct {
	File string `env:"QUIZ_FILE" envDefault:"configs/quizzes.json"`
}

// CORS holds Cross-Origin Resource Sharing configuration.
type CORS struct {
	AllowedOrigins   []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://127.0.0.1:3000"`
	AllowedMethods   []string `env:"CORS_ALLOWED_METHODS" envSeparator:"," envDefault:"GET,OPTIONS"`
	AllowedHeaders   []string `env:"CORS_ALLOWED_HEADERS" envSeparator:"," envDefault:"Content-Type"`
	AllowCredentials bool     `env:"CORS_ALLOW_CREDENTIALS" envDefault:"false"`
	MaxAge           int      `env:"CORS_MAX_AGE" envDefault:"3600"`
}

// Load parses environment variables into App config.
func Load(ctx context.Context) (*App, error) {
	cfg := &App{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *App) validate() error {
	if c.Session.CodeLength < 4 || c.Session.CodeLength > 12 {
		return fmt.Errorf("SESSION_CODE_LENGTH must be between 4 and 12, got %d", c.Session.CodeLength)
	}
	if c.Postgres.Enabled() && c.Postgres.User == "" {
		return fmt.Errorf("PG_USER is required when PG_HOST is set")
	}
	if c.Scoring.BaseScore < 0 || c.Scoring.MaxTimeBonus < 0 {
		return fmt.Errorf("scoring values must not be negative")
	}
	return nil
}
