package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// releaseScript deletes the key only if this instance still owns it.
var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

type reserverClient interface {
	redis.Scripter
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// RedisCodeReserver keeps session codes unique across server instances
// that share one Redis.
type RedisCodeReserver struct {
	redis  reserverClient
	owner  string
	ttl    time.Duration
	prefix string
	logger zerolog.Logger
}

// NewRedisCodeReserver creates a reserver. Reservations expire after ttl
// so codes held by a crashed instance come back eventually.
func NewRedisCodeReserver(rdb *redis.Client, ttl time.Duration, logger zerolog.Logger) *RedisCodeReserver {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisCodeReserver{
		redis:  rdb,
		owner:  uuid.NewString(),
		ttl:    ttl,
		prefix: "session:code:",
		logger: logger.With().Str("component", "code_reserver").Logger(),
	}
}

// Reserve claims code for this instance. It reports false when another instance holds it.
func (r *RedisCodeReserver) Reserve(ctx context.Context, code string) (bool, error) {
	ok, err := r.redis.SetNX(ctx, r.prefix+code, r.owner, r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("reserve code: %w", err)
	}
	if !ok {
		r.logger.Debug().Str("code", code).Msg("code held by another instance")
	}
	return ok, nil
}

// Release frees a code reserved by this instance.
func (r *RedisCodeReserver) Release(ctx context.Context, code string) error {
	if err := releaseScript.Run(ctx, r.redis, []string{r.prefix + code}, r.owner).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("release code: %w", err)
	}
	return nil
}
