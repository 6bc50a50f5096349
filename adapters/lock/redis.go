package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"adcompliance/internal"
	"adcompliance/ports"
)

const keyPrefix = "adcompliance:lock:"

// releaseScript deletes the lock only if it still holds our token, so a run
// whose lock expired never releases a successor's lock.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker provides cross-process per-ad exclusion. A held key rejects the
// second caller with ports.ErrLocked; the TTL frees keys of crashed holders.
type RedisLocker struct {
	client redis.Cmdable
	ttl    time.Duration
	logger *internal.Logger
}

var _ ports.AdLocker = (*RedisLocker)(nil)

// NewRedisLocker connects to addr and verifies the connection.
func NewRedisLocker(ctx context.Context, addr, password string, db int, ttl time.Duration, logger *internal.Logger) (*RedisLocker, error) {
	if addr == "" {
		return nil, errors.New("redis addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return NewRedisLockerWithClient(client, ttl, logger), nil
}

// NewRedisLockerWithClient uses an existing client.
func NewRedisLockerWithClient(client redis.Cmdable, ttl time.Duration, logger *internal.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if logger == nil {
		logger = internal.Discard
	}
	return &RedisLocker{client: client, ttl: ttl, logger: logger}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	redisKey := keyPrefix + key
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lock %s: %w", key, err)
	}
	if !ok {
		return nil, ports.ErrLocked
	}

	return func() {
		// The run context may be cancelled by now; release on a fresh one.
		rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(rctx, l.client, []string{redisKey}, token).Err(); err != nil {
			l.logger.Warn("[RedisLocker] release %s failed: %v", key, err)
		}
	}, nil
}

// Close closes the underlying client when it owns one.
func (l *RedisLocker) Close() error {
	if c, ok := l.client.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
