package recompute

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/osaio/orderfacts/internal/config"
	redis "github.com/redis/go-redis/v9"
)

// The batch model assumes a single writer; the lock keeps an overlapping
// cron invocation or an operator's manual run from interleaving with one
// already in flight.
const runLockKey = "orderfacts:recompute:lock"

const lockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// ErrRunInProgress signals that another recompute run holds the lock.
var ErrRunInProgress = errors.New("recompute run already in progress")

type Locker struct {
	client *redis.Client
	script *redis.Script
}

// NewRedisClient builds the lock client, or nil when no address is set.
func NewRedisClient(cfg config.Config) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

// NewLocker wraps the redis client, or returns nil to disable locking.
func NewLocker(client *redis.Client) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{
		client: client,
		script: redis.NewScript(lockReleaseScript),
	}
}

func (l *Locker) TryLock(ctx context.Context, ttl time.Duration) (string, bool, error) {
	if l == nil || l.client == nil {
		return "", true, nil
	}
	if ttl <= 0 {
		return "", false, errors.New("lock ttl must be positive")
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, runLockKey, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

func (l *Locker) Release(ctx context.Context, token string) error {
	if l == nil || l.client == nil || token == "" {
		return nil
	}
	return l.script.Run(ctx, l.client, []string{runLockKey}, token).Err()
}
