package job

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// NoopLocker always grants the lock. Used when Redis is not configured and
// only one process runs the sync.
type NoopLocker struct{}

func (NoopLocker) Acquire(ctx context.Context, name string) (func(), bool, error) {
	return func() {}, true, nil
}

// Scripter is the slice of the redis client the locker uses.
type Scripter interface {
	redis.Scripter
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
}

// releaseScript deletes the lock key only when it still holds our token, so
// an expired lock taken over by another run is never released from here.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker serializes sync runs across processes with a token lock. The
// TTL bounds how long a crashed holder can block the next run.
type RedisLocker struct {
	client Scripter
	ttl    time.Duration
}

// NewRedisLocker builds a cross-process run lock on the shared Redis.
func NewRedisLocker(client Scripter, ttl time.Duration) *RedisLocker {
	return &RedisLocker{client: client, ttl: ttl}
}

func (l *RedisLocker) key(name string) string {
	return "profil:sync:lock:" + name
}

// Acquire takes the named lock via SETNX with a per-run token.
func (l *RedisLocker) Acquire(ctx context.Context, name string) (func(), bool, error) {
	key := l.key(name)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("setnx %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		// Release on a fresh context; the run context may already be done.
		rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = releaseScript.Run(rctx, l.client, []string{key}, token).Err()
	}
	return release, true, nil
}
