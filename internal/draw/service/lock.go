package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"stagepass/internal/platform/redis"
)

// Locker serializes draw execution per event. Acquire returns acquired=false
// without error when somebody else holds the lock.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context), acquired bool, err error)
}

// RedisLocker takes the mutex with SET NX so concurrent draw triggers across
// replicas cannot double-draw. The TTL bounds how long a crashed holder
// blocks the next attempt.
type RedisLocker struct {
	client *redis.Client
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

// releaseScript deletes the lock only while our token still owns it, so a
// holder that outlived its TTL cannot clobber the next owner's lock.
var releaseScript = goredis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context), bool, error) {
	token := uuid.NewString()
	acquired, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !acquired {
		return nil, false, nil
	}
	release := func(ctx context.Context) {
		_ = releaseScript.Run(ctx, l.client, []string{key}, token).Err()
	}
	return release, true, nil
}

// LocalLocker is the single-process fallback when Redis is not configured.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]struct{})}
}

func (l *LocalLocker) Acquire(_ context.Context, key string, _ time.Duration) (func(context.Context), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, taken := l.held[key]; taken {
		return nil, false, nil
	}
	l.held[key] = struct{}{}

	release := func(context.Context) {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
	}
	return release, true, nil
}
