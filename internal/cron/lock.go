package cron

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// The TTL must outlive one retention cycle plus slack, so a crashed worker
// never blocks the next day's run.
const defaultLockTTL = 25 * time.Hour

// Lock coordinates exclusive cron runs across worker replicas.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// redisStore defines the operations used by RedisLock.
type redisStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

// RedisLock implements Lock with Redis SETNX + TTL. Each process carries a
// stable owner token, so a replica that already holds the lock may re-enter
// while a stale lock left by a dead replica simply expires.
type RedisLock struct {
	client redisStore
	key    string
	ttl    time.Duration
	token  string
	held   bool
}

// NewRedisLock constructs a Redis-backed lock. A non-positive ttl falls back
// to the daily-cadence default.
func NewRedisLock(client redisStore, key string, ttl time.Duration) (*RedisLock, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock")
	}
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	host, _ := os.Hostname()
	return &RedisLock{
		client: client,
		key:    key,
		ttl:    ttl,
		token:  fmt.Sprintf("%s:%s", host, uuid.NewString()),
	}, nil
}

// Acquire tries to own the lock for the configured TTL. Re-entry by the same
// process succeeds without touching the key.
func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.token, l.ttl)
	if err != nil {
		return false, fmt.Errorf("setnx: %w", err)
	}
	if ok {
		l.held = true
		return true, nil
	}

	holder, err := l.client.Get(ctx, l.key)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// Lock expired between SETNX and GET; the next cycle retries.
			return false, nil
		}
		return false, fmt.Errorf("read lock holder: %w", err)
	}
	if holder == l.token {
		l.held = true
		return true, nil
	}
	return false, nil
}

// Release frees the lock only while this process still owns it, so a slow
// cycle that outlived its TTL cannot delete a peer's lock.
func (l *RedisLock) Release(ctx context.Context) error {
	if !l.held {
		return nil
	}
	l.held = false

	holder, err := l.client.Get(ctx, l.key)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("read lock holder: %w", err)
	}
	if holder != l.token {
		return nil
	}
	if err := l.client.Del(ctx, l.key); err != nil {
		return fmt.Errorf("delete lock: %w", err)
	}
	return nil
}
