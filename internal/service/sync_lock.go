package service

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RunLock keeps at most one sync run active at a time. The batch endpoint is
// invoked by an external scheduler; overlapping runs would race on per-user
// write-backs and double-spend provider quota.
type RunLock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// RedisRunLock is a SETNX lease with a TTL so a crashed run cannot wedge the
// scheduler forever.
type RedisRunLock struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
}

func NewRedisRunLock(client redis.UniversalClient, keyPrefix string, ttl time.Duration) *RedisRunLock {
	return &RedisRunLock{client: client, key: keyPrefix + ":sync:run-lock", ttl: ttl}
}

func (l *RedisRunLock) Acquire(ctx context.Context) (bool, error) {
	return l.client.SetNX(ctx, l.key, time.Now().UTC().Format(time.RFC3339), l.ttl).Result()
}

func (l *RedisRunLock) Release(ctx context.Context) error {
	return l.client.Del(ctx, l.key).Err()
}

// LocalRunLock covers single-instance deployments where Redis is off.
type LocalRunLock struct {
	mu   sync.Mutex
	held bool
}

func NewLocalRunLock() *LocalRunLock { return &LocalRunLock{} }

func (l *LocalRunLock) Acquire(context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held {
		return false, nil
	}
	l.held = true
	return true, nil
}

func (l *LocalRunLock) Release(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.held = false
	return nil
}
