package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// Locker serializes work on a key (a plan, a user). The returned func releases the lock.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

func planLockKey(planID uint) string      { return fmt.Sprintf("plan:%d", planID) }
func streakLockKey(userID uint) string    { return fmt.Sprintf("streak:%d", userID) }
func admissionLockKey(userID uint) string { return fmt.Sprintf("admission:%d", userID) }

// KeyedMutex is an in-process Locker. Entries are reference counted and dropped once
// no goroutine holds or waits on them.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	ch   chan struct{}
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyedEntry)}
}

func (k *KeyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &keyedEntry{ch: make(chan struct{}, 1)}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		k.release(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			k.release(key, e)
		})
	}, nil
}

func (k *KeyedMutex) release(key string, e *keyedEntry) {
	k.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(k.locks, key)
	}
	k.mu.Unlock()
}

// size reports tracked keys.
func (k *KeyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}

var ErrLockNotAcquired = errors.New("lock not acquired")

// releaseScript deletes the key only while it still holds our token.
var releaseScript = goredis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker shares locks between instances through SET NX PX.
type RedisLocker struct {
	rdb        *goredis.Client
	prefix     string
	ttl        time.Duration
	retryDelay time.Duration
}

func NewRedisLocker(rdb *goredis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLocker{
		rdb:        rdb,
		prefix:     "learnplan:lock:",
		ttl:        ttl,
		retryDelay: 25 * time.Millisecond,
	}
}

func (r *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	fullKey := r.prefix + key
	token := uuid.NewString()

	delay := r.retryDelay
	for {
		ok, err := r.rdb.SetNX(ctx, fullKey, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis lock %s: %w", key, err)
		}
		if ok {
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("%w: %s: %v", ErrLockNotAcquired, key, ctx.Err())
		case <-timer.C:
		}
		if delay < 400*time.Millisecond {
			delay *= 2
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = releaseScript.Run(releaseCtx, r.rdb, []string{fullKey}, token).Err()
		})
	}, nil
}
