package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockHeld is returned when another owner holds the lock
var ErrLockHeld = errors.New("lock held by another owner")

// Locker hands out short-lived exclusive locks (SET NX PX)
// ⭐ SSOT: 스케줄러 인스턴스 간 중복 실행 방지는 여기서만
type Locker struct {
	client *Client
	prefix string
}

// Lock is an acquired lock; Release it when done
type Lock struct {
	locker *Locker
	key    string
	token  string
}

// NewLocker creates a new locker
func NewLocker(client *Client, prefix string) *Locker {
	return &Locker{
		client: client,
		prefix: prefix,
	}
}

// 토큰이 일치할 때만 삭제 (다른 소유자의 락 해제 방지)
var releaseScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// Acquire takes the lock for ttl or returns ErrLockHeld.
// When Redis is disabled the lock is always granted (single instance).
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lock, error) {
	lock := &Lock{
		locker: l,
		key:    fmt.Sprintf("%s:lock:%s", l.prefix, key),
		token:  uuid.NewString(),
	}

	if !l.client.Enabled() {
		return lock, nil
	}

	ok, err := l.client.Redis().SetNX(ctx, lock.key, lock.token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("lock acquire failed: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLockHeld, key)
	}

	return lock, nil
}

// Release frees the lock if this owner still holds it
func (lk *Lock) Release(ctx context.Context) error {
	if !lk.locker.client.Enabled() {
		return nil
	}

	if err := releaseScript.Run(ctx, lk.locker.client.Redis(), []string{lk.key}, lk.token).Err(); err != nil {
		return fmt.Errorf("lock release failed: %w", err)
	}
	return nil
}

// Key returns the full Redis key of the lock
func (lk *Lock) Key() string {
	return lk.key
}
