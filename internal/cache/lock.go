package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLocked is returned by Acquire when another holder owns the lock.
var ErrLocked = errors.New("lock is already held")

// SyncLockKey guards channel sync runs.
const SyncLockKey = "lock:sync"

// Compare-and-delete / compare-and-extend so a lease never touches a lock
// that expired and was taken by someone else.
var (
	releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`)
	refreshScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0`)
)

// Lease is a held lock.
type Lease struct {
	r     *Redis
	key   string
	token string
	ttl   time.Duration
}

// Acquire takes the lock at key with SET NX PX. It returns ErrLocked when
// the key is already held.
func Acquire(ctx context.Context, r *Redis, key string, ttl time.Duration) (*Lease, error) {
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, Key(key), token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("cache lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return &Lease{r: r, key: key, token: token, ttl: ttl}, nil
}

// Release drops the lock if this lease still owns it. It ignores the
// caller's cancellation so a lock is not left behind on shutdown.
func (l *Lease) Release(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	return releaseScript.Run(ctx, l.r.client, []string{Key(l.key)}, l.token).Err()
}

// Refresh resets the lease TTL. It reports false when the lease was lost.
func (l *Lease) Refresh(ctx context.Context) (bool, error) {
	n, err := refreshScript.Run(ctx, l.r.client, []string{Key(l.key)}, l.token, l.ttl.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("cache lock refresh %s: %w", l.key, err)
	}
	return n == 1, nil
}

// KeepAlive refreshes the lease at a third of its TTL until ctx is done.
func (l *Lease) KeepAlive(ctx context.Context) {
	interval := l.ttl / 3
	if interval <= 0 {
		return
	}
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if ok, err := l.Refresh(ctx); err != nil || !ok {
					return
				}
			}
		}
	}()
}

// Held reports whether any holder owns the lock at key.
func Held(ctx context.Context, r *Redis, key string) (bool, error) {
	n, err := r.client.Exists(ctx, Key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("cache lock exists %s: %w", key, err)
	}
	return n > 0, nil
}

// SyncLock adapts Acquire to the sync pipeline's run lock. The lease is
// kept alive while the run lasts and released when unlock is called.
type SyncLock struct {
	Redis *Redis
	TTL   time.Duration
}

// DefaultSyncLockTTL bounds how long a crashed run can block the next one.
const DefaultSyncLockTTL = 2 * time.Minute

// TryAcquire takes SyncLockKey or returns ErrLocked.
func (s SyncLock) TryAcquire(ctx context.Context) (unlock func(), err error) {
	ttl := s.TTL
	if ttl <= 0 {
		ttl = DefaultSyncLockTTL
	}
	lease, err := Acquire(ctx, s.Redis, SyncLockKey, ttl)
	if err != nil {
		return nil, err
	}
	keepCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	lease.KeepAlive(keepCtx)
	return func() {
		stop()
		_ = lease.Release(ctx)
	}, nil
}
