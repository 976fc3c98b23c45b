package redis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/streakup/habit-tracker/internal/core/domain"
)

const (
	defaultLockTTL  = 5 * time.Second
	defaultLockWait = 2 * time.Second
	retryInterval   = 25 * time.Millisecond
	attemptTimeout  = 500 * time.Millisecond
	releaseTimeout  = time.Second
)

// releaseScript deletes the key only while it still holds our token, so an
// expired lock re-acquired by another replica is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// CompletionLock guards a habit's completion across replicas.
// Key format: lock:habit:<habit_id>
type CompletionLock struct {
	client *redis.Client
	ttl    time.Duration
	wait   time.Duration
	log    zerolog.Logger
}

// NewCompletionLock wraps client. Zero ttl or wait fall back to defaults.
func NewCompletionLock(client *redis.Client, ttl, wait time.Duration, log zerolog.Logger) *CompletionLock {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	if wait <= 0 {
		wait = defaultLockWait
	}
	return &CompletionLock{client: client, ttl: ttl, wait: wait, log: log}
}

// Acquire blocks until the lock for key is held or the wait budget runs out,
// in which case it returns domain.ErrCompletionInProgress. If Redis itself
// fails the caller proceeds unlocked and a warning is logged.
func (l *CompletionLock) Acquire(ctx context.Context, key string) (func(), error) {
	k := l.key(key)
	token := uuid.NewString()

	waitCtx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	ticker := time.NewTicker(retryInterval)
	defer ticker.Stop()

	for {
		ok, err := l.tryLock(ctx, k, token)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			l.log.Warn().Err(err).Str("key", k).Msg("completion lock unavailable, continuing without it")
			return func() {}, nil
		}
		if ok {
			return func() { l.release(k, token) }, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-waitCtx.Done():
			return nil, domain.ErrCompletionInProgress
		case <-ticker.C:
		}
	}
}

// tryLock makes one SET NX attempt bounded by attemptTimeout, so an
// unreachable server surfaces as an error rather than as contention.
func (l *CompletionLock) tryLock(ctx context.Context, key, token string) (bool, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
	defer cancel()
	return l.client.SetNX(attemptCtx, key, token, l.ttl).Result()
}

func (l *CompletionLock) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()

	if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		l.log.Warn().Err(err).Str("key", key).Msg("completion lock release failed")
	}
}

func (l *CompletionLock) key(habitID string) string {
	return "lock:habit:" + habitID
}
