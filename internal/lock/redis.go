package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"

	"stockroom/backend/internal/store"
)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a Locker shared by every instance pointing at the same Redis.
// Each key is a SET NX PX entry owned by a random token, so an expired lock
// re-taken by someone else is never released by the old holder. Entries are
// not renewed: ttl must outlast the longest critical section.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	wait   time.Duration
	retry  time.Duration
}

func NewRedis(addr string, password string, db int, ttl time.Duration, wait time.Duration) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	if wait <= 0 {
		wait = 2 * time.Second
	}
	return &Redis{client: client, ttl: ttl, wait: wait, retry: 50 * time.Millisecond}
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) Acquire(ctx context.Context, keys ...string) (func(), error) {
	keys = normalizeKeys(keys)
	token := uuid.NewString()
	deadline := time.Now().Add(r.wait)

	taken := make([]string, 0, len(keys))
	for _, key := range keys {
		if err := r.acquireOne(ctx, key, token, deadline); err != nil {
			r.release(taken, token)
			return nil, err
		}
		taken = append(taken, key)
	}
	return func() { r.release(taken, token) }, nil
}

func (r *Redis) acquireOne(ctx context.Context, key string, token string, deadline time.Time) error {
	for {
		ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
		if err != nil {
			return fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			return nil
		}
		if time.Now().Add(r.retry).After(deadline) {
			return fmt.Errorf("%w: %s", store.ErrBusy, key)
		}
		select {
		case <-time.After(r.retry):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// release runs on its own context so a cancelled request still frees its keys.
func (r *Redis) release(keys []string, token string) {
	if len(keys) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for _, key := range keys {
		_ = releaseScript.Run(ctx, r.client, []string{key}, token).Err()
	}
}
