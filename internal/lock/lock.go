package lock

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"stockroom/backend/internal/store"
)

// Locker serializes work on a set of keys. Acquire either takes every key or
// none, and fails with store.ErrBusy when the wait budget runs out.
type Locker interface {
	Acquire(ctx context.Context, keys ...string) (release func(), err error)
}

// ItemKey is the lock key guarding an item's on-hand and split quantities.
func ItemKey(itemID string) string {
	return "lock:inventory:item:" + itemID
}

// normalizeKeys sorts and dedupes so that every caller takes keys in the same
// order.
func normalizeKeys(keys []string) []string {
	out := slices.Clone(keys)
	slices.Sort(out)
	return slices.Compact(out)
}

// Local is an in-process keyed mutex.
type Local struct {
	mu   sync.Mutex
	held map[string]chan struct{}
	wait time.Duration
}

func NewLocal(wait time.Duration) *Local {
	if wait <= 0 {
		wait = 2 * time.Second
	}
	return &Local{held: make(map[string]chan struct{}), wait: wait}
}

func (l *Local) Acquire(ctx context.Context, keys ...string) (func(), error) {
	keys = normalizeKeys(keys)
	timer := time.NewTimer(l.wait)
	defer timer.Stop()

	taken := make([]string, 0, len(keys))
	for _, key := range keys {
		if err := l.acquireOne(ctx, timer.C, key); err != nil {
			l.release(taken)
			return nil, err
		}
		taken = append(taken, key)
	}

	var once sync.Once
	return func() { once.Do(func() { l.release(taken) }) }, nil
}

func (l *Local) acquireOne(ctx context.Context, deadline <-chan time.Time, key string) error {
	for {
		l.mu.Lock()
		ch, busy := l.held[key]
		if !busy {
			l.held[key] = make(chan struct{})
			l.mu.Unlock()
			return nil
		}
		l.mu.Unlock()

		select {
		case <-ch:
		case <-deadline:
			return fmt.Errorf("%w: %s", store.ErrBusy, key)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (l *Local) release(keys []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, key := range keys {
		if ch, ok := l.held[key]; ok {
			close(ch)
			delete(l.held, key)
		}
	}
}
