// Package ledger owns every change to on-hand and per-location quantities.
// Catalog, location, movement, purchase order and request operations all run
// through Engine so that the item total, the location splits and the
// append-only movement log move together or not at all.
package ledger

import (
	"context"
	"time"

	"stockroom/backend/internal/lock"
	"stockroom/backend/internal/store"
)

type Engine struct {
	repo   store.Repository
	locker lock.Locker
	now    func() time.Time
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(repo store.Repository, locker lock.Locker, opts ...Option) *Engine {
	if locker == nil {
		locker = lock.NewLocal(0)
	}
	e := &Engine{repo: repo, locker: locker, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) timestamp() time.Time {
	return e.now().UTC()
}

// run takes the per-item locks for itemIDs and executes fn in one
// transaction. Locks are released only after commit or rollback.
func (e *Engine) run(ctx context.Context, itemIDs []string, fn func(ctx context.Context, tx store.Tx) error) error {
	keys := make([]string, 0, len(itemIDs))
	for _, id := range itemIDs {
		if id != "" {
			keys = append(keys, lock.ItemKey(id))
		}
	}
	if len(keys) > 0 {
		release, err := e.locker.Acquire(ctx, keys...)
		if err != nil {
			return err
		}
		defer release()
	}
	return e.repo.Atomic(ctx, fn)
}
