package lock

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockroom/backend/internal/store"
)

func TestLocalAcquireIsExclusive(t *testing.T) {
	l := NewLocal(50 * time.Millisecond)
	ctx := context.Background()

	release, err := l.Acquire(ctx, ItemKey("a"), ItemKey("b"))
	require.NoError(t, err)

	_, err = l.Acquire(ctx, ItemKey("b"))
	assert.ErrorIs(t, err, store.ErrBusy)

	// a failed multi-key acquire must not keep the keys it did get
	_, err = l.Acquire(ctx, ItemKey("0"), ItemKey("a"))
	assert.ErrorIs(t, err, store.ErrBusy)

	release()
	release()

	again, err := l.Acquire(ctx, ItemKey("0"), ItemKey("a"), ItemKey("b"))
	require.NoError(t, err)
	again()
}

func TestLocalWaiterWakesOnRelease(t *testing.T) {
	l := NewLocal(time.Second)
	ctx := context.Background()
	release, err := l.Acquire(ctx, "k")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		r, err := l.Acquire(ctx, "k")
		if err == nil {
			r()
		}
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	release()
	assert.NoError(t, <-done)
}

func TestLocalHonoursContext(t *testing.T) {
	l := NewLocal(time.Second)
	release, err := l.Acquire(context.Background(), "k")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx, "k")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRedisLockIntegration(t *testing.T) {
	addr := os.Getenv("INVENTORY_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set INVENTORY_TEST_REDIS_ADDR to run redis lock integration test")
	}
	r := NewRedis(addr, "", 0, 5*time.Second, 100*time.Millisecond)
	defer r.Close()
	ctx := context.Background()
	require.NoError(t, r.Ping(ctx))

	key := ItemKey("it-" + time.Now().Format("150405.000000"))
	release, err := r.Acquire(ctx, key)
	require.NoError(t, err)
	_, err = r.Acquire(ctx, key)
	assert.ErrorIs(t, err, store.ErrBusy)
	release()

	again, err := r.Acquire(ctx, key)
	require.NoError(t, err)
	again()
}
