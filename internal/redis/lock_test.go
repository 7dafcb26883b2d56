package redisclient

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocker(t *testing.T) Locker {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLocker(client, 2*time.Second)
}

func TestWithLockRunsCriticalSection(t *testing.T) {
	locker := newTestLocker(t)

	ran := false
	err := locker.WithLock(context.Background(), "materialize:doctor:42", func(ctx context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestWithLockContention(t *testing.T) {
	locker := newTestLocker(t)

	err := locker.WithLock(context.Background(), "materialize:doctor:42", func(ctx context.Context) error {
		// Same key is held; a second acquisition must fail rather than block.
		return locker.WithLock(ctx, "materialize:doctor:42", func(ctx context.Context) error {
			t.Fatal("nested critical section should not run")
			return nil
		})
	})
	assert.ErrorIs(t, err, ErrLockNotAcquired)
}

func TestWithLockReleasedAfterUse(t *testing.T) {
	locker := newTestLocker(t)

	require.NoError(t, locker.WithLock(context.Background(), "materialize:doctor:7", func(ctx context.Context) error {
		return nil
	}))

	// Lock must be reacquirable once the first holder is done.
	err := locker.WithLock(context.Background(), "materialize:doctor:7", func(ctx context.Context) error {
		return nil
	})
	assert.NoError(t, err)
}

func TestWithLockPropagatesError(t *testing.T) {
	locker := newTestLocker(t)

	wantErr := assert.AnError
	err := locker.WithLock(context.Background(), "materialize:doctor:9", func(ctx context.Context) error {
		return wantErr
	})
	assert.ErrorIs(t, err, wantErr)
}
