package lock_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/pcquote-api/internal/lock"
)

func TestWithLockExcludesConcurrentImports(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	locker := lock.Locker{R: client, RetryBackoff: 2 * time.Millisecond}
	var (
		active     atomic.Int32
		overlapped atomic.Bool
		wg         sync.WaitGroup
	)
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := locker.WithLock(context.Background(), "catalog:import", time.Second, func(context.Context) error {
				if active.Add(1) > 1 {
					overlapped.Store(true)
				}
				time.Sleep(5 * time.Millisecond)
				active.Add(-1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	require.False(t, overlapped.Load())
	require.False(t, mr.Exists("catalog:import"))
}

func TestWithLockGivesUpAfterMaxWait(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, mr.Set("catalog:import", "someone-else"))

	locker := lock.Locker{R: client, RetryBackoff: 5 * time.Millisecond, MaxWait: 30 * time.Millisecond}
	called := false
	err := locker.WithLock(context.Background(), "catalog:import", time.Second, func(context.Context) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, lock.ErrBusy)
	require.False(t, called)
	got, err := mr.Get("catalog:import")
	require.NoError(t, err)
	require.Equal(t, "someone-else", got)
}

func TestWithLockReleasesOnError(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	locker := lock.Locker{R: client}
	boom := errors.New("boom")
	err := locker.WithLock(context.Background(), "packages:recalculate", time.Minute, func(context.Context) error {
		require.True(t, mr.Exists("packages:recalculate"))
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.False(t, mr.Exists("packages:recalculate"))
}

func TestWithLockRenewsLease(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	locker := lock.Locker{R: client}
	err := locker.WithLock(context.Background(), "catalog:import", 60*time.Millisecond, func(context.Context) error {
		mr.SetTTL("catalog:import", time.Millisecond)
		require.Eventually(t, func() bool {
			return mr.TTL("catalog:import") == 60*time.Millisecond
		}, time.Second, 5*time.Millisecond)
		return nil
	})
	require.NoError(t, err)
}

func TestWithLockCancelsCallbackWhenLeaseLost(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	locker := lock.Locker{R: client}
	err := locker.WithLock(context.Background(), "catalog:import", 30*time.Millisecond, func(ctx context.Context) error {
		require.NoError(t, mr.Set("catalog:import", "other-instance"))
		select {
		case <-ctx.Done():
			return context.Cause(ctx)
		case <-time.After(time.Second):
			return errors.New("lease loss not noticed")
		}
	})
	require.ErrorIs(t, err, lock.ErrLost)
	got, _ := mr.Get("catalog:import")
	require.Equal(t, "other-instance", got, "a lost lock is not released by its former owner")
}
