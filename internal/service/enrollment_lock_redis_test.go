package service

import (
	"context"
	"partner_hub_backend/internal/model"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisLocker(t *testing.T, ttl time.Duration) (*RedisEnrollmentLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	locker := NewRedisEnrollmentLocker(client, ttl)
	locker.RetryInterval = 5 * time.Millisecond
	return locker, mr
}

func TestRedisEnrollmentLocker_ContendAndRelease(t *testing.T) {
	locker, mr := newRedisLocker(t, 10*time.Second)
	key := enrollmentLockPrefix + "enrollment-1"

	unlock, err := locker.Lock(context.Background(), "enrollment-1")
	require.NoError(t, err)
	require.True(t, mr.Exists(key))
	assert.Equal(t, 10*time.Second, mr.TTL(key))

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctx, "enrollment-1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock()
	assert.False(t, mr.Exists(key))

	relock, err := locker.Lock(context.Background(), "enrollment-1")
	require.NoError(t, err)
	relock()
}

func TestRedisEnrollmentLocker_WaiterAcquiresAfterRelease(t *testing.T) {
	locker, _ := newRedisLocker(t, 10*time.Second)

	unlock, err := locker.Lock(context.Background(), "enrollment-1")
	require.NoError(t, err)

	acquired := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		second, err := locker.Lock(ctx, "enrollment-1")
		if err == nil {
			second()
		}
		acquired <- err
	}()

	select {
	case err := <-acquired:
		t.Fatalf("second holder acquired while lock held: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	unlock()
	select {
	case err := <-acquired:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("waiter never acquired the released lock")
	}
}

func TestRedisEnrollmentLocker_DifferentIDsDoNotBlock(t *testing.T) {
	locker, _ := newRedisLocker(t, 10*time.Second)

	first, err := locker.Lock(context.Background(), "enrollment-1")
	require.NoError(t, err)
	defer first()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	second, err := locker.Lock(ctx, "enrollment-2")
	require.NoError(t, err)
	second()
}

func TestRedisEnrollmentLocker_ExpiredHolderCannotReleaseNewOwner(t *testing.T) {
	locker, mr := newRedisLocker(t, time.Second)
	key := enrollmentLockPrefix + "enrollment-1"

	stale, err := locker.Lock(context.Background(), "enrollment-1")
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)
	require.False(t, mr.Exists(key))

	current, err := locker.Lock(context.Background(), "enrollment-1")
	require.NoError(t, err)
	owner, err := mr.Get(key)
	require.NoError(t, err)

	stale()
	got, err := mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, owner, got)

	current()
	assert.False(t, mr.Exists(key))
}

func TestRedisEnrollmentLocker_SerializesUpdates(t *testing.T) {
	env := newTestEnv(t)
	locker, _ := newRedisLocker(t, 10*time.Second)
	e := env.seedEnrollment(t, "course-1")

	const writers = 6
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_, _, err := updateLocked(ctx, locker, env.enrollmentRepo, e.ID, func(e *model.Enrollment) (bool, error) {
				e.TimeSpentSeconds += 60
				return true, nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	stored := env.reload(t, e.ID)
	assert.Equal(t, int64(writers*60), stored.TimeSpentSeconds)
	assert.Equal(t, 1+writers, stored.Version)
}
