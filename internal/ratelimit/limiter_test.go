package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"campus-queue/internal/apperror"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestCanPerformSince(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	t.Run("NeverPerformed", func(t *testing.T) {
		d := CanPerformSince(time.Time{}, false, now, time.Minute)
		require.True(t, d.Allowed)
		require.Zero(t, d.RemainingMs)
	})

	t.Run("WithinCooldown", func(t *testing.T) {
		d := CanPerformSince(now.Add(-30*time.Second), true, now, time.Minute)
		require.False(t, d.Allowed)
		require.Equal(t, int64(30000), d.RemainingMs)
	})

	t.Run("PastCooldown", func(t *testing.T) {
		d := CanPerformSince(now.Add(-90*time.Second), true, now, time.Minute)
		require.True(t, d.Allowed)
		require.Zero(t, d.RemainingMs)
	})

	t.Run("SubMillisecondRemainingRoundsUp", func(t *testing.T) {
		last := now.Add(-2*time.Second + 500*time.Microsecond)
		d := CanPerformSince(last, true, now, 2*time.Second)
		require.False(t, d.Allowed)
		require.Equal(t, int64(1), d.RemainingMs)
	})

	t.Run("FractionalRemainingRoundsUp", func(t *testing.T) {
		last := now.Add(-30*time.Second + 1200*time.Microsecond)
		d := CanPerformSince(last, true, now, 30*time.Second)
		require.False(t, d.Allowed)
		require.Equal(t, int64(2), d.RemainingMs)
	})

	t.Run("ExactlyAtCooldown", func(t *testing.T) {
		d := CanPerformSince(now.Add(-time.Minute), true, now, time.Minute)
		require.True(t, d.Allowed)
	})
}

func TestCheckAndRecordCooldown(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	store := NewMemoryStore()
	limiter := New(store, WithClock(clock.Now))
	ctx := context.Background()

	d, err := limiter.CheckAndRecord(ctx, "admin-1", OpCreateQueue, 60*time.Second)
	require.NoError(t, err)
	require.True(t, d.Allowed)

	clock.Advance(10 * time.Second)
	d, err = limiter.CheckAndRecord(ctx, "admin-1", OpCreateQueue, 60*time.Second)
	require.NoError(t, err)
	require.False(t, d.Allowed)
	require.Equal(t, int64(50000), d.RemainingMs)

	// The denied call must not move the window.
	require.Equal(t, clock.Now().Add(-10*time.Second), store.State("admin-1").Last[OpCreateQueue])

	clock.Advance(50 * time.Second)
	d, err = limiter.CheckAndRecord(ctx, "admin-1", OpCreateQueue, 60*time.Second)
	require.NoError(t, err)
	require.True(t, d.Allowed)
}

func TestCheckAndRecordIndependentKeys(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	limiter := New(NewMemoryStore(), WithClock(clock.Now))
	ctx := context.Background()

	for _, tc := range []struct {
		actor, op string
	}{
		{"student-1", BookKey("q1")},
		{"student-1", BookKey("q2")},
		{"student-2", BookKey("q1")},
		{"student-1", OpCreateQueue},
	} {
		d, err := limiter.CheckAndRecord(ctx, tc.actor, tc.op, 2*time.Second)
		require.NoError(t, err)
		require.True(t, d.Allowed, "%s/%s", tc.actor, tc.op)
	}

	d, err := limiter.CheckAndRecord(ctx, "student-1", BookKey("q1"), 2*time.Second)
	require.NoError(t, err)
	require.False(t, d.Allowed)
}

func TestCheckAndRecordConcurrentSameActor(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	limiter := New(NewMemoryStore(), WithClock(clock.Now))

	var allowed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := limiter.CheckAndRecord(context.Background(), "student-1", BookKey("q1"), 2*time.Second)
			if err == nil && d.Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), allowed.Load())
}

func TestCheckAndRecordValidation(t *testing.T) {
	limiter := New(NewMemoryStore())

	_, err := limiter.CheckAndRecord(context.Background(), " ", OpCreateQueue, time.Second)
	require.Equal(t, apperror.KindInvalidArgument, apperror.KindOf(err))

	_, err = limiter.CheckAndRecord(context.Background(), "a", "", time.Second)
	require.Equal(t, apperror.KindInvalidArgument, apperror.KindOf(err))
}

func TestCooldownError(t *testing.T) {
	err := CooldownError(Decision{RemainingMs: 1500}, "creating another queue")
	require.Equal(t, apperror.KindResourceExhausted, apperror.KindOf(err))
	require.Equal(t, "Please wait 2s before creating another queue", apperror.Message(err))

	err = CooldownError(Decision{RemainingMs: 0}, "booking again")
	require.Equal(t, "Please wait 1s before booking again", apperror.Message(err))
}
