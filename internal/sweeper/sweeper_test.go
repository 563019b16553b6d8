package sweeper

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"campus-queue/internal/queue"
)

type fakeReaper struct {
	calls   atomic.Int64
	results []queue.QueueSweep
	err     error
	panics  bool
}

func (f *fakeReaper) SweepAll(context.Context) ([]queue.QueueSweep, error) {
	n := f.calls.Add(1)
	if f.panics && n == 1 {
		panic("first run explodes")
	}
	return f.results, f.err
}

func TestNewRejectsBadSchedule(t *testing.T) {
	_, err := New(&fakeReaper{}, "every minute please")
	require.Error(t, err)

	_, err = New(&fakeReaper{}, "@every 60s")
	require.NoError(t, err)

	_, err = New(&fakeReaper{}, "*/5 * * * *")
	require.NoError(t, err)
}

func TestRunOnceSummarizes(t *testing.T) {
	r := &fakeReaper{results: []queue.QueueSweep{
		{QueueID: "q1", Result: queue.SweepResult{Processed: true}},
		{QueueID: "q2", Result: queue.SweepResult{Reason: "not expired"}},
		{QueueID: "q3", Error: "INTERNAL: store failure"},
	}}
	s, err := New(r, "@every 60s")
	require.NoError(t, err)

	sum, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, sum.Queues)
	require.Equal(t, 1, sum.Processed)
	require.Equal(t, 1, sum.Failed)
}

func TestRunOnceNotifiesProcessedQueues(t *testing.T) {
	r := &fakeReaper{results: []queue.QueueSweep{
		{QueueID: "q1", Result: queue.SweepResult{Processed: true}},
		{QueueID: "q2", Result: queue.SweepResult{Reason: "not expired"}},
		{QueueID: "q3", Error: "INTERNAL: store failure"},
		{QueueID: "q4", Result: queue.SweepResult{Processed: true}},
	}}

	var (
		mu       sync.Mutex
		notified []string
	)
	s, err := New(r, "@every 60s", WithOnProcessed(func(_ context.Context, queueID string) {
		mu.Lock()
		notified = append(notified, queueID)
		mu.Unlock()
	}))
	require.NoError(t, err)

	_, err = s.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"q1", "q4"}, notified)
}

func TestScheduledRunNotifiesProcessedQueues(t *testing.T) {
	r := &fakeReaper{results: []queue.QueueSweep{
		{QueueID: "q1", Result: queue.SweepResult{Processed: true}},
	}}
	var hits atomic.Int64
	s, err := New(r, "@every 1s", WithOnProcessed(func(context.Context, string) {
		hits.Add(1)
	}))
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return hits.Load() >= 1 }, 5*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}

func TestRunOnceReturnsListingError(t *testing.T) {
	s, err := New(&fakeReaper{err: errors.New("db down")}, "@every 60s")
	require.NoError(t, err)
	_, err = s.RunOnce(context.Background())
	require.ErrorContains(t, err, "db down")
}

func TestScheduleKeepsRunningAfterPanic(t *testing.T) {
	r := &fakeReaper{panics: true}
	s, err := New(r, "@every 1s")
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return r.calls.Load() >= 2 }, 5*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}
