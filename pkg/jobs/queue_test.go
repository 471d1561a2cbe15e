package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueProcessesJobs(t *testing.T) {
	done := make(chan Job[string], 1)
	q := NewQueue("audit", func(ctx context.Context, job Job[string]) error {
		done <- job
		return nil
	}, QueueConfig{Workers: 2})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job[string]{Type: "transition", Payload: "sheet-1"}))

	select {
	case job := <-done:
		assert.Equal(t, "sheet-1", job.Payload)
		assert.NotEmpty(t, job.ID)
		assert.False(t, job.Enqueued.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("job was not processed")
	}
}

func TestQueueRetriesFailedJobs(t *testing.T) {
	var calls int32
	done := make(chan int, 1)
	q := NewQueue("audit", func(ctx context.Context, job Job[int]) error {
		if atomic.AddInt32(&calls, 1) == 1 {
			return errors.New("database unavailable")
		}
		done <- job.Attempt
		return nil
	}, QueueConfig{RetryDelay: 10 * time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job[int]{Payload: 1}))

	select {
	case attempt := <-done:
		assert.Equal(t, 1, attempt)
	case <-time.After(2 * time.Second):
		t.Fatal("job was not retried")
	}
}

func TestQueueRejectsWhenNotStarted(t *testing.T) {
	q := NewQueue("audit", func(context.Context, Job[int]) error { return nil }, QueueConfig{})
	assert.Error(t, q.Enqueue(Job[int]{}))

	q.Start(context.Background())
	q.Stop()
	assert.Error(t, q.Enqueue(Job[int]{}))
}

func TestQueueStopDrainsBufferedJobs(t *testing.T) {
	gate := make(chan struct{})
	var (
		mu   sync.Mutex
		seen []int
	)
	q := NewQueue("audit", func(ctx context.Context, job Job[int]) error {
		if job.Payload == 1 {
			<-gate
		}
		mu.Lock()
		seen = append(seen, job.Payload)
		mu.Unlock()
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 8})
	q.Start(context.Background())

	for i := 1; i <= 3; i++ {
		require.NoError(t, q.Enqueue(Job[int]{Payload: i}))
	}
	go func() {
		time.Sleep(20 * time.Millisecond)
		close(gate)
	}()
	q.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []int{1, 2, 3}, seen)
	stats := q.Stats()
	assert.Equal(t, int64(3), stats.Processed)
	assert.Zero(t, stats.Buffered)
}

func TestQueueGivesUpAfterRetries(t *testing.T) {
	abandoned := make(chan Job[string], 1)
	q := NewQueue("audit", func(ctx context.Context, job Job[string]) error {
		return errors.New("constraint violation")
	}, QueueConfig{MaxRetries: 1, RetryDelay: 5 * time.Millisecond})
	q.OnGiveUp(func(job Job[string], err error) {
		abandoned <- job
	})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job[string]{Type: "transition", Payload: "sheet-1"}))

	select {
	case job := <-abandoned:
		assert.Equal(t, 2, job.Attempt)
		assert.Equal(t, "sheet-1", job.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("job was not abandoned")
	}
	stats := q.Stats()
	assert.Equal(t, int64(1), stats.Retried)
	assert.Equal(t, int64(1), stats.Abandoned)
}

func TestQueueRejectsWhenFull(t *testing.T) {
	gate := make(chan struct{})
	q := NewQueue("audit", func(ctx context.Context, job Job[int]) error {
		<-gate
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 1})
	q.Start(context.Background())
	defer q.Stop()
	defer close(gate)

	require.NoError(t, q.Enqueue(Job[int]{Payload: 1}))
	require.Eventually(t, func() bool { return q.Stats().Buffered == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, q.Enqueue(Job[int]{Payload: 2}))
	assert.ErrorContains(t, q.Enqueue(Job[int]{Payload: 3}), "full")
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, time.Second, backoff(time.Second, 1))
	assert.Equal(t, 4*time.Second, backoff(time.Second, 3))
	assert.Equal(t, maxBackoff, backoff(time.Second, 12))
}

func TestQueueStopLetsRunningJobFinish(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	q := NewQueue("audit", func(ctx context.Context, job Job[int]) error {
		close(started)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-release:
			return nil
		}
	}, QueueConfig{Workers: 1, RetryDelay: time.Hour})
	q.Start(context.Background())

	require.NoError(t, q.Enqueue(Job[int]{Payload: 1}))
	<-started

	stopped := make(chan struct{})
	go func() {
		q.Stop()
		close(stopped)
	}()
	time.Sleep(30 * time.Millisecond)
	close(release)

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("queue did not stop")
	}
	stats := q.Stats()
	assert.Equal(t, int64(1), stats.Processed)
	assert.Zero(t, stats.Abandoned)
}

func TestQueueStopDrainsJobsWaitingForRetry(t *testing.T) {
	var calls int32
	q := NewQueue("audit", func(ctx context.Context, job Job[string]) error {
		if atomic.AddInt32(&calls, 1) == 1 {
			return errors.New("connection reset")
		}
		return nil
	}, QueueConfig{Workers: 1, RetryDelay: time.Hour})
	var abandoned int32
	q.OnGiveUp(func(Job[string], error) { atomic.AddInt32(&abandoned, 1) })
	q.Start(context.Background())

	require.NoError(t, q.Enqueue(Job[string]{Payload: "sheet-1"}))
	require.Eventually(t, func() bool { return q.Stats().Retried == 1 }, time.Second, 5*time.Millisecond)

	q.Stop()

	stats := q.Stats()
	assert.Equal(t, int64(1), stats.Processed)
	assert.Zero(t, stats.Abandoned)
	assert.Zero(t, atomic.LoadInt32(&abandoned))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}
