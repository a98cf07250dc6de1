package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBackend(t *testing.T) *Memory {
	t.Helper()
	m := NewMemory([]string{"test-queue", "other-queue"}, zerolog.Nop())
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestAddAndDequeueFIFO(t *testing.T) {
	m := newTestBackend(t)
	ctx := context.Background()

	first, err := m.AddJob(ctx, "test-queue", "job-a", map[string]int{"n": 1}, JobOptions{})
	require.NoError(t, err)
	second, err := m.AddJob(ctx, "test-queue", "job-b", map[string]int{"n": 2}, JobOptions{})
	require.NoError(t, err)

	got, err := m.Dequeue(ctx, "test-queue")
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	got, err = m.Dequeue(ctx, "test-queue")
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)
}

func TestAddJobUnknownQueue(t *testing.T) {
	m := newTestBackend(t)

	_, err := m.AddJob(context.Background(), "missing", "job", nil, JobOptions{})
	assert.Error(t, err)
}

func TestAttemptsMinimumOne(t *testing.T) {
	m := newTestBackend(t)

	job, err := m.AddJob(context.Background(), "test-queue", "job", nil, JobOptions{Attempts: 0})
	require.NoError(t, err)
	assert.Equal(t, 1, job.Attempts)
}

func TestDequeueBlocksUntilJobArrives(t *testing.T) {
	m := newTestBackend(t)
	ctx := context.Background()

	done := make(chan *Job, 1)
	go func() {
		job, err := m.Dequeue(ctx, "test-queue")
		if err == nil {
			done <- job
		}
	}()

	time.Sleep(20 * time.Millisecond)
	_, err := m.AddJob(ctx, "test-queue", "late-job", nil, JobOptions{})
	require.NoError(t, err)

	select {
	case job := <-done:
		assert.Equal(t, "late-job", job.Name)
	case <-time.After(2 * time.Second):
		t.Fatal("dequeue did not wake up")
	}
}

func TestDequeueContextCancel(t *testing.T) {
	m := newTestBackend(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := m.Dequeue(ctx, "test-queue")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDelayedJobBecomesReady(t *testing.T) {
	m := newTestBackend(t)
	ctx := context.Background()

	_, err := m.AddJob(ctx, "test-queue", "delayed", nil, JobOptions{Delay: 30 * time.Millisecond})
	require.NoError(t, err)

	status, err := m.GetQueueStatus(ctx, "test-queue")
	require.NoError(t, err)
	assert.Equal(t, 1, status.Delayed)
	assert.Equal(t, 0, status.Waiting)

	dequeueCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	job, err := m.Dequeue(dequeueCtx, "test-queue")
	require.NoError(t, err)
	assert.Equal(t, "delayed", job.Name)
}

func TestPauseStopsDequeueResumeRestores(t *testing.T) {
	m := newTestBackend(t)
	ctx := context.Background()

	_, err := m.AddJob(ctx, "test-queue", "job", nil, JobOptions{})
	require.NoError(t, err)
	require.NoError(t, m.PauseQueue(ctx, "test-queue"))

	pausedCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = m.Dequeue(pausedCtx, "test-queue")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, m.ResumeQueue(ctx, "test-queue"))
	job, err := m.Dequeue(ctx, "test-queue")
	require.NoError(t, err)
	assert.Equal(t, "job", job.Name)
}

func TestFailRetriesUntilBudgetExhausted(t *testing.T) {
	m := newTestBackend(t)
	ctx := context.Background()

	events, cancel := m.Subscribe("test-queue")
	defer cancel()

	_, err := m.AddJob(ctx, "test-queue", "flaky", map[string]string{"k": "v"}, JobOptions{
		Attempts: 3,
		Backoff:  Backoff{Type: BackoffFixed, Delay: time.Millisecond},
	})
	require.NoError(t, err)

	// Fail every attempt; the job must come back twice before the failed
	// event fires.
	for i := 0; i < 3; i++ {
		dequeueCtx, cancelDq := context.WithTimeout(ctx, 2*time.Second)
		job, err := m.Dequeue(dequeueCtx, "test-queue")
		cancelDq()
		require.NoError(t, err, "attempt %d", i+1)
		assert.Equal(t, i, job.AttemptsMade)
		m.Fail(job, errors.New("boom"))
	}

	select {
	case ev := <-events:
		assert.Equal(t, EventFailed, ev.Type)
		assert.Equal(t, "flaky", ev.JobName)
		assert.Equal(t, 3, ev.AttemptsMade)
		assert.Equal(t, "boom", ev.Error)
		assert.JSONEq(t, `{"k":"v"}`, string(ev.Payload))
	case <-time.After(2 * time.Second):
		t.Fatal("no failed event emitted")
	}

	status, err := m.GetQueueStatus(ctx, "test-queue")
	require.NoError(t, err)
	assert.Equal(t, 1, status.Failed)
	assert.Equal(t, 0, status.Waiting)
}

func TestCompleteEmitsEvent(t *testing.T) {
	m := newTestBackend(t)
	ctx := context.Background()

	events, cancel := m.Subscribe("test-queue")
	defer cancel()

	_, err := m.AddJob(ctx, "test-queue", "job", nil, JobOptions{})
	require.NoError(t, err)

	job, err := m.Dequeue(ctx, "test-queue")
	require.NoError(t, err)
	m.Complete(job)

	select {
	case ev := <-events:
		assert.Equal(t, EventCompleted, ev.Type)
		assert.Equal(t, job.ID, ev.JobID)
	case <-time.After(time.Second):
		t.Fatal("no completed event emitted")
	}

	status, err := m.GetQueueStatus(ctx, "test-queue")
	require.NoError(t, err)
	assert.Equal(t, 1, status.Completed)
}

func TestRecurringRejectsInvalidPattern(t *testing.T) {
	m := newTestBackend(t)

	_, err := m.AddJob(context.Background(), "test-queue", "recurring", nil, JobOptions{
		Repeat: &Repeat{Pattern: "not a cron"},
	})
	assert.Error(t, err)
}

func TestRecurringAcceptsStandardPatterns(t *testing.T) {
	m := newTestBackend(t)

	patterns := []string{"*/5 * * * *", "0 */2 * * *", "* * * * *", "0 4 * * *"}
	for _, p := range patterns {
		_, err := m.AddJob(context.Background(), "test-queue", "recurring", nil, JobOptions{
			Repeat: &Repeat{Pattern: p},
		})
		assert.NoError(t, err, "pattern %s", p)
	}
}

func TestGetJobFindsLiveJobs(t *testing.T) {
	m := newTestBackend(t)
	ctx := context.Background()

	ready, err := m.AddJob(ctx, "test-queue", "ready", nil, JobOptions{})
	require.NoError(t, err)
	delayed, err := m.AddJob(ctx, "test-queue", "delayed", nil, JobOptions{Delay: time.Minute})
	require.NoError(t, err)

	got, err := m.GetJob(ctx, "test-queue", ready.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "ready", got.Name)

	got, err = m.GetJob(ctx, "test-queue", delayed.ID)
	require.NoError(t, err)
	require.NotNil(t, got)

	got, err = m.GetJob(ctx, "test-queue", "nonexistent")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSubscribeCancelStopsDelivery(t *testing.T) {
	m := newTestBackend(t)
	ctx := context.Background()

	events, cancel := m.Subscribe("test-queue")
	cancel()

	_, ok := <-events
	assert.False(t, ok, "channel should be closed after cancel")

	// Publishing after cancel must not panic.
	_, err := m.AddJob(ctx, "test-queue", "job", nil, JobOptions{})
	require.NoError(t, err)
	job, err := m.Dequeue(ctx, "test-queue")
	require.NoError(t, err)
	m.Complete(job)
}
