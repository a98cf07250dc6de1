package monitor

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coinscope/coinscope/internal/queue"
)

// statusBackend serves canned queue status and real event subscriptions.
type statusBackend struct {
	status map[string]queue.Status
	subs   map[string]chan queue.Event
}

func newStatusBackend() *statusBackend {
	return &statusBackend{
		status: make(map[string]queue.Status),
		subs:   make(map[string]chan queue.Event),
	}
}

func (b *statusBackend) AddJob(ctx context.Context, q, name string, payload any, opts queue.JobOptions) (*queue.Job, error) {
	return nil, nil
}

func (b *statusBackend) GetJob(ctx context.Context, q, jobID string) (*queue.Job, error) {
	return nil, nil
}

func (b *statusBackend) GetQueueStatus(ctx context.Context, q string) (queue.Status, error) {
	return b.status[q], nil
}

func (b *statusBackend) PauseQueue(ctx context.Context, q string) error  { return nil }
func (b *statusBackend) ResumeQueue(ctx context.Context, q string) error { return nil }

func (b *statusBackend) Subscribe(q string) (<-chan queue.Event, func()) {
	ch := make(chan queue.Event, 16)
	b.subs[q] = ch
	return ch, func() { close(ch) }
}

func (b *statusBackend) Dequeue(ctx context.Context, q string) (*queue.Job, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (b *statusBackend) Complete(job *queue.Job)           {}
func (b *statusBackend) Fail(job *queue.Job, jobErr error) {}
func (b *statusBackend) Progress(job *queue.Job, pct int)  {}
func (b *statusBackend) Close() error                      { return nil }

func appendRecords(t *testing.T, store WindowedStore, queueName string, completed, failed int, at time.Time) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < completed; i++ {
		require.NoError(t, store.Append(ctx, Record{
			Queue:     queueName,
			Outcome:   queue.EventCompleted,
			JobID:     fmt.Sprintf("ok-%d", i),
			Timestamp: at.Add(time.Duration(i) * time.Second),
		}))
	}
	for i := 0; i < failed; i++ {
		require.NoError(t, store.Append(ctx, Record{
			Queue:     queueName,
			Outcome:   queue.EventFailed,
			JobID:     fmt.Sprintf("bad-%d", i),
			Error:     "boom",
			Timestamp: at.Add(time.Duration(completed+i) * time.Second),
		}))
	}
}

func TestGetQueueMetricsSuccessRate(t *testing.T) {
	store := NewMemoryStore()
	backend := newStatusBackend()
	backend.status[queue.QueuePriceUpdates] = queue.Status{Waiting: 3, Active: 1, Delayed: 2}
	m := New(backend, store, zerolog.Nop())

	appendRecords(t, store, queue.QueuePriceUpdates, 8, 2, time.Now().Add(-time.Hour))

	metrics, err := m.GetQueueMetrics(context.Background(), queue.QueuePriceUpdates)
	require.NoError(t, err)

	assert.Equal(t, 8, metrics.Completed)
	assert.Equal(t, 2, metrics.Failed)
	assert.InDelta(t, 80.0, metrics.SuccessRate, 0.001)
	assert.Equal(t, 3, metrics.Waiting)
	assert.Equal(t, 1, metrics.Active)
	assert.Equal(t, 2, metrics.Delayed)
	require.NotNil(t, metrics.LastProcessed)
	require.NotNil(t, metrics.LastFailure)
	assert.True(t, metrics.LastFailure.After(*metrics.LastProcessed))

	// The computed view is now cached.
	cached := m.CachedMetrics()
	assert.Equal(t, metrics, cached[queue.QueuePriceUpdates])
}

func TestGetQueueMetricsEmptyWindow(t *testing.T) {
	m := New(newStatusBackend(), NewMemoryStore(), zerolog.Nop())

	metrics, err := m.GetQueueMetrics(context.Background(), queue.QueueAlerts)
	require.NoError(t, err)
	assert.Equal(t, 100.0, metrics.SuccessRate)
	assert.Nil(t, metrics.LastProcessed)
	assert.Nil(t, metrics.LastFailure)
}

func TestGetQueueMetricsIgnoresRecordsOutsideWindow(t *testing.T) {
	store := NewMemoryStore()
	m := New(newStatusBackend(), store, zerolog.Nop())

	appendRecords(t, store, queue.QueueAlerts, 5, 0, time.Now().Add(-48*time.Hour))
	appendRecords(t, store, queue.QueueAlerts, 2, 0, time.Now().Add(-time.Minute))

	metrics, err := m.GetQueueMetrics(context.Background(), queue.QueueAlerts)
	require.NoError(t, err)
	assert.Equal(t, 2, metrics.Completed)
}

func TestClassify(t *testing.T) {
	now := time.Now()
	earlier := now.Add(-time.Minute)

	tests := []struct {
		name    string
		metrics QueueMetrics
		want    HealthLevel
	}{
		{"no traffic", QueueMetrics{SuccessRate: 100}, HealthHealthy},
		{"high success", QueueMetrics{SuccessRate: 95, LastProcessed: &now}, HealthHealthy},
		{"below eighty", QueueMetrics{SuccessRate: 70, LastProcessed: &now}, HealthWarning},
		{"below fifty", QueueMetrics{SuccessRate: 40}, HealthCritical},
		{"failure newer than success", QueueMetrics{SuccessRate: 90, LastProcessed: &earlier, LastFailure: &now}, HealthWarning},
		{"failure with no success", QueueMetrics{SuccessRate: 90, LastFailure: &now}, HealthWarning},
		{"backlog", QueueMetrics{SuccessRate: 100, Active: 11}, HealthWarning},
		{"backlog at threshold", QueueMetrics{SuccessRate: 100, Active: 10}, HealthHealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.metrics))
		})
	}
}

func TestGetHealthStatusOverallIsWorstQueue(t *testing.T) {
	store := NewMemoryStore()
	backend := newStatusBackend()
	m := New(backend, store, zerolog.Nop())
	at := time.Now().Add(-time.Hour)

	appendRecords(t, store, queue.QueuePriceUpdates, 9, 1, at) // 90%, failure last
	appendRecords(t, store, queue.QueueSocialScraping, 1, 4, at)
	appendRecords(t, store, queue.QueueAlerts, 10, 0, at)

	health, err := m.GetHealthStatus(context.Background())
	require.NoError(t, err)

	assert.Equal(t, HealthCritical, health.Overall)
	assert.Equal(t, HealthCritical, health.Queues[queue.QueueSocialScraping].Status)
	assert.Equal(t, HealthWarning, health.Queues[queue.QueuePriceUpdates].Status)
	assert.Equal(t, HealthHealthy, health.Queues[queue.QueueMaintenance].Status)
	assert.Len(t, health.Queues, len(queue.AllQueues))
}

func TestMonitorRecordsEvents(t *testing.T) {
	store := NewMemoryStore()
	backend := newStatusBackend()
	m := New(backend, store, zerolog.Nop())
	m.Initialize()
	defer m.Close()

	backend.subs[queue.QueueRiskAssessment] <- queue.Event{
		Type:      queue.EventCompleted,
		Queue:     queue.QueueRiskAssessment,
		JobID:     "job-1",
		JobName:   "assess-coin-risk",
		Timestamp: time.Now(),
	}
	backend.subs[queue.QueueRiskAssessment] <- queue.Event{
		Type:         queue.EventFailed,
		Queue:        queue.QueueRiskAssessment,
		JobID:        "job-2",
		JobName:      "assess-coin-risk",
		Error:        "upstream down",
		AttemptsMade: 2,
		Timestamp:    time.Now(),
	}

	require.Eventually(t, func() bool {
		n, err := store.CountSince(context.Background(), queue.QueueRiskAssessment, queue.EventFailed, time.Time{})
		return err == nil && n == 1
	}, time.Second, 10*time.Millisecond)

	failures, err := m.RecentFailures(context.Background(), queue.QueueRiskAssessment, 10)
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, "job-2", failures[0].JobID)
	assert.Equal(t, "upstream down", failures[0].Error)
	assert.Equal(t, 2, failures[0].AttemptsMade)
}

func TestMemoryStoreRecentFailuresNewestFirst(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	base := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, store.Append(ctx, Record{
			Queue:     "q",
			Outcome:   queue.EventFailed,
			JobID:     fmt.Sprintf("f-%d", i),
			Timestamp: base.Add(time.Duration(i) * time.Second),
		}))
	}

	out, err := store.RecentFailures(ctx, "q", 3)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, "f-4", out[0].JobID)
	assert.Equal(t, "f-3", out[1].JobID)
	assert.Equal(t, "f-2", out[2].JobID)
}

func TestMemoryStoreTrim(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	old := time.Now().Add(-48 * time.Hour)
	recent := time.Now()

	require.NoError(t, store.Append(ctx, Record{Queue: "q", Outcome: queue.EventCompleted, JobID: "old", Timestamp: old}))
	require.NoError(t, store.Append(ctx, Record{Queue: "q", Outcome: queue.EventCompleted, JobID: "new", Timestamp: recent}))

	require.NoError(t, store.Trim(ctx, time.Now().Add(-24*time.Hour)))

	n, err := store.CountSince(ctx, "q", queue.EventCompleted, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	ts, err := store.LastTimestamp(ctx, "q", queue.EventCompleted)
	require.NoError(t, err)
	require.NotNil(t, ts)
	assert.WithinDuration(t, recent, *ts, time.Second)
}
