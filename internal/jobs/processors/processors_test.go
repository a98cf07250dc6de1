package processors

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coinscope/coinscope/internal/queue"
)

func fastConfigs() map[string]WorkerConfig {
	configs := make(map[string]WorkerConfig, len(queue.AllQueues))
	for _, q := range queue.AllQueues {
		configs[q] = WorkerConfig{Concurrency: 2, RateLimit: RateLimit{Max: 1000, Window: time.Second}}
	}
	return configs
}

func waitEvent(t *testing.T, events <-chan queue.Event, want queue.EventType) queue.Event {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-events:
			if ev.Type == want {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s event", want)
		}
	}
}

func TestProcessorsRunJobToCompletion(t *testing.T) {
	backend := queue.NewMemory(queue.AllQueues, zerolog.Nop())
	defer backend.Close()

	registry := NewRegistry()
	var ran atomic.Int64
	registry.Register("count-up", func(ctx context.Context, job *queue.Job, progress ProgressFunc) (any, error) {
		progress(ProgressDone)
		ran.Add(1)
		return map[string]any{"ok": true}, nil
	})

	events, cancel := backend.Subscribe(queue.QueueMaintenance)
	defer cancel()

	procs := New(backend, registry, fastConfigs(), zerolog.Nop())
	procs.Start()
	defer procs.Close()

	_, err := backend.AddJob(context.Background(), queue.QueueMaintenance, "count-up", struct{}{}, queue.JobOptions{})
	require.NoError(t, err)

	ev := waitEvent(t, events, queue.EventCompleted)
	assert.Equal(t, "count-up", ev.JobName)
	assert.Equal(t, int64(1), ran.Load())
}

func TestProcessorsRetryTransientFailure(t *testing.T) {
	backend := queue.NewMemory(queue.AllQueues, zerolog.Nop())
	defer backend.Close()

	registry := NewRegistry()
	var calls atomic.Int64
	registry.Register("flaky", func(ctx context.Context, job *queue.Job, progress ProgressFunc) (any, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("upstream hiccup")
		}
		return "recovered", nil
	})

	events, cancel := backend.Subscribe(queue.QueuePriceUpdates)
	defer cancel()

	procs := New(backend, registry, fastConfigs(), zerolog.Nop())
	procs.Start()
	defer procs.Close()

	_, err := backend.AddJob(context.Background(), queue.QueuePriceUpdates, "flaky", struct{}{}, queue.JobOptions{
		Attempts: 3,
		Backoff:  queue.Backoff{Type: queue.BackoffFixed, Delay: time.Millisecond},
	})
	require.NoError(t, err)

	waitEvent(t, events, queue.EventCompleted)
	assert.Equal(t, int64(2), calls.Load())
}

func TestProcessorsExhaustedBudgetEmitsFailure(t *testing.T) {
	backend := queue.NewMemory(queue.AllQueues, zerolog.Nop())
	defer backend.Close()

	registry := NewRegistry()
	registry.Register("doomed", func(ctx context.Context, job *queue.Job, progress ProgressFunc) (any, error) {
		return nil, errors.New("always broken")
	})

	events, cancel := backend.Subscribe(queue.QueueAlerts)
	defer cancel()

	procs := New(backend, registry, fastConfigs(), zerolog.Nop())
	procs.Start()
	defer procs.Close()

	_, err := backend.AddJob(context.Background(), queue.QueueAlerts, "doomed", struct{}{}, queue.JobOptions{
		Attempts: 2,
		Backoff:  queue.Backoff{Type: queue.BackoffFixed, Delay: time.Millisecond},
	})
	require.NoError(t, err)

	ev := waitEvent(t, events, queue.EventFailed)
	assert.Equal(t, "always broken", ev.Error)
	assert.Equal(t, 2, ev.AttemptsMade)
}

func TestProcessorsUnknownJobNameFails(t *testing.T) {
	backend := queue.NewMemory(queue.AllQueues, zerolog.Nop())
	defer backend.Close()

	events, cancel := backend.Subscribe(queue.QueueSocialScraping)
	defer cancel()

	procs := New(backend, NewRegistry(), fastConfigs(), zerolog.Nop())
	procs.Start()
	defer procs.Close()

	_, err := backend.AddJob(context.Background(), queue.QueueSocialScraping, "nobody-home", struct{}{}, queue.JobOptions{})
	require.NoError(t, err)

	ev := waitEvent(t, events, queue.EventFailed)
	assert.Contains(t, ev.Error, "unknown job name")
}

func TestProcessorsRecoverFromHandlerPanic(t *testing.T) {
	backend := queue.NewMemory(queue.AllQueues, zerolog.Nop())
	defer backend.Close()

	registry := NewRegistry()
	registry.Register("panicky", func(ctx context.Context, job *queue.Job, progress ProgressFunc) (any, error) {
		panic("boom")
	})

	events, cancel := backend.Subscribe(queue.QueueWhaleMonitoring)
	defer cancel()

	procs := New(backend, registry, fastConfigs(), zerolog.Nop())
	procs.Start()
	defer procs.Close()

	_, err := backend.AddJob(context.Background(), queue.QueueWhaleMonitoring, "panicky", struct{}{}, queue.JobOptions{})
	require.NoError(t, err)

	ev := waitEvent(t, events, queue.EventFailed)
	assert.Contains(t, ev.Error, "handler panic")
}

func TestProcessorsCloseWaitsForInflightJob(t *testing.T) {
	backend := queue.NewMemory(queue.AllQueues, zerolog.Nop())
	defer backend.Close()

	registry := NewRegistry()
	started := make(chan struct{})
	var finished atomic.Bool
	registry.Register("slow", func(ctx context.Context, job *queue.Job, progress ProgressFunc) (any, error) {
		close(started)
		time.Sleep(100 * time.Millisecond)
		finished.Store(true)
		return nil, nil
	})

	procs := New(backend, registry, fastConfigs(), zerolog.Nop())
	procs.Start()

	_, err := backend.AddJob(context.Background(), queue.QueueRiskAssessment, "slow", struct{}{}, queue.JobOptions{})
	require.NoError(t, err)

	<-started
	procs.Close()
	assert.True(t, finished.Load(), "Close must wait for the running handler")
}
