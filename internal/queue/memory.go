package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Memory is the in-process Backend implementation. Queues are FIFO with
// delayed entries, per-queue pause, attempt budgets with fixed or exponential
// backoff, and cron-driven recurring jobs.
type Memory struct {
	mu     sync.Mutex
	queues map[string]*memQueue
	cron   *cron.Cron
	closed bool
	log    zerolog.Logger

	subMu sync.Mutex
	subs  map[string]map[int]chan Event
	subID int
}

type memQueue struct {
	ready   []*Job
	delayed map[string]*Job
	active  map[string]*Job
	opts    map[string]JobOptions // retry policy per live job id

	paused    bool
	completed int
	failed    int

	// wake is closed and replaced to broadcast to blocked Dequeue callers
	wake chan struct{}
}

// NewMemory creates an in-process queue backend for the given queue names
func NewMemory(queues []string, log zerolog.Logger) *Memory {
	m := &Memory{
		queues: make(map[string]*memQueue, len(queues)),
		cron:   cron.New(),
		subs:   make(map[string]map[int]chan Event),
		log:    log.With().Str("component", "queue_backend").Logger(),
	}
	for _, name := range queues {
		m.queues[name] = &memQueue{
			delayed: make(map[string]*Job),
			active:  make(map[string]*Job),
			opts:    make(map[string]JobOptions),
			wake:    make(chan struct{}),
		}
	}
	m.cron.Start()
	return m
}

func (m *Memory) queue(name string) (*memQueue, error) {
	q, ok := m.queues[name]
	if !ok {
		return nil, fmt.Errorf("unknown queue %q", name)
	}
	return q, nil
}

// AddJob enqueues a job, with optional delay, attempt budget and recurring
// cron pattern. Recurring registrations enqueue a fresh one-off copy on each
// tick; the returned handle represents the registration itself.
func (m *Memory) AddJob(ctx context.Context, queueName, name string, payload any, opts JobOptions) (*Job, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload for job %s: %w", name, err)
	}
	if opts.Attempts < 1 {
		opts.Attempts = 1
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, fmt.Errorf("queue backend is closed")
	}
	if _, err := m.queue(queueName); err != nil {
		return nil, err
	}

	if opts.Repeat != nil {
		return m.addRecurringLocked(queueName, name, data, opts)
	}

	job := &Job{
		ID:         uuid.NewString(),
		Queue:      queueName,
		Name:       name,
		Payload:    data,
		Attempts:   opts.Attempts,
		EnqueuedAt: time.Now(),
	}
	m.enqueueLocked(job, opts, opts.Delay)
	return job, nil
}

// addRecurringLocked registers a cron entry enqueueing one-off copies.
// Caller holds m.mu.
func (m *Memory) addRecurringLocked(queueName, name string, payload json.RawMessage, opts JobOptions) (*Job, error) {
	spec := opts.Repeat.Pattern
	if opts.Repeat.Timezone != "" {
		spec = "CRON_TZ=" + opts.Repeat.Timezone + " " + spec
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid cron pattern %q for job %s: %w", opts.Repeat.Pattern, name, err)
	}

	oneOff := opts
	oneOff.Repeat = nil
	oneOff.Delay = 0

	handle := &Job{
		ID:         "repeat:" + uuid.NewString(),
		Queue:      queueName,
		Name:       name,
		Payload:    payload,
		Attempts:   oneOff.Attempts,
		EnqueuedAt: time.Now(),
	}

	_, err := m.cron.AddFunc(spec, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.closed {
			return
		}
		job := &Job{
			ID:         uuid.NewString(),
			Queue:      queueName,
			Name:       name,
			Payload:    payload,
			Attempts:   oneOff.Attempts,
			EnqueuedAt: time.Now(),
		}
		m.enqueueLocked(job, oneOff, 0)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register recurring job %s: %w", name, err)
	}
	return handle, nil
}

// enqueueLocked places a job on the ready or delayed set. Caller holds m.mu.
func (m *Memory) enqueueLocked(job *Job, opts JobOptions, delay time.Duration) {
	q := m.queues[job.Queue]
	q.opts[job.ID] = opts

	if delay > 0 {
		q.delayed[job.ID] = job
		time.AfterFunc(delay, func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if m.closed {
				return
			}
			if _, still := q.delayed[job.ID]; !still {
				return
			}
			delete(q.delayed, job.ID)
			q.ready = append(q.ready, job)
			q.notifyLocked()
		})
		return
	}

	q.ready = append(q.ready, job)
	q.notifyLocked()
}

// notifyLocked wakes every blocked Dequeue caller. Caller holds m.mu.
func (q *memQueue) notifyLocked() {
	close(q.wake)
	q.wake = make(chan struct{})
}

// Dequeue blocks until a job is available or ctx is done.
// Paused queues hand out nothing until resumed.
func (m *Memory) Dequeue(ctx context.Context, queueName string) (*Job, error) {
	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return nil, fmt.Errorf("queue backend is closed")
		}
		q, err := m.queue(queueName)
		if err != nil {
			m.mu.Unlock()
			return nil, err
		}
		if !q.paused && len(q.ready) > 0 {
			job := q.ready[0]
			q.ready = q.ready[1:]
			q.active[job.ID] = job
			m.mu.Unlock()
			return job, nil
		}
		wake := q.wake
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-wake:
		}
	}
}

// Complete marks a dequeued job as succeeded and emits a completed event
func (m *Memory) Complete(job *Job) {
	m.mu.Lock()
	q, err := m.queue(job.Queue)
	if err != nil {
		m.mu.Unlock()
		return
	}
	delete(q.active, job.ID)
	delete(q.opts, job.ID)
	q.completed++
	m.mu.Unlock()

	m.publish(job.Queue, Event{
		Type:         EventCompleted,
		Queue:        job.Queue,
		JobID:        job.ID,
		JobName:      job.Name,
		AttemptsMade: job.AttemptsMade + 1,
		Timestamp:    time.Now(),
	})
}

// Fail records a failed attempt. While the attempt budget lasts the job is
// re-enqueued after the backoff delay; once exhausted a failed event is
// emitted and the job is dropped.
func (m *Memory) Fail(job *Job, jobErr error) {
	m.mu.Lock()
	q, err := m.queue(job.Queue)
	if err != nil {
		m.mu.Unlock()
		return
	}
	delete(q.active, job.ID)
	opts := q.opts[job.ID]
	job.AttemptsMade++

	if job.AttemptsMade < job.Attempts {
		delay := backoffDelay(opts.Backoff, job.AttemptsMade)
		m.log.Warn().
			Str("queue", job.Queue).
			Str("job", job.Name).
			Str("job_id", job.ID).
			Int("attempts_made", job.AttemptsMade).
			Dur("retry_in", delay).
			Err(jobErr).
			Msg("Job attempt failed, retrying")
		m.enqueueLocked(job, opts, delay)
		m.mu.Unlock()
		return
	}

	delete(q.opts, job.ID)
	q.failed++
	m.mu.Unlock()

	m.publish(job.Queue, Event{
		Type:         EventFailed,
		Queue:        job.Queue,
		JobID:        job.ID,
		JobName:      job.Name,
		Error:        jobErr.Error(),
		AttemptsMade: job.AttemptsMade,
		Payload:      job.Payload,
		Timestamp:    time.Now(),
	})
}

// Progress emits an advisory progress event for an active job
func (m *Memory) Progress(job *Job, pct int) {
	m.publish(job.Queue, Event{
		Type:      EventProgress,
		Queue:     job.Queue,
		JobID:     job.ID,
		JobName:   job.Name,
		Progress:  pct,
		Timestamp: time.Now(),
	})
}

// backoffDelay computes the delay before retry attempt n (1-based)
func backoffDelay(b Backoff, attemptsMade int) time.Duration {
	if b.Delay <= 0 {
		return 0
	}
	if b.Type == BackoffExponential {
		return b.Delay << (attemptsMade - 1)
	}
	return b.Delay
}

// GetJob looks up a live job by id across the ready, delayed and active sets
func (m *Memory) GetJob(ctx context.Context, queueName, jobID string) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, err := m.queue(queueName)
	if err != nil {
		return nil, err
	}
	if job, ok := q.active[jobID]; ok {
		return job, nil
	}
	if job, ok := q.delayed[jobID]; ok {
		return job, nil
	}
	for _, job := range q.ready {
		if job.ID == jobID {
			return job, nil
		}
	}
	return nil, nil
}

// GetQueueStatus returns live counts for a queue
func (m *Memory) GetQueueStatus(ctx context.Context, queueName string) (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, err := m.queue(queueName)
	if err != nil {
		return Status{}, err
	}
	return Status{
		Waiting:   len(q.ready),
		Active:    len(q.active),
		Completed: q.completed,
		Failed:    q.failed,
		Delayed:   len(q.delayed),
	}, nil
}

// PauseQueue stops dequeues on a queue; in-flight jobs are not interrupted
func (m *Memory) PauseQueue(ctx context.Context, queueName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, err := m.queue(queueName)
	if err != nil {
		return err
	}
	q.paused = true
	return nil
}

// ResumeQueue re-enables dequeues on a paused queue
func (m *Memory) ResumeQueue(ctx context.Context, queueName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, err := m.queue(queueName)
	if err != nil {
		return err
	}
	q.paused = false
	q.notifyLocked()
	return nil
}

// Subscribe returns a buffered stream of lifecycle events for one queue.
// Slow consumers drop events rather than blocking job execution.
func (m *Memory) Subscribe(queueName string) (<-chan Event, func()) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	if m.subs[queueName] == nil {
		m.subs[queueName] = make(map[int]chan Event)
	}
	id := m.subID
	m.subID++
	ch := make(chan Event, 256)
	m.subs[queueName][id] = ch

	cancel := func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()
		if sub, ok := m.subs[queueName][id]; ok {
			delete(m.subs[queueName], id)
			close(sub)
		}
	}
	return ch, cancel
}

func (m *Memory) publish(queueName string, event Event) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	for _, ch := range m.subs[queueName] {
		select {
		case ch <- event:
		default:
			// subscriber backlog full, drop rather than stall the pipeline
		}
	}
}

// Close stops recurring schedules and wakes all blocked consumers.
// In-flight jobs are the processors' responsibility to drain.
func (m *Memory) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	for _, q := range m.queues {
		q.notifyLocked()
	}
	m.mu.Unlock()

	ctx := m.cron.Stop()
	<-ctx.Done()
	return nil
}
