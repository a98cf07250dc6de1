// Package queue defines the durable multi-queue backend contract consumed by
// the scheduler, the processors and the monitor, plus an in-process
// implementation suitable for a single node and for tests.
package queue

import (
	"context"
	"encoding/json"
	"time"
)

// Queue names used by the application
const (
	QueuePriceUpdates    = "price-updates"
	QueueSocialScraping  = "social-scraping"
	QueueRiskAssessment  = "risk-assessment"
	QueueWhaleMonitoring = "whale-monitoring"
	QueueAlerts          = "alerts"
	QueueMaintenance     = "maintenance"
)

// AllQueues lists every queue the application operates
var AllQueues = []string{
	QueuePriceUpdates,
	QueueSocialScraping,
	QueueRiskAssessment,
	QueueWhaleMonitoring,
	QueueAlerts,
	QueueMaintenance,
}

// BackoffType selects how retry delays grow between attempts
type BackoffType string

const (
	BackoffFixed       BackoffType = "fixed"
	BackoffExponential BackoffType = "exponential"
)

// Backoff describes the retry delay policy for a job
type Backoff struct {
	Type  BackoffType
	Delay time.Duration
}

// Repeat describes a recurring schedule as an opaque cron descriptor.
// Pattern is a standard 5-field cron expression.
type Repeat struct {
	Pattern  string
	Timezone string
}

// JobOptions controls enqueue behaviour
type JobOptions struct {
	Delay    time.Duration
	Attempts int // total attempts including the first; minimum 1
	Backoff  Backoff
	Repeat   *Repeat
}

// Job is a unit of queued work
type Job struct {
	ID           string          `json:"id"`
	Queue        string          `json:"queue"`
	Name         string          `json:"name"`
	Payload      json.RawMessage `json:"payload"`
	Attempts     int             `json:"attempts"`      // configured budget
	AttemptsMade int             `json:"attempts_made"` // completed attempts so far
	EnqueuedAt   time.Time       `json:"enqueued_at"`
}

// DecodePayload unmarshals the job payload into dest
func (j *Job) DecodePayload(dest any) error {
	return json.Unmarshal(j.Payload, dest)
}

// Status holds live per-queue counts
type Status struct {
	Waiting   int `json:"waiting"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Delayed   int `json:"delayed"`
}

// EventType identifies a queue lifecycle event
type EventType string

const (
	EventCompleted EventType = "completed"
	EventFailed    EventType = "failed"
	EventProgress  EventType = "progress"
	EventStalled   EventType = "stalled"
)

// Event is emitted by the backend on job lifecycle transitions
type Event struct {
	Type         EventType       `json:"type"`
	Queue        string          `json:"queue"`
	JobID        string          `json:"job_id"`
	JobName      string          `json:"job_name"`
	Error        string          `json:"error,omitempty"`
	AttemptsMade int             `json:"attempts_made"`
	Progress     int             `json:"progress,omitempty"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
}

// Backend is the durable multi-queue store contract.
//
// The producing side (scheduler, trigger API) uses AddJob, pause/resume and
// status queries. The consuming side (processors) uses Dequeue and reports
// outcomes through Complete/Fail/Progress; the backend owns retry scheduling
// and event emission so that monitoring stays independent of worker control
// flow. Any implementation honouring these semantics can be substituted.
type Backend interface {
	AddJob(ctx context.Context, queue, name string, payload any, opts JobOptions) (*Job, error)
	GetJob(ctx context.Context, queue, jobID string) (*Job, error)
	GetQueueStatus(ctx context.Context, queue string) (Status, error)
	PauseQueue(ctx context.Context, queue string) error
	ResumeQueue(ctx context.Context, queue string) error

	// Subscribe returns a stream of lifecycle events for one queue and a
	// cancel function releasing the subscription.
	Subscribe(queue string) (<-chan Event, func())

	// Dequeue blocks until a job is available on the queue or ctx is done.
	Dequeue(ctx context.Context, queue string) (*Job, error)
	// Complete marks a dequeued job as succeeded.
	Complete(job *Job)
	// Fail marks an attempt as failed; the backend re-enqueues with backoff
	// while the attempt budget lasts, and emits a failed event once exhausted.
	Fail(job *Job, jobErr error)
	// Progress emits an advisory progress event (0-100).
	Progress(job *Job, pct int)

	Close() error
}
