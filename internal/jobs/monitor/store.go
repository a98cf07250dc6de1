// Package monitor turns queue lifecycle events into health and metrics
// views. It observes the backend's event streams and never touches job
// execution.
package monitor

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/coinscope/coinscope/internal/queue"
)

// Record is one timestamp-scored lifecycle observation.
type Record struct {
	Queue        string          `msgpack:"queue" json:"queue"`
	Outcome      queue.EventType `msgpack:"outcome" json:"outcome"`
	JobID        string          `msgpack:"job_id" json:"job_id"`
	JobName      string          `msgpack:"job_name" json:"job_name"`
	Error        string          `msgpack:"error,omitempty" json:"error,omitempty"`
	AttemptsMade int             `msgpack:"attempts_made" json:"attempts_made"`
	Payload      json.RawMessage `msgpack:"payload,omitempty" json:"payload,omitempty"`
	Timestamp    time.Time       `msgpack:"timestamp" json:"timestamp"`
}

// WindowedStore keeps records scoped by {queue, outcome} for a trailing
// window. Appends commute, so concurrent workers need no coordination.
type WindowedStore interface {
	Append(ctx context.Context, rec Record) error
	CountSince(ctx context.Context, queueName string, outcome queue.EventType, since time.Time) (int, error)
	LastTimestamp(ctx context.Context, queueName string, outcome queue.EventType) (*time.Time, error)
	RecentFailures(ctx context.Context, queueName string, limit int) ([]Record, error)
	Trim(ctx context.Context, olderThan time.Time) error
}

// MemoryStore is the in-process WindowedStore used without Redis and in tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string][]Record // keyed by queue + "|" + outcome, append order
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string][]Record)}
}

func storeKey(queueName string, outcome queue.EventType) string {
	return queueName + "|" + string(outcome)
}

func (s *MemoryStore) Append(ctx context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := storeKey(rec.Queue, rec.Outcome)
	s.records[key] = append(s.records[key], rec)
	return nil
}

func (s *MemoryStore) CountSince(ctx context.Context, queueName string, outcome queue.EventType, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, rec := range s.records[storeKey(queueName, outcome)] {
		if !rec.Timestamp.Before(since) {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) LastTimestamp(ctx context.Context, queueName string, outcome queue.EventType) (*time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recs := s.records[storeKey(queueName, outcome)]
	if len(recs) == 0 {
		return nil, nil
	}
	ts := recs[len(recs)-1].Timestamp
	return &ts, nil
}

func (s *MemoryStore) RecentFailures(ctx context.Context, queueName string, limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recs := s.records[storeKey(queueName, queue.EventFailed)]
	if limit <= 0 || limit > len(recs) {
		limit = len(recs)
	}
	// newest first
	out := make([]Record, 0, limit)
	for i := len(recs) - 1; i >= len(recs)-limit; i-- {
		out = append(out, recs[i])
	}
	return out, nil
}

func (s *MemoryStore) Trim(ctx context.Context, olderThan time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, recs := range s.records {
		kept := recs[:0]
		for _, rec := range recs {
			if !rec.Timestamp.Before(olderThan) {
				kept = append(kept, rec)
			}
		}
		s.records[key] = kept
	}
	return nil
}
