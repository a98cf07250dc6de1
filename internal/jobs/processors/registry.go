// Package processors executes dequeued jobs. One worker per queue runs the
// dispatch loop under a concurrency cap and a rate limit; handlers are looked
// up by job name in a typed registry, so an unknown name is rejected instead
// of falling through a default branch.
package processors

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/coinscope/coinscope/internal/queue"
)

// Progress checkpoints reported by handlers. Advisory only.
const (
	ProgressFetched   = 25
	ProgressEvaluated = 50
	ProgressPersisted = 75
	ProgressDone      = 100
)

// ProgressFunc reports a coarse completion percentage for the running job.
type ProgressFunc func(pct int)

// Handler executes one job. The returned value is a domain-specific summary
// kept only in logs; the error decides retry via the queue's attempt budget.
type Handler func(ctx context.Context, job *queue.Job, progress ProgressFunc) (any, error)

// Registry maps job names to handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register binds a job name to a handler, replacing any previous binding.
func (r *Registry) Register(jobName string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[jobName] = h
}

// Get returns the handler for a job name.
func (r *Registry) Get(jobName string) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[jobName]
	if !ok {
		return nil, fmt.Errorf("unknown job name: %s", jobName)
	}
	return h, nil
}

// Names returns all registered job names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
