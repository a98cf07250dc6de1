package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/coinscope/coinscope/internal/queue"
)

const (
	// metricsWindow is the trailing aggregation window.
	metricsWindow = 24 * time.Hour
	// refreshInterval recomputes cached metrics.
	refreshInterval = 60 * time.Second
	// trimInterval removes records older than the window.
	trimInterval = time.Hour
	// backlogThreshold is the active-job count above which a queue is
	// flagged as warning.
	backlogThreshold = 10
)

// HealthLevel classifies a queue or the whole system.
type HealthLevel string

const (
	HealthHealthy  HealthLevel = "healthy"
	HealthWarning  HealthLevel = "warning"
	HealthCritical HealthLevel = "critical"
)

var severity = map[HealthLevel]int{
	HealthHealthy:  0,
	HealthWarning:  1,
	HealthCritical: 2,
}

// QueueMetrics is the aggregated view of one queue over the trailing window.
type QueueMetrics struct {
	Queue         string     `json:"queue"`
	Completed     int        `json:"completed"`
	Failed        int        `json:"failed"`
	SuccessRate   float64    `json:"success_rate"`
	Waiting       int        `json:"waiting"`
	Active        int        `json:"active"`
	Delayed       int        `json:"delayed"`
	LastProcessed *time.Time `json:"last_processed,omitempty"`
	LastFailure   *time.Time `json:"last_failure,omitempty"`
}

// QueueHealth is the classification of one queue.
type QueueHealth struct {
	Status      HealthLevel `json:"status"`
	SuccessRate float64     `json:"success_rate"`
	Active      int         `json:"active"`
}

// HealthStatus is the classification of every queue plus the overall maximum
// severity.
type HealthStatus struct {
	Overall HealthLevel            `json:"overall"`
	Queues  map[string]QueueHealth `json:"queues"`
}

// Monitor subscribes to queue events, records them in a windowed store and
// serves metrics and health views. It is an observer only; nothing here
// affects job execution.
type Monitor struct {
	backend queue.Backend
	store   WindowedStore
	log     zerolog.Logger

	mu      sync.RWMutex
	cached  map[string]QueueMetrics
	cancels []func()
	stop    chan struct{}
	wg      sync.WaitGroup
	started bool
}

// New creates a monitor backed by the given windowed store.
func New(backend queue.Backend, store WindowedStore, log zerolog.Logger) *Monitor {
	return &Monitor{
		backend: backend,
		store:   store,
		log:     log.With().Str("component", "monitor").Logger(),
		cached:  make(map[string]QueueMetrics),
		stop:    make(chan struct{}),
	}
}

// Initialize attaches event listeners to every queue and starts the refresh
// and trim ticks.
func (m *Monitor) Initialize() {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	for _, queueName := range queue.AllQueues {
		events, cancel := m.backend.Subscribe(queueName)
		m.cancels = append(m.cancels, cancel)
		m.wg.Add(1)
		go m.listen(queueName, events)
	}

	m.wg.Add(2)
	go m.refreshLoop()
	go m.trimLoop()

	m.log.Info().Int("queues", len(queue.AllQueues)).Msg("Monitor initialized")
}

// Close detaches all listeners and stops the background ticks.
func (m *Monitor) Close() {
	close(m.stop)
	for _, cancel := range m.cancels {
		cancel()
	}
	m.wg.Wait()
}

// listen consumes one queue's event stream. Each event is handled behind a
// recover so a store failure cannot break the pipeline.
func (m *Monitor) listen(queueName string, events <-chan queue.Event) {
	defer m.wg.Done()
	for ev := range events {
		m.handleEvent(queueName, ev)
	}
}

func (m *Monitor) handleEvent(queueName string, ev queue.Event) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error().Str("queue", queueName).Interface("panic", r).Msg("Monitor listener panic")
		}
	}()

	rec := Record{
		Queue:     queueName,
		Outcome:   ev.Type,
		JobID:     ev.JobID,
		JobName:   ev.JobName,
		Timestamp: ev.Timestamp,
	}
	if ev.Type == queue.EventFailed {
		rec.Error = ev.Error
		rec.AttemptsMade = ev.AttemptsMade
		rec.Payload = ev.Payload
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.store.Append(ctx, rec); err != nil {
		m.log.Error().Err(err).Str("queue", queueName).Str("outcome", string(ev.Type)).Msg("Failed to record queue event")
		return
	}

	if ev.Type == queue.EventCompleted || ev.Type == queue.EventFailed {
		m.refreshQueue(ctx, queueName)
	}
}

// GetQueueMetrics computes the trailing-window metrics for a queue and
// refreshes the in-process cache.
func (m *Monitor) GetQueueMetrics(ctx context.Context, queueName string) (QueueMetrics, error) {
	since := time.Now().Add(-metricsWindow)

	completed, err := m.store.CountSince(ctx, queueName, queue.EventCompleted, since)
	if err != nil {
		return QueueMetrics{}, err
	}
	failed, err := m.store.CountSince(ctx, queueName, queue.EventFailed, since)
	if err != nil {
		return QueueMetrics{}, err
	}

	metrics := QueueMetrics{
		Queue:       queueName,
		Completed:   completed,
		Failed:      failed,
		SuccessRate: successRate(completed, failed),
	}

	status, err := m.backend.GetQueueStatus(ctx, queueName)
	if err != nil {
		return QueueMetrics{}, err
	}
	metrics.Waiting = status.Waiting
	metrics.Active = status.Active
	metrics.Delayed = status.Delayed

	if metrics.LastProcessed, err = m.store.LastTimestamp(ctx, queueName, queue.EventCompleted); err != nil {
		return QueueMetrics{}, err
	}
	if metrics.LastFailure, err = m.store.LastTimestamp(ctx, queueName, queue.EventFailed); err != nil {
		return QueueMetrics{}, err
	}

	m.mu.Lock()
	m.cached[queueName] = metrics
	m.mu.Unlock()
	return metrics, nil
}

// CachedMetrics returns the last computed metrics for every queue.
func (m *Monitor) CachedMetrics() map[string]QueueMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]QueueMetrics, len(m.cached))
	for k, v := range m.cached {
		out[k] = v
	}
	return out
}

// GetHealthStatus classifies every queue and reports the maximum severity.
func (m *Monitor) GetHealthStatus(ctx context.Context) (*HealthStatus, error) {
	health := &HealthStatus{
		Overall: HealthHealthy,
		Queues:  make(map[string]QueueHealth, len(queue.AllQueues)),
	}

	for _, queueName := range queue.AllQueues {
		metrics, err := m.GetQueueMetrics(ctx, queueName)
		if err != nil {
			return nil, err
		}
		status := classify(metrics)
		health.Queues[queueName] = QueueHealth{
			Status:      status,
			SuccessRate: metrics.SuccessRate,
			Active:      metrics.Active,
		}
		if severity[status] > severity[health.Overall] {
			health.Overall = status
		}
	}
	return health, nil
}

// RecentFailures returns the most recent failure records for a queue.
func (m *Monitor) RecentFailures(ctx context.Context, queueName string, limit int) ([]Record, error) {
	return m.store.RecentFailures(ctx, queueName, limit)
}

func classify(metrics QueueMetrics) HealthLevel {
	if metrics.SuccessRate < 50 {
		return HealthCritical
	}
	if metrics.SuccessRate < 80 {
		return HealthWarning
	}
	if metrics.LastFailure != nil &&
		(metrics.LastProcessed == nil || metrics.LastFailure.After(*metrics.LastProcessed)) {
		return HealthWarning
	}
	if metrics.Active > backlogThreshold {
		return HealthWarning
	}
	return HealthHealthy
}

// successRate treats a windowless queue as fully healthy.
func successRate(completed, failed int) float64 {
	total := completed + failed
	if total == 0 {
		return 100
	}
	return float64(completed) / float64(total) * 100
}

func (m *Monitor) refreshLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			for _, queueName := range queue.AllQueues {
				m.refreshQueue(ctx, queueName)
			}
			cancel()
		}
	}
}

func (m *Monitor) refreshQueue(ctx context.Context, queueName string) {
	if _, err := m.GetQueueMetrics(ctx, queueName); err != nil {
		m.log.Error().Err(err).Str("queue", queueName).Msg("Failed to refresh queue metrics")
	}
}

func (m *Monitor) trimLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(trimInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if err := m.store.Trim(ctx, time.Now().Add(-metricsWindow)); err != nil {
				m.log.Error().Err(err).Msg("Failed to trim monitor records")
			}
			cancel()
		}
	}
}
