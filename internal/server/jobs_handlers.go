package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/coinscope/coinscope/internal/jobs/monitor"
	"github.com/coinscope/coinscope/internal/jobs/scheduler"
	"github.com/coinscope/coinscope/internal/queue"
)

// JobHandlers serves the queue monitoring and trigger endpoints.
type JobHandlers struct {
	backend   queue.Backend
	monitor   *monitor.Monitor
	scheduler *scheduler.Scheduler
	log       zerolog.Logger
}

func NewJobHandlers(backend queue.Backend, mon *monitor.Monitor, sched *scheduler.Scheduler, log zerolog.Logger) *JobHandlers {
	return &JobHandlers{
		backend:   backend,
		monitor:   mon,
		scheduler: sched,
		log:       log.With().Str("handlers", "jobs").Logger(),
	}
}

// GetStats returns the windowed metrics for every queue.
func (h *JobHandlers) GetStats(w http.ResponseWriter, r *http.Request) {
	stats := make(map[string]monitor.QueueMetrics, len(queue.AllQueues))
	for _, queueName := range queue.AllQueues {
		metrics, err := h.monitor.GetQueueMetrics(r.Context(), queueName)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "metrics_failed", err.Error())
			return
		}
		stats[queueName] = metrics
	}
	writeJSON(w, http.StatusOK, stats)
}

// GetHealth returns the per-queue and overall health classification.
func (h *JobHandlers) GetHealth(w http.ResponseWriter, r *http.Request) {
	health, err := h.monitor.GetHealthStatus(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "health_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, health)
}

// GetFailures returns recent failure records, optionally scoped to ?queue=.
func (h *JobHandlers) GetFailures(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	queues := queue.AllQueues
	if name := r.URL.Query().Get("queue"); name != "" {
		queues = []string{name}
	}

	failures := make([]monitor.Record, 0, limit)
	for _, queueName := range queues {
		recs, err := h.monitor.RecentFailures(r.Context(), queueName, limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failures_failed", err.Error())
			return
		}
		failures = append(failures, recs...)
	}
	writeJSON(w, http.StatusOK, map[string]any{"failures": failures})
}

type triggerRequest struct {
	Queue        string          `json:"queue"`
	Name         string          `json:"name"`
	Payload      json.RawMessage `json:"payload"`
	DelaySeconds int             `json:"delay_seconds,omitempty"`
}

// TriggerJob enqueues a one-off job. The job runs with a single attempt;
// manual triggers are repeated manually, not retried.
func (h *JobHandlers) TriggerJob(w http.ResponseWriter, r *http.Request) {
	var req triggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.Queue == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "queue and name are required")
		return
	}

	payload := req.Payload
	if payload == nil {
		payload = json.RawMessage("{}")
	}

	job, err := h.backend.AddJob(r.Context(), req.Queue, req.Name, payload, queue.JobOptions{
		Delay:    time.Duration(req.DelaySeconds) * time.Second,
		Attempts: 1,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, "enqueue_failed", err.Error())
		return
	}

	h.log.Info().Str("queue", req.Queue).Str("job", req.Name).Str("job_id", job.ID).Msg("Job triggered manually")
	writeJSON(w, http.StatusAccepted, map[string]any{"success": true, "job_id": job.ID})
}

// PauseAll pauses every queue.
func (h *JobHandlers) PauseAll(w http.ResponseWriter, r *http.Request) {
	if err := h.scheduler.PauseAllJobs(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "pause_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "paused": true})
}

// ResumeAll resumes every queue.
func (h *JobHandlers) ResumeAll(w http.ResponseWriter, r *http.Request) {
	if err := h.scheduler.ResumeAllJobs(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "resume_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "paused": false})
}

// PauseQueue pauses one queue.
func (h *JobHandlers) PauseQueue(w http.ResponseWriter, r *http.Request) {
	queueName := chi.URLParam(r, "queue")
	if err := h.backend.PauseQueue(r.Context(), queueName); err != nil {
		writeError(w, http.StatusBadRequest, "pause_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "queue": queueName, "paused": true})
}

// ResumeQueue resumes one queue.
func (h *JobHandlers) ResumeQueue(w http.ResponseWriter, r *http.Request) {
	queueName := chi.URLParam(r, "queue")
	if err := h.backend.ResumeQueue(r.Context(), queueName); err != nil {
		writeError(w, http.StatusBadRequest, "resume_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "queue": queueName, "paused": false})
}
