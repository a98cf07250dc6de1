package processors

import (
	"time"

	"github.com/coinscope/coinscope/internal/queue"
)

// RateLimit caps job starts per rolling window for one queue.
type RateLimit struct {
	Max    int
	Window time.Duration
}

// WorkerConfig is the per-queue execution budget.
type WorkerConfig struct {
	Concurrency int
	RateLimit   RateLimit
}

// DefaultWorkerConfigs returns the per-queue budgets. Price updates fan out
// across many coins and tolerate parallelism; risk assessments hit several
// upstreams per job, so they run nearly serial.
func DefaultWorkerConfigs() map[string]WorkerConfig {
	return map[string]WorkerConfig{
		queue.QueuePriceUpdates: {
			Concurrency: 5,
			RateLimit:   RateLimit{Max: 60, Window: time.Minute},
		},
		queue.QueueSocialScraping: {
			Concurrency: 3,
			RateLimit:   RateLimit{Max: 20, Window: time.Minute},
		},
		queue.QueueRiskAssessment: {
			Concurrency: 2,
			RateLimit:   RateLimit{Max: 10, Window: time.Minute},
		},
		queue.QueueWhaleMonitoring: {
			Concurrency: 3,
			RateLimit:   RateLimit{Max: 30, Window: time.Minute},
		},
		queue.QueueAlerts: {
			Concurrency: 5,
			RateLimit:   RateLimit{Max: 120, Window: time.Minute},
		},
		queue.QueueMaintenance: {
			Concurrency: 1,
			RateLimit:   RateLimit{Max: 6, Window: time.Minute},
		},
	}
}
