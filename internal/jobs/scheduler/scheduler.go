// Package scheduler populates the queues with recurring work at startup and
// accepts on-demand scheduling requests for single coins.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/coinscope/coinscope/internal/domain"
	"github.com/coinscope/coinscope/internal/jobs"
	"github.com/coinscope/coinscope/internal/modules/coins"
	"github.com/coinscope/coinscope/internal/queue"
)

// Recurring schedule patterns, standard 5-field cron.
const (
	patternPriceUpdate    = "*/5 * * * *"
	patternSocialScrape   = "*/30 * * * *"
	patternRiskAssessment = "0 */2 * * *"
	patternWhaleScan      = "*/15 * * * *"
	patternWhaleImpact    = "0 * * * *"
	patternAlertCheck     = "* * * * *"
	patternPriceCleanup   = "0 2 * * *"
	patternSocialCleanup  = "0 3 * * *"
	patternCacheWarm      = "0 */6 * * *"
	patternBackup         = "0 4 * * *"
)

// On-demand retry budgets.
const (
	priceUpdateAttempts    = 3
	socialScrapeAttempts   = 3
	riskAssessmentAttempts = 2
)

var retryBackoff = queue.Backoff{Type: queue.BackoffExponential, Delay: 30 * time.Second}

// Scheduler registers recurring jobs and schedules one-off per-coin work.
type Scheduler struct {
	backend       queue.Backend
	coins         *coins.Repository
	backupEnabled bool
	log           zerolog.Logger
}

// New creates a scheduler
func New(backend queue.Backend, coins *coins.Repository, backupEnabled bool, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		backend:       backend,
		coins:         coins,
		backupEnabled: backupEnabled,
		log:           log.With().Str("component", "scheduler").Logger(),
	}
}

// Initialize registers the recurring jobs for every tracked coin plus the
// coin-independent jobs. A failure for one coin is logged and the loop
// continues; only a failure to list coins aborts.
func (s *Scheduler) Initialize(ctx context.Context) error {
	tracked, err := s.coins.GetActive()
	if err != nil {
		return err
	}

	registered := 0
	for _, coin := range tracked {
		if err := s.registerCoinJobs(ctx, coin); err != nil {
			s.log.Error().Err(err).
				Int64("coin_id", coin.ID).
				Str("symbol", coin.Symbol).
				Msg("Failed to register recurring jobs for coin")
			continue
		}
		registered++
	}

	if err := s.registerGlobalJobs(ctx); err != nil {
		return err
	}

	s.log.Info().
		Int("coins", registered).
		Int("skipped", len(tracked)-registered).
		Msg("Recurring jobs registered")
	return nil
}

func (s *Scheduler) registerCoinJobs(ctx context.Context, coin domain.Coin) error {
	recurring := []struct {
		queue   string
		name    string
		payload any
		pattern string
	}{
		{queue.QueuePriceUpdates, jobs.JobUpdateCoinPrice,
			jobs.PriceUpdatePayload{CoinID: coin.ID, Symbol: coin.Symbol, Address: coin.ContractAddress},
			patternPriceUpdate},
		{queue.QueueSocialScraping, jobs.JobScrapeSocialData,
			jobs.SocialScrapePayload{CoinID: coin.ID, Symbol: coin.Symbol},
			patternSocialScrape},
		{queue.QueueRiskAssessment, jobs.JobAssessCoinRisk,
			jobs.RiskAssessPayload{CoinID: coin.ID, Address: coin.ContractAddress},
			patternRiskAssessment},
		{queue.QueueWhaleMonitoring, jobs.JobScanWhaleTransactions,
			jobs.WhaleScanPayload{CoinID: coin.ID, Address: coin.ContractAddress},
			patternWhaleScan},
		{queue.QueueWhaleMonitoring, jobs.JobAnalyzeWhaleImpact,
			jobs.WhaleImpactPayload{CoinID: coin.ID},
			patternWhaleImpact},
	}

	for _, r := range recurring {
		_, err := s.backend.AddJob(ctx, r.queue, r.name, r.payload, queue.JobOptions{
			Repeat: &queue.Repeat{Pattern: r.pattern},
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Scheduler) registerGlobalJobs(ctx context.Context) error {
	global := []struct {
		queue   string
		name    string
		payload any
		pattern string
		enabled bool
	}{
		{queue.QueueAlerts, jobs.JobCheckAlerts, struct{}{}, patternAlertCheck, true},
		{queue.QueueMaintenance, jobs.JobCleanupOldPriceData, jobs.CleanupPayload{}, patternPriceCleanup, true},
		{queue.QueueMaintenance, jobs.JobCleanupOldSocialMetrics, jobs.CleanupPayload{}, patternSocialCleanup, true},
		{queue.QueueMaintenance, jobs.JobWarmCache, struct{}{}, patternCacheWarm, true},
		{queue.QueueMaintenance, jobs.JobBackupDatabase, struct{}{}, patternBackup, s.backupEnabled},
	}

	for _, g := range global {
		if !g.enabled {
			continue
		}
		_, err := s.backend.AddJob(ctx, g.queue, g.name, g.payload, queue.JobOptions{
			Repeat: &queue.Repeat{Pattern: g.pattern},
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// ScheduleCoinPriceUpdate enqueues a one-off price update for the coin.
func (s *Scheduler) ScheduleCoinPriceUpdate(ctx context.Context, coinID int64, delay time.Duration) (*queue.Job, error) {
	coin, err := s.coins.GetByID(coinID)
	if err != nil {
		return nil, err
	}
	return s.backend.AddJob(ctx, queue.QueuePriceUpdates, jobs.JobUpdateCoinPrice,
		jobs.PriceUpdatePayload{CoinID: coin.ID, Symbol: coin.Symbol, Address: coin.ContractAddress},
		queue.JobOptions{Delay: delay, Attempts: priceUpdateAttempts, Backoff: retryBackoff})
}

// ScheduleCoinSocialScraping enqueues a one-off social scrape for the coin.
func (s *Scheduler) ScheduleCoinSocialScraping(ctx context.Context, coinID int64, delay time.Duration) (*queue.Job, error) {
	coin, err := s.coins.GetByID(coinID)
	if err != nil {
		return nil, err
	}
	return s.backend.AddJob(ctx, queue.QueueSocialScraping, jobs.JobScrapeSocialData,
		jobs.SocialScrapePayload{CoinID: coin.ID, Symbol: coin.Symbol},
		queue.JobOptions{Delay: delay, Attempts: socialScrapeAttempts, Backoff: retryBackoff})
}

// ScheduleCoinRiskAssessment enqueues a one-off risk assessment for the coin.
func (s *Scheduler) ScheduleCoinRiskAssessment(ctx context.Context, coinID int64, delay time.Duration) (*queue.Job, error) {
	coin, err := s.coins.GetByID(coinID)
	if err != nil {
		return nil, err
	}
	return s.backend.AddJob(ctx, queue.QueueRiskAssessment, jobs.JobAssessCoinRisk,
		jobs.RiskAssessPayload{CoinID: coin.ID, Address: coin.ContractAddress, ForceRefresh: true},
		queue.JobOptions{Delay: delay, Attempts: riskAssessmentAttempts, Backoff: retryBackoff})
}

// PauseAllJobs pauses every queue. One queue failing does not stop the rest;
// the joined error reports any that did.
func (s *Scheduler) PauseAllJobs(ctx context.Context) error {
	var errs []error
	for _, name := range queue.AllQueues {
		if err := s.backend.PauseQueue(ctx, name); err != nil {
			s.log.Error().Err(err).Str("queue", name).Msg("Failed to pause queue")
			errs = append(errs, err)
			continue
		}
		s.log.Info().Str("queue", name).Msg("Queue paused")
	}
	return errors.Join(errs...)
}

// ResumeAllJobs resumes every queue with the same isolation as PauseAllJobs.
func (s *Scheduler) ResumeAllJobs(ctx context.Context) error {
	var errs []error
	for _, name := range queue.AllQueues {
		if err := s.backend.ResumeQueue(ctx, name); err != nil {
			s.log.Error().Err(err).Str("queue", name).Msg("Failed to resume queue")
			errs = append(errs, err)
			continue
		}
		s.log.Info().Str("queue", name).Msg("Queue resumed")
	}
	return errors.Join(errs...)
}
