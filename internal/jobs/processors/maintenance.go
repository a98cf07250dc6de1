package processors

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/coinscope/coinscope/internal/cache"
	"github.com/coinscope/coinscope/internal/jobs"
	"github.com/coinscope/coinscope/internal/modules/coins"
	"github.com/coinscope/coinscope/internal/modules/social"
	"github.com/coinscope/coinscope/internal/queue"
)

// Default retention applied when a cleanup payload carries no value.
const (
	defaultPriceRetentionDays  = 90
	defaultSocialRetentionDays = 30
)

// Cache warm TTLs and sizes.
const (
	topCoinsCount = 10
	topCoinsTTL   = 5 * time.Minute
	overviewTTL   = 10 * time.Minute
	trendingTTL   = 15 * time.Minute
)

// BackupRunner produces and ships one database backup.
type BackupRunner interface {
	Run(ctx context.Context) error
}

// MaintenanceDeps contains the dependencies of the maintenance queue handlers.
type MaintenanceDeps struct {
	Coins  *coins.Repository
	Social *social.Repository
	Cache  cache.Service
	Backup BackupRunner
	Log    zerolog.Logger
}

// RegisterMaintenanceHandlers binds the maintenance queue job names.
// The backup job is only registered when a runner is configured.
func RegisterMaintenanceHandlers(r *Registry, deps *MaintenanceDeps) {
	r.Register(jobs.JobCleanupOldPriceData, deps.handleCleanupPrices)
	r.Register(jobs.JobCleanupOldSocialMetrics, deps.handleCleanupSocial)
	r.Register(jobs.JobWarmCache, deps.handleWarmCache)
	if deps.Backup != nil {
		r.Register(jobs.JobBackupDatabase, deps.handleBackup)
	}
}

func (d *MaintenanceDeps) handleCleanupPrices(ctx context.Context, job *queue.Job, progress ProgressFunc) (any, error) {
	var p jobs.CleanupPayload
	if err := job.DecodePayload(&p); err != nil {
		return nil, err
	}
	days := p.RetentionDays
	if days <= 0 {
		days = defaultPriceRetentionDays
	}

	cutoff := time.Now().AddDate(0, 0, -days)
	progress(ProgressEvaluated)
	deleted, err := d.Coins.DeletePricesBefore(cutoff)
	if err != nil {
		return nil, err
	}
	progress(ProgressDone)

	return map[string]any{"deleted": deleted, "retention_days": days}, nil
}

func (d *MaintenanceDeps) handleCleanupSocial(ctx context.Context, job *queue.Job, progress ProgressFunc) (any, error) {
	var p jobs.CleanupPayload
	if err := job.DecodePayload(&p); err != nil {
		return nil, err
	}
	days := p.RetentionDays
	if days <= 0 {
		days = defaultSocialRetentionDays
	}

	cutoff := time.Now().AddDate(0, 0, -days)
	progress(ProgressEvaluated)
	deleted, err := d.Social.DeleteBefore(cutoff)
	if err != nil {
		return nil, err
	}
	progress(ProgressDone)

	return map[string]any{"deleted": deleted, "retention_days": days}, nil
}

// handleWarmCache pre-populates the entries the read API serves most:
// the top coins list, a market overview and the trending list. Idempotent.
func (d *MaintenanceDeps) handleWarmCache(ctx context.Context, job *queue.Job, progress ProgressFunc) (any, error) {
	top, err := d.Coins.TopByMarketCap(topCoinsCount)
	if err != nil {
		return nil, err
	}
	progress(ProgressFetched)

	type coinSnapshot struct {
		ID        int64   `json:"id"`
		Symbol    string  `json:"symbol"`
		Name      string  `json:"name"`
		Price     float64 `json:"price"`
		Volume24h float64 `json:"volume_24h"`
		MarketCap float64 `json:"market_cap"`
	}

	snapshots := make([]coinSnapshot, 0, len(top))
	var totalMarketCap, totalVolume float64
	for _, c := range top {
		s := coinSnapshot{ID: c.ID, Symbol: c.Symbol, Name: c.Name}
		latest, err := d.Coins.LatestPrice(c.ID)
		if err != nil {
			d.Log.Warn().Err(err).Int64("coin_id", c.ID).Msg("Skipping coin in cache warm")
			continue
		}
		if latest != nil {
			s.Price = latest.Price
			s.Volume24h = latest.Volume24h
			s.MarketCap = latest.MarketCap
			totalMarketCap += latest.MarketCap
			totalVolume += latest.Volume24h
		}
		snapshots = append(snapshots, s)
	}
	if err := d.Cache.Set(ctx, "coins:top", snapshots, topCoinsTTL); err != nil {
		return nil, err
	}
	progress(ProgressEvaluated)

	overview := map[string]any{
		"coins":            len(snapshots),
		"total_market_cap": totalMarketCap,
		"total_volume_24h": totalVolume,
		"generated_at":     time.Now().UTC(),
	}
	if err := d.Cache.Set(ctx, "market:overview", overview, overviewTTL); err != nil {
		return nil, err
	}
	progress(ProgressPersisted)

	trendingIDs, err := d.Social.TrendingCoinIDs()
	if err != nil {
		return nil, err
	}
	if err := d.Cache.Set(ctx, "coins:trending", trendingIDs, trendingTTL); err != nil {
		return nil, err
	}
	progress(ProgressDone)

	return map[string]any{"top_coins": len(snapshots), "trending": len(trendingIDs)}, nil
}

func (d *MaintenanceDeps) handleBackup(ctx context.Context, job *queue.Job, progress ProgressFunc) (any, error) {
	progress(ProgressFetched)
	if err := d.Backup.Run(ctx); err != nil {
		return nil, err
	}
	progress(ProgressDone)
	return map[string]any{"backup": "completed"}, nil
}
