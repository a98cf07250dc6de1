package processors

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/coinscope/coinscope/internal/clients/market"
	"github.com/coinscope/coinscope/internal/domain"
	"github.com/coinscope/coinscope/internal/jobs"
	"github.com/coinscope/coinscope/internal/modules/coins"
	"github.com/coinscope/coinscope/internal/modules/social"
	"github.com/coinscope/coinscope/internal/queue"
)

// trendingCloses is how many recent closes feed the trending evaluation.
const trendingCloses = 30

// SocialStatsSource fetches per-platform social activity for a coin.
type SocialStatsSource interface {
	GetSocialStats(ctx context.Context, symbol string) ([]market.SocialStats, error)
}

// SocialDeps contains the dependencies of the social-scraping queue handlers.
type SocialDeps struct {
	Coins    *coins.Repository
	Social   *social.Repository
	Trending *social.Evaluator
	Stats    SocialStatsSource
	Log      zerolog.Logger
}

// RegisterSocialHandlers binds the social-scraping queue job names.
func RegisterSocialHandlers(r *Registry, deps *SocialDeps) {
	r.Register(jobs.JobScrapeSocialData, deps.handleScrapeSocialData)
}

// handleScrapeSocialData collects metrics across the requested platforms,
// then evaluates trending status separately. A platform missing from the
// upstream response is skipped, not an error.
func (d *SocialDeps) handleScrapeSocialData(ctx context.Context, job *queue.Job, progress ProgressFunc) (any, error) {
	var p jobs.SocialScrapePayload
	if err := job.DecodePayload(&p); err != nil {
		return nil, err
	}

	stats, err := d.Stats.GetSocialStats(ctx, p.Symbol)
	if err != nil {
		return nil, err
	}
	progress(ProgressFetched)

	wanted := make(map[string]bool, len(p.Platforms))
	for _, platform := range p.Platforms {
		wanted[platform] = true
	}

	collected := 0
	now := time.Now().UTC()
	for _, s := range stats {
		if len(wanted) > 0 && !wanted[s.Platform] {
			continue
		}
		metric := domain.SocialMetric{
			CoinID:      p.CoinID,
			Platform:    s.Platform,
			Followers:   s.CommunitySize,
			Mentions24h: s.Mentions,
			Engagement:  s.Engagement,
			Sentiment:   s.Sentiment,
			CollectedAt: now,
		}
		if err := d.Social.Insert(metric); err != nil {
			d.Log.Error().Err(err).
				Int64("coin_id", p.CoinID).
				Str("platform", s.Platform).
				Msg("Failed to store social metric")
			continue
		}
		collected++
	}
	progress(ProgressPersisted)

	closes, err := d.Coins.RecentCloses(p.CoinID, trendingCloses)
	if err != nil {
		return nil, err
	}
	trending, err := d.Trending.Evaluate(p.CoinID, closes)
	if err != nil {
		return nil, err
	}
	progress(ProgressDone)

	return map[string]any{
		"coin_id":           p.CoinID,
		"metrics_collected": collected,
		"trending":          trending.Trending,
	}, nil
}
